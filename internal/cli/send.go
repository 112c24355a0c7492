package cli

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pandoo/chatsync/internal/send"
)

func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send [message]",
		Short: "Send a message to a conversation",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSend,
	}
	cmd.Flags().String("conversation", "", "Conversation id (defaults to the selected context)")
	cmd.Flags().String("file", "", "Send a file attachment")
	cmd.Flags().String("voice", "", "Send an audio file as a voice message")
	cmd.Flags().Int("duration", 0, "Voice clip length in seconds")
	cmd.Flags().Bool("json", false, "Output the confirmed message as JSON")
	return cmd
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	convFlag, _ := cmd.Flags().GetString("conversation")
	id, err := current.resolveConversation(convFlag)
	if err != nil {
		return Exitf(ExitCodeFailure, "resolve conversation: %v", err)
	}
	if id == "" {
		return Exitf(ExitCodeFailure, "no conversation selected; pass --conversation or run 'chatsync use'")
	}

	text := ""
	if len(args) > 0 {
		text = args[0]
	}
	filePath, _ := cmd.Flags().GetString("file")
	voicePath, _ := cmd.Flags().GetString("voice")
	duration, _ := cmd.Flags().GetInt("duration")

	if filePath != "" && voicePath != "" {
		return Exitf(ExitCodeFailure, "provide either --file or --voice, not both")
	}

	sess, err := current.newSession(ctx)
	if err != nil {
		return Exitf(ExitCodeFailure, "init session: %v", err)
	}
	defer sess.Close()

	if err := sess.Select(ctx, id); err != nil {
		return Exitf(ExitCodeFailure, "select conversation: %v", err)
	}

	composer := sess.Composer()
	switch {
	case filePath != "":
		attachment, err := stageFile(filePath)
		if err != nil {
			return Exitf(ExitCodeFailure, "stage file: %v", err)
		}
		composer.Attach(attachment)
	case voicePath != "":
		if duration <= 0 {
			return Exitf(ExitCodeFailure, "--voice requires --duration")
		}
		clip, err := stageVoice(voicePath, duration)
		if err != nil {
			return Exitf(ExitCodeFailure, "stage voice clip: %v", err)
		}
		composer.AttachVoice(clip)
	default:
		composer.SetText(text)
	}

	progress := func(fraction float64) {
		fmt.Fprintf(cmd.ErrOrStderr(), "\ruploading %3.0f%%", fraction*100)
		if fraction >= 1 {
			fmt.Fprintln(cmd.ErrOrStderr())
		}
	}

	msg, err := sess.Send(ctx, progress)
	if err != nil {
		return Exitf(ExitCodeFailure, "send: %v", err)
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return printJSON(cmd.OutOrStdout(), msg)
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg.MsgID)
	return nil
}

func stageFile(path string) (*send.Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &send.Attachment{
		Name:        filepath.Base(path),
		Size:        info.Size(),
		ContentType: contentType,
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

func stageVoice(path string, duration int) (*send.VoiceClip, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "audio/webm"
	}
	return &send.VoiceClip{
		Size:        info.Size(),
		ContentType: contentType,
		Duration:    duration,
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}
