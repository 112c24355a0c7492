package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download <message-id>",
		Short: "Print a download link for a file message",
		Long:  "Resolves a time-limited download link for a file or voice message\nin the conversation's recent timeline.",
		Args:  cobra.ExactArgs(1),
		RunE:  runDownload,
	}
	cmd.Flags().String("conversation", "", "Conversation id (defaults to the selected context)")
	return cmd
}

func runDownload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	convFlag, _ := cmd.Flags().GetString("conversation")
	id, err := current.resolveConversation(convFlag)
	if err != nil {
		return Exitf(ExitCodeFailure, "resolve conversation: %v", err)
	}
	if id == "" {
		return Exitf(ExitCodeFailure, "no conversation selected; pass --conversation or run 'chatsync use'")
	}

	sess, err := current.newSession(ctx)
	if err != nil {
		return Exitf(ExitCodeFailure, "init session: %v", err)
	}
	defer sess.Close()

	if err := sess.Select(ctx, id); err != nil {
		return Exitf(ExitCodeFailure, "select conversation: %v", err)
	}

	url, err := sess.AttachmentURL(ctx, args[0])
	if err != nil {
		return Exitf(ExitCodeFailure, "resolve attachment: %v", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), url)
	return nil
}
