package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pandoo/chatsync/internal/model"
)

func printJSON(out io.Writer, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return Exitf(ExitCodeFailure, "encode output: %v", err)
	}
	fmt.Fprintln(out, string(payload))
	return nil
}

// formatMessage renders one timeline entry as a terminal line.
func formatMessage(msg *model.Message) string {
	ts := msg.CreatedAt.Local().Format("15:04:05")

	switch content := msg.Content().(type) {
	case model.TextContent:
		return fmt.Sprintf("%s  %s: %s", ts, msg.SenderID, content.Text)
	case model.FileContent:
		if content.Voice {
			return fmt.Sprintf("%s  %s: [voice %s]", ts, msg.SenderID, formatDuration(content.Duration))
		}
		return fmt.Sprintf("%s  %s: [file %s %s]", ts, msg.SenderID, content.FileName, formatSize(content.FileSize))
	default:
		return fmt.Sprintf("%s  %s: [unknown message]", ts, msg.SenderID)
	}
}

func formatDuration(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func formatSize(bytes int64) string {
	switch {
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(bytes)/(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1fKB", float64(bytes)/(1<<10))
	case bytes > 0:
		return fmt.Sprintf("%dB", bytes)
	default:
		return "?"
	}
}
