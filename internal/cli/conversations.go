package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newConversationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conversations",
		Short: "List conversations for the current user",
		Args:  cobra.NoArgs,
		RunE:  runConversations,
	}
	cmd.Flags().Bool("json", false, "Output as JSON")
	return cmd
}

func runConversations(cmd *cobra.Command, args []string) error {
	convs, err := current.client.MyConversations(cmd.Context())
	if err != nil {
		return Exitf(ExitCodeFailure, "list conversations: %v", err)
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		payload, err := json.MarshalIndent(convs, "", "  ")
		if err != nil {
			return Exitf(ExitCodeFailure, "encode conversations: %v", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(payload))
		return nil
	}

	headers := []string{"ID", "TITLE", "MEMBERS", "GROUP", "UPDATED"}
	rows := make([][]string, 0, len(convs))
	for _, c := range convs {
		updated := ""
		if !c.UpdatedAt.IsZero() {
			updated = c.UpdatedAt.Local().Format("2006-01-02 15:04")
		}
		title := c.Title
		if title == "" {
			title = strings.Join(c.Members, ", ")
		}
		rows = append(rows, []string{
			c.ID,
			title,
			strconv.Itoa(len(c.Members)),
			formatYesNo(c.IsGroup),
			updated,
		})
	}
	return writeTable(cmd.OutOrStdout(), headers, rows)
}
