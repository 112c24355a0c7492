package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "use [conversation-id]",
		Short: "Select the default conversation for other commands",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runUse,
	}
	cmd.Flags().Bool("clear", false, "Clear the selected conversation")
	return cmd
}

func runUse(cmd *cobra.Command, args []string) error {
	if clear, _ := cmd.Flags().GetBool("clear"); clear {
		if err := current.context.Clear(); err != nil {
			return Exitf(ExitCodeFailure, "clear context: %v", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "context cleared")
		return nil
	}

	cliCtx, err := current.context.Load()
	if err != nil {
		return Exitf(ExitCodeFailure, "load context: %v", err)
	}

	if len(args) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), cliCtx.String())
		return nil
	}

	id := args[0]
	title := ""
	if convs, err := current.client.MyConversations(cmd.Context()); err == nil {
		for _, c := range convs {
			if c.ID == id {
				title = c.Title
				break
			}
		}
	}

	cliCtx.SetConversation(id, title)
	if err := current.context.Save(cliCtx); err != nil {
		return Exitf(ExitCodeFailure, "save context: %v", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), cliCtx.String())
	return nil
}
