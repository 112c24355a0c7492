package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pandoo/chatsync/internal/backend"
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Read and write user profiles",
	}
	cmd.AddCommand(newProfileGetCmd(), newProfileCreateCmd())
	return cmd
}

func newProfileGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get [user-id]",
		Short: "Show a user profile",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runProfileGet,
	}
	cmd.Flags().Bool("json", false, "Output as JSON")
	return cmd
}

func runProfileGet(cmd *cobra.Command, args []string) error {
	userID := current.cfg.Backend.UserID
	if len(args) > 0 {
		userID = args[0]
	}
	if userID == "" {
		return Exitf(ExitCodeFailure, "no user id; pass one or set backend.user_id")
	}

	profile, err := current.client.GetProfile(cmd.Context(), userID)
	if err != nil {
		return Exitf(ExitCodeFailure, "get profile: %v", err)
	}
	if profile == nil {
		return Exitf(ExitCodeFailure, "no profile for %s", userID)
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return printJSON(cmd.OutOrStdout(), profile)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "id:       %s\n", profile.ID)
	fmt.Fprintf(out, "username: %s\n", profile.Username)
	fmt.Fprintf(out, "email:    %s\n", profile.Email)
	if profile.Name != "" {
		fmt.Fprintf(out, "name:     %s\n", profile.Name)
	}
	if profile.Status != "" {
		fmt.Fprintf(out, "status:   %s\n", profile.Status)
	}
	return nil
}

func newProfileCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create or replace the current user's profile",
		Args:  cobra.NoArgs,
		RunE:  runProfileCreate,
	}
	cmd.Flags().String("username", "", "Unique handle (required)")
	cmd.Flags().String("email", "", "Email address (required)")
	cmd.Flags().String("name", "", "Display name")
	cmd.Flags().String("avatar", "", "Avatar URL")
	cmd.Flags().String("status", "", "Status line")
	cmd.Flags().Bool("json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func runProfileCreate(cmd *cobra.Command, args []string) error {
	username, _ := cmd.Flags().GetString("username")
	email, _ := cmd.Flags().GetString("email")
	name, _ := cmd.Flags().GetString("name")
	avatar, _ := cmd.Flags().GetString("avatar")
	status, _ := cmd.Flags().GetString("status")

	profile, err := current.client.CreateProfile(cmd.Context(), backend.CreateProfileInput{
		ID:       current.cfg.Backend.UserID,
		Username: username,
		Email:    email,
		Name:     name,
		Avatar:   avatar,
		Status:   status,
	})
	if err != nil {
		return Exitf(ExitCodeFailure, "create profile: %v", err)
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return printJSON(cmd.OutOrStdout(), profile)
	}
	fmt.Fprintln(cmd.OutOrStdout(), profile.ID)
	return nil
}
