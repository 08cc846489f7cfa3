package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ledger/internal/core"
	"ledger/internal/session"
)

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Record the user working with the ledger",
		Args:  cobra.NoArgs,
		RunE:  runLogin,
	}

	cmd.Flags().String("name", "", "display name")
	cmd.Flags().String("email", "", "email address")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func runLogin(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	name, _ := cmd.Flags().GetString("name")
	email, _ := cmd.Flags().GetString("email")

	store, err := app.Store(ctx)
	if err != nil {
		return err
	}

	sessions := session.NewManager(session.WithRecorder(store), session.WithLogger(app.Logger))
	cancel := sessions.Subscribe(func(u *core.User) {
		if u != nil {
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Logged in as %s <%s>", u.Name, u.Email)))
		}
	})
	defer cancel()

	_, err = sessions.Login(ctx, name, email)
	return err
}
