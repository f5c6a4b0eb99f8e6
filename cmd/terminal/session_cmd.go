package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dynatos/pos-terminal/internal/app"
	"github.com/dynatos/pos-terminal/internal/domain"
	"github.com/dynatos/pos-terminal/internal/guard"
)

func withTerminal(ctx context.Context, fn func(*app.Terminal) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	terminal, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer terminal.Shutdown()
	return fn(terminal)
}

func newLoginCmd() *cobra.Command {
	var creds domain.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and persist the session for this terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withTerminal(cmd.Context(), func(t *app.Terminal) error {
				sess, err := t.Login(cmd.Context(), creds)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (%s), home %s\n", sess.DisplayName, sess.Role, guard.Home(sess.Role))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&creds.Username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&creds.Password, "password", "p", "", "password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the persisted session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withTerminal(cmd.Context(), func(t *app.Terminal) error {
				if err := t.Logout(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "signed out")
				return nil
			})
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the persisted session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withTerminal(cmd.Context(), func(t *app.Terminal) error {
				sess, ok := t.Sessions.Current()
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "not signed in")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (id %d), role %s\n", sess.DisplayName, sess.UserID, sess.Role)
				return nil
			})
		},
	}
}
