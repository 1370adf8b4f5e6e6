package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"brewpulse/internal/auth"
	"brewpulse/internal/profile"
)

func newLoginCommand(app *App) *cobra.Command {
	login := &cobra.Command{
		Use:   "login",
		Short: "Sign in as a guest or as the barista",
	}

	var name string
	guestCmd := &cobra.Command{
		Use:   "guest",
		Short: "Sign in anonymously to place orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name = strings.TrimSpace(name)
			if name == "" {
				return errors.New("--name is required")
			}
			return app.signIn(cmd, profile.RoleGuest, name, "")
		},
	}
	guestCmd.Flags().StringVar(&name, "name", "", "the name your orders are called out with")

	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Sign in with the shared barista password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password := app.v.GetString("password")
			if password == "" {
				return errors.New("--password or BREWPULSE_PASSWORD is required")
			}
			return app.signIn(cmd, profile.RoleAdmin, "", password)
		},
	}
	adminCmd.Flags().String("password", "", "barista password")
	app.v.BindPFlag("password", adminCmd.Flags().Lookup("password"))

	login.AddCommand(guestCmd, adminCmd)
	return login
}

func (a *App) signIn(cmd *cobra.Command, role profile.Role, name, password string) error {
	profiles, prev, b, err := a.session(profile.RoleNone)
	if err != nil {
		return err
	}

	var sess auth.Session
	if role == profile.RoleAdmin {
		sess, err = b.SignInAdmin(cmd.Context(), password)
	} else {
		sess, err = b.SignInAnon(cmd.Context())
	}
	if err != nil {
		return err
	}

	p := profile.Profile{Role: role, Session: sess.Token, GuestName: name}
	if role == profile.RoleGuest && prev.Role == profile.RoleGuest {
		p.TrackedOrderIDs = prev.TrackedOrderIDs
	}
	if err := profiles.Save(p); err != nil {
		return err
	}

	if role == profile.RoleAdmin {
		fmt.Fprintln(cmd.OutOrStdout(), "Signed in as barista.")
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s.\n", name)
	}
	return nil
}

func newLogoutCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the local profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, p, b, err := app.session(profile.RoleNone)
			if err != nil {
				return err
			}
			if p.Session != "" {
				if err := b.SignOut(cmd.Context()); err != nil {
					app.logger.Printf("sign out: %v", err)
				}
			}
			if err := profiles.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}
