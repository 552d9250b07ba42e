package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keyxmakerx/scribe/internal/client/gateway"
	"github.com/keyxmakerx/scribe/internal/client/platform"
	"github.com/keyxmakerx/scribe/internal/client/session"
)

func (a *App) signUpCommand() *cobra.Command {
	var email, username, avatar string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := promptPassword(a.Stderr, "Password")
			if err != nil {
				return err
			}
			in := gateway.SignUpInput{Email: email, Password: password, Username: username}
			if avatar != "" {
				file, closer, err := openFile(avatar)
				if err != nil {
					return err
				}
				defer closer.Close()
				in.Avatar = file
			}
			sess, err := a.gateway.SignUp(cmd.Context(), in)
			if err != nil {
				return err
			}
			a.toast("ok", "Welcome, "+sess.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&username, "username", "", "display name (defaults to the email's local part)")
	cmd.Flags().StringVar(&avatar, "avatar", "", "avatar image file")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *App) loginCommand() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := promptPassword(a.Stderr, "Password")
			if err != nil {
				return err
			}
			sess, err := a.gateway.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			a.toast("ok", "Signed in as "+sess.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *App) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.gateway.Logout(cmd.Context()); err != nil {
				return err
			}
			a.toast("ok", "Signed out")
			return nil
		},
	}
}

func (a *App) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sess, err := session.FromContext(ctx).RequireSession()
			if err != nil {
				return err
			}
			name := platform.UsernameFromEmail(sess.Email)
			avatar := "-"
			if p, err := a.profiles.Get(ctx, sess.UserID); err == nil {
				if p.Username != nil {
					name = *p.Username
				}
				if p.AvatarURL != nil {
					avatar = *p.AvatarURL
				}
			}
			fmt.Fprintf(a.Stdout, "id:       %s\nemail:    %s\nusername: %s\navatar:   %s\n", sess.UserID, sess.Email, name, avatar)
			return nil
		},
	}
}

func (a *App) resetPasswordCommand() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Email a password recovery link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.gateway.ResetPassword(cmd.Context(), email); err != nil {
				return err
			}
			a.toast("ok", "Check your email for the reset link")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *App) recoverCommand() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Set a new password using the token from a recovery link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if token == "" {
				var err error
				if token, err = promptLine(a.Stdin, a.Stderr, "Recovery token"); err != nil {
					return err
				}
			}
			if _, err := a.gateway.Recover(ctx, token); err != nil {
				return err
			}
			return a.setPassword(cmd)
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "token from the recovery link")
	return cmd
}

func (a *App) updatePasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "update-password",
		Short: "Change the signed-in user's password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := session.FromContext(cmd.Context()).RequireSession(); err != nil {
				return err
			}
			return a.setPassword(cmd)
		},
	}
}

func (a *App) setPassword(cmd *cobra.Command) error {
	password, err := promptPassword(a.Stderr, "New password")
	if err != nil {
		return err
	}
	if err := a.gateway.UpdatePassword(cmd.Context(), password); err != nil {
		return err
	}
	a.toast("ok", "Password updated")
	return nil
}
