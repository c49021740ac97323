package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/BhargavCodes/ai-vault/internal/service/session"
)

func (rt *runtime) stdin() *bufio.Reader {
	if rt.reader == nil {
		rt.reader = bufio.NewReader(rt.in)
	}
	return rt.reader
}

// valueOrPrompt returns v, or asks for it when empty.
func (rt *runtime) valueOrPrompt(v, label string) (string, error) {
	if v != "" {
		return v, nil
	}
	line, err := prompt(rt.stdin(), rt.out, label)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", label, err)
	}
	return line, nil
}

func newLoginCmd(rt *runtime) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <name>",
		Short: "Log in and remember the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := rt.valueOrPrompt(password, "Password: ")
			if err != nil {
				return err
			}
			if err := rt.app.Session.Login(cmd.Context(), args[0], pw); err != nil {
				return err
			}
			user := rt.app.Session.User()
			fmt.Fprintf(rt.out, "Logged in as %s (%s)\n", user.Name, user.Role)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	return cmd
}

func newLogoutCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt.app.Session.Logout(cmd.Context())
			fmt.Fprintln(rt.out, "Logged out.")
			return nil
		},
	}
}

func newWhoamiCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.requireLogin(); err != nil {
				return err
			}
			user := rt.app.Session.User()
			fmt.Fprintf(rt.out, "%s (id %d, age %d, role %s)\n", user.Name, user.ID, user.Age, user.Role)
			if user.ProfilePicture != nil {
				fmt.Fprintf(rt.out, "Avatar: %s\n", *user.ProfilePicture)
			}
			if claims, err := rt.app.Session.Claims(); err == nil && !claims.ExpiresAt.IsZero() {
				fmt.Fprintf(rt.out, "Session expires %s\n", claims.ExpiresAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func newSignupCmd(rt *runtime) *cobra.Command {
	var (
		age      int
		password string
	)
	cmd := &cobra.Command{
		Use:   "signup <name>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := rt.valueOrPrompt(password, "Password: ")
			if err != nil {
				return err
			}
			in := session.SignupInput{Name: args[0], Age: age, Password: pw}
			if err := rt.app.Session.Signup(cmd.Context(), in); err != nil {
				return err
			}
			fmt.Fprintln(rt.out, "Account created. Run `vault login` to sign in.")
			return nil
		},
	}
	cmd.Flags().IntVar(&age, "age", 0, "age in years")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("age")
	return cmd
}

func newPasswordCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Recover, reset or change a password",
	}

	forgot := &cobra.Command{
		Use:   "forgot <name>",
		Short: "Request a reset token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := rt.app.Session.ForgotPassword(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if token != "" {
				fmt.Fprintf(rt.out, "Reset token: %s\n", token)
			}
			return nil
		},
	}

	var newPassword string
	reset := &cobra.Command{
		Use:   "reset <token>",
		Short: "Set a new password with a reset token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := rt.valueOrPrompt(newPassword, "New password: ")
			if err != nil {
				return err
			}
			return rt.app.Session.ResetPassword(cmd.Context(), args[0], pw)
		},
	}
	reset.Flags().StringVar(&newPassword, "new", "", "new password (prompted when omitted)")

	var oldPassword, changed string
	change := &cobra.Command{
		Use:   "change",
		Short: "Change the password of the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			oldPw, err := rt.valueOrPrompt(oldPassword, "Current password: ")
			if err != nil {
				return err
			}
			newPw, err := rt.valueOrPrompt(changed, "New password: ")
			if err != nil {
				return err
			}
			return rt.app.Session.ChangePassword(cmd.Context(), oldPw, newPw)
		},
	}
	change.Flags().StringVar(&oldPassword, "old", "", "current password (prompted when omitted)")
	change.Flags().StringVar(&changed, "new", "", "new password (prompted when omitted)")

	cmd.AddCommand(forgot, reset, change)
	return cmd
}

func newAvatarCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "avatar <image>",
		Short: "Upload a profile picture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read avatar: %w", err)
			}
			return rt.app.Session.UpdateAvatar(cmd.Context(), data, filepath.Base(args[0]))
		},
	}
}
