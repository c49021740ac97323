package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BhargavCodes/ai-vault/internal/service/theme"
)

func newThemeCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "theme",
		Short: "Show or change the colour theme",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the current theme",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(rt.out, rt.app.Theme.Current())
				return nil
			},
		},
		&cobra.Command{
			Use:   "toggle",
			Short: "Switch between light and dark",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				mode, err := rt.app.Theme.Toggle(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(rt.out, mode)
				return nil
			},
		},
		&cobra.Command{
			Use:       "set <light|dark>",
			Short:     "Set the theme",
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{string(theme.Light), string(theme.Dark)},
			RunE: func(cmd *cobra.Command, args []string) error {
				return rt.app.Theme.Set(cmd.Context(), theme.Mode(args[0]))
			},
		},
	)
	return cmd
}
