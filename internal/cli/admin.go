package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAdminCmd(rt *runtime) *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Administrative commands",
	}
	users := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := rt.app.Admin.ListUsers(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printUsers(rt.out, found)
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 0, "page size (config default when 0)")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user and their files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return rt.app.Admin.DeleteUser(cmd.Context(), id)
		},
	}

	role := &cobra.Command{
		Use:   "role <id>",
		Short: "Toggle a user between admin and user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			found, err := rt.app.Admin.ListUsers(cmd.Context(), 0)
			if err != nil {
				return err
			}
			for _, u := range found {
				if u.ID != id {
					continue
				}
				next, err := rt.app.Admin.ToggleRole(cmd.Context(), u)
				if err != nil {
					return err
				}
				fmt.Fprintf(rt.out, "%s is now %s\n", u.Name, next)
				return nil
			}
			return fmt.Errorf("user %d not found", id)
		},
	}

	users.AddCommand(list, del, role)
	admin.AddCommand(users)
	return admin
}
