package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/seat-scheduler/internal/application/usecases"
	"github.com/example/seat-scheduler/internal/infrastructure/postgres"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage operator logins for the web API",
	}
	cmd.AddCommand(newUserAddCmd(a))
	return cmd
}

func newUserAddCmd(a *app) *cobra.Command {
	var username, password string
	c := &cobra.Command{
		Use:   "add",
		Short: "Create an operator",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()
			d, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			u, err := usecases.AuthService{Users: postgres.NewUserRepo(d)}.Register(ctx, username, password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "created user:", u.Username)
			return nil
		},
	}
	c.Flags().StringVar(&username, "username", "", "username")
	c.Flags().StringVar(&password, "password", "", "password (8 characters or more)")
	_ = c.MarkFlagRequired("username")
	_ = c.MarkFlagRequired("password")
	return c
}
