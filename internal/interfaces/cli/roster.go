package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/seat-scheduler/internal/application/usecases"
	"github.com/example/seat-scheduler/internal/domain/user"
	"github.com/example/seat-scheduler/internal/infrastructure/postgres"
)

func newRosterCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Manage the users booked by scheduled runs",
	}
	cmd.AddCommand(newRosterListCmd(a))
	cmd.AddCommand(newRosterAddCmd(a))
	cmd.AddCommand(newRosterRemoveCmd(a))
	cmd.AddCommand(newRosterReplaceCmd(a))
	return cmd
}

// withRoster opens the database and hands fn the roster service.
func withRoster(a *app, fn func(ctx context.Context, svc usecases.RosterService) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	d, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer d.Close()
	repo, err := a.rosterRepo(d)
	if err != nil {
		return err
	}
	return fn(ctx, usecases.RosterService{Store: repo})
}

func newRosterListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List roster users with redacted tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRoster(a, func(ctx context.Context, svc usecases.RosterService) error {
				ms, err := svc.List(ctx)
				if err != nil {
					return err
				}
				tw := newTable(cmd.OutOrStdout(), "NAME", "TOKEN", "UPDATED")
				for _, m := range ms {
					r := m.Redacted()
					tw.row(r.Name, r.Token, r.UpdatedAt.Format(time.RFC3339))
				}
				tw.flush()
				return nil
			})
		},
	}
}

func newRosterAddCmd(a *app) *cobra.Command {
	var name, token string
	c := &cobra.Command{
		Use:   "add",
		Short: "Add a user, or replace the token of an existing one",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRoster(a, func(ctx context.Context, svc usecases.RosterService) error {
				if err := svc.Upsert(ctx, user.Member{Name: name, Token: token}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved %q\n", name)
				return nil
			})
		},
	}
	c.Flags().StringVar(&name, "name", "", "display name")
	c.Flags().StringVar(&token, "token", "", "library token")
	_ = c.MarkFlagRequired("name")
	_ = c.MarkFlagRequired("token")
	return c
}

func newRosterRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRoster(a, func(ctx context.Context, svc usecases.RosterService) error {
				if err := svc.Remove(ctx, args[0]); err != nil {
					return fmt.Errorf("remove %q: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %q\n", args[0])
				return nil
			})
		},
	}
}

func newRosterReplaceCmd(a *app) *cobra.Command {
	var tokens []string
	c := &cobra.Command{
		Use:   "replace",
		Short: "Replace the whole roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			members, err := parseMembers(tokens)
			if err != nil {
				return err
			}
			return withRoster(a, func(ctx context.Context, svc usecases.RosterService) error {
				if err := svc.Replace(ctx, members); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "roster now has %d user(s)\n", len(members))
				return nil
			})
		},
	}
	c.Flags().StringArrayVar(&tokens, "token", nil, "user as name=token (repeatable); none empties the roster")
	return c
}

var _ usecases.RosterStore = (*postgres.RosterRepo)(nil)
