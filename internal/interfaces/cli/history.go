package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/seat-scheduler/internal/infrastructure/postgres"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		userName string
		limit    int
	)
	c := &cobra.Command{
		Use:   "history",
		Short: "Show recent claim attempts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()
			d, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			outcomes, err := postgres.NewOutcomeRepo(d).Recent(ctx, userName, limit)
			if err != nil {
				return err
			}
			printOutcomes(cmd.OutOrStdout(), outcomes)
			return nil
		},
	}
	c.Flags().StringVar(&userName, "user", "", "only this roster user")
	c.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	return c
}
