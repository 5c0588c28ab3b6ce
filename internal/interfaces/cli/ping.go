package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/seat-scheduler/internal/application/usecases"
)

func newPingCmd(a *app) *cobra.Command {
	var (
		tokens []string
		roster bool
	)
	c := &cobra.Command{
		Use:   "ping",
		Short: "Check that the library reservation service answers and that tokens are accepted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			members, err := parseMembers(tokens)
			if err != nil {
				return err
			}
			probe := usecases.Probe{Gateway: a.gateway()}
			if err := probe.Service(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", a.cfg.Library.BaseURL)

			if roster {
				d, err := a.openDB(ctx)
				if err != nil {
					return err
				}
				defer d.Close()
				stored, err := loadRoster(ctx, a, d)
				if err != nil {
					return err
				}
				members = append(members, stored...)
			}
			if len(members) == 0 {
				return nil
			}

			bad := 0
			tw := newTable(cmd.OutOrStdout(), "USER", "TOKEN")
			for _, c := range probe.Tokens(ctx, members) {
				state := "ok"
				if !c.OK {
					bad++
					state = "rejected: " + c.Reason
				}
				tw.row(c.Name, state)
			}
			tw.flush()
			if bad > 0 {
				return fmt.Errorf("%d of %d token(s) rejected", bad, len(members))
			}
			return nil
		},
	}
	c.Flags().StringArrayVar(&tokens, "token", nil, "also check name=token (repeatable)")
	c.Flags().BoolVar(&roster, "roster", false, "also check every stored roster token")
	return c
}
