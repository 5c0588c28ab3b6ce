package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/seat-scheduler/internal/application/usecases"
)

func newCheckinCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkin",
		Short: "Sign every roster user in to, or out of, today's reservation",
	}
	cmd.AddCommand(newCheckinRunCmd(a, "in", true))
	cmd.AddCommand(newCheckinRunCmd(a, "out", false))
	return cmd
}

func newCheckinRunCmd(a *app, use string, in bool) *cobra.Command {
	short := "Sign roster users out of the reservation in progress"
	if in {
		short = "Sign roster users in to the reservation starting closest to now"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
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

			svc := usecases.CheckinService{Gateway: a.gateway(), Roster: repo, Log: a.log, Now: a.cfg.Now}
			var res []usecases.CheckResult
			if in {
				res, err = svc.CheckInAll(ctx)
			} else {
				res, err = svc.CheckOutAll(ctx)
			}
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout(), "USER", "DATE", "WINDOW", "RESULT")
			for _, r := range res {
				result := r.Message
				if r.ErrorReason != "" {
					result += ": " + r.ErrorReason
				}
				tw.row(r.UserName, r.Date, r.TimePeriod, result)
			}
			tw.flush()
			return nil
		},
	}
}
