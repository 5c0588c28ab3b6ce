package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/seat-scheduler/internal/application/scheduler"
	"github.com/example/seat-scheduler/internal/application/usecases"
	"github.com/example/seat-scheduler/internal/domain/reservation"
	"github.com/example/seat-scheduler/internal/infrastructure/postgres"
	"github.com/example/seat-scheduler/internal/internaltypes"
)

func newScheduleCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Inspect or change the recurring booking run",
		Long: "Inspect or change the recurring booking run stored in the database.\n" +
			"A running server picks up config, start and stop on its next restart.",
	}
	cmd.AddCommand(newScheduleStatusCmd(a))
	cmd.AddCommand(newScheduleConfigCmd(a))
	cmd.AddCommand(newScheduleToggleCmd(a, "start", true))
	cmd.AddCommand(newScheduleToggleCmd(a, "stop", false))
	cmd.AddCommand(newScheduleRunCmd(a))
	return cmd
}

// withController builds a controller over the stored settings. Its cron
// runner is never started, so nothing fires from the CLI process.
func withController(a *app, timeout time.Duration, fn func(ctx context.Context, ctl *scheduler.Controller) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
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

	store := postgres.NewScheduleRepo(d)
	opts := scheduler.Options{
		Cron:      a.cfg.Schedule.Cron,
		Enabled:   a.cfg.Schedule.Enabled,
		DaysAhead: a.cfg.Booking.DaysAhead,
		Location:  a.cfg.Booking.Location,
	}
	switch s, err := store.Get(ctx); {
	case err == nil:
		opts.Cron, opts.Enabled = s.Cron, s.Enabled
	case !errors.Is(err, internaltypes.ErrNotFound):
		return err
	}

	orch := a.orchestrator(a.gateway(), reservation.NewLedger())
	orch.History = postgres.NewOutcomeRepo(d)
	ctl := scheduler.New(orch, usecases.RosterService{Store: repo}, store, opts, a.log)
	return fn(ctx, ctl)
}

func printStatus(w io.Writer, st scheduler.Status) {
	fmt.Fprintf(w, "state:    %s\n", st.State)
	fmt.Fprintf(w, "cron:     %s\n", st.Cron)
	fmt.Fprintf(w, "enabled:  %t\n", st.Enabled)
	if st.NextRunTime != nil {
		fmt.Fprintf(w, "next run: %s\n", st.NextRunTime.Format(time.RFC3339))
	}
	if st.LastRunTime != nil {
		fmt.Fprintf(w, "last run: %s\n", st.LastRunTime.Format(time.RFC3339))
	}
	if st.LastRunResult != nil {
		fmt.Fprintf(w, "result:   %s\n", *st.LastRunResult)
	}
}

func newScheduleStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored schedule and the last run",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()
			d, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			s, err := postgres.NewScheduleRepo(d).Get(ctx)
			if errors.Is(err, internaltypes.ErrNotFound) {
				s = scheduler.Settings{Cron: a.cfg.Schedule.Cron, Enabled: a.cfg.Schedule.Enabled}
			} else if err != nil {
				return err
			}
			st := scheduler.Status{
				State:         scheduler.Stopped,
				Cron:          s.Cron,
				Enabled:       s.Enabled,
				LastRunTime:   s.LastRunAt,
				LastRunResult: s.LastResult,
			}
			if s.Enabled {
				st.State = scheduler.Armed
			}
			printStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func newScheduleConfigCmd(a *app) *cobra.Command {
	var (
		spec    string
		enabled bool
	)
	c := &cobra.Command{
		Use:   "config",
		Short: "Set the cron expression and whether it is enabled",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withController(a, 20*time.Second, func(ctx context.Context, ctl *scheduler.Controller) error {
				if err := ctl.Configure(ctx, spec, enabled); err != nil {
					return err
				}
				printStatus(cmd.OutOrStdout(), ctl.Status())
				return nil
			})
		},
	}
	c.Flags().StringVar(&spec, "cron", "", `five-field cron expression, e.g. "0-5 12 * * *"`)
	c.Flags().BoolVar(&enabled, "enabled", true, "arm the schedule")
	_ = c.MarkFlagRequired("cron")
	return c
}

func newScheduleToggleCmd(a *app, use string, enabled bool) *cobra.Command {
	short := "Disable the schedule"
	if enabled {
		short = "Enable the schedule with the stored expression"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withController(a, 20*time.Second, func(ctx context.Context, ctl *scheduler.Controller) error {
				var err error
				if enabled {
					err = ctl.Start(ctx)
				} else {
					err = ctl.Stop(ctx)
				}
				if err != nil {
					return err
				}
				printStatus(cmd.OutOrStdout(), ctl.Status())
				return nil
			})
		},
	}
}

func newScheduleRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scheduled pass once now over the stored roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withController(a, 30*time.Minute, func(ctx context.Context, ctl *scheduler.Controller) error {
				summary, err := ctl.RunNow(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), summary)
				return nil
			})
		},
	}
}
