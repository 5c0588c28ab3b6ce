package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/seat-scheduler/internal/application/snipe"
	"github.com/example/seat-scheduler/internal/application/usecases"
	"github.com/example/seat-scheduler/internal/domain/reservation"
	"github.com/example/seat-scheduler/internal/domain/user"
	"github.com/example/seat-scheduler/internal/infrastructure/postgres"
)

func newReserveCmd(a *app) *cobra.Command {
	var (
		date   string
		tokens []string
		each   bool
	)
	c := &cobra.Command{
		Use:   "reserve",
		Short: "Run one booking pass now",
		Long: "Run one booking pass now. Without --token the stored roster is booked.\n" +
			"By default the group is seated together; --each books every user on their own.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			day, err := a.targetDate(date)
			if err != nil {
				return err
			}
			members, err := parseMembers(tokens)
			if err != nil {
				return err
			}

			ledger := reservation.NewLedger()
			orch := a.orchestrator(a.gateway(), ledger)

			// The database is optional here: it supplies the roster and keeps history.
			var d *postgres.DB
			if a.cfg.DatabaseURL != "" {
				if d, err = a.openDB(ctx); err != nil {
					return err
				}
				defer d.Close()
				orch.History = postgres.NewOutcomeRepo(d)
			}
			if len(members) == 0 {
				if d == nil {
					return fmt.Errorf("no --token given and DATABASE_URL is not set")
				}
				if members, err = loadRoster(ctx, a, d); err != nil {
					return err
				}
			}

			mirror, err := a.openMirror(ctx, ledger)
			if err != nil {
				return err
			}
			if mirror != nil {
				defer mirror.Close()
				orch.Mirror = mirror
			}

			var res usecases.PassResult
			if each {
				res, err = orch.BookEach(ctx, usecases.SourceManual, day, members)
			} else {
				res, err = orch.BookGroup(ctx, usecases.SourceManual, day, members)
			}
			if err != nil {
				return err
			}
			printOutcomes(cmd.OutOrStdout(), res.Outcomes)
			fmt.Fprintln(cmd.OutOrStdout(), usecases.Summary(res))
			return nil
		},
	}
	c.Flags().StringVar(&date, "date", "", "date to book (YYYY-MM-DD); defaults to today plus DAYS_AHEAD")
	c.Flags().StringArrayVar(&tokens, "token", nil, "user to book as name=token (repeatable)")
	c.Flags().BoolVar(&each, "each", false, "book every user independently instead of seating the group together")
	return c
}

func newSnipeCmd(a *app) *cobra.Command {
	var (
		date   string
		tokens []string
	)
	c := &cobra.Command{
		Use:   "snipe",
		Short: "Watch a date and claim a seat for each user as soon as one frees up",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			members, err := parseMembers(tokens)
			if err != nil {
				return err
			}
			if len(members) == 0 {
				return fmt.Errorf("at least one --token is required")
			}

			gw := a.gateway()
			orch := a.orchestrator(gw, reservation.NewLedger())
			if a.cfg.DatabaseURL != "" {
				d, err := a.openDB(ctx)
				if err != nil {
					return err
				}
				defer d.Close()
				orch.History = postgres.NewOutcomeRepo(d)
			}

			s := snipe.New(gw, orch, snipe.Options{
				ZonePriority: a.cfg.Booking.ZonePriority,
				Interval:     a.cfg.Booking.SnipeInterval,
				Location:     a.cfg.Booking.Location,
			}, a.log)
			for _, m := range members {
				t, err := s.Create(m.Token, m.Name, date)
				if err != nil {
					return err
				}
				a.log.Info("watching", zap.String("task", t.ID), zap.String("user", t.UserName), zap.String("date", t.Date))
			}
			if err := s.Drain(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "all watch tasks finished")
			return nil
		},
	}
	c.Flags().StringVar(&date, "date", "", "date to watch (YYYY-MM-DD)")
	c.Flags().StringArrayVar(&tokens, "token", nil, "user to book as name=token (repeatable)")
	_ = c.MarkFlagRequired("date")
	_ = c.MarkFlagRequired("token")
	return c
}

func loadRoster(ctx context.Context, a *app, d *postgres.DB) ([]user.Member, error) {
	repo, err := a.rosterRepo(d)
	if err != nil {
		return nil, err
	}
	return usecases.RosterService{Store: repo}.List(ctx)
}

func printOutcomes(w io.Writer, outcomes []reservation.Outcome) {
	tw := newTable(w, "USER", "DATE", "WINDOW", "ZONE", "SEAT", "RESULT")
	for _, o := range outcomes {
		result := "ok"
		switch {
		case o.Benign:
			result = "held: " + o.Reason
		case !o.Success:
			result = "failed: " + o.Reason
		}
		tw.row(o.User, o.Date, o.Window, o.Zone, o.Seat, result)
	}
	tw.flush()
}
