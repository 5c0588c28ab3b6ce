package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/seat-scheduler/internal/application/scheduler"
	"github.com/example/seat-scheduler/internal/application/snipe"
	"github.com/example/seat-scheduler/internal/application/usecases"
	"github.com/example/seat-scheduler/internal/domain/reservation"
	"github.com/example/seat-scheduler/internal/infrastructure/config"
	"github.com/example/seat-scheduler/internal/infrastructure/postgres"
	"github.com/example/seat-scheduler/internal/interfaces/web"
)

func newServerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Run the web API, the scheduled run and the watch loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Require(config.NeedDatabase, config.NeedSessions, config.NeedCredKey); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			roster, err := a.rosterRepo(d)
			if err != nil {
				return err
			}

			gw := a.gateway()
			ledger := reservation.NewLedger()
			orch := a.orchestrator(gw, ledger)
			orch.History = postgres.NewOutcomeRepo(d)

			mirror, err := a.openMirror(ctx, ledger)
			if err != nil {
				return err
			}
			if mirror != nil {
				defer mirror.Close()
				orch.Mirror = mirror
			}

			rosterSvc := usecases.RosterService{Store: roster}
			ctl := scheduler.New(orch, rosterSvc, postgres.NewScheduleRepo(d), scheduler.Options{
				Cron:      a.cfg.Schedule.Cron,
				Enabled:   a.cfg.Schedule.Enabled,
				DaysAhead: a.cfg.Booking.DaysAhead,
				Location:  a.cfg.Booking.Location,
			}, a.log)
			if err := ctl.Init(ctx); err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := ctl.Shutdown(shutdownCtx); err != nil {
					a.log.Warn("schedule shutdown", zap.Error(err))
				}
			}()

			sniper := snipe.New(gw, orch, snipe.Options{
				ZonePriority: a.cfg.Booking.ZonePriority,
				Interval:     a.cfg.Booking.SnipeInterval,
				Location:     a.cfg.Booking.Location,
			}, a.log)
			go func() { _ = sniper.Run(ctx) }()

			ws := &web.Server{
				Sessions:  web.NewSessionManager(a.cfg.SessionHashKey, a.cfg.SessionBlockKey),
				Auth:      usecases.AuthService{Users: postgres.NewUserRepo(d)},
				Booking:   orch,
				Snipe:     sniper,
				Schedule:  ctl,
				Roster:    rosterSvc,
				Checkin:   usecases.CheckinService{Gateway: gw, Roster: roster, Log: a.log, Now: a.cfg.Now},
				Log:       a.log.Named("http"),
				DaysAhead: a.cfg.Booking.DaysAhead,
				Location:  a.cfg.Booking.Location,
			}
			return web.Start(ctx, a.cfg.HTTPAddr, ws.Routes(), a.log)
		},
	}
}
