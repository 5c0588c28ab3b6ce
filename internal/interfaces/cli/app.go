package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/seat-scheduler/internal/application/usecases"
	"github.com/example/seat-scheduler/internal/domain/reservation"
	"github.com/example/seat-scheduler/internal/domain/user"
	"github.com/example/seat-scheduler/internal/infrastructure/config"
	"github.com/example/seat-scheduler/internal/infrastructure/crypto"
	"github.com/example/seat-scheduler/internal/infrastructure/library"
	"github.com/example/seat-scheduler/internal/infrastructure/logging"
	"github.com/example/seat-scheduler/internal/infrastructure/postgres"
	"github.com/example/seat-scheduler/internal/infrastructure/redisledger"
	"github.com/example/seat-scheduler/internal/internaltypes"
)

// app carries what every command builds on: the loaded config and the logger.
type app struct {
	cfgPath string
	cfg     config.Config
	log     *zap.Logger
}

func (a *app) load() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.DevMode)
	if err != nil {
		return err
	}
	a.cfg, a.log = cfg, log
	return nil
}

// openDB connects and applies pending migrations.
func (a *app) openDB(ctx context.Context) (*postgres.DB, error) {
	if err := a.cfg.Require(config.NeedDatabase); err != nil {
		return nil, err
	}
	d, err := postgres.Open(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := d.Migrate(ctx); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (a *app) rosterRepo(d *postgres.DB) (*postgres.RosterRepo, error) {
	if err := a.cfg.Require(config.NeedCredKey); err != nil {
		return nil, err
	}
	aead, err := crypto.New(a.cfg.CredEncKey)
	if err != nil {
		return nil, err
	}
	return postgres.NewRosterRepo(d, aead), nil
}

func (a *app) gateway() *library.Client {
	return library.New(a.cfg.Library, a.log)
}

func (a *app) orchestrator(gw reservation.Gateway, ledger *reservation.Ledger) *usecases.Orchestrator {
	return &usecases.Orchestrator{
		Gateway: gw,
		Ledger:  ledger,
		Options: usecases.BookingOptionsFrom(a.cfg.Booking),
		Log:     a.log,
		Now:     a.cfg.Now,
	}
}

// openMirror connects the Redis ledger mirror when REDIS_URL is set and
// preloads ledger with the claims recorded for today and the bookable days.
// It returns nil when no mirror is configured.
func (a *app) openMirror(ctx context.Context, ledger *reservation.Ledger) (*redisledger.Store, error) {
	if a.cfg.RedisURL == "" {
		return nil, nil
	}
	store, err := redisledger.Open(ctx, a.cfg.RedisURL, a.cfg.Booking.Location)
	if err != nil {
		return nil, err
	}
	today := a.cfg.Now()
	for i := 0; i <= a.cfg.Booking.DaysAhead; i++ {
		date := today.AddDate(0, 0, i).Format(reservation.DateLayout)
		entries, err := store.Load(ctx, date)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("load ledger %s: %w", date, err)
		}
		ledger.Load(entries)
		if len(entries) > 0 {
			a.log.Info("ledger restored", zap.String("date", date), zap.Int("tables", len(entries)))
		}
	}
	return store, nil
}

// targetDate returns date, or today plus the booking horizon when empty.
func (a *app) targetDate(date string) (string, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return a.cfg.Now().AddDate(0, 0, a.cfg.Booking.DaysAhead).Format(reservation.DateLayout), nil
	}
	if _, err := time.Parse(reservation.DateLayout, date); err != nil {
		return "", internaltypes.Invalid("date", "must be YYYY-MM-DD")
	}
	return date, nil
}

// parseMembers reads name=token pairs.
func parseMembers(pairs []string) ([]user.Member, error) {
	out := make([]user.Member, 0, len(pairs))
	for _, p := range pairs {
		name, token, ok := strings.Cut(p, "=")
		name, token = strings.TrimSpace(name), strings.TrimSpace(token)
		if !ok || name == "" || token == "" {
			return nil, internaltypes.Invalid("token", fmt.Sprintf("%q is not name=token", p))
		}
		out = append(out, user.Member{Name: name, Token: token})
	}
	return out, nil
}
