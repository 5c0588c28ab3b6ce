package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/example/seat-scheduler/internal/application/scheduler"
	"github.com/example/seat-scheduler/internal/internaltypes"
)

// ScheduleRepo keeps the single schedule_settings row.
type ScheduleRepo struct{ db *DB }

var _ scheduler.Store = (*ScheduleRepo)(nil)

func NewScheduleRepo(d *DB) *ScheduleRepo { return &ScheduleRepo{db: d} }

func (r *ScheduleRepo) Get(ctx context.Context) (scheduler.Settings, error) {
	var s scheduler.Settings
	err := r.db.pool.QueryRow(ctx,
		`SELECT cron, enabled, last_run_at, last_result FROM schedule_settings WHERE id=1`,
	).Scan(&s.Cron, &s.Enabled, &s.LastRunAt, &s.LastResult)
	if errors.Is(err, pgx.ErrNoRows) {
		return scheduler.Settings{}, internaltypes.ErrNotFound
	}
	return s, err
}

func (r *ScheduleRepo) SaveConfig(ctx context.Context, cron string, enabled bool) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO schedule_settings (id, cron, enabled, updated_at) VALUES (1,$1,$2,now())
		ON CONFLICT (id) DO UPDATE SET cron=EXCLUDED.cron, enabled=EXCLUDED.enabled, updated_at=now()
	`, cron, enabled)
	return err
}

func (r *ScheduleRepo) SaveLastRun(ctx context.Context, at time.Time, result string) error {
	_, err := r.db.pool.Exec(ctx, `
		UPDATE schedule_settings SET last_run_at=$1, last_result=$2, updated_at=now() WHERE id=1
	`, at.UTC(), result)
	return err
}
