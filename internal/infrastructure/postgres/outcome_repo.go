package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/example/seat-scheduler/internal/domain/reservation"
)

// OutcomeRepo keeps the history of claim attempts.
type OutcomeRepo struct{ db *DB }

func NewOutcomeRepo(d *DB) *OutcomeRepo { return &OutcomeRepo{db: d} }

// Record stores every outcome of one pass under runID.
func (r *OutcomeRepo) Record(ctx context.Context, runID, source string, outcomes []reservation.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, o := range outcomes {
		batch.Queue(`
INSERT INTO booking_outcomes(run_id, source, user_name, booking_date, time_window, zone, seat, success, benign, reason, attempted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			runID, source, o.User, o.Date, o.Window, o.Zone, o.Seat, o.Success, o.Benign, o.Reason, o.At.UTC(),
		)
	}
	return r.db.pool.SendBatch(ctx, batch).Close()
}

// Recent returns the newest outcomes first, optionally for one user.
func (r *OutcomeRepo) Recent(ctx context.Context, userName string, limit int) ([]reservation.Outcome, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.pool.Query(ctx, `
SELECT user_name, booking_date, time_window, zone, seat, success, benign, reason, attempted_at
FROM booking_outcomes
WHERE $1 = '' OR user_name = $1
ORDER BY attempted_at DESC, id DESC
LIMIT $2`, userName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reservation.Outcome
	for rows.Next() {
		var o reservation.Outcome
		if err := rows.Scan(&o.User, &o.Date, &o.Window, &o.Zone, &o.Seat, &o.Success, &o.Benign, &o.Reason, &o.At); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
