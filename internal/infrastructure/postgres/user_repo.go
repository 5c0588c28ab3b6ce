package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/example/seat-scheduler/internal/domain/user"
	"github.com/example/seat-scheduler/internal/internaltypes"
)

// UserRepo stores operator accounts for the web API.
type UserRepo struct{ db *DB }

func NewUserRepo(d *DB) *UserRepo { return &UserRepo{db: d} }

func (r *UserRepo) Create(ctx context.Context, u user.Operator) error {
	_, err := r.db.pool.Exec(ctx,
		`INSERT INTO users (id, username, password_hash, created_at) VALUES ($1,$2,$3,$4)`,
		u.ID, u.Username, u.PasswordHash, u.CreatedAt,
	)
	return err
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (user.Operator, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT id, username, password_hash, created_at FROM users WHERE username=$1`, username)
	var u user.Operator
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.Operator{}, internaltypes.ErrNotFound
		}
		return user.Operator{}, err
	}
	return u, nil
}
