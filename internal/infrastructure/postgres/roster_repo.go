package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/example/seat-scheduler/internal/domain/user"
	"github.com/example/seat-scheduler/internal/internaltypes"
)

// Cipher seals tokens before they reach the database.
type Cipher interface {
	EncryptToString(plaintext string) (string, error)
	DecryptString(ciphertext string) (string, error)
}

// RosterRepo persists the scheduled-run roster. Tokens are stored encrypted.
type RosterRepo struct {
	db     *DB
	cipher Cipher
}

func NewRosterRepo(d *DB, c Cipher) *RosterRepo { return &RosterRepo{db: d, cipher: c} }

func (r *RosterRepo) List(ctx context.Context) ([]user.Member, error) {
	rows, err := r.db.pool.Query(ctx, `SELECT name, token_enc, updated_at FROM roster_members ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []user.Member
	for rows.Next() {
		var m user.Member
		var enc string
		if err := rows.Scan(&m.Name, &enc, &m.UpdatedAt); err != nil {
			return nil, err
		}
		if m.Token, err = r.cipher.DecryptString(enc); err != nil {
			return nil, fmt.Errorf("decrypt token for %s: %w", m.Name, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Upsert adds the member or replaces the token of an existing name.
func (r *RosterRepo) Upsert(ctx context.Context, m user.Member) error {
	enc, err := r.cipher.EncryptToString(m.Token)
	if err != nil {
		return err
	}
	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO roster_members (name, token_enc, updated_at) VALUES ($1,$2,$3)
		ON CONFLICT (name) DO UPDATE SET token_enc=EXCLUDED.token_enc, updated_at=EXCLUDED.updated_at
	`, m.Name, enc, time.Now().UTC())
	return err
}

func (r *RosterRepo) Remove(ctx context.Context, name string) error {
	tag, err := r.db.pool.Exec(ctx, `DELETE FROM roster_members WHERE name=$1`, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return internaltypes.ErrNotFound
	}
	return nil
}

// Replace swaps the whole roster in one transaction.
func (r *RosterRepo) Replace(ctx context.Context, members []user.Member) error {
	sealed := make([]string, len(members))
	for i, m := range members {
		enc, err := r.cipher.EncryptToString(m.Token)
		if err != nil {
			return err
		}
		sealed[i] = enc
	}

	return pgx.BeginFunc(ctx, r.db.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM roster_members`); err != nil {
			return err
		}
		now := time.Now().UTC()
		for i, m := range members {
			if _, err := tx.Exec(ctx,
				`INSERT INTO roster_members (name, token_enc, updated_at) VALUES ($1,$2,$3)`,
				m.Name, sealed[i], now,
			); err != nil {
				return fmt.Errorf("insert %s: %w", m.Name, err)
			}
		}
		return nil
	})
}
