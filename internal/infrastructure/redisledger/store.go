package redisledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/seat-scheduler/internal/domain/reservation"
)

const keyPrefix = "seatsched:ledger:"

// Store mirrors the in-memory claim ledger into Redis sets so a restarted
// process can avoid tables it already used. One set per ClaimKey.
type Store struct {
	rdb redis.UniversalClient
	loc *time.Location
}

// Open connects using a redis:// URL.
func Open(ctx context.Context, url string, loc *time.Location) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(rdb, loc), nil
}

func New(rdb redis.UniversalClient, loc *time.Location) *Store {
	if loc == nil {
		loc = time.Local
	}
	return &Store{rdb: rdb, loc: loc}
}

func (s *Store) Close() error { return s.rdb.Close() }

// Save adds seat to the key's set and keeps the set until a day past its date.
func (s *Store) Save(ctx context.Context, key reservation.ClaimKey, seat string) error {
	k := encodeKey(key)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SAdd(ctx, k, seat)
		if exp, ok := expiryFor(key.Date, s.loc); ok {
			p.ExpireAt(ctx, k, exp)
		}
		return nil
	})
	return err
}

// Load returns every persisted entry for date.
func (s *Store) Load(ctx context.Context, date string) (map[reservation.ClaimKey][]string, error) {
	out := make(map[reservation.ClaimKey][]string)
	iter := s.rdb.Scan(ctx, 0, keyPrefix+date+"|*", 100).Iterator()
	for iter.Next(ctx) {
		key, ok := decodeKey(iter.Val())
		if !ok {
			continue
		}
		seats, err := s.rdb.SMembers(ctx, iter.Val()).Result()
		if err != nil {
			return nil, err
		}
		out[key] = seats
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeKey(k reservation.ClaimKey) string {
	return keyPrefix + strings.Join([]string{k.Date, k.Window, k.Zone, k.Table}, "|")
}

func decodeKey(raw string) (reservation.ClaimKey, bool) {
	rest, ok := strings.CutPrefix(raw, keyPrefix)
	if !ok {
		return reservation.ClaimKey{}, false
	}
	parts := strings.SplitN(rest, "|", 4)
	if len(parts) != 4 {
		return reservation.ClaimKey{}, false
	}
	return reservation.ClaimKey{Date: parts[0], Window: parts[1], Zone: parts[2], Table: parts[3]}, true
}

func expiryFor(date string, loc *time.Location) (time.Time, bool) {
	d, err := time.ParseInLocation(reservation.DateLayout, date, loc)
	if err != nil {
		return time.Time{}, false
	}
	return d.AddDate(0, 0, 2), true
}
