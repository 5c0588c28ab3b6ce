package redisledger

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/seat-scheduler/internal/domain/reservation"
)

func TestKeyRoundTrip(t *testing.T) {
	k := reservation.ClaimKey{Date: "2025-06-10", Window: "08:30-12:30", Zone: "南区", Table: "12"}
	raw := encodeKey(k)
	assert.Equal(t, "seatsched:ledger:2025-06-10|08:30-12:30|南区|12", raw)

	got, ok := decodeKey(raw)
	assert.True(t, ok)
	assert.Equal(t, k, got)
}

func TestDecodeKeyRejectsForeign(t *testing.T) {
	_, ok := decodeKey("other:2025-06-10|a|b|c")
	assert.False(t, ok)
	_, ok = decodeKey(keyPrefix + "2025-06-10|a")
	assert.False(t, ok)
}

func TestExpiryFor(t *testing.T) {
	loc := time.FixedZone("CST", 8*3600)
	exp, ok := expiryFor("2025-06-10", loc)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2025, 6, 12, 0, 0, 0, 0, loc), exp)

	_, ok = expiryFor("June 10", loc)
	assert.False(t, ok)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()
	loc := time.FixedZone("CST", 8*3600)
	s, err := Open(ctx, url, loc)
	require.NoError(t, err)
	defer s.Close()

	date := time.Now().In(loc).AddDate(0, 0, 3).Format(reservation.DateLayout)
	zone := "zone-" + uuid.NewString()
	a := reservation.ClaimKey{Date: date, Window: "08:00-12:00", Zone: zone, Table: "1排"}
	b := reservation.ClaimKey{Date: date, Window: "13:00-17:00", Zone: zone, Table: "2排"}
	other := reservation.ClaimKey{Date: "2001-01-01", Window: "08:00-12:00", Zone: zone, Table: "1排"}
	t.Cleanup(func() {
		s.rdb.Del(context.Background(), encodeKey(a), encodeKey(b), encodeKey(other))
	})

	require.NoError(t, s.Save(ctx, a, "101"))
	require.NoError(t, s.Save(ctx, a, "102"))
	require.NoError(t, s.Save(ctx, a, "101"))
	require.NoError(t, s.Save(ctx, b, "201"))
	require.NoError(t, s.Save(ctx, other, "999"))

	ttl, err := s.rdb.TTL(ctx, encodeKey(a)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 3*24*time.Hour)
	assert.LessOrEqual(t, ttl, 5*24*time.Hour)

	got, err := s.Load(ctx, date)
	require.NoError(t, err)
	mine := make(map[reservation.ClaimKey][]string)
	for k, seats := range got {
		if k.Zone == zone {
			mine[k] = seats
		}
	}
	require.Len(t, mine, 2)
	assert.ElementsMatch(t, []string{"101", "102"}, mine[a])
	assert.ElementsMatch(t, []string{"201"}, mine[b])
}
