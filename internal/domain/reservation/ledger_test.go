package reservation

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerRecordIsIdempotent(t *testing.T) {
	l := NewLedger()
	k := ClaimKey{Date: "2025-03-01", Window: "08:00-12:00", Zone: "南", Table: "1"}

	assert.True(t, l.Record(k, "4"))
	assert.False(t, l.Record(k, "4"))
	assert.True(t, l.Record(k, "3"))
	assert.True(t, l.Record(ClaimKey{Date: "2025-03-01", Window: "08:00-12:00", Zone: "南", Table: "3"}, "1"))

	tables := l.ClaimedTables("2025-03-01", "08:00-12:00", "南")
	assert.Len(t, tables, 2)
	assert.Contains(t, tables, "1")
	assert.Contains(t, tables, "3")
	assert.Equal(t, []string{"3", "4"}, l.Seats(k))
}

func TestLedgerMissingKeysAreEmpty(t *testing.T) {
	l := NewLedger()
	assert.Empty(t, l.ClaimedTables("2025-03-01", "08:00-12:00", "西"))
	assert.Empty(t, l.Seats(ClaimKey{Date: "x"}))
}

func TestLedgerKeysMatchExactly(t *testing.T) {
	l := NewLedger()
	l.Record(ClaimKey{Date: "2025-03-01", Window: "08:00-12:00", Zone: "南", Table: "1"}, "1")

	assert.Empty(t, l.ClaimedTables("2025-03-01", "08:00-12:01", "南"))
	assert.Empty(t, l.ClaimedTables("2025-03-01", "08:00-12:00", "南 "))
	assert.Empty(t, l.ClaimedTables("2025-03-02", "08:00-12:00", "南"))
}

func TestLedgerSnapshotAndLoad(t *testing.T) {
	src := NewLedger()
	k := ClaimKey{Date: "2025-03-01", Window: "13:00-17:00", Zone: "东", Table: "5"}
	src.Record(k, "2")
	src.Record(k, "1")

	dst := NewLedger()
	dst.Load(src.Snapshot())
	assert.Equal(t, []string{"1", "2"}, dst.Seats(k))

	dst.Load(src.Snapshot())
	assert.Equal(t, []string{"1", "2"}, dst.Seats(k))
}

func TestLedgerConcurrentRecords(t *testing.T) {
	l := NewLedger()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k := ClaimKey{Date: "2025-03-01", Window: "08:00-12:00", Zone: "西", Table: fmt.Sprint(i % 5)}
			l.Record(k, fmt.Sprint(i%4))
			_ = l.ClaimedTables("2025-03-01", "08:00-12:00", "西")
		}(i)
	}
	wg.Wait()

	snap := l.Snapshot()
	require.Len(t, snap, 5)
	total := 0
	for _, seats := range snap {
		total += len(seats)
	}
	assert.Equal(t, 20, total)
}
