package reservation

import (
	"sort"
	"sync"
)

// ClaimKey identifies one table in one zone for one window of one date.
// All four parts compare by exact string match.
type ClaimKey struct {
	Date   string `json:"date"`
	Window string `json:"window"`
	Zone   string `json:"zone"`
	Table  string `json:"table"`
}

// Ledger records which seats were claimed per table during the process
// lifetime. Entries are only ever added. Safe for concurrent use.
type Ledger struct {
	mu     sync.RWMutex
	claims map[ClaimKey]map[string]struct{}
}

func NewLedger() *Ledger {
	return &Ledger{claims: make(map[ClaimKey]map[string]struct{})}
}

// Record adds seat to key. It reports false when the seat was already recorded.
func (l *Ledger) Record(key ClaimKey, seat string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	seats, ok := l.claims[key]
	if !ok {
		seats = make(map[string]struct{})
		l.claims[key] = seats
	}
	if _, dup := seats[seat]; dup {
		return false
	}
	seats[seat] = struct{}{}
	return true
}

// ClaimedTables returns the tables holding at least one claim for the triple.
func (l *Ledger) ClaimedTables(date, window, zone string) map[string]struct{} {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]struct{})
	for k, seats := range l.claims {
		if k.Date == date && k.Window == window && k.Zone == zone && len(seats) > 0 {
			out[k.Table] = struct{}{}
		}
	}
	return out
}

func (l *Ledger) Seats(key ClaimKey) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return sortedSeats(l.claims[key])
}

func (l *Ledger) Snapshot() map[ClaimKey][]string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[ClaimKey][]string, len(l.claims))
	for k, seats := range l.claims {
		out[k] = sortedSeats(seats)
	}
	return out
}

// Load merges previously persisted entries.
func (l *Ledger) Load(entries map[ClaimKey][]string) {
	for k, seats := range entries {
		for _, s := range seats {
			l.Record(k, s)
		}
	}
}

func sortedSeats(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for s := range m {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
