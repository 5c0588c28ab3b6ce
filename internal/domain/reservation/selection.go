package reservation

import (
	"sort"
	"strconv"
	"strings"
)

// SortZones orders zones by their position in priority (case-insensitive name
// match). Unlisted zones keep their relative order after all listed ones.
func SortZones(zones []Zone, priority []string) []Zone {
	rank := make(map[string]int, len(priority))
	for i, p := range priority {
		k := normalizeName(p)
		if _, ok := rank[k]; !ok {
			rank[k] = i
		}
	}
	pos := func(z Zone) int {
		if r, ok := rank[normalizeName(z.Name)]; ok {
			return r
		}
		return len(priority)
	}
	out := append([]Zone(nil), zones...)
	sort.SliceStable(out, func(i, j int) bool { return pos(out[i]) < pos(out[j]) })
	return out
}

func normalizeName(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// TableKey extracts the table number from a row label: "12排" -> "12".
func TableKey(row string) string {
	if i := strings.Index(row, "排"); i >= 0 {
		row = row[:i]
	}
	return strings.TrimSpace(row)
}

// IsOddTable reports whether the row label names an odd-numbered table.
// Unparseable labels count as even.
func IsOddTable(row string) bool {
	n, err := strconv.Atoi(TableKey(row))
	if err != nil {
		return false
	}
	return n%2 == 1
}

func seatNumber(s Seat) (int, bool) {
	n, err := strconv.Atoi(s.Number())
	return n, err == nil
}

// preferredOrder is the seat order within a table whose highest seat number is top.
func preferredOrder(top int) []int {
	switch top {
	case 4:
		return []int{4, 3, 2, 1}
	case 6:
		return []int{6, 5, 4, 3, 2, 1}
	}
	out := make([]int, 0, top)
	for i := top; i >= 1; i-- {
		out = append(out, i)
	}
	return out
}

// Table is a group of free seats sharing one table, seats in preferred order.
type Table struct {
	Key     string
	Claimed bool
	Seats   []Seat
}

// Ranker turns a seat snapshot into an ordered candidate list. It never
// touches the ledger; callers pass the claimed-table set in.
type Ranker struct {
	// SouthZone names the zone where only odd-numbered tables are eligible.
	SouthZone string
}

// Tables applies the ranking rules: free seats only, grouped by table, odd
// tables only in the south zone, tables already holding a claim first, then by
// table label; seats within a table by preferred order.
func (r Ranker) Tables(seats []Seat, zoneName string, claimed map[string]struct{}) []Table {
	south := r.SouthZone != "" && normalizeName(zoneName) == normalizeName(r.SouthZone)

	byKey := make(map[string]*Table)
	var keys []string
	for _, s := range seats {
		if !s.Available() {
			continue
		}
		if south && !IsOddTable(s.Row) {
			continue
		}
		k := s.Table()
		t, ok := byKey[k]
		if !ok {
			_, hit := claimed[k]
			t = &Table{Key: k, Claimed: hit}
			byKey[k] = t
			keys = append(keys, k)
		}
		t.Seats = append(t.Seats, s)
	}

	out := make([]Table, 0, len(keys))
	for _, k := range keys {
		t := byKey[k]
		rankSeats(t.Seats)
		out = append(out, *t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Claimed != out[j].Claimed {
			return out[i].Claimed
		}
		return lessTableKey(out[i].Key, out[j].Key)
	})
	return out
}

// Choose returns the top seat of the best table.
func (r Ranker) Choose(seats []Seat, zoneName string, claimed map[string]struct{}) (Seat, bool) {
	for _, t := range r.Tables(seats, zoneName, claimed) {
		if len(t.Seats) > 0 {
			return t.Seats[0], true
		}
	}
	return Seat{}, false
}

// Common picks n seats free in every window. The seats come from one table
// when a single table can seat everyone, otherwise from the tables with the
// most free seats. An empty result means the zone cannot host the group.
func (r Ranker) Common(perWindow [][]Seat, zoneName string, claimed map[string]struct{}, n int) []Seat {
	if n <= 0 || len(perWindow) == 0 {
		return nil
	}
	shared := intersectAvailable(perWindow)
	if len(shared) < n {
		return nil
	}
	tables := r.Tables(shared, zoneName, claimed)

	for _, t := range tables {
		if len(t.Seats) >= n {
			return append([]Seat(nil), t.Seats[:n]...)
		}
	}

	rich := append([]Table(nil), tables...)
	sort.SliceStable(rich, func(i, j int) bool { return len(rich[i].Seats) > len(rich[j].Seats) })
	out := make([]Seat, 0, n)
	for _, t := range rich {
		for _, s := range t.Seats {
			if len(out) == n {
				return out
			}
			out = append(out, s)
		}
	}
	if len(out) < n {
		return nil
	}
	return out
}

// intersectAvailable keeps the seats of the first window that are free in all windows.
func intersectAvailable(perWindow [][]Seat) []Seat {
	counts := make(map[string]int)
	for _, seats := range perWindow {
		seen := make(map[string]struct{}, len(seats))
		for _, s := range seats {
			if !s.Available() {
				continue
			}
			if _, dup := seen[s.ID]; dup {
				continue
			}
			seen[s.ID] = struct{}{}
			counts[s.ID]++
		}
	}
	var out []Seat
	for _, s := range perWindow[0] {
		if s.Available() && counts[s.ID] == len(perWindow) {
			out = append(out, s)
			counts[s.ID] = 0
		}
	}
	return out
}

func rankSeats(seats []Seat) {
	top := 0
	for _, s := range seats {
		if n, ok := seatNumber(s); ok && n > top {
			top = n
		}
	}
	order := preferredOrder(top)
	pos := make(map[int]int, len(order))
	for i, n := range order {
		pos[n] = i
	}
	at := func(s Seat) int {
		if n, ok := seatNumber(s); ok {
			if p, ok := pos[n]; ok {
				return p
			}
		}
		return len(order)
	}
	sort.SliceStable(seats, func(i, j int) bool { return at(seats[i]) < at(seats[j]) })
}

// lessTableKey compares numerically when both labels are numbers.
func lessTableKey(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}
