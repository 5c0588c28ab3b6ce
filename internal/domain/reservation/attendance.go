package reservation

import "time"

// Booking is a reservation the user already holds.
type Booking struct {
	ID     string `json:"id"`
	Date   string `json:"date"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Status string `json:"status"`
	SeatNo string `json:"seat_no"`
}

func (b Booking) Window() Window { return Window{Start: b.Start, End: b.End} }

// Status names of bookings that can no longer be signed in or out.
var closedStatuses = map[string]struct{}{
	"已取消":  {},
	"已失效":  {},
	"自动签退": {},
}

const signedOutStatus = "已签退"

// PickCheckIn returns today's open booking whose start is closest to now,
// ignoring bookings that have already ended.
func PickCheckIn(bookings []Booking, now time.Time) (Booking, bool) {
	var (
		best  Booking
		found bool
		diff  time.Duration
	)
	for _, b := range todays(bookings, now, false) {
		start, end, ok := b.span(now.Location())
		if !ok || !end.After(now) {
			continue
		}
		d := start.Sub(now)
		if d < 0 {
			d = -d
		}
		if !found || d < diff {
			best, diff, found = b, d, true
		}
	}
	return best, found
}

// PickCheckOut returns today's booking whose window contains now.
func PickCheckOut(bookings []Booking, now time.Time) (Booking, bool) {
	for _, b := range todays(bookings, now, true) {
		start, end, ok := b.span(now.Location())
		if !ok {
			continue
		}
		if !now.Before(start) && !now.After(end) {
			return b, true
		}
	}
	return Booking{}, false
}

func todays(bookings []Booking, now time.Time, checkout bool) []Booking {
	today := now.Format(DateLayout)
	var out []Booking
	for _, b := range bookings {
		if b.Date != today {
			continue
		}
		if _, closed := closedStatuses[b.Status]; closed {
			continue
		}
		if checkout && b.Status == signedOutStatus {
			continue
		}
		out = append(out, b)
	}
	return out
}

func (b Booking) span(loc *time.Location) (time.Time, time.Time, bool) {
	const layout = DateLayout + " 15:04"
	start, err := time.ParseInLocation(layout, b.Date+" "+b.Start, loc)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err := time.ParseInLocation(layout, b.Date+" "+b.End, loc)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}
