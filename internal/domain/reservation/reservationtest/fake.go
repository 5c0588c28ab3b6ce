// Package reservationtest provides an in-memory reservation.Gateway for tests.
package reservationtest

import (
	"context"
	"sync"

	"github.com/example/seat-scheduler/internal/domain/reservation"
)

// Claim is one recorded ClaimSeat call.
type Claim struct {
	Token string
	Req   reservation.ClaimRequest
}

// Fake serves a fixed snapshot of zones, slots and seats. By default a claim
// succeeds and the claimed seat becomes unavailable for that window.
type Fake struct {
	mu sync.Mutex

	Zones    []reservation.Zone
	Slots    []reservation.TimeSlot
	Bookings map[string][]reservation.Booking // by token

	// ClaimFunc overrides the default claim behaviour when set.
	ClaimFunc func(call int, c Claim) reservation.ClaimResult
	ListErr   error
	PingErr   error

	seats    map[string][]reservation.Seat
	claims   []Claim
	signIns  []string
	signOuts []string
}

func seatKey(zoneID string, w reservation.Window) string { return zoneID + "|" + w.String() }

// SetSeats replaces the seats of zoneID in window w.
func (f *Fake) SetSeats(zoneID string, w reservation.Window, seats ...reservation.Seat) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seats == nil {
		f.seats = make(map[string][]reservation.Seat)
	}
	cp := make([]reservation.Seat, len(seats))
	copy(cp, seats)
	f.seats[seatKey(zoneID, w)] = cp
}

func (f *Fake) Claims() []Claim {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Claim, len(f.claims))
	copy(out, f.claims)
	return out
}

func (f *Fake) SignIns() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.signIns...)
}

func (f *Fake) SignOuts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.signOuts...)
}

func (f *Fake) Session(token string) reservation.Session { return &session{f: f, token: token} }

func (f *Fake) Ping(context.Context) error { return f.PingErr }

type session struct {
	f     *Fake
	token string
}

func (s *session) ListZones(context.Context) ([]reservation.Zone, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	if s.f.ListErr != nil {
		return nil, s.f.ListErr
	}
	return append([]reservation.Zone(nil), s.f.Zones...), nil
}

func (s *session) ListTimeSlots(context.Context, string) ([]reservation.TimeSlot, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	if s.f.ListErr != nil {
		return nil, s.f.ListErr
	}
	var out []reservation.TimeSlot
	for _, t := range s.f.Slots {
		if t.Remaining > 0 {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *session) ListSeats(_ context.Context, zoneID, _ string, w reservation.Window) ([]reservation.Seat, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	if s.f.ListErr != nil {
		return nil, s.f.ListErr
	}
	return append([]reservation.Seat(nil), s.f.seats[seatKey(zoneID, w)]...), nil
}

func (s *session) ClaimSeat(_ context.Context, req reservation.ClaimRequest) reservation.ClaimResult {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	c := Claim{Token: s.token, Req: req}
	s.f.claims = append(s.f.claims, c)

	res := reservation.Claimed("ok")
	if s.f.ClaimFunc != nil {
		res = s.f.ClaimFunc(len(s.f.claims), c)
	}
	if res.Success {
		seats := s.f.seats[seatKey(req.Zone.ID, req.Window)]
		for i := range seats {
			if seats[i].ID == req.Seat.ID {
				seats[i].Status = 1
			}
		}
	}
	return res
}

func (s *session) ListOpenBookings(context.Context) ([]reservation.Booking, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	if s.f.ListErr != nil {
		return nil, s.f.ListErr
	}
	return append([]reservation.Booking(nil), s.f.Bookings[s.token]...), nil
}

func (s *session) SignIn(_ context.Context, id string) error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	s.f.signIns = append(s.f.signIns, id)
	return nil
}

func (s *session) SignOut(_ context.Context, id string) error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	s.f.signOuts = append(s.f.signOuts, id)
	return nil
}
