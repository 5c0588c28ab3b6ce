package usecases

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/example/seat-scheduler/internal/domain/reservation"
	"github.com/example/seat-scheduler/internal/domain/reservation/reservationtest"
	"github.com/example/seat-scheduler/internal/domain/user"
	"github.com/example/seat-scheduler/internal/internaltypes"
)

const testDate = "2025-06-10"

var (
	morning   = reservation.Window{Start: "08:00", End: "12:00"}
	afternoon = reservation.Window{Start: "12:00", End: "16:00"}

	alice = user.Member{Name: "alice", Token: "tok-a"}
	bob   = user.Member{Name: "bob", Token: "tok-b"}
)

func avail(id, row, no string) reservation.Seat {
	return reservation.Seat{ID: id, Row: row, No: no, Status: reservation.SeatAvailable}
}

type memHistory struct {
	mu   sync.Mutex
	runs map[string][]reservation.Outcome
}

func (h *memHistory) Record(_ context.Context, runID, source string, outcomes []reservation.Outcome) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.runs == nil {
		h.runs = make(map[string][]reservation.Outcome)
	}
	h.runs[source+"/"+runID] = append(h.runs[source+"/"+runID], outcomes...)
	return nil
}

type memMirror struct {
	saved []reservation.ClaimKey
}

func (m *memMirror) Save(_ context.Context, key reservation.ClaimKey, _ string) error {
	m.saved = append(m.saved, key)
	return nil
}

func newOrchestrator(t *testing.T, gw reservation.Gateway) *Orchestrator {
	t.Helper()
	return &Orchestrator{
		Gateway: gw,
		Ledger:  reservation.NewLedger(),
		Options: BookingOptions{
			ZonePriority:    []string{"西", "东", "北", "南"},
			SouthZone:       "南",
			ConflictRetries: 2,
		},
		Log: zaptest.NewLogger(t),
		Now: func() time.Time { return time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC) },
	}
}

func TestBookUserPicksSouthCornerSeat(t *testing.T) {
	fake := &reservationtest.Fake{
		Zones: []reservation.Zone{{ID: "1", Name: "南"}},
		Slots: []reservation.TimeSlot{{Window: morning, Remaining: 5}},
	}
	fake.SetSeats("1", morning,
		avail("11", "1排", "1号"), avail("12", "1排", "2号"),
		avail("13", "1排", "3号"), avail("14", "1排", "4号"),
	)
	o := newOrchestrator(t, fake)

	outs, ok := o.BookUser(context.Background(), testDate, alice)
	require.True(t, ok)
	require.Len(t, outs, 1)
	assert.Equal(t, "1排 4号", outs[0].Seat)
	assert.Equal(t, "08:00-12:00", outs[0].Window)
	assert.Equal(t, []string{"4"}, o.Ledger.Seats(reservation.ClaimKey{Date: testDate, Window: "08:00-12:00", Zone: "南", Table: "1"}))
}

func TestBookUserRetriesConflictOnce(t *testing.T) {
	fake := &reservationtest.Fake{
		Zones: []reservation.Zone{{ID: "1", Name: "南"}},
		Slots: []reservation.TimeSlot{{Window: morning, Remaining: 5}},
		ClaimFunc: func(call int, _ reservationtest.Claim) reservation.ClaimResult {
			if call == 1 {
				return reservation.Rejected(1, "该座位已被预订")
			}
			return reservation.Claimed("ok")
		},
	}
	fake.SetSeats("1", morning, avail("11", "1排", "1号"), avail("14", "1排", "4号"))
	mirror := &memMirror{}
	o := newOrchestrator(t, fake)
	o.Mirror = mirror

	outs, ok := o.BookUser(context.Background(), testDate, alice)
	require.True(t, ok)
	require.Len(t, outs, 2)
	assert.False(t, outs[0].Success)
	assert.True(t, outs[len(outs)-1].Success)

	snap := o.Ledger.Snapshot()
	require.Len(t, snap, 1)
	for _, seats := range snap {
		assert.Len(t, seats, 1)
	}
	assert.Len(t, mirror.saved, 1)
}

func TestBookUserConflictExhaustedMovesToNextSlot(t *testing.T) {
	fake := &reservationtest.Fake{
		Zones: []reservation.Zone{{ID: "1", Name: "西"}, {ID: "2", Name: "东"}},
		Slots: []reservation.TimeSlot{{Window: morning, Remaining: 2}, {Window: afternoon, Remaining: 2}},
		ClaimFunc: func(_ int, c reservationtest.Claim) reservation.ClaimResult {
			if c.Req.Window == morning {
				return reservation.Rejected(1, "座位已被占用")
			}
			return reservation.Claimed("ok")
		},
	}
	fake.SetSeats("1", morning, avail("11", "1排", "1号"))
	fake.SetSeats("2", morning, avail("21", "1排", "1号"))
	fake.SetSeats("1", afternoon, avail("11", "1排", "1号"))
	o := newOrchestrator(t, fake)
	o.Options.ConflictRetries = 1

	outs, ok := o.BookUser(context.Background(), testDate, alice)
	require.True(t, ok)
	require.Len(t, outs, 3)
	for _, c := range fake.Claims() {
		assert.NotEqual(t, "2", c.Req.Zone.ID, "exhausted conflict must not fall through to the next zone")
	}
	assert.Equal(t, "12:00-16:00", outs[2].Window)
}

func TestBookUserOtherRejectionMovesToNextZone(t *testing.T) {
	fake := &reservationtest.Fake{
		Zones: []reservation.Zone{{ID: "2", Name: "东"}, {ID: "1", Name: "西"}},
		Slots: []reservation.TimeSlot{{Window: morning, Remaining: 2}},
		ClaimFunc: func(call int, _ reservationtest.Claim) reservation.ClaimResult {
			if call == 1 {
				return reservation.Rejected(500, "系统繁忙")
			}
			return reservation.Claimed("ok")
		},
	}
	fake.SetSeats("1", morning, avail("11", "1排", "1号"))
	fake.SetSeats("2", morning, avail("21", "1排", "1号"))
	o := newOrchestrator(t, fake)

	outs, ok := o.BookUser(context.Background(), testDate, alice)
	require.True(t, ok)
	require.Len(t, outs, 2)
	assert.Equal(t, "西", outs[0].Zone)
	assert.Equal(t, "东", outs[1].Zone)
}

func TestBookUserListFailure(t *testing.T) {
	fake := &reservationtest.Fake{ListErr: reservation.ErrTransport}
	o := newOrchestrator(t, fake)

	outs, ok := o.BookUser(context.Background(), testDate, alice)
	assert.False(t, ok)
	require.Len(t, outs, 1)
	assert.Contains(t, outs[0].Reason, "list time slots")
}

func groupFake() *reservationtest.Fake {
	fake := &reservationtest.Fake{
		Zones: []reservation.Zone{{ID: "1", Name: "西"}},
		Slots: []reservation.TimeSlot{{Window: morning, Remaining: 9}, {Window: afternoon, Remaining: 9}},
	}
	fake.SetSeats("1", morning, avail("21", "2排", "1号"), avail("22", "2排", "2号"), avail("31", "3排", "1号"))
	fake.SetSeats("1", afternoon, avail("21", "2排", "1号"), avail("22", "2排", "2号"), avail("41", "4排", "1号"))
	return fake
}

func TestRunBookingPassSeatsGroupAtCommonTable(t *testing.T) {
	fake := groupFake()
	hist := &memHistory{}
	o := newOrchestrator(t, fake)
	o.History = hist

	res, err := o.RunBookingPass(context.Background(), testDate, []user.Member{alice, bob})
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, res.Outcomes, 4)

	per := map[string][]reservation.Outcome{}
	for _, out := range res.Outcomes {
		assert.True(t, out.Success)
		per[out.User] = append(per[out.User], out)
	}
	require.Len(t, per["alice"], 2)
	require.Len(t, per["bob"], 2)
	assert.Equal(t, "2排 2号", per["alice"][0].Seat)
	assert.Equal(t, "2排 2号", per["alice"][1].Seat)
	assert.Equal(t, "2排 1号", per["bob"][0].Seat)

	for _, c := range fake.Claims() {
		if c.Req.Seat.ID == "22" {
			assert.Equal(t, "tok-a", c.Token)
		}
	}
	assert.Len(t, hist.runs, 1)
}

func TestRunBookingPassAlreadyHeldIsBenign(t *testing.T) {
	fake := groupFake()
	fake.ClaimFunc = func(_ int, c reservationtest.Claim) reservation.ClaimResult {
		if c.Token == "tok-a" && c.Req.Window == morning {
			return reservation.Rejected(1, "该时段已有预约")
		}
		return reservation.Claimed("ok")
	}
	o := newOrchestrator(t, fake)

	res, err := o.RunBookingPass(context.Background(), testDate, []user.Member{alice, bob})
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, res.Outcomes, 4)
	assert.True(t, res.Outcomes[0].Benign)
	assert.False(t, res.Outcomes[0].Success)
}

func TestRunBookingPassOtherFailureAdvancesZone(t *testing.T) {
	fake := groupFake()
	fake.Zones = append(fake.Zones, reservation.Zone{ID: "2", Name: "东"})
	fake.SetSeats("2", morning, avail("51", "5排", "1号"), avail("52", "5排", "2号"))
	fake.SetSeats("2", afternoon, avail("51", "5排", "1号"), avail("52", "5排", "2号"))
	fake.ClaimFunc = func(_ int, c reservationtest.Claim) reservation.ClaimResult {
		if c.Req.Zone.ID == "1" {
			return reservation.Rejected(500, "系统繁忙")
		}
		return reservation.Claimed("ok")
	}
	o := newOrchestrator(t, fake)

	res, err := o.RunBookingPass(context.Background(), testDate, []user.Member{alice, bob})
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, res.Outcomes, 5)
	assert.Equal(t, "西", res.Outcomes[0].Zone)
	assert.False(t, res.Outcomes[0].Success)
	for _, out := range res.Outcomes[1:] {
		assert.Equal(t, "东", out.Zone)
		assert.True(t, out.Success)
	}
}

func TestRunBookingPassNoCommonSeats(t *testing.T) {
	fake := groupFake()
	fake.SetSeats("1", afternoon, avail("41", "4排", "1号"))
	o := newOrchestrator(t, fake)

	res, err := o.RunBookingPass(context.Background(), testDate, []user.Member{alice, bob})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Empty(t, res.Outcomes)
	assert.Contains(t, res.Message, "no zone could seat")
}

func TestRunBookingPassValidation(t *testing.T) {
	o := newOrchestrator(t, &reservationtest.Fake{})

	_, err := o.RunBookingPass(context.Background(), testDate, nil)
	assert.ErrorIs(t, err, internaltypes.ErrInvalid)

	_, err = o.RunBookingPass(context.Background(), "10/06/2025", []user.Member{alice})
	assert.ErrorIs(t, err, internaltypes.ErrInvalid)

	_, err = o.RunBookingPass(context.Background(), testDate, []user.Member{{Name: "x"}})
	assert.ErrorIs(t, err, internaltypes.ErrInvalid)

	_, err = o.RunBookingPass(context.Background(), testDate, []user.Member{alice, alice})
	assert.ErrorIs(t, err, internaltypes.ErrInvalid)
}

func TestBookEach(t *testing.T) {
	fake := groupFake()
	o := newOrchestrator(t, fake)

	res, err := o.BookEach(context.Background(), SourceManual, testDate, []user.Member{alice, bob})
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, "2排 2号", res.Outcomes[0].Seat)
	assert.Equal(t, "2排 1号", res.Outcomes[1].Seat, "second user joins the table already claimed")
}

func TestSummary(t *testing.T) {
	res := PassResult{
		Message: "seated",
		Outcomes: []reservation.Outcome{
			{User: "alice", Zone: "西", Seat: "2排 2号", Window: "08:00-12:00", Success: true},
			{User: "bob", Zone: "西", Seat: "2排 1号", Window: "08:00-12:00", Reason: "系统繁忙"},
			{User: "carol", Reason: "list zones: boom"},
		},
	}
	got := Summary(res)
	assert.Equal(t, "booked 1/2 seats. seated. alice: ok (西 2排 2号 08:00-12:00); bob: failed (西 2排 1号 08:00-12:00: 系统繁忙); carol: failed (list zones: boom)", got)
}
