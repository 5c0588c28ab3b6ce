package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/example/seat-scheduler/internal/domain/reservation"
	"github.com/example/seat-scheduler/internal/domain/user"
	"github.com/example/seat-scheduler/internal/infrastructure/config"
	"github.com/example/seat-scheduler/internal/internaltypes"
)

// Source tags where a pass was started from in the outcome history.
type Source string

const (
	SourceManual   Source = "manual"
	SourceSchedule Source = "schedule"
	SourceSnipe    Source = "snipe"
)

// LedgerMirror persists ledger entries outside the process.
type LedgerMirror interface {
	Save(ctx context.Context, key reservation.ClaimKey, seat string) error
}

// OutcomeRecorder appends the outcomes of one pass to the history.
type OutcomeRecorder interface {
	Record(ctx context.Context, runID, source string, outcomes []reservation.Outcome) error
}

type BookingOptions struct {
	ZonePriority []string
	SouthZone    string
	// ConflictRetries bounds the extra attempts made after a conflict.
	ConflictRetries int
	ConflictBackoff time.Duration
	ClaimInterval   time.Duration
}

func BookingOptionsFrom(c config.BookingConfig) BookingOptions {
	return BookingOptions{
		ZonePriority:    c.ZonePriority,
		SouthZone:       c.SouthZone,
		ConflictRetries: c.ConflictRetries,
		ConflictBackoff: c.ConflictBackoff,
		ClaimInterval:   c.ClaimInterval,
	}
}

// PassResult is what every orchestration pass returns, even when nothing was booked.
type PassResult struct {
	Success  bool                  `json:"success"`
	Message  string                `json:"message"`
	Outcomes []reservation.Outcome `json:"outcomes"`
}

// Orchestrator drives booking passes against the remote service. The
// Ledger is shared by every pass in the process.
type Orchestrator struct {
	Gateway reservation.Gateway
	Ledger  *reservation.Ledger
	Mirror  LedgerMirror    // optional
	History OutcomeRecorder // optional
	Options BookingOptions
	Log     *zap.Logger
	Now     func() time.Time

	once    sync.Once
	limiter *rate.Limiter
}

var errConflict = errors.New("seat conflict")

func (o *Orchestrator) init() {
	o.once.Do(func() {
		if o.Log == nil {
			o.Log = zap.NewNop()
		}
		if o.Now == nil {
			o.Now = time.Now
		}
		if o.Ledger == nil {
			o.Ledger = reservation.NewLedger()
		}
		limit := rate.Inf
		if o.Options.ClaimInterval > 0 {
			limit = rate.Every(o.Options.ClaimInterval)
		}
		o.limiter = rate.NewLimiter(limit, 1)
	})
}

func (o *Orchestrator) ranker() reservation.Ranker {
	return reservation.Ranker{SouthZone: o.Options.SouthZone}
}

// RunBookingPass books every member into every open window of date,
// seating the group at shared tables.
func (o *Orchestrator) RunBookingPass(ctx context.Context, date string, members []user.Member) (PassResult, error) {
	return o.BookGroup(ctx, SourceManual, date, members)
}

func validatePass(date string, members []user.Member) error {
	if _, err := time.Parse(reservation.DateLayout, date); err != nil {
		return internaltypes.Invalid("date", "must be YYYY-MM-DD")
	}
	if len(members) == 0 {
		return internaltypes.Invalid("users", "at least one user is required")
	}
	seen := make(map[string]struct{}, len(members))
	for _, m := range members {
		if !m.HasToken() {
			return internaltypes.Invalid("users", fmt.Sprintf("user %q has no token", m.Name))
		}
		if _, dup := seen[m.Name]; dup {
			return internaltypes.Invalid("users", fmt.Sprintf("user %q listed twice", m.Name))
		}
		seen[m.Name] = struct{}{}
	}
	return nil
}

// BookEach runs the single-user pass for every member in turn.
func (o *Orchestrator) BookEach(ctx context.Context, src Source, date string, members []user.Member) (PassResult, error) {
	o.init()
	if err := validatePass(date, members); err != nil {
		return PassResult{}, err
	}

	var res PassResult
	booked := 0
	for _, m := range members {
		outs, ok := o.BookUser(ctx, date, m)
		res.Outcomes = append(res.Outcomes, outs...)
		if ok {
			booked++
		}
	}
	res.Success = booked == len(members)
	res.Message = fmt.Sprintf("booked %d/%d users for %s", booked, len(members), date)
	o.keep(ctx, src, res.Outcomes)
	return res, nil
}

// BookUser books one seat for m on date. It walks time slots, and for each
// slot the zones in priority order. A conflicting claim is retried with a
// fresh ranking; once the retries run out, or the user already holds the
// window, the pass moves to the next slot. Other failures move to the next zone.
func (o *Orchestrator) BookUser(ctx context.Context, date string, m user.Member) ([]reservation.Outcome, bool) {
	o.init()
	log := o.Log.With(zap.String("user", m.Name), zap.String("date", date))
	sess := o.Gateway.Session(m.Token)

	slots, err := sess.ListTimeSlots(ctx, date)
	if err != nil {
		log.Warn("list time slots", zap.Error(err))
		return []reservation.Outcome{o.failure(m, date, "", fmt.Sprintf("list time slots: %v", err))}, false
	}
	if len(slots) == 0 {
		return []reservation.Outcome{o.failure(m, date, "", "no open time slots")}, false
	}
	zones, err := sess.ListZones(ctx)
	if err != nil {
		log.Warn("list zones", zap.Error(err))
		return []reservation.Outcome{o.failure(m, date, "", fmt.Sprintf("list zones: %v", err))}, false
	}
	zones = reservation.SortZones(zones, o.Options.ZonePriority)

	var outcomes []reservation.Outcome
	for _, slot := range slots {
	zoneLoop:
		for _, zone := range zones {
			if ctx.Err() != nil {
				return outcomes, false
			}
			seat, ok := o.candidate(ctx, sess, date, slot.Window, zone)
			if !ok {
				continue
			}
			outs, res := o.claimWithRetry(ctx, sess, m, date, slot.Window, zone, seat)
			outcomes = append(outcomes, outs...)
			switch {
			case res.Success:
				return outcomes, true
			case res.Kind == reservation.ClaimConflict, res.Kind == reservation.ClaimAlreadyHeld:
				break zoneLoop
			}
		}
	}
	if len(outcomes) == 0 {
		outcomes = append(outcomes, o.failure(m, date, "", "no available seat in any zone"))
	}
	return outcomes, false
}

func (o *Orchestrator) candidate(ctx context.Context, sess reservation.SeatProvider, date string, w reservation.Window, zone reservation.Zone) (reservation.Seat, bool) {
	seats, err := sess.ListSeats(ctx, zone.ID, date, w)
	if err != nil {
		o.Log.Warn("list seats", zap.String("zone", zone.Name), zap.String("window", w.String()), zap.Error(err))
		return reservation.Seat{}, false
	}
	claimed := o.Ledger.ClaimedTables(date, w.String(), zone.Name)
	return o.ranker().Choose(seats, zone.Name, claimed)
}

func (o *Orchestrator) claimWithRetry(ctx context.Context, sess reservation.SeatProvider, m user.Member, date string, w reservation.Window, zone reservation.Zone, seat reservation.Seat) ([]reservation.Outcome, reservation.ClaimResult) {
	var outcomes []reservation.Outcome
	attempt := 0
	op := func() (reservation.ClaimResult, error) {
		attempt++
		if attempt > 1 {
			next, ok := o.candidate(ctx, sess, date, w, zone)
			if !ok {
				return reservation.ClaimResult{Kind: reservation.ClaimConflict, Message: "no candidate left after conflict"},
					backoff.Permanent(errConflict)
			}
			seat = next
		}
		out, res := o.Claim(ctx, sess, m, date, w, zone, seat)
		outcomes = append(outcomes, out)
		switch {
		case res.Success:
			return res, nil
		case res.Kind == reservation.ClaimConflict:
			return res, errConflict
		default:
			return res, backoff.Permanent(errors.New(res.Message))
		}
	}

	tries := o.Options.ConflictRetries + 1
	if tries < 1 {
		tries = 1
	}
	res, _ := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(o.Options.ConflictBackoff)),
		backoff.WithMaxTries(uint(tries)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, d time.Duration) {
			o.Log.Info("retrying after conflict", zap.String("user", m.Name), zap.String("zone", zone.Name), zap.Duration("delay", d))
		}),
	)
	return outcomes, res
}

// Claim makes one claim attempt and records it in the ledger on success.
func (o *Orchestrator) Claim(ctx context.Context, sess reservation.SeatProvider, m user.Member, date string, w reservation.Window, zone reservation.Zone, seat reservation.Seat) (reservation.Outcome, reservation.ClaimResult) {
	o.init()
	res := sess.ClaimSeat(ctx, reservation.ClaimRequest{Date: date, Window: w, Zone: zone, Seat: seat})
	if res.Success {
		o.record(ctx, reservation.ClaimKey{Date: date, Window: w.String(), Zone: zone.Name, Table: seat.Table()}, seat.Number())
	}
	out := reservation.Outcome{
		User:    m.Name,
		Date:    date,
		Window:  w.String(),
		Zone:    zone.Name,
		Seat:    seat.Label(),
		Success: res.Success,
		Benign:  res.Kind == reservation.ClaimAlreadyHeld,
		Reason:  res.Message,
		At:      o.Now(),
	}

	fields := []zap.Field{
		zap.String("user", m.Name),
		zap.String("date", date),
		zap.String("window", out.Window),
		zap.String("zone", zone.Name),
		zap.String("seat", out.Seat),
		zap.Stringer("result", res.Kind),
		zap.String("reason", res.Message),
	}
	switch res.Kind {
	case reservation.ClaimInvalidResponse:
		o.Log.Error("claim", fields...)
	case reservation.ClaimTransport:
		o.Log.Warn("claim", fields...)
	default:
		o.Log.Info("claim", fields...)
	}
	return out, res
}

func (o *Orchestrator) record(ctx context.Context, key reservation.ClaimKey, seat string) {
	if !o.Ledger.Record(key, seat) || o.Mirror == nil {
		return
	}
	if err := o.Mirror.Save(ctx, key, seat); err != nil {
		o.Log.Warn("ledger mirror save", zap.String("zone", key.Zone), zap.String("table", key.Table), zap.Error(err))
	}
}

// BookGroup seats all members at common seats in every open window of
// date. Zones are tried in priority order until one seats everybody.
func (o *Orchestrator) BookGroup(ctx context.Context, src Source, date string, members []user.Member) (PassResult, error) {
	o.init()
	if err := validatePass(date, members); err != nil {
		return PassResult{}, err
	}
	res := o.bookGroup(ctx, date, members)
	o.keep(ctx, src, res.Outcomes)
	return res, nil
}

type pair struct {
	user   string
	window string
}

func (o *Orchestrator) bookGroup(ctx context.Context, date string, members []user.Member) PassResult {
	lead := o.Gateway.Session(members[0].Token)
	slots, err := lead.ListTimeSlots(ctx, date)
	if err != nil {
		o.Log.Warn("list time slots", zap.String("date", date), zap.Error(err))
		return PassResult{Message: fmt.Sprintf("list time slots: %v", err)}
	}
	if len(slots) == 0 {
		return PassResult{Message: "no open time slots on " + date}
	}
	zones, err := lead.ListZones(ctx)
	if err != nil {
		o.Log.Warn("list zones", zap.Error(err))
		return PassResult{Message: fmt.Sprintf("list zones: %v", err)}
	}
	zones = reservation.SortZones(zones, o.Options.ZonePriority)

	sessions := make(map[string]reservation.Session, len(members))
	for _, m := range members {
		sessions[m.Name] = o.Gateway.Session(m.Token)
	}
	done := make(map[pair]bool)
	pending := func() []user.Member {
		var out []user.Member
		for _, m := range members {
			for _, s := range slots {
				if !done[pair{m.Name, s.Window.String()}] {
					out = append(out, m)
					break
				}
			}
		}
		return out
	}

	var outcomes []reservation.Outcome
	for _, zone := range zones {
		todo := pending()
		if len(todo) == 0 {
			break
		}
		seats, ok := o.commonSeats(ctx, lead, date, slots, zone, len(todo))
		if !ok {
			continue
		}

		aborted := false
		for i, m := range todo {
			for _, slot := range slots {
				key := pair{m.Name, slot.Window.String()}
				if done[key] {
					continue
				}
				if err := o.limiter.Wait(ctx); err != nil {
					return PassResult{Message: "cancelled: " + err.Error(), Outcomes: outcomes}
				}
				out, r := o.Claim(ctx, sessions[m.Name], m, date, slot.Window, zone, seats[i])
				outcomes = append(outcomes, out)
				if r.Success || r.Kind == reservation.ClaimAlreadyHeld {
					done[key] = true
					continue
				}
				aborted = true
				break
			}
			if aborted {
				break
			}
		}
		if !aborted && len(pending()) == 0 {
			return PassResult{
				Success:  true,
				Message:  fmt.Sprintf("seated %d users in %s for %d windows", len(members), zone.Name, len(slots)),
				Outcomes: outcomes,
			}
		}
	}

	return PassResult{
		Message:  fmt.Sprintf("no zone could seat all %d users on %s", len(members), date),
		Outcomes: outcomes,
	}
}

func (o *Orchestrator) commonSeats(ctx context.Context, sess reservation.SeatProvider, date string, slots []reservation.TimeSlot, zone reservation.Zone, n int) ([]reservation.Seat, bool) {
	perWindow := make([][]reservation.Seat, 0, len(slots))
	claimed := make(map[string]struct{})
	for _, slot := range slots {
		seats, err := sess.ListSeats(ctx, zone.ID, date, slot.Window)
		if err != nil {
			o.Log.Warn("list seats", zap.String("zone", zone.Name), zap.String("window", slot.Window.String()), zap.Error(err))
			return nil, false
		}
		perWindow = append(perWindow, seats)
		for t := range o.Ledger.ClaimedTables(date, slot.Window.String(), zone.Name) {
			claimed[t] = struct{}{}
		}
	}
	seats := o.ranker().Common(perWindow, zone.Name, claimed, n)
	if len(seats) < n {
		o.Log.Debug("no common seats", zap.String("zone", zone.Name), zap.Int("needed", n))
		return nil, false
	}
	return seats, true
}

func (o *Orchestrator) failure(m user.Member, date, window, reason string) reservation.Outcome {
	return reservation.Outcome{User: m.Name, Date: date, Window: window, Reason: reason, At: o.Now()}
}

// Keep appends outcomes to the history, if one is configured.
func (o *Orchestrator) Keep(ctx context.Context, src Source, outcomes []reservation.Outcome) {
	o.init()
	o.keep(ctx, src, outcomes)
}

func (o *Orchestrator) keep(ctx context.Context, src Source, outcomes []reservation.Outcome) {
	if o.History == nil || len(outcomes) == 0 {
		return
	}
	if err := o.History.Record(ctx, uuid.NewString(), string(src), outcomes); err != nil {
		o.Log.Warn("record outcomes", zap.String("source", string(src)), zap.Error(err))
	}
}

// Summary renders a one-line report of a pass, e.g.
// "booked 2/3 seats. alice: ok (西区 1排 4号 08:30-12:30); bob: failed (...)".
func Summary(res PassResult) string {
	total, booked := 0, 0
	var parts []string
	for _, o := range res.Outcomes {
		if o.Seat == "" && !o.Success {
			parts = append(parts, fmt.Sprintf("%s: failed (%s)", o.User, o.Reason))
			continue
		}
		total++
		switch {
		case o.Success:
			booked++
			parts = append(parts, fmt.Sprintf("%s: ok (%s %s %s)", o.User, o.Zone, o.Seat, o.Window))
		case o.Benign:
			parts = append(parts, fmt.Sprintf("%s: already held (%s)", o.User, o.Window))
		default:
			parts = append(parts, fmt.Sprintf("%s: failed (%s %s %s: %s)", o.User, o.Zone, o.Seat, o.Window, o.Reason))
		}
	}
	line := fmt.Sprintf("booked %d/%d seats.", booked, total)
	if res.Message != "" {
		line += " " + res.Message + "."
	}
	if len(parts) > 0 {
		line += " " + strings.Join(parts, "; ")
	}
	return line
}
