package snipe

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/seat-scheduler/internal/application/usecases"
	"github.com/example/seat-scheduler/internal/domain/reservation"
	"github.com/example/seat-scheduler/internal/domain/user"
	"github.com/example/seat-scheduler/internal/internaltypes"
)

type Status string

const (
	Active     Status = "active"
	Terminated Status = "terminated"
	Completed  Status = "completed"
)

// Task watches one date on behalf of one user until a seat is claimed.
type Task struct {
	ID        string    `json:"id"`
	UserName  string    `json:"user_name"`
	Token     string    `json:"-"`
	Date      string    `json:"target_date"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Claimer makes single claim attempts and keeps their outcomes.
type Claimer interface {
	Claim(ctx context.Context, sess reservation.SeatProvider, m user.Member, date string, w reservation.Window, zone reservation.Zone, seat reservation.Seat) (reservation.Outcome, reservation.ClaimResult)
	Keep(ctx context.Context, src usecases.Source, outcomes []reservation.Outcome)
}

type Options struct {
	ZonePriority []string
	Interval     time.Duration
	Location     *time.Location
}

// Service owns the watch tasks and the loop that polls for freed seats.
// The loop idles while no task is active and wakes on Create.
type Service struct {
	gw       reservation.Gateway
	claimer  Claimer
	priority []string
	interval time.Duration
	loc      *time.Location
	log      *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	tasks   map[string]*Task
	order   []string
	polling bool
	wake    chan struct{}
}

func New(gw reservation.Gateway, claimer Claimer, opts Options, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Service{
		gw:       gw,
		claimer:  claimer,
		priority: opts.ZonePriority,
		interval: interval,
		loc:      loc,
		log:      log.Named("snipe"),
		now:      time.Now,
		tasks:    make(map[string]*Task),
		wake:     make(chan struct{}, 1),
	}
}

func (s *Service) today() time.Time {
	n := s.now().In(s.loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, s.loc)
}

// Create starts watching date for the user. An active task for the same
// token and date is returned instead of a new one.
func (s *Service) Create(token, userName, date string) (Task, error) {
	token, userName, date = strings.TrimSpace(token), strings.TrimSpace(userName), strings.TrimSpace(date)
	if token == "" {
		return Task{}, internaltypes.Invalid("user_token", "is required")
	}
	if userName == "" {
		return Task{}, internaltypes.Invalid("user_name", "is required")
	}
	d, err := time.ParseInLocation(reservation.DateLayout, date, s.loc)
	if err != nil {
		return Task{}, internaltypes.Invalid("target_date", "must be YYYY-MM-DD")
	}
	if d.Before(s.today()) {
		return Task{}, internaltypes.Invalid("target_date", "is in the past")
	}

	s.mu.Lock()
	for _, id := range s.order {
		t := s.tasks[id]
		if t.Status == Active && t.Token == token && t.Date == date {
			s.mu.Unlock()
			s.log.Info("task exists", zap.String("task", t.ID), zap.String("user", userName), zap.String("date", date))
			return *t, nil
		}
	}
	t := &Task{
		ID:        uuid.NewString(),
		UserName:  userName,
		Token:     token,
		Date:      date,
		Status:    Active,
		CreatedAt: s.now(),
	}
	s.tasks[t.ID] = t
	s.order = append(s.order, t.ID)
	s.mu.Unlock()

	s.log.Info("task created", zap.String("task", t.ID), zap.String("user", userName), zap.String("date", date))
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return *t, nil
}

// Active lists active tasks in creation order.
func (s *Service) Active() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Task
	for _, id := range s.order {
		if t := s.tasks[id]; t.Status == Active {
			out = append(out, *t)
		}
	}
	return out
}

// Stop terminates the named active tasks. Tasks already completed or
// terminated come back unchanged.
func (s *Service) Stop(ids []string) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Task
	for _, id := range ids {
		t, ok := s.tasks[id]
		if !ok {
			continue
		}
		if t.Status == Active {
			t.Status = Terminated
			s.log.Info("task stopped", zap.String("task", id), zap.String("user", t.UserName))
		}
		out = append(out, *t)
	}
	if len(out) == 0 {
		return nil, internaltypes.ErrNotFound
	}
	return out, nil
}

// Polling reports whether the loop is currently cycling.
func (s *Service) Polling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polling
}

func (s *Service) setPolling(v bool) {
	s.mu.Lock()
	s.polling = v
	s.mu.Unlock()
}

// Run drives the loop until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	for {
		if len(s.Active()) == 0 {
			s.setPolling(false)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.wake:
				continue
			}
		}
		s.setPolling(true)
		s.PollOnce(ctx)
		if len(s.Active()) == 0 {
			continue
		}
		t := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			t.Stop()
			s.setPolling(false)
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Drain polls until no task is active, then returns.
func (s *Service) Drain(ctx context.Context) error {
	for len(s.Active()) > 0 {
		s.PollOnce(ctx)
		if len(s.Active()) == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.interval):
		}
	}
	return nil
}

// PollOnce runs one cycle over the active tasks.
func (s *Service) PollOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("poll cycle panicked", zap.Any("panic", r))
		}
	}()

	yesterday := s.today().AddDate(0, 0, -1)
	byDate := make(map[string][]Task)
	var dates []string
	for _, t := range s.Active() {
		d, err := time.ParseInLocation(reservation.DateLayout, t.Date, s.loc)
		if err != nil || d.Before(yesterday) {
			s.complete(t.ID)
			s.log.Info("task expired", zap.String("task", t.ID), zap.String("date", t.Date))
			continue
		}
		if _, seen := byDate[t.Date]; !seen {
			dates = append(dates, t.Date)
		}
		byDate[t.Date] = append(byDate[t.Date], t)
	}

	for _, date := range dates {
		if ctx.Err() != nil {
			return
		}
		s.pollDate(ctx, date, byDate[date])
	}
}

func (s *Service) pollDate(ctx context.Context, date string, tasks []Task) {
	lead := s.gw.Session(tasks[0].Token)
	slots, err := lead.ListTimeSlots(ctx, date)
	if err != nil {
		s.log.Warn("list time slots", zap.String("date", date), zap.Error(err))
		return
	}
	if len(slots) == 0 {
		s.log.Debug("no open time slots", zap.String("date", date))
		return
	}
	w := slots[0].Window
	zones, err := lead.ListZones(ctx)
	if err != nil {
		s.log.Warn("list zones", zap.Error(err))
		return
	}

	var outcomes []reservation.Outcome
	defer func() { s.claimer.Keep(ctx, usecases.SourceSnipe, outcomes) }()

	done := make(map[string]bool)
	for _, zone := range reservation.SortZones(zones, s.priority) {
		var pending []Task
		for _, t := range tasks {
			if !done[t.ID] {
				pending = append(pending, t)
			}
		}
		if len(pending) == 0 {
			return
		}

		seats, err := lead.ListSeats(ctx, zone.ID, date, w)
		if err != nil {
			s.log.Warn("list seats", zap.String("zone", zone.Name), zap.Error(err))
			continue
		}
		var free []reservation.Seat
		for _, seat := range seats {
			if seat.Available() {
				free = append(free, seat)
			}
		}
		s.log.Debug("free seats", zap.String("date", date), zap.String("zone", zone.Name), zap.Int("free", len(free)))

		for i, t := range pending {
			if i >= len(free) {
				break
			}
			m := user.Member{Name: t.UserName, Token: t.Token}
			out, res := s.claimer.Claim(ctx, s.gw.Session(t.Token), m, date, w, zone, free[i])
			outcomes = append(outcomes, out)
			if res.Success {
				done[t.ID] = true
				if s.complete(t.ID) {
					s.log.Info("task completed", zap.String("task", t.ID), zap.String("user", t.UserName), zap.String("seat", out.Seat))
				}
			}
		}
	}
}

// complete moves an active task to Completed. It reports false when the task
// had already left Active, e.g. stopped while its claim was in flight.
func (s *Service) complete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.Status != Active {
		return false
	}
	t.Status = Completed
	return true
}
