package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/example/seat-scheduler/internal/application/usecases"
	"github.com/example/seat-scheduler/internal/domain/reservation"
	"github.com/example/seat-scheduler/internal/domain/user"
	"github.com/example/seat-scheduler/internal/infrastructure/logging"
	"github.com/example/seat-scheduler/internal/internaltypes"
)

type State string

const (
	Stopped State = "STOPPED"
	Armed   State = "ARMED"
	Running State = "RUNNING"
)

const skippedSummary = "skipped: no users configured"

type Booker interface {
	BookGroup(ctx context.Context, src usecases.Source, date string, members []user.Member) (usecases.PassResult, error)
}

type Roster interface {
	List(ctx context.Context) ([]user.Member, error)
}

// Settings is the persisted part of the controller's state.
type Settings struct {
	Cron       string
	Enabled    bool
	LastRunAt  *time.Time
	LastResult *string
}

// Store persists the schedule across restarts. Optional.
type Store interface {
	Get(ctx context.Context) (Settings, error)
	SaveConfig(ctx context.Context, cron string, enabled bool) error
	SaveLastRun(ctx context.Context, at time.Time, result string) error
}

type Options struct {
	Cron      string
	Enabled   bool
	DaysAhead int
	Location  *time.Location
}

type Status struct {
	State         State      `json:"state"`
	Cron          string     `json:"cron"`
	Enabled       bool       `json:"enabled"`
	IsRunning     bool       `json:"is_running"`
	InProgress    bool       `json:"in_progress"`
	NextRunTime   *time.Time `json:"next_run_time"`
	LastRunTime   *time.Time `json:"last_run_time"`
	LastRunResult *string    `json:"last_run_result"`
}

// Controller fires the grouped booking pass on a cron schedule against the
// current roster. One Controller exists per process.
type Controller struct {
	booker    Booker
	roster    Roster
	store     Store
	log       *zap.Logger
	loc       *time.Location
	daysAhead int
	now       func() time.Time

	cron *cron.Cron

	mu         sync.Mutex
	base       context.Context
	spec       string
	sched      cron.Schedule
	enabled    bool
	entry      cron.EntryID
	armed      bool
	running    bool
	lastRun    *time.Time
	lastResult *string
	wg         sync.WaitGroup
}

func New(booker Booker, roster Roster, store Store, opts Options, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	log = log.Named("schedule")
	cl := logging.Cron{L: log}
	return &Controller{
		booker:    booker,
		roster:    roster,
		store:     store,
		log:       log,
		loc:       loc,
		daysAhead: opts.DaysAhead,
		now:       time.Now,
		spec:      opts.Cron,
		enabled:   opts.Enabled,
		base:      context.Background(),
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
}

// Init loads persisted settings, starts the cron runner and arms the
// trigger when enabled. ctx bounds every scheduled pass.
func (c *Controller) Init(ctx context.Context) error {
	c.mu.Lock()
	c.base = ctx
	c.mu.Unlock()

	if c.store != nil {
		s, err := c.store.Get(ctx)
		switch {
		case errors.Is(err, internaltypes.ErrNotFound):
			if err := c.store.SaveConfig(ctx, c.spec, c.enabled); err != nil {
				return fmt.Errorf("save schedule: %w", err)
			}
		case err != nil:
			return fmt.Errorf("load schedule: %w", err)
		default:
			c.mu.Lock()
			c.spec, c.enabled = s.Cron, s.Enabled
			c.lastRun, c.lastResult = s.LastRunAt, s.LastResult
			c.mu.Unlock()
		}
	}

	c.cron.Start()
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return nil
	}
	if err := c.armLocked(); err != nil {
		c.log.Error("arm schedule", zap.String("cron", c.spec), zap.Error(err))
		c.enabled = false
	}
	return nil
}

// Configure replaces the cron expression and re-arms or disarms the trigger.
func (c *Controller) Configure(ctx context.Context, spec string, enabled bool) error {
	spec = strings.TrimSpace(spec)
	if _, err := cron.ParseStandard(spec); err != nil {
		return internaltypes.Invalid("cron", err.Error())
	}
	if c.store != nil {
		if err := c.store.SaveConfig(ctx, spec, enabled); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.spec, c.enabled = spec, enabled
	if !enabled {
		c.disarmLocked()
		return nil
	}
	return c.armLocked()
}

// Start arms the trigger with the current expression, replacing any prior one.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	spec := c.spec
	c.mu.Unlock()
	return c.Configure(ctx, spec, true)
}

// Stop deregisters the trigger. A pass already running is left to finish.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	spec := c.spec
	c.mu.Unlock()
	return c.Configure(ctx, spec, false)
}

func (c *Controller) armLocked() error {
	sched, err := cron.ParseStandard(c.spec)
	if err != nil {
		return internaltypes.Invalid("cron", err.Error())
	}
	c.disarmLocked()
	c.sched = sched
	c.entry = c.cron.Schedule(sched, cron.FuncJob(c.fire))
	c.armed = true
	c.log.Info("schedule armed", zap.String("cron", c.spec))
	return nil
}

func (c *Controller) disarmLocked() {
	if c.armed {
		c.cron.Remove(c.entry)
		c.log.Info("schedule stopped")
	}
	c.armed = false
	c.entry = 0
	c.sched = nil
}

func (c *Controller) fire() {
	c.mu.Lock()
	ctx := c.base
	c.mu.Unlock()
	if _, err := c.RunNow(ctx); err != nil {
		c.log.Warn("scheduled run", zap.Error(err))
	}
}

// RunNow performs one pass immediately and returns its summary.
func (c *Controller) RunNow(ctx context.Context) (summary string, err error) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return "", internaltypes.Invalid("schedule", "a run is already in progress")
	}
	c.running = true
	c.wg.Add(1)
	c.mu.Unlock()

	started := c.now().In(c.loc)
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("scheduled run panicked", zap.Any("panic", r))
			summary = fmt.Sprintf("failed: panic: %v", r)
		}
		c.finish(ctx, started, summary)
	}()

	return c.run(ctx, started), nil
}

func (c *Controller) run(ctx context.Context, now time.Time) string {
	members, err := c.roster.List(ctx)
	if err != nil {
		c.log.Error("load roster", zap.Error(err))
		return "failed: load roster: " + err.Error()
	}
	if len(members) == 0 {
		c.log.Info(skippedSummary)
		return skippedSummary
	}

	date := now.AddDate(0, 0, c.daysAhead).Format(reservation.DateLayout)
	c.log.Info("scheduled run", zap.String("date", date), zap.Int("users", len(members)))
	res, err := c.booker.BookGroup(ctx, usecases.SourceSchedule, date, members)
	if err != nil {
		return "failed: " + err.Error()
	}
	return usecases.Summary(res)
}

func (c *Controller) finish(ctx context.Context, at time.Time, summary string) {
	c.mu.Lock()
	c.running = false
	c.lastRun = &at
	c.lastResult = &summary
	c.mu.Unlock()
	c.wg.Done()

	c.log.Info("run finished", zap.String("summary", summary))
	if c.store != nil {
		if err := c.store.SaveLastRun(ctx, at, summary); err != nil {
			c.log.Warn("save last run", zap.Error(err))
		}
	}
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		State:         Stopped,
		Cron:          c.spec,
		Enabled:       c.enabled,
		IsRunning:     c.armed,
		InProgress:    c.running,
		LastRunTime:   c.lastRun,
		LastRunResult: c.lastResult,
	}
	if c.armed {
		st.State = Armed
		if c.running {
			st.State = Running
		}
		next := c.sched.Next(c.now().In(c.loc))
		st.NextRunTime = &next
	}
	return st
}

// Shutdown stops the trigger and waits for an in-flight pass, or ctx.
func (c *Controller) Shutdown(ctx context.Context) error {
	stopped := c.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-stopped.Done()
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
