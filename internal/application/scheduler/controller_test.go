package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/example/seat-scheduler/internal/application/usecases"
	"github.com/example/seat-scheduler/internal/domain/reservation"
	"github.com/example/seat-scheduler/internal/domain/user"
	"github.com/example/seat-scheduler/internal/internaltypes"
)

type fakeBooker struct {
	mu    sync.Mutex
	dates []string
	users [][]user.Member
	block chan struct{}
	panic bool
}

func (b *fakeBooker) BookGroup(_ context.Context, src usecases.Source, date string, members []user.Member) (usecases.PassResult, error) {
	if b.block != nil {
		<-b.block
	}
	if b.panic {
		panic("boom")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dates = append(b.dates, date)
	b.users = append(b.users, members)
	outs := make([]reservation.Outcome, 0, len(members))
	for _, m := range members {
		outs = append(outs, reservation.Outcome{User: m.Name, Zone: "西", Seat: "1排 4号", Window: "08:00-12:00", Success: true})
	}
	return usecases.PassResult{Success: true, Outcomes: outs}, nil
}

func (b *fakeBooker) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.dates)
}

type memStore struct {
	settings *Settings
	runs     []string
}

func (s *memStore) Get(context.Context) (Settings, error) {
	if s.settings == nil {
		return Settings{}, internaltypes.ErrNotFound
	}
	return *s.settings, nil
}

func (s *memStore) SaveConfig(_ context.Context, cron string, enabled bool) error {
	if s.settings == nil {
		s.settings = &Settings{}
	}
	s.settings.Cron, s.settings.Enabled = cron, enabled
	return nil
}

func (s *memStore) SaveLastRun(_ context.Context, _ time.Time, result string) error {
	s.runs = append(s.runs, result)
	return nil
}

var shanghai = time.FixedZone("CST", 8*3600)

func newController(t *testing.T, b Booker, roster Roster, store Store) *Controller {
	t.Helper()
	c := New(b, roster, store, Options{Cron: "0-5 12 * * *", Enabled: false, DaysAhead: 6, Location: shanghai}, zaptest.NewLogger(t))
	c.now = func() time.Time { return time.Date(2025, 6, 4, 9, 0, 0, 0, shanghai) }
	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })
	return c
}

func TestRunNowEmptyRoster(t *testing.T) {
	b := &fakeBooker{}
	c := newController(t, b, usecases.NewMemoryRoster(), nil)

	summary, err := c.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, skippedSummary, summary)
	assert.Zero(t, b.calls())

	st := c.Status()
	require.NotNil(t, st.LastRunResult)
	assert.Equal(t, skippedSummary, *st.LastRunResult)
	require.NotNil(t, st.LastRunTime)
}

func TestRunNowBooksDaysAhead(t *testing.T) {
	b := &fakeBooker{}
	store := &memStore{}
	roster := usecases.NewMemoryRoster(user.Member{Name: "alice", Token: "a"}, user.Member{Name: "bob", Token: "b"})
	c := newController(t, b, roster, store)

	summary, err := c.RunNow(context.Background())
	require.NoError(t, err)
	assert.Contains(t, summary, "booked 2/2 seats.")
	assert.Contains(t, summary, "alice: ok")
	require.Equal(t, 1, b.calls())
	assert.Equal(t, "2025-06-10", b.dates[0])
	assert.Len(t, b.users[0], 2)
	assert.Equal(t, []string{summary}, store.runs)
}

func TestRunNowSurvivesPanic(t *testing.T) {
	b := &fakeBooker{panic: true}
	c := newController(t, b, usecases.NewMemoryRoster(user.Member{Name: "alice", Token: "a"}), nil)

	summary, err := c.RunNow(context.Background())
	require.NoError(t, err)
	assert.Contains(t, summary, "panic")
	assert.False(t, c.Status().InProgress)
}

func TestRunNowRejectsOverlap(t *testing.T) {
	b := &fakeBooker{block: make(chan struct{})}
	c := newController(t, b, usecases.NewMemoryRoster(user.Member{Name: "alice", Token: "a"}), nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.RunNow(context.Background())
	}()
	require.Eventually(t, func() bool { return c.Status().InProgress }, time.Second, 5*time.Millisecond)

	_, err := c.RunNow(context.Background())
	assert.ErrorIs(t, err, internaltypes.ErrInvalid)

	close(b.block)
	<-done
	assert.False(t, c.Status().InProgress)
}

func TestStateTransitions(t *testing.T) {
	ctx := context.Background()
	c := newController(t, &fakeBooker{}, usecases.NewMemoryRoster(), nil)
	require.NoError(t, c.Init(ctx))

	st := c.Status()
	assert.Equal(t, Stopped, st.State)
	assert.Nil(t, st.NextRunTime)

	require.NoError(t, c.Start(ctx))
	st = c.Status()
	assert.Equal(t, Armed, st.State)
	assert.True(t, st.IsRunning)
	require.NotNil(t, st.NextRunTime)
	assert.True(t, time.Date(2025, 6, 4, 12, 0, 0, 0, shanghai).Equal(*st.NextRunTime), st.NextRunTime.String())

	require.NoError(t, c.Configure(ctx, "30 7 * * *", true))
	st = c.Status()
	assert.Equal(t, Armed, st.State)
	assert.True(t, time.Date(2025, 6, 5, 7, 30, 0, 0, shanghai).Equal(*st.NextRunTime), st.NextRunTime.String())
	assert.Len(t, c.cron.Entries(), 1, "re-arming replaces the previous trigger")

	require.NoError(t, c.Stop(ctx))
	st = c.Status()
	assert.Equal(t, Stopped, st.State)
	assert.False(t, st.Enabled)
	assert.Empty(t, c.cron.Entries())

	err := c.Configure(ctx, "every day", true)
	assert.ErrorIs(t, err, internaltypes.ErrInvalid)
	assert.Equal(t, Stopped, c.Status().State)
}

func TestInitUsesPersistedSettings(t *testing.T) {
	last := "booked 1/1 seats."
	store := &memStore{settings: &Settings{Cron: "15 8 * * *", Enabled: true, LastResult: &last}}
	c := newController(t, &fakeBooker{}, usecases.NewMemoryRoster(), store)

	require.NoError(t, c.Init(context.Background()))
	st := c.Status()
	assert.Equal(t, Armed, st.State)
	assert.Equal(t, "15 8 * * *", st.Cron)
	require.NotNil(t, st.LastRunResult)
	assert.Equal(t, last, *st.LastRunResult)
}

func TestInitSeedsStore(t *testing.T) {
	store := &memStore{}
	c := newController(t, &fakeBooker{}, usecases.NewMemoryRoster(), store)

	require.NoError(t, c.Init(context.Background()))
	require.NotNil(t, store.settings)
	assert.Equal(t, "0-5 12 * * *", store.settings.Cron)
	assert.False(t, store.settings.Enabled)
}
