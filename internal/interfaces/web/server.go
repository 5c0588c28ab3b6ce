package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/example/seat-scheduler/internal/application/scheduler"
	"github.com/example/seat-scheduler/internal/application/snipe"
	"github.com/example/seat-scheduler/internal/application/usecases"
	"github.com/example/seat-scheduler/internal/domain/user"
)

type Authenticator interface {
	VerifyPassword(ctx context.Context, username, password string) (user.Operator, error)
}

type Booker interface {
	BookGroup(ctx context.Context, src usecases.Source, date string, members []user.Member) (usecases.PassResult, error)
	BookEach(ctx context.Context, src usecases.Source, date string, members []user.Member) (usecases.PassResult, error)
}

type Sniper interface {
	Create(token, userName, date string) (snipe.Task, error)
	Active() []snipe.Task
	Stop(ids []string) ([]snipe.Task, error)
}

type Schedule interface {
	Status() scheduler.Status
	Configure(ctx context.Context, spec string, enabled bool) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	RunNow(ctx context.Context) (string, error)
}

type Roster interface {
	List(ctx context.Context) ([]user.Member, error)
	Upsert(ctx context.Context, m user.Member) error
	Remove(ctx context.Context, name string) error
	Replace(ctx context.Context, members []user.Member) error
}

type Checkin interface {
	CheckInAll(ctx context.Context) ([]usecases.CheckResult, error)
	CheckOutAll(ctx context.Context) ([]usecases.CheckResult, error)
}

// Server exposes the booking operations as a JSON API behind a session login.
type Server struct {
	Sessions *SessionManager
	Auth     Authenticator
	Booking  Booker
	Snipe    Sniper
	Schedule Schedule
	Roster   Roster
	Checkin  Checkin
	Log      *zap.Logger

	// DaysAhead and Location pick the default date of a reservation request.
	DaysAhead int
	Location  *time.Location
	Now       func() time.Time

	validate *validator.Validate
}

func (s *Server) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func (s *Server) Routes() http.Handler {
	s.validate = newValidator()
	auth := s.Sessions.RequireAuth

	r := httprouter.New()
	r.GET("/healthz", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	r.POST("/login", s.handleLogin)
	r.POST("/logout", s.handleLogout)

	r.POST("/api/reserve", auth(s.handleReserve))

	r.GET("/api/snipe/tasks", auth(s.handleListSnipes))
	r.POST("/api/snipe/tasks", auth(s.handleCreateSnipes))
	r.POST("/api/snipe/tasks/stop", auth(s.handleStopSnipes))

	r.GET("/api/schedule/status", auth(s.handleScheduleStatus))
	r.POST("/api/schedule/config", auth(s.handleScheduleConfig))
	r.POST("/api/schedule/start", auth(s.handleScheduleStart))
	r.POST("/api/schedule/stop", auth(s.handleScheduleStop))
	r.POST("/api/schedule/run", auth(s.handleScheduleRun))

	r.GET("/api/schedule/tokens", auth(s.handleListTokens))
	r.POST("/api/schedule/tokens", auth(s.handleReplaceTokens))
	r.POST("/api/schedule/tokens/add", auth(s.handleAddToken))
	r.DELETE("/api/schedule/tokens/:name", auth(s.handleRemoveToken))

	r.POST("/api/checkin/in", auth(s.handleCheckIn))
	r.POST("/api/checkin/out", auth(s.handleCheckOut))

	return s.logging(r)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log().Info("http",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("latency", time.Since(start)),
		)
	})
}

func zapRequest(r *http.Request, err error) []zap.Field {
	return []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	}
}

// Start serves h on addr until ctx is cancelled.
func Start(ctx context.Context, addr string, h http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info("listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
