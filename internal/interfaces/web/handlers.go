package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/example/seat-scheduler/internal/application/snipe"
	"github.com/example/seat-scheduler/internal/application/usecases"
	"github.com/example/seat-scheduler/internal/domain/reservation"
	"github.com/example/seat-scheduler/internal/domain/user"
	"github.com/example/seat-scheduler/internal/internaltypes"
)

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type memberDTO struct {
	Name  string `json:"name" validate:"required"`
	Token string `json:"token" validate:"required"`
}

func (m memberDTO) member() user.Member {
	return user.Member{Name: strings.TrimSpace(m.Name), Token: strings.TrimSpace(m.Token)}
}

func members(in []memberDTO) []user.Member {
	out := make([]user.Member, 0, len(in))
	for _, m := range in {
		out = append(out, m.member())
	}
	return out
}

type reserveRequest struct {
	Date  string      `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Mode  string      `json:"mode" validate:"omitempty,oneof=group each"`
	Users []memberDTO `json:"users" validate:"omitempty,dive"`
}

type snipeTaskDTO struct {
	UserToken  string `json:"user_token" validate:"required"`
	UserName   string `json:"user_name" validate:"required"`
	TargetDate string `json:"target_date" validate:"required,datetime=2006-01-02"`
}

type createSnipesRequest struct {
	Tasks []snipeTaskDTO `json:"tasks" validate:"required,min=1,dive"`
}

type stopSnipesRequest struct {
	TaskIDs []string `json:"task_ids" validate:"required,min=1,dive,required"`
}

type scheduleConfigRequest struct {
	Cron    string `json:"cron" validate:"required"`
	Enabled *bool  `json:"enabled" validate:"required"`
}

type replaceTokensRequest struct {
	Users []memberDTO `json:"users" validate:"dive"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req loginRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.Auth.VerifyPassword(r.Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Sessions.SetUserID(w, r, u.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log().Info("login", zap.String("user", u.Username))
	writeSuccess(w, u)
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	s.Sessions.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) defaultDate() string {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	loc := s.Location
	if loc == nil {
		loc = time.Local
	}
	return now().In(loc).AddDate(0, 0, s.DaysAhead).Format(reservation.DateLayout)
}

// handleReserve runs a booking pass now. Without users it books the roster.
func (s *Server) handleReserve(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req reserveRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	date := req.Date
	if date == "" {
		date = s.defaultDate()
	}
	ms := members(req.Users)
	if len(ms) == 0 {
		var err error
		if ms, err = s.Roster.List(r.Context()); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	var (
		res usecases.PassResult
		err error
	)
	if req.Mode == "each" {
		res, err = s.Booking.BookEach(r.Context(), usecases.SourceManual, date, ms)
	} else {
		res, err = s.Booking.BookGroup(r.Context(), usecases.SourceManual, date, ms)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, res)
}

func (s *Server) handleListSnipes(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeSuccess(w, s.Snipe.Active())
}

func (s *Server) handleCreateSnipes(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createSnipesRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	created := make([]snipe.Task, 0, len(req.Tasks))
	for _, t := range req.Tasks {
		task, err := s.Snipe.Create(t.UserToken, t.UserName, t.TargetDate)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		created = append(created, task)
	}
	writeCreated(w, created)
}

func (s *Server) handleStopSnipes(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req stopSnipesRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	stopped, err := s.Snipe.Stop(req.TaskIDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, stopped)
}

func (s *Server) handleScheduleStatus(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeSuccess(w, s.Schedule.Status())
}

func (s *Server) handleScheduleConfig(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req scheduleConfigRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Schedule.Configure(r.Context(), strings.TrimSpace(req.Cron), *req.Enabled); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, s.Schedule.Status())
}

func (s *Server) handleScheduleStart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := s.Schedule.Start(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, s.Schedule.Status())
}

func (s *Server) handleScheduleStop(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := s.Schedule.Stop(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, s.Schedule.Status())
}

func (s *Server) handleScheduleRun(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	summary, err := s.Schedule.RunNow(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, map[string]string{"summary": summary})
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ms, err := s.Roster.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]user.Member, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Redacted())
	}
	writeSuccess(w, out)
}

func (s *Server) handleReplaceTokens(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req replaceTokensRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Roster.Replace(r.Context(), members(req.Users)); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.handleListTokens(w, r, ps)
}

func (s *Server) handleAddToken(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req memberDTO
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	m := req.member()
	if err := s.Roster.Upsert(r.Context(), m); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeCreated(w, m.Redacted())
}

func (s *Server) handleRemoveToken(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	name := strings.TrimSpace(ps.ByName("name"))
	if name == "" {
		s.writeError(w, r, internaltypes.Invalid("name", "is required"))
		return
	}
	if err := s.Roster.Remove(r.Context(), name); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	res, err := s.Checkin.CheckInAll(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, res)
}

func (s *Server) handleCheckOut(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	res, err := s.Checkin.CheckOutAll(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, res)
}
