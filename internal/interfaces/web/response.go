package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/seat-scheduler/internal/internaltypes"
)

type ErrorResponse struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

type SuccessResponse struct {
	Data any `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, SuccessResponse{Data: data})
}

func writeCreated(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, SuccessResponse{Data: data})
}

// statusFor maps an application error onto its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, internaltypes.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, internaltypes.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, internaltypes.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error()}

	var verr internaltypes.ValidationError
	switch {
	case errors.As(err, &verr):
		resp.Error = verr.Message
		if verr.Field != "" {
			resp.Details = map[string]any{"field": verr.Field}
		}
	case status == http.StatusInternalServerError:
		s.log().Error("request failed", zapRequest(r, err)...)
		resp.Error = "internal server error"
	}
	writeJSON(w, status, resp)
}
