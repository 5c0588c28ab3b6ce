package web

import (
	"context"
	"net/http"

	"github.com/gorilla/securecookie"
	"github.com/julienschmidt/httprouter"
)

const (
	sessionName   = "seatsched_session"
	sessionMaxAge = 14 * 24 * 60 * 60
)

type SessionManager struct{ sc *securecookie.SecureCookie }

func NewSessionManager(hashKey, blockKey []byte) *SessionManager {
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(sessionMaxAge)
	return &SessionManager{sc: sc}
}

func (s *SessionManager) SetUserID(w http.ResponseWriter, r *http.Request, userID string) error {
	value := map[string]string{"uid": userID}
	encoded, err := s.sc.Encode(sessionName, value)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionName,
		Value:    encoded,
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *SessionManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *SessionManager) GetUserID(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionName)
	if err != nil {
		return "", false
	}
	value := map[string]string{}
	if err := s.sc.Decode(sessionName, c.Value, &value); err != nil {
		return "", false
	}
	uid := value["uid"]
	if uid == "" {
		return "", false
	}
	return uid, true
}

type ctxKeyUserID struct{}

// RequireAuth rejects requests without a valid session cookie.
func (s *SessionManager) RequireAuth(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		uid, ok := s.GetUserID(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "login required"})
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKeyUserID{}, uid)), ps)
	}
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(ctxKeyUserID{}).(string)
	return uid, ok && uid != ""
}
