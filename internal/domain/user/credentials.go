package user

import (
	"strings"
	"time"
)

// Member is one roster entry: a display name and the library token used on
// their behalf. Names are unique within a roster.
type Member struct {
	Name      string    `json:"name"`
	Token     string    `json:"token"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

func (m Member) HasToken() bool {
	return strings.TrimSpace(m.Token) != ""
}

// Redacted hides all but the last four characters of the token.
func (m Member) Redacted() Member {
	out := m
	if n := len(m.Token); n > 4 {
		out.Token = strings.Repeat("*", n-4) + m.Token[n-4:]
	} else if n > 0 {
		out.Token = "****"
	}
	return out
}
