package user

import "time"

// Operator is a login for the web API. Operators manage the roster; they
// are not library readers and hold no library token.
type Operator struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
