package usecases

import (
	"context"
	"errors"

	"github.com/example/seat-scheduler/internal/domain/reservation"
	"github.com/example/seat-scheduler/internal/domain/user"
)

// TokenCheck reports whether the service accepted one member's token.
type TokenCheck struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// Probe checks that the reservation service is reachable and, optionally,
// that roster tokens are still accepted.
type Probe struct {
	Gateway reservation.Gateway
}

func (p Probe) Service(ctx context.Context) error {
	if p.Gateway == nil {
		return errors.New("gateway is nil")
	}
	return p.Gateway.Ping(ctx)
}

// Tokens lists zones with each member's token; a rejected or failed call
// marks the token unusable.
func (p Probe) Tokens(ctx context.Context, members []user.Member) []TokenCheck {
	out := make([]TokenCheck, 0, len(members))
	for _, m := range members {
		c := TokenCheck{Name: m.Name}
		if _, err := p.Gateway.Session(m.Token).ListZones(ctx); err != nil {
			var remote *reservation.RemoteError
			if errors.As(err, &remote) {
				c.Reason = remote.Message
			} else {
				c.Reason = err.Error()
			}
		} else {
			c.OK = true
		}
		out = append(out, c)
	}
	return out
}
