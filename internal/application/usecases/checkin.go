package usecases

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/seat-scheduler/internal/domain/reservation"
	"github.com/example/seat-scheduler/internal/domain/user"
)

const unknownPeriod = "unknown"

type CheckResult struct {
	UserName    string `json:"user_name"`
	Date        string `json:"date"`
	TimePeriod  string `json:"time_period"`
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	ErrorReason string `json:"error_reason,omitempty"`
}

// CheckinService signs roster members in to, or out of, today's reservation.
type CheckinService struct {
	Gateway reservation.Gateway
	Roster  RosterStore
	Log     *zap.Logger
	Now     func() time.Time
}

func (s CheckinService) CheckInAll(ctx context.Context) ([]CheckResult, error) {
	return s.all(ctx, true)
}

func (s CheckinService) CheckOutAll(ctx context.Context) ([]CheckResult, error) {
	return s.all(ctx, false)
}

func (s CheckinService) all(ctx context.Context, in bool) ([]CheckResult, error) {
	members, err := s.Roster.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CheckResult, 0, len(members))
	for _, m := range members {
		out = append(out, s.one(ctx, m, in))
	}
	return out, nil
}

// CheckIn signs m in to the reservation starting closest to now.
func (s CheckinService) CheckIn(ctx context.Context, m user.Member) CheckResult {
	return s.one(ctx, m, true)
}

// CheckOut signs m out of the reservation in progress.
func (s CheckinService) CheckOut(ctx context.Context, m user.Member) CheckResult {
	return s.one(ctx, m, false)
}

func (s CheckinService) one(ctx context.Context, m user.Member, in bool) CheckResult {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}
	res := CheckResult{UserName: m.Name, Date: now.Format(reservation.DateLayout), TimePeriod: unknownPeriod}
	verb := "check-out"
	if in {
		verb = "check-in"
	}

	sess := s.Gateway.Session(m.Token)
	bookings, err := sess.ListOpenBookings(ctx)
	if err != nil {
		log.Warn("list reservations", zap.String("user", m.Name), zap.Error(err))
		res.Message = verb + " failed"
		res.ErrorReason = fmt.Sprintf("list reservations: %v", err)
		return res
	}

	pick := reservation.PickCheckOut
	if in {
		pick = reservation.PickCheckIn
	}
	b, ok := pick(bookings, now)
	if !ok {
		res.Message = verb + " failed"
		res.ErrorReason = "no matching reservation today"
		return res
	}
	res.TimePeriod = b.Window().String()

	if in {
		err = sess.SignIn(ctx, b.ID)
	} else {
		err = sess.SignOut(ctx, b.ID)
	}
	if err != nil {
		log.Warn(verb, zap.String("user", m.Name), zap.String("window", res.TimePeriod), zap.Error(err))
		res.Message = verb + " failed"
		res.ErrorReason = err.Error()
		return res
	}
	log.Info(verb, zap.String("user", m.Name), zap.String("window", res.TimePeriod), zap.String("seat", b.SeatNo))
	res.Success = true
	res.Message = verb + " succeeded"
	return res
}
