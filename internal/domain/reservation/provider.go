package reservation

import "context"

// SeatProvider is the remote booking service as seen by one credential.
// Listing failures are returned as errors; claim failures never are, they
// resolve to a ClaimResult instead.
type SeatProvider interface {
	ListZones(ctx context.Context) ([]Zone, error)
	// ListTimeSlots returns only slots with remaining capacity.
	ListTimeSlots(ctx context.Context, date string) ([]TimeSlot, error)
	ListSeats(ctx context.Context, zoneID, date string, w Window) ([]Seat, error)
	ClaimSeat(ctx context.Context, req ClaimRequest) ClaimResult
}

// AttendanceProvider covers sign-in and sign-out of reservations already held.
type AttendanceProvider interface {
	ListOpenBookings(ctx context.Context) ([]Booking, error)
	SignIn(ctx context.Context, bookingID string) error
	SignOut(ctx context.Context, bookingID string) error
}

type Session interface {
	SeatProvider
	AttendanceProvider
}

// Gateway hands out sessions bound to a user's credential.
type Gateway interface {
	Session(token string) Session
	Ping(ctx context.Context) error
}
