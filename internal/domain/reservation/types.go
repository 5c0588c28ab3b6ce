package reservation

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for reservation dates.
const DateLayout = "2006-01-02"

// SeatAvailable is the only seat status code that can be claimed.
const SeatAvailable = 3

// ErrTransport wraps network, timeout, non-2xx and undecodable-body failures.
var ErrTransport = errors.New("transport failure")

// RemoteError is a well-formed response carrying a non-zero result code.
type RemoteError struct {
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote rejected request (code=%d): %s", e.Code, e.Message)
}

type Zone struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Window is a same-day interval with HH:MM bounds.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (w Window) String() string { return w.Start + "-" + w.End }

// StartAt and EndAt render the "YYYY-MM-DD HH:MM" pairs the remote service expects.
func (w Window) StartAt(date string) string { return date + " " + w.Start }
func (w Window) EndAt(date string) string   { return date + " " + w.End }

type TimeSlot struct {
	Window
	Remaining int `json:"remaining"`
}

type Seat struct {
	ID       string `json:"id"`
	Row      string `json:"row"`
	No       string `json:"no"`
	Status   int    `json:"status"`
	ZoneID   string `json:"zone_id"`
	ZoneName string `json:"zone_name"`
}

func (s Seat) Available() bool { return s.Status == SeatAvailable }

// Table is the ledger key of the seat's table, e.g. "12" for row "12排".
func (s Seat) Table() string { return TableKey(s.Row) }

// Number is the seat-within-table number with the "号" suffix stripped.
func (s Seat) Number() string { return strings.TrimSuffix(strings.TrimSpace(s.No), "号") }

// Label is the row/column string sent with a claim, e.g. "1排 4号".
func (s Seat) Label() string { return s.Row + " " + s.No }

type ClaimRequest struct {
	Date   string
	Window Window
	Zone   Zone
	Seat   Seat
}

type ClaimKind int

const (
	ClaimOK ClaimKind = iota
	ClaimTransport
	ClaimConflict
	ClaimAlreadyHeld
	ClaimRejected
	ClaimInvalidResponse
)

func (k ClaimKind) String() string {
	switch k {
	case ClaimOK:
		return "ok"
	case ClaimTransport:
		return "transport"
	case ClaimConflict:
		return "conflict"
	case ClaimAlreadyHeld:
		return "already_held"
	case ClaimRejected:
		return "rejected"
	case ClaimInvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// ClaimResult is the uniform {success, message} shape every claim attempt resolves to.
type ClaimResult struct {
	Success bool
	Code    int
	Message string
	Kind    ClaimKind
}

func Claimed(message string) ClaimResult {
	return ClaimResult{Success: true, Message: message, Kind: ClaimOK}
}

func Rejected(code int, message string) ClaimResult {
	return ClaimResult{Code: code, Message: message, Kind: ClassifyRejection(message)}
}

func TransportFailure(err error) ClaimResult {
	return ClaimResult{Code: -1, Message: err.Error(), Kind: ClaimTransport}
}

func InvalidResponse(message string) ClaimResult {
	return ClaimResult{Code: -1, Message: message, Kind: ClaimInvalidResponse}
}

var (
	conflictMarkers    = []string{"已被预订", "已被预约", "已被占用", "已被他人"}
	alreadyHeldMarkers = []string{"已有预约", "重复预约", "已存在预约", "已预约该时段"}
)

// ClassifyRejection separates "seat taken by someone else" from "caller already
// holds this window" by the remote message text.
func ClassifyRejection(message string) ClaimKind {
	for _, m := range alreadyHeldMarkers {
		if strings.Contains(message, m) {
			return ClaimAlreadyHeld
		}
	}
	for _, m := range conflictMarkers {
		if strings.Contains(message, m) {
			return ClaimConflict
		}
	}
	return ClaimRejected
}

// Outcome is one claim attempt as reported to callers. Benign marks an
// already-held window: not a booking by this pass, but nothing left to do.
type Outcome struct {
	User    string    `json:"user"`
	Date    string    `json:"date"`
	Window  string    `json:"window"`
	Zone    string    `json:"zone"`
	Seat    string    `json:"seat"`
	Success bool      `json:"success"`
	Benign  bool      `json:"benign,omitempty"`
	Reason  string    `json:"reason"`
	At      time.Time `json:"at"`
}
