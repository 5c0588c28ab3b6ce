package library

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/example/seat-scheduler/internal/domain/reservation"
)

// Session performs calls with one user's token.
type Session struct {
	c     *Client
	token string
}

type areaDTO struct {
	ID       flexString `json:"id"`
	AreaID   flexString `json:"areaId"`
	AreaName string     `json:"areaName"`
}

func (s *Session) ListZones(ctx context.Context) ([]reservation.Zone, error) {
	var areas []areaDTO
	q := url.Values{"floorId": {s.c.cfg.FloorID}}
	if err := s.c.call(ctx, http.MethodGet, pathAreas, s.token, q, nil, &areas); err != nil {
		return nil, err
	}
	out := make([]reservation.Zone, 0, len(areas))
	for _, a := range areas {
		id := trimmed(a.ID)
		if id == "" {
			id = trimmed(a.AreaID)
		}
		out = append(out, reservation.Zone{ID: id, Name: a.AreaName})
	}
	return out, nil
}

type periodDTO struct {
	BeginTime string `json:"beginTime"`
	EndTime   string `json:"endTime"`
	QuotaVo   *struct {
		Remaining int `json:"remaining"`
	} `json:"quotaVo"`
}

func (s *Session) ListTimeSlots(ctx context.Context, date string) ([]reservation.TimeSlot, error) {
	var periods []periodDTO
	q := url.Values{
		"date":            {date},
		"reservationType": {s.c.cfg.PeriodReservationType},
		"libraryId":       {s.c.cfg.LibraryID},
	}
	if err := s.c.call(ctx, http.MethodGet, pathPeriods, s.token, q, nil, &periods); err != nil {
		return nil, err
	}
	var out []reservation.TimeSlot
	for _, p := range periods {
		if p.QuotaVo == nil || p.QuotaVo.Remaining <= 0 {
			continue
		}
		out = append(out, reservation.TimeSlot{
			Window:    reservation.Window{Start: p.BeginTime, End: p.EndTime},
			Remaining: p.QuotaVo.Remaining,
		})
	}
	s.c.log.Debug("time slots", zap.String("date", date), zap.Int("total", len(periods)), zap.Int("open", len(out)))
	return out, nil
}

type seatDTO struct {
	SeatID     flexString `json:"seatId"`
	SeatNo     flexString `json:"seatNo"`
	SeatRow    flexString `json:"seatRow"`
	SeatStatus int        `json:"seatStatus"`
	AreaID     flexString `json:"areaId"`
	AreaName   string     `json:"areaName"`
}

func (s *Session) ListSeats(ctx context.Context, zoneID, date string, w reservation.Window) ([]reservation.Seat, error) {
	var seats []seatDTO
	q := url.Values{
		"areaId":               {zoneID},
		"reservationStartDate": {w.StartAt(date)},
		"reservationEndDate":   {w.EndAt(date)},
	}
	if err := s.c.call(ctx, http.MethodGet, pathSeats, s.token, q, nil, &seats); err != nil {
		return nil, err
	}
	out := make([]reservation.Seat, 0, len(seats))
	for _, d := range seats {
		out = append(out, reservation.Seat{
			ID:       trimmed(d.SeatID),
			Row:      trimmed(d.SeatRow),
			No:       trimmed(d.SeatNo),
			Status:   d.SeatStatus,
			ZoneID:   trimmed(d.AreaID),
			ZoneName: d.AreaName,
		})
	}
	return out, nil
}

type claimBody struct {
	AreaID               any    `json:"areaId"`
	FloorID              any    `json:"floorId"`
	ReservationStartDate string `json:"reservationStartDate"`
	ReservationEndDate   string `json:"reservationEndDate"`
	SeatID               any    `json:"seatId"`
	SeatReservationType  any    `json:"seatReservationType"`
	SeatRowColumn        string `json:"seatRowColumn"`
}

// ClaimSeat never returns an error: every failure becomes a ClaimResult.
func (s *Session) ClaimSeat(ctx context.Context, req reservation.ClaimRequest) reservation.ClaimResult {
	body := claimBody{
		AreaID:               req.Zone.ID,
		FloorID:              s.c.cfg.FloorID,
		ReservationStartDate: req.Window.StartAt(req.Date),
		ReservationEndDate:   req.Window.EndAt(req.Date),
		SeatID:               idValue(req.Seat.ID),
		SeatReservationType:  s.c.cfg.SeatReservationType,
		SeatRowColumn:        req.Seat.Label(),
	}
	_, err := s.c.fetch(ctx, http.MethodPost, pathReserve, s.token, nil, body)

	var remote *reservation.RemoteError
	switch {
	case err == nil:
		return reservation.Claimed("预约成功")
	case errors.Is(err, errNoStatus):
		s.c.log.Error("claim response without status",
			zap.String("zone", req.Zone.Name), zap.String("seat", req.Seat.ID), zap.Error(err))
		return reservation.InvalidResponse(err.Error())
	case errors.As(err, &remote):
		return reservation.Rejected(remote.Code, remote.Message)
	case errors.Is(err, reservation.ErrTransport):
		return reservation.TransportFailure(err)
	default:
		return reservation.InvalidResponse(err.Error())
	}
}

type bookingDTO struct {
	ReservationID         flexString `json:"reservationId"`
	ReservationStatusName string     `json:"reservationStatusName"`
	SeatNo                flexString `json:"seatNo"`
	StartTime             string     `json:"startTime"`
	EndTime               string     `json:"endTime"`
	ReservationDate       string     `json:"reservationDate"`
}

type bookingPage struct {
	Content []struct {
		ReservationDate string       `json:"reservationDate"`
		ReservationList []bookingDTO `json:"reservationList"`
	} `json:"content"`
	TotalPages int `json:"totalPages"`
}

// ListOpenBookings pages through the user's unfinished reservations.
func (s *Session) ListOpenBookings(ctx context.Context) ([]reservation.Booking, error) {
	var out []reservation.Booking
	for page := 1; page <= maxReservationPages; page++ {
		body := map[string]any{
			"status":    0,
			"size":      reservationPageSize,
			"page":      page,
			"libraryId": idValue(s.c.cfg.LibraryID),
		}
		var p bookingPage
		if err := s.c.call(ctx, http.MethodPost, pathReservations, s.token, nil, body, &p); err != nil {
			return nil, err
		}
		for _, group := range p.Content {
			for _, b := range group.ReservationList {
				date := b.ReservationDate
				if date == "" {
					date = group.ReservationDate
				}
				out = append(out, reservation.Booking{
					ID:     trimmed(b.ReservationID),
					Date:   date,
					Start:  b.StartTime,
					End:    b.EndTime,
					Status: b.ReservationStatusName,
					SeatNo: trimmed(b.SeatNo),
				})
			}
		}
		if page >= p.TotalPages {
			break
		}
	}
	return out, nil
}

func (s *Session) SignIn(ctx context.Context, bookingID string) error {
	return s.attend(ctx, pathSignIn, bookingID)
}

func (s *Session) SignOut(ctx context.Context, bookingID string) error {
	return s.attend(ctx, pathSignOut, bookingID)
}

func (s *Session) attend(ctx context.Context, path, bookingID string) error {
	if bookingID == "" {
		return errors.New("booking id is required")
	}
	return s.c.call(ctx, http.MethodGet, path, s.token, url.Values{"reservationId": {bookingID}}, nil, nil)
}
