package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickCheckIn(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
	bookings := []Booking{
		{ID: "past", Date: "2025-03-01", Start: "08:00", End: "12:00", Status: "已预约"},
		{ID: "afternoon", Date: "2025-03-01", Start: "13:00", End: "17:00", Status: "已预约"},
		{ID: "evening", Date: "2025-03-01", Start: "18:00", End: "21:00", Status: "已预约"},
		{ID: "cancelled", Date: "2025-03-01", Start: "12:30", End: "14:00", Status: "已取消"},
		{ID: "tomorrow", Date: "2025-03-02", Start: "12:30", End: "14:00", Status: "已预约"},
	}
	got, ok := PickCheckIn(bookings, now)
	require.True(t, ok)
	assert.Equal(t, "afternoon", got.ID)
}

func TestPickCheckInOngoing(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	bookings := []Booking{
		{ID: "morning", Date: "2025-03-01", Start: "08:00", End: "12:00"},
		{ID: "afternoon", Date: "2025-03-01", Start: "13:00", End: "17:00"},
	}
	got, ok := PickCheckIn(bookings, now)
	require.True(t, ok)
	assert.Equal(t, "morning", got.ID)
}

func TestPickCheckInNothingToday(t *testing.T) {
	now := time.Date(2025, 3, 1, 22, 0, 0, 0, time.UTC)
	_, ok := PickCheckIn([]Booking{{ID: "a", Date: "2025-03-01", Start: "08:00", End: "12:00"}}, now)
	assert.False(t, ok)
}

func TestPickCheckOut(t *testing.T) {
	now := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)
	bookings := []Booking{
		{ID: "morning", Date: "2025-03-01", Start: "08:00", End: "12:00"},
		{ID: "signed-out", Date: "2025-03-01", Start: "13:00", End: "17:00", Status: "已签退"},
		{ID: "afternoon", Date: "2025-03-01", Start: "13:00", End: "17:00", Status: "已签到"},
	}
	got, ok := PickCheckOut(bookings, now)
	require.True(t, ok)
	assert.Equal(t, "afternoon", got.ID)

	_, ok = PickCheckOut(bookings[:2], now)
	assert.False(t, ok)
}
