package reservation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyRejection(t *testing.T) {
	tests := []struct {
		msg  string
		want ClaimKind
	}{
		{"该座位已被预订", ClaimConflict},
		{"座位已被他人预约", ClaimConflict},
		{"该时段已有预约，请勿重复预约", ClaimAlreadyHeld},
		{"您已预约该时段", ClaimAlreadyHeld},
		{"token失效", ClaimRejected},
		{"", ClaimRejected},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyRejection(tt.msg))
		})
	}
}

func TestClaimResultConstructors(t *testing.T) {
	ok := Claimed("预约成功")
	assert.True(t, ok.Success)
	assert.Equal(t, ClaimOK, ok.Kind)

	r := Rejected(500, "已被预约")
	assert.False(t, r.Success)
	assert.Equal(t, 500, r.Code)
	assert.Equal(t, ClaimConflict, r.Kind)

	tf := TransportFailure(errors.New("dial tcp: timeout"))
	assert.False(t, tf.Success)
	assert.Equal(t, ClaimTransport, tf.Kind)
	assert.Equal(t, "dial tcp: timeout", tf.Message)

	assert.Equal(t, "invalid_response", InvalidResponse("x").Kind.String())
}

func TestSeatAccessors(t *testing.T) {
	s := Seat{ID: "7", Row: "12排", No: "3号", Status: SeatAvailable}
	assert.True(t, s.Available())
	assert.Equal(t, "12", s.Table())
	assert.Equal(t, "3", s.Number())
	assert.Equal(t, "12排 3号", s.Label())

	w := Window{Start: "08:00", End: "12:00"}
	assert.Equal(t, "08:00-12:00", w.String())
	assert.Equal(t, "2025-03-01 08:00", w.StartAt("2025-03-01"))
	assert.Equal(t, "2025-03-01 12:00", w.EndAt("2025-03-01"))
}
