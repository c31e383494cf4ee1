package reservation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBlock(t *testing.T) {
	r := NewBlock("trip-1", "seat-1")
	require.NoError(t, r.Validate())
	assert.Equal(t, "trip-1", r.TripID)
	assert.Equal(t, "seat-1", r.SeatID)
	assert.Nil(t, r.BookingID)
	assert.False(t, r.IsAvailable)
	assert.True(t, r.IsReserved)
}

func TestSeatReservation_Validate(t *testing.T) {
	tests := []struct {
		name        string
		tripID      string
		seatID      string
		errExpected error
	}{
		{"正常な予約行", "trip-1", "seat-1", nil},
		{"トリップID未指定", "", "seat-1", ErrTripIDRequired},
		{"座席ID未指定", "trip-1", "", ErrSeatIDRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewBlock(tt.tripID, tt.seatID)
			err := r.Validate()
			if tt.errExpected != nil {
				assert.ErrorIs(t, err, tt.errExpected)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestDeriveStatus(t *testing.T) {
	bookingID := "booking-1"
	tests := []struct {
		name     string
		row      *SeatReservation
		expected Status
	}{
		{"行なしは利用可能", nil, StatusAvailable},
		{
			"ブッキングIDありは予約済み",
			&SeatReservation{BookingID: &bookingID, IsAvailable: false},
			StatusBooked,
		},
		{
			// BookingID の有無が IsAvailable の値より常に優先される
			"ブッキングIDありならIsAvailableがtrueでも予約済み",
			&SeatReservation{BookingID: &bookingID, IsAvailable: true},
			StatusBooked,
		},
		{
			"ブッキングIDなしで利用不可はブロック中",
			&SeatReservation{BookingID: nil, IsAvailable: false},
			StatusBlocked,
		},
		{
			"ブッキングIDなしで利用可は利用可能",
			&SeatReservation{BookingID: nil, IsAvailable: true},
			StatusAvailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DeriveStatus(tt.row))
		})
	}
}

func TestSeatReservation_IsBooked(t *testing.T) {
	r := NewBlock("trip-1", "seat-1")
	assert.False(t, r.IsBooked())

	bookingID := "booking-1"
	r.BookingID = &bookingID
	assert.True(t, r.IsBooked())
}

func TestSeatReservation_Clone(t *testing.T) {
	bookingID := "booking-1"
	r := NewBlock("trip-1", "seat-1")
	r.BookingID = &bookingID

	c := r.Clone()
	require.NotSame(t, r, c)
	assert.Equal(t, r.TripID, c.TripID)

	// BookingID ポインタも共有しない
	*c.BookingID = "booking-2"
	assert.Equal(t, "booking-1", *r.BookingID)
}
