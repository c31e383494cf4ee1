package reservation

import "time"

// Status は座席の導出状態を表す
type Status string

const (
	StatusAvailable Status = "available"
	StatusBlocked   Status = "blocked"
	StatusBooked    Status = "booked"
)

// SeatReservation は (トリップ, 座席) ごとの権威レコードを表す
// 行が存在しない座席は「利用可能」とみなす
type SeatReservation struct {
	ID          string
	TripID      string
	SeatID      string
	BookingID   *string // 非nilなら予約済み（IsAvailable より優先）
	IsAvailable bool
	IsReserved  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewBlock は管理者ブロック用の新しい予約行を作成する
func NewBlock(tripID, seatID string) *SeatReservation {
	now := time.Now()
	return &SeatReservation{
		TripID:      tripID,
		SeatID:      seatID,
		BookingID:   nil,
		IsAvailable: false,
		IsReserved:  true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsBooked はブッキングに紐づいているかを返す
func (r *SeatReservation) IsBooked() bool {
	return r.BookingID != nil
}

// Clone は予約行のコピーを返す
func (r *SeatReservation) Clone() *SeatReservation {
	c := *r
	if r.BookingID != nil {
		id := *r.BookingID
		c.BookingID = &id
	}
	return &c
}

// Validate は予約行の検証を行う
func (r *SeatReservation) Validate() error {
	if r.TripID == "" {
		return ErrTripIDRequired
	}
	if r.SeatID == "" {
		return ErrSeatIDRequired
	}
	return nil
}

// DeriveStatus は (予約行?) から座席状態を導出する純粋関数
// BookingID の有無が IsAvailable の値より常に優先される
func DeriveStatus(r *SeatReservation) Status {
	if r == nil {
		return StatusAvailable
	}
	if r.BookingID != nil {
		return StatusBooked
	}
	if !r.IsAvailable {
		return StatusBlocked
	}
	return StatusAvailable
}
