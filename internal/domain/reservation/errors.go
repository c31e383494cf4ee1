package reservation

import "errors"

// SeatReservation ドメインのエラー定義
var (
	ErrReservationNotFound = errors.New("座席予約が見つかりません")
	ErrSeatAlreadyBooked   = errors.New("座席は既に予約済みのためブロックできません")
	ErrTripIDRequired      = errors.New("トリップIDは必須です")
	ErrSeatIDRequired      = errors.New("座席IDは必須です")
)
