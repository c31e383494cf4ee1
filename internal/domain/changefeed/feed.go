package changefeed

import (
	"context"

	"github.com/zayan1337/ferry-seat-sync/internal/domain/reservation"
)

// EventType は変更フィードのイベント種別を表す
type EventType string

const (
	// EventReservationUpserted は座席予約行のINSERT/UPDATE
	EventReservationUpserted EventType = "reservation_upserted"
	// EventReservationDeleted は座席予約行のDELETE
	EventReservationDeleted EventType = "reservation_deleted"
	// EventBookingChanged はブッキングテーブルの任意の変更
	// ペイロードは検査しない。イベントの存在自体がシグナル
	EventBookingChanged EventType = "booking_changed"
)

// Event はリモートストアの行変更を正規化した内部イベント
type Event struct {
	Type        EventType
	SeatID      string
	Reservation *reservation.SeatReservation // Upsert時のみ非nil
}

// ConnectionStatus はフィード接続の状態を表す
// 純粋に観測用であり、正しさには関与しない
type ConnectionStatus string

const (
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
)

// Subscription は1トリップ分の購読ハンドル
// Close は冪等で、全ての終了経路（セットアップ失敗含む）で呼ばれる
type Subscription interface {
	// Events はトリップにスコープされた変更イベントのチャネルを返す
	// Close 後にチャネルはクローズされる
	Events() <-chan Event

	// Status は接続状態の遷移を通知するチャネルを返す
	Status() <-chan ConnectionStatus

	// Close は購読を解除する
	Close() error
}

// Feed は変更フィードのインターフェース
// 実装は postgres LISTEN/NOTIFY と RabbitMQ の2種類
type Feed interface {
	// Subscribe はトリップにスコープされた購読を開く
	// 予約行の変更とブッキング変更の両方が1つの購読に正規化される
	Subscribe(ctx context.Context, tripID string) (Subscription, error)
}
