package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/zayan1337/ferry-seat-sync/internal/config"
	"github.com/zayan1337/ferry-seat-sync/internal/domain/changefeed"
	"github.com/zayan1337/ferry-seat-sync/internal/domain/reservation"
	"github.com/zayan1337/ferry-seat-sync/internal/pkg/logger"
)

// NOTIFY チャネル名（マイグレーションのトリガーと対応）
const (
	reservationChannel = "seat_reservation_changes"
	bookingChannel     = "booking_changes"
)

const (
	eventBufferSize = 256
	pingInterval    = 90 * time.Second
)

// ChangeFeed は PostgreSQL LISTEN/NOTIFY ベースの変更フィード
// 行トリガーが pg_notify で流すJSONペイロードを内部イベントへ正規化する
type ChangeFeed struct {
	dsn          string
	minReconnect time.Duration
	maxReconnect time.Duration
}

// NewChangeFeed は新しいChangeFeedを作成する
func NewChangeFeed(dbCfg *config.DatabaseConfig, feedCfg *config.FeedConfig) *ChangeFeed {
	return &ChangeFeed{
		dsn:          dbCfg.DSN(),
		minReconnect: feedCfg.MinReconnect,
		maxReconnect: feedCfg.MaxReconnect,
	}
}

// Subscribe はトリップにスコープされた購読を開く
// セットアップに失敗した場合、取得済みのリスナーは必ず解放される
func (f *ChangeFeed) Subscribe(ctx context.Context, tripID string) (changefeed.Subscription, error) {
	sub := &pgSubscription{
		tripID: tripID,
		events: make(chan changefeed.Event, eventBufferSize),
		status: make(chan changefeed.ConnectionStatus, 8),
		closed: make(chan struct{}),
	}
	sub.sendStatus(changefeed.StatusConnecting)

	l := pq.NewListener(f.dsn, f.minReconnect, f.maxReconnect, sub.listenerEvent)
	sub.listener = l

	if err := l.Listen(reservationChannel); err != nil {
		l.Close()
		return nil, fmt.Errorf("予約チャネルのLISTENに失敗: %w", err)
	}
	if err := l.Listen(bookingChannel); err != nil {
		l.Close()
		return nil, fmt.Errorf("ブッキングチャネルのLISTENに失敗: %w", err)
	}

	go sub.run()
	return sub, nil
}

type pgSubscription struct {
	tripID   string
	listener *pq.Listener
	events   chan changefeed.Event
	status   chan changefeed.ConnectionStatus

	closeOnce sync.Once
	closed    chan struct{}
}

func (s *pgSubscription) Events() <-chan changefeed.Event { return s.events }

func (s *pgSubscription) Status() <-chan changefeed.ConnectionStatus { return s.status }

// Close は購読を解除する。冪等
func (s *pgSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.listener.Close()
	})
	return err
}

// sendStatus は接続状態を通知する。受け手が詰まっていても落とすだけで
// ブロックしない（状態は観測用であり正しさに関与しない）
func (s *pgSubscription) sendStatus(st changefeed.ConnectionStatus) {
	select {
	case s.status <- st:
	default:
	}
}

// listenerEvent は pq の接続イベントを接続状態へ変換する
func (s *pgSubscription) listenerEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected, pq.ListenerEventReconnected:
		s.sendStatus(changefeed.StatusConnected)
	case pq.ListenerEventDisconnected, pq.ListenerEventConnectionAttemptFailed:
		if err != nil {
			logger.Warn("変更フィード接続エラー", zap.Error(err))
		}
		s.sendStatus(changefeed.StatusDisconnected)
	}
}

func (s *pgSubscription) run() {
	defer close(s.events)
	for {
		select {
		case <-s.closed:
			return
		case n := <-s.listener.Notify:
			// 再接続直後は nil 通知が届く。イベントの取りこぼしが
			// あり得るため、消費側の定期リロードが安全網になる
			if n == nil {
				continue
			}
			s.handleNotification(n)
		case <-time.After(pingInterval):
			go func() { _ = s.listener.Ping() }()
		}
	}
}

func (s *pgSubscription) handleNotification(n *pq.Notification) {
	var (
		tripID string
		ev     changefeed.Event
		err    error
	)
	switch n.Channel {
	case reservationChannel:
		tripID, ev, err = parseReservationPayload([]byte(n.Extra))
	case bookingChannel:
		tripID, err = parseBookingPayload([]byte(n.Extra))
		ev = changefeed.Event{Type: changefeed.EventBookingChanged}
	default:
		return
	}
	if err != nil {
		logger.Warn("変更フィードのペイロード解析に失敗",
			zap.String("channel", n.Channel), zap.Error(err))
		return
	}
	if tripID != s.tripID {
		return
	}
	select {
	case s.events <- ev:
	case <-s.closed:
	}
}

type reservationPayload struct {
	Op  string `json:"op"`
	Row struct {
		ID          string  `json:"id"`
		TripID      string  `json:"trip_id"`
		SeatID      string  `json:"seat_id"`
		BookingID   *string `json:"booking_id"`
		IsAvailable bool    `json:"is_available"`
		IsReserved  bool    `json:"is_reserved"`
	} `json:"row"`
}

type bookingPayload struct {
	Op     string `json:"op"`
	TripID string `json:"trip_id"`
}

// parseReservationPayload は予約行トリガーのJSONを内部イベントへ変換する
func parseReservationPayload(data []byte) (string, changefeed.Event, error) {
	var p reservationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return "", changefeed.Event{}, fmt.Errorf("予約ペイロードの解析に失敗: %w", err)
	}
	if p.Op == "DELETE" {
		return p.Row.TripID, changefeed.Event{
			Type:   changefeed.EventReservationDeleted,
			SeatID: p.Row.SeatID,
		}, nil
	}
	return p.Row.TripID, changefeed.Event{
		Type:   changefeed.EventReservationUpserted,
		SeatID: p.Row.SeatID,
		Reservation: &reservation.SeatReservation{
			ID:          p.Row.ID,
			TripID:      p.Row.TripID,
			SeatID:      p.Row.SeatID,
			BookingID:   p.Row.BookingID,
			IsAvailable: p.Row.IsAvailable,
			IsReserved:  p.Row.IsReserved,
		},
	}, nil
}

// parseBookingPayload はブッキングトリガーのJSONからトリップIDだけを取り出す
// それ以外の内容は検査しない
func parseBookingPayload(data []byte) (string, error) {
	var p bookingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return "", fmt.Errorf("ブッキングペイロードの解析に失敗: %w", err)
	}
	return p.TripID, nil
}

var _ changefeed.Feed = (*ChangeFeed)(nil)
