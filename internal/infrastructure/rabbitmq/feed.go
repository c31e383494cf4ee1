// Package rabbitmq は、リモートストアの変更がメッセージブローカー経由で
// 配信されるデプロイ向けの変更フィード実装を提供する。
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/zayan1337/ferry-seat-sync/internal/config"
	"github.com/zayan1337/ferry-seat-sync/internal/domain/changefeed"
	"github.com/zayan1337/ferry-seat-sync/internal/domain/reservation"
	"github.com/zayan1337/ferry-seat-sync/internal/pkg/logger"
)

const eventBufferSize = 256

// ChangeFeed は RabbitMQ トピックエクスチェンジベースの変更フィード
// ルーティングキーは trip.<trip_id>.reservations / trip.<trip_id>.bookings
type ChangeFeed struct {
	url          string
	exchange     string
	minReconnect time.Duration
	maxReconnect time.Duration
}

// NewChangeFeed は新しいChangeFeedを作成する
func NewChangeFeed(cfg *config.FeedConfig) *ChangeFeed {
	return &ChangeFeed{
		url:          cfg.AMQPURL,
		exchange:     cfg.Exchange,
		minReconnect: cfg.MinReconnect,
		maxReconnect: cfg.MaxReconnect,
	}
}

// Subscribe はトリップにスコープされた購読を開く
// 初回セットアップの失敗は即座にエラーを返し、途中で取得した接続は解放する
// 接続確立後の切断は内部で再接続し、状態チャネルで通知する
func (f *ChangeFeed) Subscribe(ctx context.Context, tripID string) (changefeed.Subscription, error) {
	sub := &amqpSubscription{
		feed:   f,
		tripID: tripID,
		events: make(chan changefeed.Event, eventBufferSize),
		status: make(chan changefeed.ConnectionStatus, 8),
		closed: make(chan struct{}),
	}
	sub.sendStatus(changefeed.StatusConnecting)

	conn, msgs, err := sub.setup()
	if err != nil {
		return nil, fmt.Errorf("変更フィードの購読に失敗: %w", err)
	}

	go sub.run(conn, msgs)
	return sub, nil
}

type amqpSubscription struct {
	feed   *ChangeFeed
	tripID string
	events chan changefeed.Event
	status chan changefeed.ConnectionStatus

	closeOnce sync.Once
	closed    chan struct{}
}

func (s *amqpSubscription) Events() <-chan changefeed.Event { return s.events }

func (s *amqpSubscription) Status() <-chan changefeed.ConnectionStatus { return s.status }

// Close は購読を解除する。冪等
func (s *amqpSubscription) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *amqpSubscription) sendStatus(st changefeed.ConnectionStatus) {
	select {
	case s.status <- st:
	default:
	}
}

// setup は接続からコンシューマーまでを確立する
// いずれかの段階で失敗したら、そこまでに取得した接続を閉じて返す
func (s *amqpSubscription) setup() (*amqp.Connection, <-chan amqp.Delivery, error) {
	conn, err := amqp.Dial(s.feed.url)
	if err != nil {
		return nil, nil, fmt.Errorf("ブローカー接続に失敗: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("チャネル作成に失敗: %w", err)
	}

	if err := ch.ExchangeDeclare(s.feed.exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("エクスチェンジ宣言に失敗: %w", err)
	}

	// 購読ごとの一時キュー（排他、自動削除）
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("キュー宣言に失敗: %w", err)
	}

	keys := []string{
		fmt.Sprintf("trip.%s.reservations", s.tripID),
		fmt.Sprintf("trip.%s.bookings", s.tripID),
	}
	for _, key := range keys {
		if err := ch.QueueBind(q.Name, key, s.feed.exchange, false, nil); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("キューバインドに失敗: %w", err)
		}
	}

	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("コンシューム開始に失敗: %w", err)
	}

	return conn, msgs, nil
}

func (s *amqpSubscription) run(conn *amqp.Connection, msgs <-chan amqp.Delivery) {
	defer close(s.events)
	for {
		s.sendStatus(changefeed.StatusConnected)

	consume:
		for {
			select {
			case <-s.closed:
				conn.Close()
				return
			case d, ok := <-msgs:
				if !ok {
					break consume
				}
				s.handleDelivery(d)
			}
		}

		conn.Close()
		s.sendStatus(changefeed.StatusDisconnected)

		// 指数バックオフで再接続
		backoff := s.feed.minReconnect
		for {
			select {
			case <-s.closed:
				return
			case <-time.After(backoff):
			}
			var err error
			conn, msgs, err = s.setup()
			if err == nil {
				break
			}
			logger.Warn("変更フィード再接続に失敗",
				zap.String("trip_id", s.tripID),
				zap.Duration("backoff", backoff),
				zap.Error(err))
			backoff *= 2
			if backoff > s.feed.maxReconnect {
				backoff = s.feed.maxReconnect
			}
		}
	}
}

func (s *amqpSubscription) handleDelivery(d amqp.Delivery) {
	ev, err := parseDelivery(d.RoutingKey, d.Body)
	if err != nil {
		logger.Warn("変更フィードメッセージの解析に失敗",
			zap.String("routing_key", d.RoutingKey), zap.Error(err))
		return
	}
	select {
	case s.events <- ev:
	case <-s.closed:
	}
}

type reservationMessage struct {
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

// parseDelivery はルーティングキーと本文から内部イベントを組み立てる
// ブッキング変更は本文を検査しない
func parseDelivery(routingKey string, body []byte) (changefeed.Event, error) {
	if strings.HasSuffix(routingKey, ".bookings") {
		return changefeed.Event{Type: changefeed.EventBookingChanged}, nil
	}

	var m reservationMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return changefeed.Event{}, fmt.Errorf("予約メッセージの解析に失敗: %w", err)
	}
	if m.Op == "DELETE" {
		return changefeed.Event{
			Type:   changefeed.EventReservationDeleted,
			SeatID: m.Row.SeatID,
		}, nil
	}
	return changefeed.Event{
		Type:   changefeed.EventReservationUpserted,
		SeatID: m.Row.SeatID,
		Reservation: &reservation.SeatReservation{
			ID:          m.Row.ID,
			TripID:      m.Row.TripID,
			SeatID:      m.Row.SeatID,
			BookingID:   m.Row.BookingID,
			IsAvailable: m.Row.IsAvailable,
			IsReserved:  m.Row.IsReserved,
		},
	}, nil
}

var _ changefeed.Feed = (*ChangeFeed)(nil)
