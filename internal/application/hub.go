package application

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/zayan1337/ferry-seat-sync/internal/domain/changefeed"
	"github.com/zayan1337/ferry-seat-sync/internal/domain/inventory"
	"github.com/zayan1337/ferry-seat-sync/internal/pkg/logger"
)

// SeatMapView はプレゼンテーション層へ渡す座席マップの全体像
type SeatMapView struct {
	TripID          string
	VesselID        string
	FeedStatus      changefeed.ConnectionStatus
	Snapshot        inventory.Snapshot
	Seats           []SeatView
	RecentlyUpdated []string
	LoadError       error
}

// SessionHub はトリップごとに高々1つのライブセッションを管理する
type SessionHub struct {
	svc      *SeatSyncService
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionHub(svc *SeatSyncService) *SessionHub {
	return &SessionHub{
		svc:      svc,
		sessions: make(map[string]*Session),
	}
}

// Open はトリップのセッションを開く。既に開いていればそれを返す
func (h *SessionHub) Open(ctx context.Context, tripID, vesselID string, listener SessionListener) (*Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sess, ok := h.sessions[tripID]; ok {
		return sess, nil
	}
	sess, err := h.svc.OpenSession(ctx, tripID, vesselID, listener)
	if err != nil {
		return nil, err
	}
	h.sessions[tripID] = sess
	logger.Info("トリップセッションを開始",
		zap.String("trip_id", tripID), zap.String("vessel_id", vesselID))
	return sess, nil
}

// Get は開いているセッションを返す
func (h *SessionHub) Get(tripID string) (*Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sess, ok := h.sessions[tripID]
	return sess, ok
}

// Close はトリップのセッションを終了する
func (h *SessionHub) Close(tripID string) error {
	h.mu.Lock()
	sess, ok := h.sessions[tripID]
	delete(h.sessions, tripID)
	h.mu.Unlock()
	if !ok {
		return ErrSessionNotOpen
	}
	logger.Info("トリップセッションを終了", zap.String("trip_id", tripID))
	return sess.Close()
}

// CloseAll は全セッションを終了する（シャットダウン時）
func (h *SessionHub) CloseAll() {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[string]*Session)
	h.mu.Unlock()
	for tripID, sess := range sessions {
		if err := sess.Close(); err != nil {
			logger.Warn("セッション終了に失敗",
				zap.String("trip_id", tripID), zap.Error(err))
		}
	}
}

// ResyncAll は全セッションを全量リロードする（安全網ワーカー用）
// 成功した件数と、失敗をまとめたエラーを返す
func (h *SessionHub) ResyncAll(ctx context.Context) (int, error) {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, sess := range h.sessions {
		sessions = append(sessions, sess)
	}
	h.mu.Unlock()

	count := 0
	var errs []error
	for _, sess := range sessions {
		if err := sess.Resync(ctx); err != nil {
			errs = append(errs, err)
			continue
		}
		count++
	}
	return count, errors.Join(errs...)
}

// --- ハンドラー向けのトリップIDベースの操作 ---

// OpenWatch はトリップの監視を開始する
func (h *SessionHub) OpenWatch(ctx context.Context, tripID, vesselID string) error {
	_, err := h.Open(ctx, tripID, vesselID, SessionListener{})
	return err
}

// CloseWatch はトリップの監視を終了する
func (h *SessionHub) CloseWatch(tripID string) error {
	return h.Close(tripID)
}

// SeatMap は開いているセッションの座席マップを返す
func (h *SessionHub) SeatMap(tripID string) (*SeatMapView, error) {
	sess, ok := h.Get(tripID)
	if !ok {
		return nil, ErrSessionNotOpen
	}
	return &SeatMapView{
		TripID:          sess.TripID(),
		VesselID:        sess.VesselID(),
		FeedStatus:      sess.FeedStatus(),
		Snapshot:        sess.Snapshot(),
		Seats:           sess.SeatMap(),
		RecentlyUpdated: sess.RecentlyUpdated(),
		LoadError:       sess.LoadError(),
	}, nil
}

// Block は座席をブロックする
func (h *SessionHub) Block(ctx context.Context, tripID, seatID string) error {
	sess, ok := h.Get(tripID)
	if !ok {
		return ErrSessionNotOpen
	}
	return sess.Block(ctx, seatID)
}

// Release は座席のブロックを解除する
func (h *SessionHub) Release(ctx context.Context, tripID, seatID string) error {
	sess, ok := h.Get(tripID)
	if !ok {
		return ErrSessionNotOpen
	}
	return sess.Release(ctx, seatID)
}

// Reload は手動の全量リロードを行う
func (h *SessionHub) Reload(ctx context.Context, tripID string) error {
	sess, ok := h.Get(tripID)
	if !ok {
		return ErrSessionNotOpen
	}
	return sess.Reload(ctx)
}

// Summary はトリップの集計値を返す
// 開いているセッションがあればその生値、なければサービスのフォールバック
func (h *SessionHub) Summary(ctx context.Context, tripID, vesselID string) (inventory.Snapshot, error) {
	if sess, ok := h.Get(tripID); ok {
		return sess.Snapshot(), nil
	}
	return h.svc.Summary(ctx, tripID, vesselID)
}
