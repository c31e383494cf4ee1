package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zayan1337/ferry-seat-sync/internal/domain/changefeed"
	"github.com/zayan1337/ferry-seat-sync/internal/domain/inventory"
	"github.com/zayan1337/ferry-seat-sync/internal/domain/reservation"
	"github.com/zayan1337/ferry-seat-sync/internal/domain/seat"
	redisinfra "github.com/zayan1337/ferry-seat-sync/internal/infrastructure/redis"
	"github.com/zayan1337/ferry-seat-sync/internal/pkg/logger"
	"github.com/zayan1337/ferry-seat-sync/internal/pkg/metrics"
)

// Action はコマンドの種別を表す
type Action string

const (
	ActionBlock   Action = "block"
	ActionRelease Action = "release"
)

// リロード理由（メトリクスのラベル）
const (
	reloadReasonInitial       = "initial"
	reloadReasonBookingChange = "booking_change"
	reloadReasonManual        = "manual"
	reloadReasonResync        = "resync"
)

// CommandResult はブロック/解除コマンドの決着を表す
type CommandResult struct {
	TripID string
	SeatID string
	Action Action
	Err    error
}

// SessionListener はプレゼンテーション層への通知コールバック
// どちらも nil 可。通知は在庫の排他を持たずに呼ばれる
type SessionListener struct {
	// OnChange は外部から観測可能な状態が変わるたびに呼ばれる
	OnChange func()
	// OnCommandSettled はコマンドが決着（成功/失敗）したときに呼ばれる
	// 多重コマンドとして破棄されたものは決着ではないため呼ばれない
	OnCommandSettled func(CommandResult)
}

// SeatView は導出状態つきの座席ビュー
type SeatView struct {
	Seat            *seat.Seat
	Status          reservation.Status
	RecentlyUpdated bool
}

// Session は1つの (トリップ, 船舶) 閲覧コンテキストの同期セッション
//
// 在庫投影はこのセッションが排他的に所有し、変更フィードのイベントと
// ローカルコマンドの両方を座席単位で調停する。ローカル書き込みの成功
// パッチとフィードのエコーは同じ upsert 規則を適用するため、適用順序に
// かかわらず同じ状態へ収束する
type Session struct {
	tripID   string
	vesselID string
	svc      *SeatSyncService
	sub      changefeed.Subscription
	listener SessionListener

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	inv        *inventory.Inventory
	inFlight   map[string]struct{} // 書き込み進行中の座席ID
	recent     map[string]time.Time
	feedStatus changefeed.ConnectionStatus
	loadErr    error

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

func newSession(svc *SeatSyncService, tripID, vesselID string, sub changefeed.Subscription, listener SessionListener) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		tripID:     tripID,
		vesselID:   vesselID,
		svc:        svc,
		sub:        sub,
		listener:   listener,
		ctx:        ctx,
		cancel:     cancel,
		inv:        inventory.New(),
		inFlight:   make(map[string]struct{}),
		recent:     make(map[string]time.Time),
		feedStatus: changefeed.StatusConnecting,
		done:       make(chan struct{}),
	}
}

func (s *Session) TripID() string   { return s.tripID }
func (s *Session) VesselID() string { return s.vesselID }

// Close はセッションを終了し、購読を解除する。冪等
// 進行中のリモート書き込みは中断しない（決着を待たずに戻る）
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.closeErr = s.sub.Close()
		<-s.done
		if m := metrics.Get(); m != nil {
			m.OpenSessions.Dec()
		}
	})
	return s.closeErr
}

// run は変更フィードの消費ループ
func (s *Session) run() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case st := <-s.sub.Status():
			s.mu.Lock()
			changed := s.feedStatus != st
			s.feedStatus = st
			s.mu.Unlock()
			if changed {
				s.notifyChange()
			}
		case ev, ok := <-s.sub.Events():
			if !ok {
				return
			}
			s.handleEvent(ev)
		}
	}
}

// handleEvent は1件の変更イベントを在庫へ調停する
// 予約行のイベントは座席単位の差分適用、ブッキングの変更は複数座席に
// 影響し得るため常に全量リロードする（2つのストリーム間に順序保証は無い）
func (s *Session) handleEvent(ev changefeed.Event) {
	if m := metrics.Get(); m != nil {
		m.FeedEventsTotal.WithLabelValues(string(ev.Type)).Inc()
	}

	switch ev.Type {
	case changefeed.EventReservationUpserted:
		s.mu.Lock()
		if !s.inv.Has(ev.SeatID) {
			s.mu.Unlock()
			logger.Warn("未知の座席へのイベントを無視",
				zap.String("trip_id", s.tripID), zap.String("seat_id", ev.SeatID))
			return
		}
		s.inv.ApplyUpsert(ev.Reservation)
		s.markRecentLocked(ev.SeatID)
		snap := s.inv.Snapshot()
		s.mu.Unlock()
		s.cacheSnapshot(snap)
		s.notifyChange()

	case changefeed.EventReservationDeleted:
		s.mu.Lock()
		if !s.inv.Has(ev.SeatID) {
			s.mu.Unlock()
			return
		}
		s.inv.ApplyRemoval(ev.SeatID)
		s.markRecentLocked(ev.SeatID)
		snap := s.inv.Snapshot()
		s.mu.Unlock()
		s.cacheSnapshot(snap)
		s.notifyChange()

	case changefeed.EventBookingChanged:
		if err := s.reload(s.ctx, reloadReasonBookingChange); err != nil {
			logger.Error("ブッキング変更後のリロードに失敗",
				zap.String("trip_id", s.tripID), zap.Error(err))
		}
		s.notifyChange()
	}
}

// reload は座席と予約を全量再取得して投影を置き換える
// 失敗時は直前の投影を保持し、ロードエラーとして記録する
func (s *Session) reload(ctx context.Context, reason string) error {
	seats, err := s.svc.seatRepo.GetByVesselID(ctx, s.vesselID)
	if err != nil {
		s.setLoadErr(err)
		return fmt.Errorf("座席一覧の取得に失敗: %w", err)
	}
	reservations, err := s.svc.resRepo.GetByTripID(ctx, s.tripID)
	if err != nil {
		s.setLoadErr(err)
		return fmt.Errorf("座席予約の取得に失敗: %w", err)
	}

	s.mu.Lock()
	s.inv.Load(seats, reservations)
	s.loadErr = nil
	snap := s.inv.Snapshot()
	s.mu.Unlock()

	if m := metrics.Get(); m != nil {
		m.InventoryReloadsTotal.WithLabelValues(reason).Inc()
	}
	s.cacheSnapshot(snap)
	return nil
}

// Reload は手動の全量リロード（UIの再試行操作）
func (s *Session) Reload(ctx context.Context) error {
	if s.ctx.Err() != nil {
		return ErrSessionClosed
	}
	err := s.reload(ctx, reloadReasonManual)
	s.notifyChange()
	return err
}

// Resync は安全網ワーカー用の全量リロード
func (s *Session) Resync(ctx context.Context) error {
	if s.ctx.Err() != nil {
		return ErrSessionClosed
	}
	err := s.reload(ctx, reloadReasonResync)
	s.notifyChange()
	return err
}

// Block は座席をブロックする
func (s *Session) Block(ctx context.Context, seatID string) error {
	return s.execute(ctx, ActionBlock, seatID)
}

// Release は座席のブロックを解除する
func (s *Session) Release(ctx context.Context, seatID string) error {
	return s.execute(ctx, ActionRelease, seatID)
}

func (s *Session) execute(ctx context.Context, action Action, seatID string) error {
	err := s.write(ctx, action, seatID)
	s.recordCommand(action, err)
	// 多重コマンドは破棄であって決着ではない
	if !errors.Is(err, ErrSeatBusy) {
		s.notifySettled(CommandResult{TripID: s.tripID, SeatID: seatID, Action: action, Err: err})
	}
	return err
}

// write はコマンドの状態機械を実行する
// 検証 → 進行中マーク → リモート書き込み → 成功時のみ差分適用
func (s *Session) write(ctx context.Context, action Action, seatID string) error {
	if s.ctx.Err() != nil {
		return ErrSessionClosed
	}

	s.mu.Lock()
	if !s.inv.Has(seatID) {
		s.mu.Unlock()
		return seat.ErrSeatNotFound
	}
	// 予約済み座席はブロックできない。リモート呼び出し前に同期的に拒否する
	if action == ActionBlock && s.inv.Status(seatID) == reservation.StatusBooked {
		s.mu.Unlock()
		return reservation.ErrSeatAlreadyBooked
	}
	if _, busy := s.inFlight[seatID]; busy {
		s.mu.Unlock()
		return ErrSeatBusy
	}
	s.inFlight[seatID] = struct{}{}
	existing := s.inv.Reservation(seatID)
	s.mu.Unlock()

	updated, err := s.performWrite(ctx, action, seatID, existing)

	s.mu.Lock()
	delete(s.inFlight, seatID)
	if err != nil {
		// 失敗した書き込みは投影へ反映しない。直前の状態のまま呼び出し元へ返す
		s.mu.Unlock()
		return err
	}
	if updated == nil {
		// 行が無い座席の解除は既に利用可能。何も変わらない
		s.mu.Unlock()
		return nil
	}
	s.inv.ApplyUpsert(updated)
	s.markRecentLocked(seatID)
	snap := s.inv.Snapshot()
	s.mu.Unlock()

	s.cacheSnapshot(snap)
	s.notifyChange()
	return nil
}

// performWrite はリモートストアへの書き込みを1回だけ発行する
// 座席ロックが有効なら、他インスタンスとの同時書き込みをここで弾く
func (s *Session) performWrite(ctx context.Context, action Action, seatID string, existing *reservation.SeatReservation) (*reservation.SeatReservation, error) {
	if s.svc.lockMgr != nil {
		start := time.Now()
		lock, err := s.svc.lockMgr.Acquire(ctx, s.tripID, seatID, s.svc.seatLockTTL)
		s.observeLock("acquire", start, err)
		if err != nil {
			if errors.Is(err, redisinfra.ErrLockNotAcquired) {
				return nil, ErrSeatLockedByOther
			}
			return nil, fmt.Errorf("座席ロック取得に失敗: %w", err)
		}
		defer func() {
			start := time.Now()
			relErr := lock.Release(ctx)
			s.observeLock("release", start, relErr)
			if relErr != nil {
				logger.Warn("座席ロック解放に失敗",
					zap.String("seat_id", seatID), zap.Error(relErr))
			}
		}()
	}

	switch action {
	case ActionBlock:
		if existing != nil {
			if err := s.svc.resRepo.UpdateAvailability(ctx, existing.ID, false); err != nil {
				return nil, err
			}
			updated := existing.Clone()
			updated.IsAvailable = false
			return updated, nil
		}
		r := reservation.NewBlock(s.tripID, seatID)
		if err := s.svc.resRepo.Insert(ctx, r); err != nil {
			return nil, err
		}
		return r, nil

	case ActionRelease:
		if existing == nil {
			return nil, nil
		}
		if err := s.svc.resRepo.UpdateAvailability(ctx, existing.ID, true); err != nil {
			return nil, err
		}
		updated := existing.Clone()
		updated.IsAvailable = true
		return updated, nil
	}
	return nil, nil
}

// SeatMap は導出状態つきの座席一覧を返す
func (s *Session) SeatMap() []SeatView {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	seats := s.inv.Seats()
	out := make([]SeatView, len(seats))
	for i, se := range seats {
		exp, ok := s.recent[se.ID]
		out[i] = SeatView{
			Seat:            se,
			Status:          s.inv.Status(se.ID),
			RecentlyUpdated: ok && exp.After(now),
		}
	}
	return out
}

// Snapshot は現在の集計値を返す
func (s *Session) Snapshot() inventory.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inv.Snapshot()
}

// FeedStatus は変更フィードの接続状態を返す
func (s *Session) FeedStatus() changefeed.ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feedStatus
}

// RecentlyUpdated は「更新直後」ハイライト対象の座席IDを返す
func (s *Session) RecentlyUpdated() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	out := make([]string, 0, len(s.recent))
	for id, exp := range s.recent {
		if exp.After(now) {
			out = append(out, id)
		}
	}
	return out
}

// InFlight は座席への書き込みが進行中かを返す（UIのコントロール無効化用）
func (s *Session) InFlight(seatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inFlight[seatID]
	return ok
}

// LoadError は直近のロード失敗を返す（成功していればnil）
func (s *Session) LoadError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

func (s *Session) setLoadErr(err error) {
	s.mu.Lock()
	s.loadErr = err
	s.mu.Unlock()
}

// markRecentLocked は座席を一定時間ハイライト対象にする。呼び出し元がロックを持つ
// 表示用のフラグであり、排他や正しさには関与しない
func (s *Session) markRecentLocked(seatID string) {
	s.recent[seatID] = time.Now().Add(s.svc.recentWindow)
	time.AfterFunc(s.svc.recentWindow, func() {
		s.mu.Lock()
		exp, ok := s.recent[seatID]
		expired := ok && !time.Now().Before(exp)
		if expired {
			delete(s.recent, seatID)
		}
		s.mu.Unlock()
		if expired {
			s.notifyChange()
		}
	})
}

func (s *Session) cacheSnapshot(snap inventory.Snapshot) {
	if s.svc.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.svc.cache.Set(ctx, s.tripID, snap, snapshotCacheTTL); err != nil {
		logger.Warn("集計キャッシュ保存に失敗",
			zap.String("trip_id", s.tripID), zap.Error(err))
	}
}

func (s *Session) notifyChange() {
	if s.listener.OnChange != nil {
		s.listener.OnChange()
	}
}

func (s *Session) notifySettled(result CommandResult) {
	if s.listener.OnCommandSettled != nil {
		s.listener.OnCommandSettled(result)
	}
}

func (s *Session) recordCommand(action Action, err error) {
	m := metrics.Get()
	if m == nil {
		return
	}
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, reservation.ErrSeatAlreadyBooked), errors.Is(err, seat.ErrSeatNotFound):
		status = "rejected"
	case errors.Is(err, ErrSeatBusy):
		status = "busy"
	case errors.Is(err, ErrSeatLockedByOther):
		status = "lock_failed"
	default:
		status = "error"
	}
	m.SeatCommandsTotal.WithLabelValues(string(action), status).Inc()
}

func (s *Session) observeLock(operation string, start time.Time, err error) {
	m := metrics.Get()
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failed"
	}
	m.SeatLockDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}
