package application

import (
	"context"
	"fmt"
	"time"

	"github.com/zayan1337/ferry-seat-sync/internal/domain/changefeed"
	"github.com/zayan1337/ferry-seat-sync/internal/domain/inventory"
	"github.com/zayan1337/ferry-seat-sync/internal/domain/reservation"
	"github.com/zayan1337/ferry-seat-sync/internal/domain/seat"
	redisinfra "github.com/zayan1337/ferry-seat-sync/internal/infrastructure/redis"
	"github.com/zayan1337/ferry-seat-sync/internal/pkg/metrics"
)

const (
	defaultRecentWindow = 2 * time.Second
	defaultSeatLockTTL  = 10 * time.Second
	snapshotCacheTTL    = 30 * time.Second
)

// SeatSyncConfig は座席同期サービスの動作設定
type SeatSyncConfig struct {
	RecentWindow time.Duration
	SeatLockTTL  time.Duration
}

// SeatSyncService はトリップごとの座席マップ同期セッションを生成する
// lockMgr と cache は nil 可（無効化される）
type SeatSyncService struct {
	seatRepo     seat.Repository
	resRepo      reservation.Repository
	feed         changefeed.Feed
	lockMgr      *redisinfra.SeatLockManager
	cache        *redisinfra.SnapshotCache
	recentWindow time.Duration
	seatLockTTL  time.Duration
}

func NewSeatSyncService(
	sr seat.Repository,
	rr reservation.Repository,
	feed changefeed.Feed,
	lockMgr *redisinfra.SeatLockManager,
	cache *redisinfra.SnapshotCache,
	cfg SeatSyncConfig,
) *SeatSyncService {
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = defaultRecentWindow
	}
	if cfg.SeatLockTTL <= 0 {
		cfg.SeatLockTTL = defaultSeatLockTTL
	}
	return &SeatSyncService{
		seatRepo:     sr,
		resRepo:      rr,
		feed:         feed,
		lockMgr:      lockMgr,
		cache:        cache,
		recentWindow: cfg.RecentWindow,
		seatLockTTL:  cfg.SeatLockTTL,
	}
}

// OpenSession は (トリップ, 船舶) の同期セッションを開く
// 購読 → 初回ロード → イベント消費開始の順で行うため、ロード中に
// 届いたイベントは購読バッファに溜まり、ロード完了後に適用される
// どの経路で失敗しても、開いた購読は必ず解放される
func (s *SeatSyncService) OpenSession(ctx context.Context, tripID, vesselID string, listener SessionListener) (*Session, error) {
	sub, err := s.feed.Subscribe(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("変更フィードの購読に失敗: %w", err)
	}

	sess := newSession(s, tripID, vesselID, sub, listener)
	if err := sess.reload(ctx, reloadReasonInitial); err != nil {
		sub.Close()
		sess.cancel()
		return nil, err
	}

	go sess.run()
	if m := metrics.Get(); m != nil {
		m.OpenSessions.Inc()
	}
	return sess, nil
}

// Summary はトリップの集計値を返す
// 開いているセッションの生値 → キャッシュ → （vesselID があれば）直接集計
// の順でフォールバックする
func (s *SeatSyncService) Summary(ctx context.Context, tripID, vesselID string) (inventory.Snapshot, error) {
	if s.cache != nil {
		snap, err := s.cache.Get(ctx, tripID)
		if err == nil {
			return snap, nil
		}
	}
	if vesselID == "" {
		return inventory.Snapshot{}, ErrSummaryUnavailable
	}

	seats, err := s.seatRepo.GetByVesselID(ctx, vesselID)
	if err != nil {
		return inventory.Snapshot{}, fmt.Errorf("座席一覧の取得に失敗: %w", err)
	}
	reservations, err := s.resRepo.GetByTripID(ctx, tripID)
	if err != nil {
		return inventory.Snapshot{}, fmt.Errorf("座席予約の取得に失敗: %w", err)
	}

	inv := inventory.New()
	inv.Load(seats, reservations)
	snap := inv.Snapshot()

	if s.cache != nil {
		_ = s.cache.Set(ctx, tripID, snap, snapshotCacheTTL)
	}
	return snap, nil
}
