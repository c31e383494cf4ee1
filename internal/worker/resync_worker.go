package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/zayan1337/ferry-seat-sync/internal/pkg/logger"
)

// Resyncer は開いている全セッションを全量リロードするインターフェース
type Resyncer interface {
	ResyncAll(ctx context.Context) (int, error)
}

// InventoryResyncWorker は定期的に在庫を全量リロードするワーカー
// 変更フィードの再接続中に取りこぼしたイベントへの安全網
type InventoryResyncWorker struct {
	resyncer Resyncer
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewInventoryResyncWorker は新しいワーカーを作成
func NewInventoryResyncWorker(r Resyncer, interval time.Duration) *InventoryResyncWorker {
	return &InventoryResyncWorker{
		resyncer: r,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start はワーカーを開始
func (w *InventoryResyncWorker) Start(ctx context.Context) {
	logger.Info("在庫再同期ワーカー開始", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("在庫再同期ワーカー停止（コンテキストキャンセル）")
			return
		case <-w.stopCh:
			logger.Info("在庫再同期ワーカー停止（シグナル受信）")
			return
		case <-ticker.C:
			w.resync(ctx)
		}
	}
}

// Stop はワーカーを停止
func (w *InventoryResyncWorker) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

// resync は開いている全セッションをリロード
func (w *InventoryResyncWorker) resync(ctx context.Context) {
	log := logger.Get()
	log.Debug("在庫再同期開始")

	count, err := w.resyncer.ResyncAll(ctx)
	if err != nil {
		log.Error("在庫再同期に失敗", zap.Int("count", count), zap.Error(err))
		return
	}

	if count > 0 {
		log.Info("在庫を再同期", zap.Int("count", count))
	} else {
		log.Debug("再同期対象のセッションなし")
	}
}
