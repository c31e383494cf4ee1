package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zayan1337/ferry-seat-sync/internal/domain/inventory"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

// SnapshotCache はトリップごとの在庫集計値のキャッシュを管理する
// 一覧画面がセッションを開かずに座席数を表示するために使う
type SnapshotCache struct {
	client *redis.Client
}

// NewSnapshotCache は新しいSnapshotCacheインスタンスを作成する
func NewSnapshotCache(client *redis.Client) *SnapshotCache {
	return &SnapshotCache{client: client}
}

// Get はトリップの集計値をキャッシュから取得する
func (c *SnapshotCache) Get(ctx context.Context, tripID string) (inventory.Snapshot, error) {
	key := c.snapshotKey(tripID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return inventory.Snapshot{}, ErrCacheMiss
		}
		return inventory.Snapshot{}, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	var snap inventory.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return inventory.Snapshot{}, fmt.Errorf("キャッシュの復元に失敗: %w", err)
	}
	return snap, nil
}

// Set はトリップの集計値をキャッシュに保存する
func (c *SnapshotCache) Set(ctx context.Context, tripID string, snap inventory.Snapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("キャッシュの変換に失敗: %w", err)
	}
	if err := c.client.Set(ctx, c.snapshotKey(tripID), data, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate はトリップのキャッシュを無効化する
func (c *SnapshotCache) Invalidate(ctx context.Context, tripID string) error {
	if err := c.client.Del(ctx, c.snapshotKey(tripID)).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func (c *SnapshotCache) snapshotKey(tripID string) string {
	return fmt.Sprintf("trips:%s:seatmap:summary", tripID)
}
