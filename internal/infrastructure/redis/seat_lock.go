package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("座席ロックを取得できませんでした")
	ErrLockNotOwned    = errors.New("座席ロックの所有者ではありません")
)

// SeatLock は Redis を使用した座席単位の分散ロック
// リモートストアの行更新に楽観ロックが無いため、複数インスタンスの
// 管理者が同じ座席へ同時に書き込むのをここで防ぐ
type SeatLock struct {
	client *redis.Client
	key    string
	value  string
}

// SeatLockManager は座席ロックを管理する
type SeatLockManager struct {
	client *redis.Client
}

func NewSeatLockManager(client *redis.Client) *SeatLockManager {
	return &SeatLockManager{client: client}
}

// Acquire は (トリップ, 座席) のロックを取得する
// 他の保持者がいる場合は ErrLockNotAcquired を返し、リトライはしない
// （呼び出し側は操作を拒否してユーザーに再試行を促す）
func (m *SeatLockManager) Acquire(ctx context.Context, tripID, seatID string, ttl time.Duration) (*SeatLock, error) {
	lockKey := fmt.Sprintf("lock:trip:%s:seat:%s", tripID, seatID)
	lockValue := uuid.New().String()

	// SetNX を使用してロックを取得（キーが存在しない場合のみ設定）
	ok, err := m.client.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("座席ロック取得に失敗: %w", err)
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	return &SeatLock{client: m.client, key: lockKey, value: lockValue}, nil
}

// Release はロックを解放する（Lua スクリプトで所有者確認と削除をアトミックに実行）
func (l *SeatLock) Release(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	result, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Int()
	if err != nil {
		return fmt.Errorf("座席ロック解放に失敗: %w", err)
	}
	if result == 0 {
		return ErrLockNotOwned
	}
	return nil
}
