package reservation

import "context"

// Repository は座席予約リポジトリのインターフェース
type Repository interface {
	// GetByID はIDから予約行を取得する
	GetByID(ctx context.Context, id string) (*SeatReservation, error)

	// GetByTripID はトリップIDから予約行一覧を取得する
	GetByTripID(ctx context.Context, tripID string) ([]*SeatReservation, error)

	// Insert は新しい予約行を作成する（IDは採番されて r に書き戻される）
	Insert(ctx context.Context, r *SeatReservation) error

	// UpdateAvailability は予約行の利用可否フラグを行IDで更新する
	UpdateAvailability(ctx context.Context, id string, isAvailable bool) error
}
