package seat

import "context"

// Repository は座席リポジトリのインターフェース
type Repository interface {
	// GetByID はIDから座席を取得する
	GetByID(ctx context.Context, id string) (*Seat, error)

	// GetByVesselID は船舶IDから座席一覧を取得する（列番号、座席番号順）
	GetByVesselID(ctx context.Context, vesselID string) ([]*Seat, error)
}
