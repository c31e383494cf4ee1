package handler

import (
	"context"

	"github.com/zayan1337/ferry-seat-sync/internal/application"
	"github.com/zayan1337/ferry-seat-sync/internal/domain/inventory"
)

// SeatMapServiceInterface は座席マップサービスのインターフェース
// application.SessionHub が実装する
type SeatMapServiceInterface interface {
	OpenWatch(ctx context.Context, tripID, vesselID string) error
	CloseWatch(tripID string) error
	SeatMap(tripID string) (*application.SeatMapView, error)
	Block(ctx context.Context, tripID, seatID string) error
	Release(ctx context.Context, tripID, seatID string) error
	Reload(ctx context.Context, tripID string) error
	Summary(ctx context.Context, tripID, vesselID string) (inventory.Snapshot, error)
}
