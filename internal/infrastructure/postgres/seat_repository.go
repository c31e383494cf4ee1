package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/zayan1337/ferry-seat-sync/internal/domain/seat"
)

type seatRow struct {
	ID              string  `db:"id"`
	VesselID        string  `db:"vessel_id"`
	RowNumber       int     `db:"row_number"`
	SeatNumber      string  `db:"seat_number"`
	IsWindow        bool    `db:"is_window"`
	IsAisle         bool    `db:"is_aisle"`
	IsRowAisle      bool    `db:"is_row_aisle"`
	IsDisabled      bool    `db:"is_disabled"`
	IsPremium       bool    `db:"is_premium"`
	SeatType        string  `db:"seat_type"`
	PriceMultiplier float64 `db:"price_multiplier"`
	Position        int     `db:"position"`
}

func (r *seatRow) toEntity() *seat.Seat {
	return &seat.Seat{
		ID: r.ID, VesselID: r.VesselID,
		RowNumber: r.RowNumber, SeatNumber: r.SeatNumber,
		IsWindow: r.IsWindow, IsAisle: r.IsAisle, IsRowAisle: r.IsRowAisle,
		IsDisabled: r.IsDisabled, IsPremium: r.IsPremium,
		SeatType: r.SeatType, PriceMultiplier: r.PriceMultiplier,
		Position:    r.Position,
		IsAvailable: true, // 投影の初期値。実際の値は在庫側が再計算する
	}
}

const seatColumns = `id, vessel_id, row_number, seat_number, is_window, is_aisle, is_row_aisle, is_disabled, is_premium, seat_type, price_multiplier, position`

type SeatRepository struct{ db *sqlx.DB }

func NewSeatRepository(db *sqlx.DB) *SeatRepository { return &SeatRepository{db: db} }

func (r *SeatRepository) GetByID(ctx context.Context, id string) (*seat.Seat, error) {
	query := `SELECT ` + seatColumns + ` FROM seats WHERE id = $1`
	var row seatRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, seat.ErrSeatNotFound
		}
		return nil, fmt.Errorf("座席取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *SeatRepository) GetByVesselID(ctx context.Context, vesselID string) ([]*seat.Seat, error) {
	query := `SELECT ` + seatColumns + ` FROM seats WHERE vessel_id = $1 ORDER BY row_number, seat_number`
	var rows []seatRow
	if err := r.db.SelectContext(ctx, &rows, query, vesselID); err != nil {
		return nil, fmt.Errorf("座席一覧取得に失敗: %w", err)
	}
	seats := make([]*seat.Seat, len(rows))
	for i, row := range rows {
		seats[i] = row.toEntity()
	}
	return seats, nil
}

var _ seat.Repository = (*SeatRepository)(nil)
