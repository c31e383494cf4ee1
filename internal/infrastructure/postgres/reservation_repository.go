package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/zayan1337/ferry-seat-sync/internal/domain/reservation"
)

type reservationRow struct {
	ID          string    `db:"id"`
	TripID      string    `db:"trip_id"`
	SeatID      string    `db:"seat_id"`
	BookingID   *string   `db:"booking_id"`
	IsAvailable bool      `db:"is_available"`
	IsReserved  bool      `db:"is_reserved"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r *reservationRow) toEntity() *reservation.SeatReservation {
	return &reservation.SeatReservation{
		ID: r.ID, TripID: r.TripID, SeatID: r.SeatID,
		BookingID: r.BookingID, IsAvailable: r.IsAvailable, IsReserved: r.IsReserved,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

const reservationColumns = `id, trip_id, seat_id, booking_id, is_available, is_reserved, created_at, updated_at`

type ReservationRepository struct{ db *sqlx.DB }

func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

func (r *ReservationRepository) GetByID(ctx context.Context, id string) (*reservation.SeatReservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM seat_reservations WHERE id = $1`
	var row reservationRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservation.ErrReservationNotFound
		}
		return nil, fmt.Errorf("座席予約取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *ReservationRepository) GetByTripID(ctx context.Context, tripID string) ([]*reservation.SeatReservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM seat_reservations WHERE trip_id = $1`
	var rows []reservationRow
	if err := r.db.SelectContext(ctx, &rows, query, tripID); err != nil {
		return nil, fmt.Errorf("座席予約一覧取得に失敗: %w", err)
	}
	out := make([]*reservation.SeatReservation, len(rows))
	for i, row := range rows {
		out[i] = row.toEntity()
	}
	return out, nil
}

func (r *ReservationRepository) Insert(ctx context.Context, res *reservation.SeatReservation) error {
	if err := res.Validate(); err != nil {
		return err
	}
	query := `INSERT INTO seat_reservations (trip_id, seat_id, booking_id, is_available, is_reserved, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		res.TripID, res.SeatID, res.BookingID, res.IsAvailable, res.IsReserved,
	).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return fmt.Errorf("座席予約作成に失敗: %w", err)
	}
	return nil
}

func (r *ReservationRepository) UpdateAvailability(ctx context.Context, id string, isAvailable bool) error {
	query := `UPDATE seat_reservations SET is_available = $1, updated_at = NOW() WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, isAvailable, id)
	if err != nil {
		return fmt.Errorf("座席予約更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return reservation.ErrReservationNotFound
	}
	return nil
}

var _ reservation.Repository = (*ReservationRepository)(nil)
