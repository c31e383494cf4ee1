package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/zayan1337/ferry-seat-sync/internal/application"
	"github.com/zayan1337/ferry-seat-sync/internal/domain/inventory"
	"github.com/zayan1337/ferry-seat-sync/internal/domain/reservation"
	"github.com/zayan1337/ferry-seat-sync/internal/domain/seat"
)

// SeatMapHandler は座席マップAPIのハンドラー
type SeatMapHandler struct {
	service SeatMapServiceInterface
}

func NewSeatMapHandler(s SeatMapServiceInterface) *SeatMapHandler {
	return &SeatMapHandler{service: s}
}

type OpenWatchRequest struct {
	VesselID string `json:"vessel_id" validate:"required"`
}

type SeatEntry struct {
	ID              string  `json:"id"`
	RowNumber       int     `json:"row_number"`
	SeatNumber      string  `json:"seat_number"`
	IsWindow        bool    `json:"is_window"`
	IsAisle         bool    `json:"is_aisle"`
	IsRowAisle      bool    `json:"is_row_aisle"`
	IsDisabled      bool    `json:"is_disabled"`
	IsPremium       bool    `json:"is_premium"`
	SeatType        string  `json:"seat_type"`
	PriceMultiplier float64 `json:"price_multiplier"`
	Position        int     `json:"position"`
	Status          string  `json:"status"`
	RecentlyUpdated bool    `json:"recently_updated"`
}

type SeatMapResponse struct {
	TripID          string             `json:"trip_id"`
	VesselID        string             `json:"vessel_id"`
	FeedStatus      string             `json:"feed_status"`
	Snapshot        inventory.Snapshot `json:"snapshot"`
	Seats           []SeatEntry        `json:"seats"`
	RecentlyUpdated []string           `json:"recently_updated"`
	LoadError       string             `json:"load_error,omitempty"`
}

func toSeatEntry(v application.SeatView) SeatEntry {
	return SeatEntry{
		ID:              v.Seat.ID,
		RowNumber:       v.Seat.RowNumber,
		SeatNumber:      v.Seat.SeatNumber,
		IsWindow:        v.Seat.IsWindow,
		IsAisle:         v.Seat.IsAisle,
		IsRowAisle:      v.Seat.IsRowAisle,
		IsDisabled:      v.Seat.IsDisabled,
		IsPremium:       v.Seat.IsPremium,
		SeatType:        v.Seat.SeatType,
		PriceMultiplier: v.Seat.PriceMultiplier,
		Position:        v.Seat.Position,
		Status:          string(v.Status),
		RecentlyUpdated: v.RecentlyUpdated,
	}
}

// OpenWatch はトリップの監視セッションを開く
func (h *SeatMapHandler) OpenWatch(c echo.Context) error {
	tripID := c.Param("trip_id")
	var req OpenWatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストの解析に失敗しました")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := h.service.OpenWatch(c.Request().Context(), tripID, req.VesselID); err != nil {
		return h.toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, map[string]string{"trip_id": tripID, "status": "watching"})
}

// CloseWatch はトリップの監視セッションを終了する
func (h *SeatMapHandler) CloseWatch(c echo.Context) error {
	tripID := c.Param("trip_id")
	if err := h.service.CloseWatch(tripID); err != nil {
		return h.toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetSeatMap は座席マップを返す
func (h *SeatMapHandler) GetSeatMap(c echo.Context) error {
	tripID := c.Param("trip_id")
	view, err := h.service.SeatMap(tripID)
	if err != nil {
		return h.toHTTPError(err)
	}

	resp := SeatMapResponse{
		TripID:          view.TripID,
		VesselID:        view.VesselID,
		FeedStatus:      string(view.FeedStatus),
		Snapshot:        view.Snapshot,
		Seats:           make([]SeatEntry, len(view.Seats)),
		RecentlyUpdated: view.RecentlyUpdated,
	}
	for i, v := range view.Seats {
		resp.Seats[i] = toSeatEntry(v)
	}
	if view.LoadError != nil {
		resp.LoadError = view.LoadError.Error()
	}
	return c.JSON(http.StatusOK, resp)
}

// BlockSeat は座席をブロックする
func (h *SeatMapHandler) BlockSeat(c echo.Context) error {
	tripID := c.Param("trip_id")
	seatID := c.Param("seat_id")
	if err := h.service.Block(c.Request().Context(), tripID, seatID); err != nil {
		return h.toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"seat_id": seatID, "status": "blocked"})
}

// ReleaseSeat は座席のブロックを解除する
func (h *SeatMapHandler) ReleaseSeat(c echo.Context) error {
	tripID := c.Param("trip_id")
	seatID := c.Param("seat_id")
	if err := h.service.Release(c.Request().Context(), tripID, seatID); err != nil {
		return h.toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"seat_id": seatID, "status": "released"})
}

// Reload は手動の全量リロードを行う
func (h *SeatMapHandler) Reload(c echo.Context) error {
	tripID := c.Param("trip_id")
	if err := h.service.Reload(c.Request().Context(), tripID); err != nil {
		return h.toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"trip_id": tripID, "status": "reloaded"})
}

// GetSummary はトリップの集計値を返す
func (h *SeatMapHandler) GetSummary(c echo.Context) error {
	tripID := c.Param("trip_id")
	vesselID := c.QueryParam("vessel_id")
	snap, err := h.service.Summary(c.Request().Context(), tripID, vesselID)
	if err != nil {
		return h.toHTTPError(err)
	}
	return c.JSON(http.StatusOK, snap)
}

// toHTTPError はアプリケーションエラーをHTTPエラーへ変換する
func (h *SeatMapHandler) toHTTPError(err error) error {
	switch {
	case errors.Is(err, application.ErrSessionNotOpen),
		errors.Is(err, seat.ErrSeatNotFound),
		errors.Is(err, application.ErrSummaryUnavailable):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, reservation.ErrSeatAlreadyBooked),
		errors.Is(err, application.ErrSeatBusy),
		errors.Is(err, application.ErrSeatLockedByOther):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, application.ErrSessionClosed):
		return echo.NewHTTPError(http.StatusGone, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
