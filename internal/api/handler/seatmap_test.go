package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zayan1337/ferry-seat-sync/internal/application"
	"github.com/zayan1337/ferry-seat-sync/internal/domain/changefeed"
	"github.com/zayan1337/ferry-seat-sync/internal/domain/inventory"
	"github.com/zayan1337/ferry-seat-sync/internal/domain/reservation"
	"github.com/zayan1337/ferry-seat-sync/internal/domain/seat"
)

// MockSeatMapService はSeatMapServiceInterfaceのモック
type MockSeatMapService struct {
	mock.Mock
}

func (m *MockSeatMapService) OpenWatch(ctx context.Context, tripID, vesselID string) error {
	args := m.Called(ctx, tripID, vesselID)
	return args.Error(0)
}

func (m *MockSeatMapService) CloseWatch(tripID string) error {
	args := m.Called(tripID)
	return args.Error(0)
}

func (m *MockSeatMapService) SeatMap(tripID string) (*application.SeatMapView, error) {
	args := m.Called(tripID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.SeatMapView), args.Error(1)
}

func (m *MockSeatMapService) Block(ctx context.Context, tripID, seatID string) error {
	args := m.Called(ctx, tripID, seatID)
	return args.Error(0)
}

func (m *MockSeatMapService) Release(ctx context.Context, tripID, seatID string) error {
	args := m.Called(ctx, tripID, seatID)
	return args.Error(0)
}

func (m *MockSeatMapService) Reload(ctx context.Context, tripID string) error {
	args := m.Called(ctx, tripID)
	return args.Error(0)
}

func (m *MockSeatMapService) Summary(ctx context.Context, tripID, vesselID string) (inventory.Snapshot, error) {
	args := m.Called(ctx, tripID, vesselID)
	return args.Get(0).(inventory.Snapshot), args.Error(1)
}

type testValidator struct{}

func (v *testValidator) Validate(i interface{}) error {
	req, ok := i.(*OpenWatchRequest)
	if ok && req.VesselID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "vessel_idは必須です")
	}
	return nil
}

func newTestContext(e *echo.Echo, method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestSeatMapHandler_OpenWatch(t *testing.T) {
	e := echo.New()
	e.Validator = &testValidator{}

	t.Run("監視を開始できる", func(t *testing.T) {
		mockService := new(MockSeatMapService)
		mockService.On("OpenWatch", mock.Anything, "trip-1", "vessel-1").Return(nil)
		handler := NewSeatMapHandler(mockService)

		c, rec := newTestContext(e, http.MethodPost, "/trips/trip-1/watch", `{"vessel_id":"vessel-1"}`)
		c.SetParamNames("trip_id")
		c.SetParamValues("trip-1")

		require.NoError(t, handler.OpenWatch(c))
		assert.Equal(t, http.StatusCreated, rec.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("船舶ID未指定はバリデーションエラー", func(t *testing.T) {
		mockService := new(MockSeatMapService)
		handler := NewSeatMapHandler(mockService)

		c, _ := newTestContext(e, http.MethodPost, "/trips/trip-1/watch", `{}`)
		c.SetParamNames("trip_id")
		c.SetParamValues("trip-1")

		err := handler.OpenWatch(c)
		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, he.Code)
		mockService.AssertNotCalled(t, "OpenWatch", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestSeatMapHandler_GetSeatMap(t *testing.T) {
	e := echo.New()

	t.Run("座席マップを取得できる", func(t *testing.T) {
		mockService := new(MockSeatMapService)
		view := &application.SeatMapView{
			TripID:     "trip-1",
			VesselID:   "vessel-1",
			FeedStatus: changefeed.StatusConnected,
			Snapshot:   inventory.Snapshot{Total: 2, Available: 1, Booked: 1},
			Seats: []application.SeatView{
				{
					Seat:   &seat.Seat{ID: "s1", RowNumber: 1, SeatNumber: "1A"},
					Status: reservation.StatusBooked,
				},
				{
					Seat:            &seat.Seat{ID: "s2", RowNumber: 1, SeatNumber: "1B", IsAvailable: true},
					Status:          reservation.StatusAvailable,
					RecentlyUpdated: true,
				},
			},
			RecentlyUpdated: []string{"s2"},
		}
		mockService.On("SeatMap", "trip-1").Return(view, nil)
		handler := NewSeatMapHandler(mockService)

		c, rec := newTestContext(e, http.MethodGet, "/trips/trip-1/seat-map", "")
		c.SetParamNames("trip_id")
		c.SetParamValues("trip-1")

		require.NoError(t, handler.GetSeatMap(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp SeatMapResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "trip-1", resp.TripID)
		assert.Equal(t, "connected", resp.FeedStatus)
		require.Len(t, resp.Seats, 2)
		assert.Equal(t, "booked", resp.Seats[0].Status)
		assert.True(t, resp.Seats[1].RecentlyUpdated)
		assert.Equal(t, []string{"s2"}, resp.RecentlyUpdated)
	})

	t.Run("セッション未オープンは404", func(t *testing.T) {
		mockService := new(MockSeatMapService)
		mockService.On("SeatMap", "trip-9").Return(nil, application.ErrSessionNotOpen)
		handler := NewSeatMapHandler(mockService)

		c, _ := newTestContext(e, http.MethodGet, "/trips/trip-9/seat-map", "")
		c.SetParamNames("trip_id")
		c.SetParamValues("trip-9")

		err := handler.GetSeatMap(c)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusNotFound, he.Code)
	})
}

func TestSeatMapHandler_BlockSeat(t *testing.T) {
	e := echo.New()

	tests := []struct {
		name         string
		serviceErr   error
		expectedCode int
	}{
		{"ブロック成功", nil, http.StatusOK},
		{"予約済み座席は409", reservation.ErrSeatAlreadyBooked, http.StatusConflict},
		{"書き込み進行中は409", application.ErrSeatBusy, http.StatusConflict},
		{"他管理者のロック中は409", application.ErrSeatLockedByOther, http.StatusConflict},
		{"未知の座席は404", seat.ErrSeatNotFound, http.StatusNotFound},
		{"セッション未オープンは404", application.ErrSessionNotOpen, http.StatusNotFound},
		{"想定外のエラーは500", errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockSeatMapService)
			mockService.On("Block", mock.Anything, "trip-1", "s1").Return(tt.serviceErr)
			handler := NewSeatMapHandler(mockService)

			c, rec := newTestContext(e, http.MethodPost, "/trips/trip-1/seats/s1/block", "")
			c.SetParamNames("trip_id", "seat_id")
			c.SetParamValues("trip-1", "s1")

			err := handler.BlockSeat(c)
			if tt.serviceErr == nil {
				require.NoError(t, err)
				assert.Equal(t, http.StatusOK, rec.Code)
				return
			}
			he, ok := err.(*echo.HTTPError)
			require.True(t, ok)
			assert.Equal(t, tt.expectedCode, he.Code)
		})
	}
}

func TestSeatMapHandler_ReleaseSeat(t *testing.T) {
	e := echo.New()
	mockService := new(MockSeatMapService)
	mockService.On("Release", mock.Anything, "trip-1", "s1").Return(nil)
	handler := NewSeatMapHandler(mockService)

	c, rec := newTestContext(e, http.MethodPost, "/trips/trip-1/seats/s1/release", "")
	c.SetParamNames("trip_id", "seat_id")
	c.SetParamValues("trip-1", "s1")

	require.NoError(t, handler.ReleaseSeat(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	mockService.AssertExpectations(t)
}

func TestSeatMapHandler_Reload(t *testing.T) {
	e := echo.New()
	mockService := new(MockSeatMapService)
	mockService.On("Reload", mock.Anything, "trip-1").Return(nil)
	handler := NewSeatMapHandler(mockService)

	c, rec := newTestContext(e, http.MethodPost, "/trips/trip-1/reload", "")
	c.SetParamNames("trip_id")
	c.SetParamValues("trip-1")

	require.NoError(t, handler.Reload(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	mockService.AssertExpectations(t)
}

func TestSeatMapHandler_CloseWatch(t *testing.T) {
	e := echo.New()

	t.Run("監視を終了できる", func(t *testing.T) {
		mockService := new(MockSeatMapService)
		mockService.On("CloseWatch", "trip-1").Return(nil)
		handler := NewSeatMapHandler(mockService)

		c, rec := newTestContext(e, http.MethodDelete, "/trips/trip-1/watch", "")
		c.SetParamNames("trip_id")
		c.SetParamValues("trip-1")

		require.NoError(t, handler.CloseWatch(c))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("未オープンの終了は404", func(t *testing.T) {
		mockService := new(MockSeatMapService)
		mockService.On("CloseWatch", "trip-9").Return(application.ErrSessionNotOpen)
		handler := NewSeatMapHandler(mockService)

		c, _ := newTestContext(e, http.MethodDelete, "/trips/trip-9/watch", "")
		c.SetParamNames("trip_id")
		c.SetParamValues("trip-9")

		err := handler.CloseWatch(c)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusNotFound, he.Code)
	})
}

func TestSeatMapHandler_GetSummary(t *testing.T) {
	e := echo.New()

	t.Run("集計値を取得できる", func(t *testing.T) {
		mockService := new(MockSeatMapService)
		mockService.On("Summary", mock.Anything, "trip-1", "vessel-1").
			Return(inventory.Snapshot{Total: 10, Available: 7, Booked: 2, Blocked: 1}, nil)
		handler := NewSeatMapHandler(mockService)

		c, rec := newTestContext(e, http.MethodGet, "/trips/trip-1/summary?vessel_id=vessel-1", "")
		c.SetParamNames("trip_id")
		c.SetParamValues("trip-1")

		require.NoError(t, handler.GetSummary(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var snap inventory.Snapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
		assert.Equal(t, 10, snap.Total)
		assert.Equal(t, 7, snap.Available)
	})

	t.Run("集計不能は404", func(t *testing.T) {
		mockService := new(MockSeatMapService)
		mockService.On("Summary", mock.Anything, "trip-1", "").
			Return(inventory.Snapshot{}, application.ErrSummaryUnavailable)
		handler := NewSeatMapHandler(mockService)

		c, _ := newTestContext(e, http.MethodGet, "/trips/trip-1/summary", "")
		c.SetParamNames("trip_id")
		c.SetParamValues("trip-1")

		err := handler.GetSummary(c)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusNotFound, he.Code)
	})
}
