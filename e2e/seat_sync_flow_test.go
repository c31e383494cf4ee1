package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zayan1337/ferry-seat-sync/internal/api/handler"
)

func openWatch(t *testing.T, tripID, vesselID string) {
	t.Helper()
	rec := request(testEcho, http.MethodPost,
		fmt.Sprintf("/api/v1/trips/%s/watch", tripID),
		map[string]string{"vessel_id": vesselID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	t.Cleanup(func() {
		request(testEcho, http.MethodDelete, fmt.Sprintf("/api/v1/trips/%s/watch", tripID), nil)
	})
}

func seatMap(t *testing.T, tripID string) handler.SeatMapResponse {
	t.Helper()
	rec := request(testEcho, http.MethodGet,
		fmt.Sprintf("/api/v1/trips/%s/seat-map", tripID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp handler.SeatMapResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func seatStatus(resp handler.SeatMapResponse, seatID string) string {
	for _, s := range resp.Seats {
		if s.ID == seatID {
			return s.Status
		}
	}
	return ""
}

func TestE2E_HealthCheck(t *testing.T) {
	e := getTestServer(t)

	rec := request(e, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestE2E_BlockReleaseFlow(t *testing.T) {
	e := getTestServer(t)
	tripID := uuid.New().String()
	vesselID := uuid.New().String()
	seatIDs := seedSeats(t, vesselID, 3)

	openWatch(t, tripID, vesselID)

	resp := seatMap(t, tripID)
	require.Len(t, resp.Seats, 3)
	assert.Equal(t, 3, resp.Snapshot.Available)

	// ブロック
	rec := request(e, http.MethodPost,
		fmt.Sprintf("/api/v1/trips/%s/seats/%s/block", tripID, seatIDs[0]), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp = seatMap(t, tripID)
	assert.Equal(t, "blocked", seatStatus(resp, seatIDs[0]))
	assert.Equal(t, 1, resp.Snapshot.Blocked)
	assert.Equal(t, 2, resp.Snapshot.Available)

	// 解除
	rec = request(e, http.MethodPost,
		fmt.Sprintf("/api/v1/trips/%s/seats/%s/release", tripID, seatIDs[0]), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp = seatMap(t, tripID)
	assert.Equal(t, "available", seatStatus(resp, seatIDs[0]))
	assert.Equal(t, 3, resp.Snapshot.Available)
}

func TestE2E_ChangeFeedDeliversRemoteChanges(t *testing.T) {
	getTestServer(t)
	tripID := uuid.New().String()
	vesselID := uuid.New().String()
	seatIDs := seedSeats(t, vesselID, 2)

	openWatch(t, tripID, vesselID)

	// 別インスタンスの書き込みを模して、予約行を直接SQLで投入する
	// LISTEN/NOTIFY 経由で座席マップへ反映されるはず
	_, err := testDB.Exec(`
		INSERT INTO seat_reservations (trip_id, seat_id, is_available, is_reserved)
		VALUES ($1, $2, FALSE, TRUE)`,
		tripID, seatIDs[1])
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return seatStatus(seatMap(t, tripID), seatIDs[1]) == "blocked"
	}, 10*time.Second, 100*time.Millisecond)

	// 行を削除すると利用可能へ戻る
	_, err = testDB.Exec(`DELETE FROM seat_reservations WHERE trip_id = $1 AND seat_id = $2`,
		tripID, seatIDs[1])
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return seatStatus(seatMap(t, tripID), seatIDs[1]) == "available"
	}, 10*time.Second, 100*time.Millisecond)
}

func TestE2E_BookedSeatCannotBeBlocked(t *testing.T) {
	e := getTestServer(t)
	tripID := uuid.New().String()
	vesselID := uuid.New().String()
	seatIDs := seedSeats(t, vesselID, 2)

	// 予約済みの座席を用意する
	var bookingID string
	require.NoError(t, testDB.QueryRow(
		`INSERT INTO bookings (trip_id) VALUES ($1) RETURNING id`, tripID,
	).Scan(&bookingID))
	_, err := testDB.Exec(`
		INSERT INTO seat_reservations (trip_id, seat_id, booking_id, is_available, is_reserved)
		VALUES ($1, $2, $3, FALSE, TRUE)`,
		tripID, seatIDs[0], bookingID)
	require.NoError(t, err)

	openWatch(t, tripID, vesselID)

	resp := seatMap(t, tripID)
	require.Equal(t, "booked", seatStatus(resp, seatIDs[0]))

	// 予約済み座席のブロックは拒否される
	rec := request(e, http.MethodPost,
		fmt.Sprintf("/api/v1/trips/%s/seats/%s/block", tripID, seatIDs[0]), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestE2E_Summary(t *testing.T) {
	e := getTestServer(t)
	tripID := uuid.New().String()
	vesselID := uuid.New().String()
	seedSeats(t, vesselID, 4)

	// セッションなしでも船舶IDがあれば集計できる
	rec := request(e, http.MethodGet,
		fmt.Sprintf("/api/v1/trips/%s/summary?vessel_id=%s", tripID, vesselID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"total":4`)
	assert.Contains(t, rec.Body.String(), `"available":4`)
}

func TestE2E_WatchUnknownTripSeatMapIs404(t *testing.T) {
	e := getTestServer(t)

	rec := request(e, http.MethodGet,
		fmt.Sprintf("/api/v1/trips/%s/seat-map", uuid.New().String()), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
