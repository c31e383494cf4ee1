package api

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zayan1337/ferry-seat-sync/internal/api/handler"
	custommw "github.com/zayan1337/ferry-seat-sync/internal/api/middleware"
	"github.com/zayan1337/ferry-seat-sync/internal/pkg/metrics"
)

// NewRouter はルーティング済みのEchoインスタンスを作成する
func NewRouter(seatMap *handler.SeatMapHandler, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = NewValidator()
	e.HTTPErrorHandler = CustomHTTPErrorHandler

	custommw.SetupMiddleware(e)
	if m != nil {
		e.Use(custommw.PrometheusMiddleware(m))
	}

	health := handler.NewHealthHandler()
	e.GET("/api/v1/health", health.Check)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), custommw.MetricsBasicAuth())

	trips := e.Group("/api/v1/trips/:trip_id")
	trips.POST("/watch", seatMap.OpenWatch)
	trips.DELETE("/watch", seatMap.CloseWatch)
	trips.GET("/seat-map", seatMap.GetSeatMap)
	trips.POST("/seats/:seat_id/block", seatMap.BlockSeat)
	trips.POST("/seats/:seat_id/release", seatMap.ReleaseSeat)
	trips.POST("/reload", seatMap.Reload)
	trips.GET("/summary", seatMap.GetSummary)

	return e
}
