package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 変更フィードから受信したイベントの総数（type）
	FeedEventsTotal *prometheus.CounterVec

	// 在庫の全量リロード回数（reason: initial, booking_change, manual, resync）
	InventoryReloadsTotal *prometheus.CounterVec

	// ブロック/解除コマンドの総数（action, status: success, rejected, busy, lock_failed, error）
	SeatCommandsTotal *prometheus.CounterVec

	// 座席ロックの操作時間（operation: acquire/release, status: success/failed）
	SeatLockDuration *prometheus.HistogramVec

	// 開いているトリップセッション数
	OpenSessions prometheus.Gauge
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		FeedEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feed_events_total",
				Help: "Total number of change feed events received",
			},
			[]string{"type"},
		),
		InventoryReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_reloads_total",
				Help: "Total number of full inventory reloads",
			},
			[]string{"reason"},
		),
		SeatCommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seat_commands_total",
				Help: "Total number of seat block/release commands",
			},
			[]string{"action", "status"},
		),
		SeatLockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "seat_lock_duration_seconds",
				Help:    "Time spent on per-seat distributed lock operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
		OpenSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "open_trip_sessions",
				Help: "Current number of open trip seat map sessions",
			},
		),
	}

	// レジストリに登録
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.FeedEventsTotal,
		m.InventoryReloadsTotal,
		m.SeatCommandsTotal,
		m.SeatLockDuration,
		m.OpenSessions,
	)

	return m
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す（未初期化ならnil）
func Get() *Metrics {
	return defaultMetrics
}
