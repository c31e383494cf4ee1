package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zayan1337/ferry-seat-sync/internal/api"
	"github.com/zayan1337/ferry-seat-sync/internal/api/handler"
	"github.com/zayan1337/ferry-seat-sync/internal/application"
	"github.com/zayan1337/ferry-seat-sync/internal/config"
	"github.com/zayan1337/ferry-seat-sync/internal/domain/changefeed"
	"github.com/zayan1337/ferry-seat-sync/internal/infrastructure/postgres"
	"github.com/zayan1337/ferry-seat-sync/internal/infrastructure/rabbitmq"
	redisinfra "github.com/zayan1337/ferry-seat-sync/internal/infrastructure/redis"
	"github.com/zayan1337/ferry-seat-sync/internal/pkg/logger"
	"github.com/zayan1337/ferry-seat-sync/internal/pkg/metrics"
	"github.com/zayan1337/ferry-seat-sync/internal/worker"
)

func main() {
	// .env ファイルを読み込む（存在しない場合は環境変数をそのまま使う）
	_ = godotenv.Load()

	cfg := config.Load()

	log := logger.NewLogger(os.Getenv("APP_ENV"))
	logger.Set(log)
	defer log.Sync()

	m := metrics.Init()

	// データベース接続
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatal("データベース接続に失敗", zap.Error(err))
	}
	defer db.Close()

	// マイグレーション実行（変更フィード用トリガー含む）
	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		migrationsPath = "migrations"
	}
	if err := postgres.RunMigrations(db.DB, migrationsPath); err != nil {
		log.Fatal("マイグレーションに失敗", zap.Error(err))
	}

	// Redis 接続（任意。失敗時はキャッシュと座席ロックなしで起動する）
	ctx := context.Background()
	var (
		lockMgr *redisinfra.SeatLockManager
		cache   *redisinfra.SnapshotCache
	)
	redisClient, err := redisinfra.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Warn("Redis接続に失敗。キャッシュと座席ロックを無効化", zap.Error(err))
	} else {
		defer redisClient.Close()
		cache = redisinfra.NewSnapshotCache(redisClient)
		if cfg.Sync.UseSeatLock {
			lockMgr = redisinfra.NewSeatLockManager(redisClient)
		}
	}

	// 変更フィードのバックエンド選択
	var feed changefeed.Feed
	switch cfg.Feed.Backend {
	case config.FeedBackendRabbitMQ:
		feed = rabbitmq.NewChangeFeed(&cfg.Feed)
		log.Info("変更フィード: RabbitMQ", zap.String("exchange", cfg.Feed.Exchange))
	default:
		feed = postgres.NewChangeFeed(&cfg.Database, &cfg.Feed)
		log.Info("変更フィード: PostgreSQL LISTEN/NOTIFY")
	}

	// リポジトリとアプリケーションサービス
	seatRepo := postgres.NewSeatRepository(db)
	resRepo := postgres.NewReservationRepository(db)
	svc := application.NewSeatSyncService(seatRepo, resRepo, feed, lockMgr, cache, application.SeatSyncConfig{
		RecentWindow: cfg.Sync.RecentWindow,
		SeatLockTTL:  cfg.Sync.SeatLockTTL,
	})
	hub := application.NewSessionHub(svc)

	// 安全網の再同期ワーカー
	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()
	resyncWorker := worker.NewInventoryResyncWorker(hub, cfg.Sync.ResyncInterval)
	go resyncWorker.Start(workerCtx)

	// HTTPサーバー
	seatMapHandler := handler.NewSeatMapHandler(hub)
	e := api.NewRouter(seatMapHandler, m)
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()
	log.Info("サーバー起動", zap.String("port", cfg.Server.Port))

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("サーバーをシャットダウンしています...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("サーバーシャットダウンエラー", zap.Error(err))
	}

	resyncWorker.Stop()
	hub.CloseAll()

	log.Info("サーバーが正常にシャットダウンしました")
}
