package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"campus_market/internal/admin"
	"campus_market/internal/auth"
	"campus_market/internal/cleanup"
	"campus_market/internal/config"
	"campus_market/internal/database"
	"campus_market/internal/middleware"
	"campus_market/internal/model"
	"campus_market/internal/notify"
	"campus_market/internal/order"
	"campus_market/internal/queue"
	"campus_market/internal/router"
	"campus_market/internal/shop"
	"campus_market/internal/upload"
	"campus_market/pkg/logger"
	"campus_market/pkg/shutdown"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Service: "campus-market",
		Env:     cfg.AppEnv,
		Level:   cfg.LogLevel,
	})

	if err := run(cfg, log); err != nil {
		log.Error("server exited", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(cfg config.AppConfig, log *slog.Logger) error {
	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	// 1. 数据库
	db, err := database.Open(cfg.DBDriver, cfg.DBDSN, log)
	if err != nil {
		return err
	}
	if err := model.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// 2. Redis：会话吊销、限流、缓存、事件流都依赖它
	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer rdb.Close()
	pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
	err = rdb.Ping(pingCtx).Err()
	pingCancel()
	if err != nil {
		return fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
	}

	// 3. 业务服务
	uploads, err := upload.NewStore(cfg.UploadDir, cfg.UploadMaxBytes)
	if err != nil {
		return err
	}
	notifications := notify.NewService(db)
	orders := order.NewService(db, notifications, log)
	shops := shop.NewService(db, rdb, cfg.ShopCacheTTL, log)
	admins := admin.NewService(db, uploads, shops, log)
	sweeper := cleanup.NewSweeper(db, uploads, cfg.OrderRetention, log).WithLock(rdb)

	g, gctx := errgroup.WithContext(ctx)

	// 4. 订单事件：API -> Redis Stream -> Relay -> Kafka -> Consumer -> 时间线
	if cfg.EventsEnabled {
		orders.WithEvents(queue.NewStreamPublisher(rdb, cfg.OrderEventStream))

		producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, db, log)
		defer consumer.Close()
		relay := queue.NewRelay(rdb, producer, log, cfg.OrderEventStream, cfg.OrderEventGroup, cfg.OrderEventConsumer)

		g.Go(func() error {
			relay.Run(gctx)
			return nil
		})
		g.Go(func() error {
			consumer.Run(gctx)
			return nil
		})
	} else {
		log.Warn("order events disabled, timeline will stay empty")
	}

	g.Go(func() error {
		sweeper.Run(gctx, cfg.CleanupInterval)
		return nil
	})

	// 5. HTTP
	if cfg.AppEnv != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log), middleware.Prometheus())
	router.Setup(r, router.Deps{
		Config:        cfg,
		Log:           log,
		DB:            db,
		RDB:           rdb,
		Tokens:        auth.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL),
		Resolver:      auth.NewResolver(db),
		Logins:        auth.NewAuthenticator(db),
		Registrar:     auth.NewRegistrar(db),
		Orders:        orders,
		Notifications: notifications,
		Shops:         shops,
		Admin:         admins,
		Uploads:       uploads,
		Sweeper:       sweeper,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Info("http server listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}
