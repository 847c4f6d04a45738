package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"heartguard-alerts/internal/config"
	"heartguard-alerts/internal/database"
	"heartguard-alerts/internal/feedback"
	httpapi "heartguard-alerts/internal/http"
	"heartguard-alerts/internal/ingest"
	"heartguard-alerts/internal/logger"
	"heartguard-alerts/internal/notify"
	"heartguard-alerts/internal/repository"
	"heartguard-alerts/internal/service"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "heartguard-alerts")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	loc, err := cfg.IngestLocation()
	if err != nil {
		log.Fatal("Invalid ingest timezone", zap.Error(err))
	}
	normalizer := ingest.NewNormalizer(log, ingest.WithLocation(loc))

	if len(cfg.Auth.Tokens) == 0 {
		log.Warn("No AUTH_TOKENS configured, every API call will be rejected")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 数据库可选：连接失败时回退到内存 repo（便于联调）
	var (
		db         *sql.DB
		alertsRepo repository.AlertsRepository
		labelsRepo repository.GroundTruthRepository
	)
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(ctx, &cfg.Database); err != nil {
			log.Warn("DB enabled but connection failed, falling back to memory", zap.Error(err))
		} else if err := repository.EnsureSchema(ctx, d); err != nil {
			log.Warn("DB schema bootstrap failed, falling back to memory", zap.Error(err))
			_ = d.Close()
		} else {
			db = d
			log.Info("DB enabled for heartguard-alerts")
		}
	}
	if db != nil {
		alertsRepo = repository.NewPostgresAlertsRepository(db, log)
		labelsRepo = repository.NewPostgresGroundTruthRepository(db, log)
	} else {
		alertsRepo = repository.NewMemoryAlertsRepo()
		labelsRepo = repository.NewMemoryGroundTruthRepo()
	}

	var (
		redisClient *redis.Client
		fb          feedback.Publisher = feedback.Nop{}
	)
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Warn("Redis ping failed, ground truth feedback will retry per publish", zap.Error(err))
		}
		pingCancel()
		fb = feedback.NewStreamPublisher(redisClient, cfg.Redis.Stream, log)
	}

	var (
		mqttPub  *notify.MQTTPublisher
		notifier notify.Publisher = notify.Nop{}
	)
	if cfg.MQTT.Enabled {
		if p, err := notify.NewMQTTPublisher(cfg.MQTT, log); err != nil {
			log.Warn("MQTT connect failed, alert transitions will not be published", zap.Error(err))
		} else {
			mqttPub = p
			notifier = p
		}
	}

	alertSvc := service.NewAlertService(alertsRepo, labelsRepo, notifier, fb, log)
	groundTruthSvc := service.NewGroundTruthService(labelsRepo, fb, log)
	accuracySvc := service.NewAccuracyService(alertsRepo, labelsRepo, log)

	router := httpapi.NewRouter(httpapi.NewAuthenticator(cfg.Auth.Tokens, log), log)
	router.RegisterAlertRoutes(httpapi.NewAlertHandler(alertSvc, normalizer, cfg.HTTP.MaxBodyBytes, log))
	router.RegisterGroundTruthRoutes(httpapi.NewGroundTruthHandler(groundTruthSvc, accuracySvc, cfg.HTTP.MaxBodyBytes, log))
	router.RegisterCatalogRoutes()

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		cancel()
	case err := <-errCh:
		log.Error("HTTP server stopped", zap.Error(err))
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if mqttPub != nil {
		mqttPub.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if db != nil {
		_ = db.Close()
	}
}
