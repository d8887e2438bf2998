package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"driftq/internal/api"
	"driftq/internal/config"
	"driftq/internal/database"
	"driftq/internal/dispatch"
	"driftq/internal/events"
	"driftq/internal/logging"
	"driftq/internal/metrics"
	"driftq/internal/models"
	"driftq/internal/netstatus"
	"driftq/internal/remote"
	"driftq/internal/repository"
	"driftq/internal/service"
	"driftq/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	db, err := initDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	remoteClient, err := remote.NewClient(cfg.Remote, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize remote client")
		return err
	}

	bus := events.NewEventBus()
	subscribeEngineEvents(bus, logger)

	detector := netstatus.NewDetector(remoteClient, cfg.Sync.ProbeInterval(), bus, logger)
	go detector.Start(ctx)

	redisClient, statusRepo := initStatusRepository(ctx, cfg, logger)
	defer func() { _ = repository.Close(redisClient) }()

	registry := dispatch.NewRegistry()
	remote.RegisterStockHandlers(registry, remoteClient)
	logger.Info().Strs("action_types", registry.Types()).Msg("Handlers registered")

	retryPolicy := worker.RetryPolicy{
		MaxAttempts:   cfg.Sync.MaxAttempts,
		InitialDelay:  time.Duration(cfg.Sync.InitialDelaySeconds) * time.Second,
		MaxDelay:      time.Duration(cfg.Sync.MaxDelaySeconds) * time.Second,
		BackoffFactor: cfg.Sync.BackoffFactor,
	}
	driver := worker.NewSyncDriver(
		db, registry, remoteClient, detector, bus, statusRepo,
		retryPolicy, cfg.Sync.FailurePolicy, cfg.Sync.BatchSize, logger,
	)
	go driver.Start(ctx)

	queueService := service.NewQueueService(db, driver, logger)
	dispatcher := dispatch.NewDispatcher(registry, db, detector, bus, logger)

	if cfg.API.Enabled {
		apiServer := api.NewHTTPServer(cfg.API, queueService, dispatcher, cfg.Exports.Path, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().Err(err).Msg("Control API server error")
			}
		}()
		defer func() {
			_ = apiServer.Shutdown(context.Background())
		}()
	}

	if cfg.Monitoring.PrometheusEnabled {
		go startMetricsServer(cfg.Monitoring.PrometheusPort, logger)
	}

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, logger)
		go backupService.Start(ctx)
	}

	logger.Info().Msg("Sync daemon started")
	<-ctx.Done()
	logger.Info().Msg("Shutdown complete.")
	return nil
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, closer, err
	}
	logger := baseLogger.With().Str("component", "syncd").Logger()

	return cfg, &logger, closer, nil
}

func initDatabase(cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize queue database")
		return nil, err
	}

	// in_flight записи без процесса за ними возвращаем в pending
	rehydrated, err := db.RehydrateInFlight(context.Background())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to rehydrate in-flight actions")
		return nil, err
	}
	if rehydrated > 0 {
		logger.Info().Int64("count", rehydrated).Msg("Rehydrated in-flight actions to pending")
	}

	return db, nil
}

func initStatusRepository(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, *repository.FailoverStatusRepository) {
	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient = repository.NewRedisClient(cfg.Redis)
		if errPing := repository.Ping(ctx, redisClient); errPing != nil {
			logger.Warn().Err(errPing).Msg("Redis unavailable")
		}
	}

	primaryRepo := repository.NewRedisStatusRepository(redisClient, time.Duration(models.DefaultRedisTTL)*time.Second)
	fallbackRepo := repository.NewMemoryStatusRepository(time.Duration(models.DefaultRedisTTL) * time.Second)
	return redisClient, repository.NewFailoverStatusRepository(primaryRepo, fallbackRepo, logger)
}

func subscribeEngineEvents(bus *events.EventBus, logger *zerolog.Logger) {
	bus.Subscribe(events.EventSyncFinished, func(event *events.Event) error {
		logger.Info().RawJSON("result", event.Payload).Msg("Sync finished")
		return nil
	})
	bus.Subscribe(events.EventSyncPaused, func(event *events.Event) error {
		logger.Warn().RawJSON("result", event.Payload).Msg("Sync paused")
		return nil
	})
}

func startMetricsServer(port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info().Str("addr", addr).Msg("Metrics server listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("Metrics server error")
	}
}
