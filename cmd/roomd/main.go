package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"roomcheck-backend/config"
	"roomcheck-backend/internal/agent"
	"roomcheck-backend/internal/api"
	"roomcheck-backend/internal/auth"
	"roomcheck-backend/internal/db"
	"roomcheck-backend/internal/logger"
	"roomcheck-backend/internal/notification"
	"roomcheck-backend/internal/retry"
	"roomcheck-backend/internal/storage"
	"roomcheck-backend/internal/store"
	"roomcheck-backend/internal/workflow"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log)
	defer log.Sync()
	log.Info("Configuration loaded", zap.String("path", configPath))

	gormDB, err := db.Init(&cfg.Database, log.Named("db"))
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)

	blobs, err := storage.NewS3Store(cfg.Storage, storage.WithLogger(log.Named("storage")))
	if err != nil {
		log.Fatal("Failed to initialize blob store", zap.Error(err))
	}

	opts := []workflow.Option{
		workflow.WithComparisonPolicy(workflow.ComparisonPolicy{
			Timeout:     cfg.Agent.ComparisonTimeout,
			MaxAttempts: cfg.Agent.MaxComparisonAttempts,
		}),
	}

	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions, log.Named("push"))
		pool.Start(ctx)
		opts = append(opts, workflow.WithNotifier(pool))
	} else {
		log.Warn("VAPID keys are not configured, push notifications are disabled")
	}

	retrier := retry.New(retry.FromConfig(cfg.Retry), log.Named("retry"))
	svc := workflow.New(appStore, blobs, retrier, log.Named("workflow"), opts...)

	var publisher agent.Publisher
	if cfg.Agent.RedisAddr != "" {
		rdb := agent.NewRedisClient(cfg.Agent)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("Redis is not reachable yet, the relay will keep retrying", zap.Error(err))
		}
		publisher = agent.NewRedisPublisher(rdb, cfg.Agent.Stream, cfg.Agent.StreamMaxLen)
	} else {
		log.Warn("agent.redis_addr is not set, agent events are only logged")
		publisher = agent.NewLogPublisher(log.Named("agent"))
	}

	relay := agent.NewRelay(appStore, publisher, cfg.Agent.RelayInterval, cfg.Agent.RelayBatchSize, log.Named("relay"))
	go relay.Run(ctx)
	watchdog := agent.NewWatchdog(svc, cfg.Agent.WatchdogInterval, log.Named("watchdog"))
	go watchdog.Run(ctx)

	tokens := auth.NewService(cfg.Auth)
	router := api.NewRouter(svc, tokens, webpushOptions, cfg.Server, log.Named("http"))
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server ListenAndServe", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	log.Info("Shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownDeadline)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server Shutdown", zap.Error(err))
	}
	cancel()
	svc.Shutdown()

	log.Info("Server gracefully stopped")
}
