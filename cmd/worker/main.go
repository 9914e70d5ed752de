package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/colorpipe/colorpipe/internal/config"
	"github.com/colorpipe/colorpipe/internal/health"
	"github.com/colorpipe/colorpipe/internal/logger"
	"github.com/colorpipe/colorpipe/internal/metadata"
	"github.com/colorpipe/colorpipe/internal/metrics"
	"github.com/colorpipe/colorpipe/internal/pipeline"
	"github.com/colorpipe/colorpipe/internal/queue"
	"github.com/colorpipe/colorpipe/internal/storage"
	"github.com/colorpipe/colorpipe/internal/transform"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(cfg.LogLevel)
	log := logger.Default()

	log.Info("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = logger.WithLogger(ctx, log)

	log.Info("connecting to database")
	store, err := metadata.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database connected")

	log.Info("connecting to object storage")
	artifacts, err := storage.NewMinIOStorage(&storage.Config{
		Endpoint:  cfg.MinIOEndpoint,
		AccessKey: cfg.MinIOAccessKey,
		SecretKey: cfg.MinIOSecretKey,
		Bucket:    cfg.MinIOBucket,
		UseSSL:    cfg.MinIOUseSSL,
		Region:    cfg.MinIORegion,
	})
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	log.Info("object storage connected")

	log.Info("connecting to redis")
	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpt)
	defer func() { _ = redisClient.Close() }()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Info("redis connected")

	jobs := queue.NewRedisQueue(redisClient, queue.Options{
		Name:              cfg.QueueName,
		VisibilityTimeout: cfg.QueueVisibilityTimeout,
		MaxDeliveries:     cfg.QueueMaxDeliveries,
	})

	transformer, err := transform.NewFFmpeg(cfg.FFmpegPath)
	if err != nil {
		return fmt.Errorf("failed to init transformer: %w", err)
	}
	log.Info("transformer ready", "ffmpeg", cfg.FFmpegPath)

	metrics.SetAppInfo("1.0.0", cfg.Environment, "worker")

	checker := health.NewChecker().
		Register("database", store.Ping).
		Register("queue", jobs.HealthCheck).
		Register("storage", artifacts.HealthCheck)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /health/live", health.LivenessHandler())
	mux.HandleFunc("GET /health/ready", health.ReadinessHandler(checker))

	healthServer := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("health server starting", "port", cfg.Port)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("health server failed", "error", err)
		}
	}()

	worker := pipeline.NewWorker(jobs, store, artifacts, transformer, pipeline.WorkerConfig{
		WaitTime:   cfg.QueueWaitTime,
		JobTimeout: cfg.JobTimeout,
		ScratchDir: cfg.ScratchDir,
	})

	log.Info("worker starting", "queue", cfg.QueueName)
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		return fmt.Errorf("worker stopped: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = healthServer.Shutdown(shutdownCtx)

	log.Info("worker stopped gracefully")
	return nil
}
