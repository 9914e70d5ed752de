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

	"github.com/colorpipe/colorpipe/internal/api"
	"github.com/colorpipe/colorpipe/internal/auth"
	"github.com/colorpipe/colorpipe/internal/cache"
	"github.com/colorpipe/colorpipe/internal/config"
	"github.com/colorpipe/colorpipe/internal/filters"
	"github.com/colorpipe/colorpipe/internal/health"
	"github.com/colorpipe/colorpipe/internal/logger"
	"github.com/colorpipe/colorpipe/internal/metadata"
	"github.com/colorpipe/colorpipe/internal/metrics"
	"github.com/colorpipe/colorpipe/internal/pipeline"
	"github.com/colorpipe/colorpipe/internal/queue"
	"github.com/colorpipe/colorpipe/internal/storage"
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
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger.Init(cfg.LogLevel)
	log := logger.Default()

	log.Info("configuration loaded")

	ctx := context.Background()

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
	if err := artifacts.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure bucket: %w", err)
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

	if cfg.OIDCJWKSURL == "" {
		return fmt.Errorf("OIDC_JWKS_URL is required")
	}
	verifier, err := auth.NewJWKSVerifier(ctx, auth.JWKSConfig{
		JWKSURL:  cfg.OIDCJWKSURL,
		Issuer:   cfg.OIDCIssuer,
		ClientID: cfg.OIDCClientID,
	})
	if err != nil {
		return fmt.Errorf("failed to init token verifier: %w", err)
	}
	defer verifier.Close()
	log.Info("token verifier ready")

	filterCache := cache.NewRedisCache(redisClient, "colorpipe")

	checker := health.NewChecker().
		Register("database", store.Ping).
		Register("queue", jobs.HealthCheck).
		Register("storage", artifacts.HealthCheck)

	metrics.SetAppInfo("1.0.0", cfg.Environment, "api")

	apiCfg := &api.Config{
		Media:     store,
		Artifacts: artifacts,
		Producer: pipeline.NewProducer(store, jobs, pipeline.ProducerConfig{
			VideoCRF:     cfg.VideoCRF,
			ImageQuality: cfg.ImageQuality,
		}),
		Filters:       filters.NewService(store, filterCache, artifacts, cfg.FilterCacheTTL),
		Verifier:      verifier,
		Checker:       checker,
		MaxUploadSize: cfg.MaxUploadSize,
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", api.NewRouter(apiCfg))

	handler := metrics.HTTPMetricsMiddleware(api.Recovery(api.RequestID(api.RequestLogger(mux))))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := jobs.Len(context.Background()); err == nil {
					metrics.SetJobsInQueue("ready", n)
				}
				if n, err := jobs.DeadLen(context.Background()); err == nil {
					metrics.SetJobsInQueue("dead", n)
				}
			case <-shutdown:
				return
			}
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Port)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		log.Info("shutdown signal received", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			_ = server.Close()
			return fmt.Errorf("forced shutdown: %w", err)
		}
	}

	log.Info("server stopped gracefully")
	return nil
}
