package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port          int
	MaxUploadSize int64

	Environment string
	LogLevel    string

	DatabaseURL string
	RedisURL    string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool
	MinIORegion    string

	QueueName              string
	QueueVisibilityTimeout time.Duration
	QueueWaitTime          time.Duration
	QueueMaxDeliveries     int

	FilterCacheTTL time.Duration

	OIDCJWKSURL  string
	OIDCIssuer   string
	OIDCClientID string

	FFmpegPath   string
	ScratchDir   string
	VideoCRF     int
	ImageQuality int
	JobTimeout   time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	cfg.Port = getEnvInt("PORT", 8080)
	cfg.MaxUploadSize = getEnvInt64("MAX_UPLOAD_SIZE", 100*1024*1024)

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	cfg.MinIOEndpoint = os.Getenv("MINIO_ENDPOINT")
	if cfg.MinIOEndpoint == "" {
		return nil, fmt.Errorf("MINIO_ENDPOINT is required")
	}

	cfg.MinIOAccessKey = os.Getenv("MINIO_ACCESS_KEY")
	if cfg.MinIOAccessKey == "" {
		return nil, fmt.Errorf("MINIO_ACCESS_KEY is required")
	}

	cfg.MinIOSecretKey = os.Getenv("MINIO_SECRET_KEY")
	if cfg.MinIOSecretKey == "" {
		return nil, fmt.Errorf("MINIO_SECRET_KEY is required")
	}

	cfg.MinIOBucket = getEnvString("MINIO_BUCKET", "media")
	cfg.MinIOUseSSL = getEnvBool("MINIO_USE_SSL", false)
	cfg.MinIORegion = getEnvString("MINIO_REGION", "us-east-1")

	cfg.QueueName = getEnvString("QUEUE_NAME", "colorpipe:jobs")
	cfg.QueueVisibilityTimeout, err = getEnvDuration("QUEUE_VISIBILITY_TIMEOUT", "5m")
	if err != nil {
		return nil, fmt.Errorf("invalid QUEUE_VISIBILITY_TIMEOUT: %w", err)
	}
	cfg.QueueWaitTime, err = getEnvDuration("QUEUE_WAIT_TIME", "20s")
	if err != nil {
		return nil, fmt.Errorf("invalid QUEUE_WAIT_TIME: %w", err)
	}
	cfg.QueueMaxDeliveries = getEnvInt("QUEUE_MAX_DELIVERIES", 5)

	cfg.FilterCacheTTL, err = getEnvDuration("FILTER_CACHE_TTL", "1h")
	if err != nil {
		return nil, fmt.Errorf("invalid FILTER_CACHE_TTL: %w", err)
	}

	cfg.OIDCJWKSURL = os.Getenv("OIDC_JWKS_URL")
	cfg.OIDCIssuer = os.Getenv("OIDC_ISSUER")
	cfg.OIDCClientID = os.Getenv("OIDC_CLIENT_ID")

	cfg.FFmpegPath = getEnvString("FFMPEG_PATH", "ffmpeg")
	cfg.ScratchDir = getEnvString("SCRATCH_DIR", os.TempDir())
	cfg.VideoCRF = getEnvInt("VIDEO_CRF", 23)
	cfg.ImageQuality = getEnvInt("IMAGE_QUALITY", 2)
	cfg.JobTimeout, err = getEnvDuration("JOB_TIMEOUT", "10m")
	if err != nil {
		return nil, fmt.Errorf("invalid JOB_TIMEOUT: %w", err)
	}

	cfg.Environment = getEnvString("ENVIRONMENT", "development")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key, defaultValue string) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	return time.ParseDuration(value)
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.MaxUploadSize < 1 {
		return fmt.Errorf("invalid max upload size: %d", c.MaxUploadSize)
	}

	if c.QueueMaxDeliveries < 1 {
		return fmt.Errorf("invalid queue max deliveries: %d", c.QueueMaxDeliveries)
	}

	if c.QueueVisibilityTimeout <= 0 {
		return fmt.Errorf("invalid queue visibility timeout: %s", c.QueueVisibilityTimeout)
	}

	return nil
}
