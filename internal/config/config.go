package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jmgilman/go/errors"

	"github.com/muandane/special-stack/invoicer/internal/cache"
)

const (
	BackendMemory = "memory"
	BackendS3     = "s3"
)

type Config struct {
	Server  ServerConfig
	Cache   cache.Config
	Storage StorageConfig
	Render  RenderConfig
}

type ServerConfig struct {
	Port                string
	LogLevel            slog.Level
	RateLimitRPS        float64
	RateLimitBurst      int
	PrefetchConcurrency int
}

type StorageConfig struct {
	Backend         string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
}

type RenderConfig struct {
	Endpoint string
	Rate     float64
	Burst    int
	Timeout  time.Duration
}

// Load reads the service configuration from the environment.
func Load() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		Server: ServerConfig{
			Port:                getEnv("PORT", "8080"),
			LogLevel:            p.level("LOG_LEVEL", "info"),
			RateLimitRPS:        p.float("RATE_LIMIT_RPS", 50),
			RateLimitBurst:      p.int("RATE_LIMIT_BURST", 100),
			PrefetchConcurrency: p.int("PREFETCH_CONCURRENCY", 4),
		},
		Cache: cache.Config{
			MaxTotalSizeBytes:      p.int64("CACHE_MAX_BYTES", cache.DefaultMaxTotalSizeBytes),
			MaxEntryCount:          p.int("CACHE_MAX_ENTRIES", cache.DefaultMaxEntryCount),
			MinEvictionBatch:       p.int("CACHE_MIN_EVICTION_BATCH", cache.DefaultMinEvictionBatch),
			EvictionTargetFraction: p.float("CACHE_EVICTION_FRACTION", cache.DefaultEvictionTargetFraction),
		},
		Storage: GetStorageConfig(),
		Render: RenderConfig{
			Endpoint: getEnv("RENDER_ENDPOINT", "http://localhost:3000"),
			Rate:     p.float("RENDER_RATE", 5),
			Burst:    p.int("RENDER_BURST", 5),
			Timeout:  p.duration("RENDER_TIMEOUT", 30*time.Second),
		},
	}
	if p.err != nil {
		return nil, p.err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Backend:         strings.ToLower(getEnv("STORAGE_BACKEND", BackendMemory)),
		Endpoint:        getEnv("S3_ENDPOINT", "localhost:9000"),
		AccessKeyID:     getEnv("S3_ACCESS_KEY", "minioadmin"),
		SecretAccessKey: getEnv("S3_SECRET_KEY", "minioadmin"),
		Bucket:          getEnv("S3_BUCKET", "invoices"),
		UseSSL:          getEnv("S3_USE_SSL", "false") == "true",
	}
}

// Validate rejects limits the service cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendS3:
	default:
		return errors.WithContext(
			errors.Newf(errors.CodeInvalidConfig, "unknown storage backend %q", c.Storage.Backend),
			"env", "STORAGE_BACKEND",
		)
	}

	if c.Cache.MaxTotalSizeBytes <= 0 {
		return errors.New(errors.CodeInvalidConfig, "CACHE_MAX_BYTES must be positive")
	}
	if c.Cache.MaxEntryCount <= 0 {
		return errors.New(errors.CodeInvalidConfig, "CACHE_MAX_ENTRIES must be positive")
	}
	if c.Cache.MinEvictionBatch <= 0 {
		return errors.New(errors.CodeInvalidConfig, "CACHE_MIN_EVICTION_BATCH must be positive")
	}
	if c.Cache.EvictionTargetFraction < 0 || c.Cache.EvictionTargetFraction > 1 {
		return errors.New(errors.CodeInvalidConfig, "CACHE_EVICTION_FRACTION must be between 0 and 1")
	}
	if c.Server.PrefetchConcurrency <= 0 {
		return errors.New(errors.CodeInvalidConfig, "PREFETCH_CONCURRENCY must be positive")
	}
	if c.Render.Rate <= 0 || c.Render.Burst <= 0 {
		return errors.New(errors.CodeInvalidConfig, "RENDER_RATE and RENDER_BURST must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parser keeps the first conversion error so Load can report it once.
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err != nil {
		return
	}
	p.err = errors.WithContext(
		errors.Wrapf(err, errors.CodeInvalidConfig, "invalid value %q for %s", value, key),
		"env", key,
	)
}

func (p *parser) int(key string, defaultValue int) int {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return n
}

func (p *parser) int64(key string, defaultValue int64) int64 {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return n
}

func (p *parser) float(key string, defaultValue float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return f
}

func (p *parser) duration(key string, defaultValue time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return d
}

func (p *parser) level(key, defaultValue string) slog.Level {
	value := getEnv(key, defaultValue)
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		p.fail(key, value, err)
		return slog.LevelInfo
	}
	return level
}
