// Package config loads application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime settings. It is loaded once from environment
// variables at startup and treated as immutable afterwards.
type Config struct {
	// Database
	DatabaseURL string

	// Redis (run lease + public view cache)
	RedisURL string

	// Feed catalog
	CatalogPath string

	// Fetch
	FetchTimeout       time.Duration
	FetchMaxSize       int64
	FetchMaxConcurrent int

	// Schedules (cron expressions)
	AggregateSchedule string
	EnrichSchedule    string

	// Enrichment
	EnrichAPIURL       string
	EnrichAPIKey       string
	ImageAPIURL        string
	ImageAPIKey        string
	EnrichTimeout      time.Duration
	EnrichBatchSize    int
	EnrichItemInterval time.Duration

	// Trigger surface
	SchedulerToken string
	ServerPort     string

	// Public view cache
	ViewCacheTTL time.Duration
}

// Load reads Config from environment variables.
// Missing required variables are reported together in one error.
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" {
		missing = append(missing, "REDIS_URL")
	}

	cfg.SchedulerToken = os.Getenv("SCHEDULER_TOKEN")
	if cfg.SchedulerToken == "" {
		missing = append(missing, "SCHEDULER_TOKEN")
	}

	cfg.EnrichAPIURL = os.Getenv("ENRICH_API_URL")
	if cfg.EnrichAPIURL == "" {
		missing = append(missing, "ENRICH_API_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.EnrichAPIKey = os.Getenv("ENRICH_API_KEY")
	cfg.ImageAPIURL = getEnvString("IMAGE_API_URL", "")
	cfg.ImageAPIKey = os.Getenv("IMAGE_API_KEY")
	cfg.CatalogPath = getEnvString("CATALOG_PATH", "feeds.yaml")
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 20*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.FetchMaxConcurrent = getEnvInt("FETCH_MAX_CONCURRENT", 4)
	cfg.AggregateSchedule = getEnvString("AGGREGATE_SCHEDULE", "*/10 * * * *")
	cfg.EnrichSchedule = getEnvString("ENRICH_SCHEDULE", "*/30 * * * *")
	cfg.EnrichTimeout = getEnvDuration("ENRICH_TIMEOUT", 60*time.Second)
	cfg.EnrichBatchSize = getEnvInt("ENRICH_BATCH_SIZE", 10)
	cfg.EnrichItemInterval = getEnvDuration("ENRICH_ITEM_INTERVAL", 5*time.Second)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.ViewCacheTTL = getEnvDuration("VIEW_CACHE_TTL", 2*time.Minute)

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
