package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig indicates how many requests are allowed within a given interval.
type RateLimitConfig struct {
	Requests int
	Interval time.Duration
}

// Config aggregates application-wide configuration values.
type Config struct {
	DatabaseURL string
	Port        string

	// Places provider.
	PlacesAPIKey      string
	PlacesBaseURL     string
	MaxProviderCalls  int
	PageDepth         int
	ProviderRateLimit RateLimitConfig

	// Search defaults and bounds.
	DefaultRadius     int
	MaxRadius         int
	DefaultMaxResults int

	// Cache.
	CacheBackend       string
	RedisURL           string
	NearbyCacheTTL     time.Duration
	CacheSweepSchedule string

	// Restaurant staleness window before details should be refetched.
	DetailsRefresh time.Duration

	RateLimitNearby RateLimitConfig
}

// Load reads configuration from environment variables and applies sane defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		Port:               getEnv("PORT", "8080"),
		PlacesAPIKey:       os.Getenv("GOOGLE_PLACES_API_KEY"),
		PlacesBaseURL:      getEnv("GOOGLE_PLACES_BASE_URL", "https://places.googleapis.com/v1"),
		MaxProviderCalls:   parseInt(getEnv("MAX_PROVIDER_REQUESTS", "15"), 15),
		PageDepth:          parseInt(getEnv("PAGE_DEPTH", "1"), 1),
		DefaultRadius:      parseInt(getEnv("DEFAULT_SEARCH_RADIUS", "1500"), 1500),
		MaxRadius:          parseInt(getEnv("MAX_SEARCH_RADIUS", "50000"), 50000),
		DefaultMaxResults:  parseInt(getEnv("DEFAULT_MAX_RESULTS", "300"), 300),
		CacheBackend:       strings.ToLower(getEnv("CACHE_BACKEND", "postgres")),
		RedisURL:           os.Getenv("REDIS_URL"),
		NearbyCacheTTL:     parseDuration(getEnv("NEARBY_CACHE_TTL", "15m"), 15*time.Minute),
		CacheSweepSchedule: getEnv("CACHE_SWEEP_SCHEDULE", "@every 5m"),
		DetailsRefresh:     parseDuration(getEnv("DETAILS_REFRESH", "168h"), 168*time.Hour),
	}

	if cfg.PlacesAPIKey == "" {
		return nil, fmt.Errorf("GOOGLE_PLACES_API_KEY must be set")
	}

	switch cfg.CacheBackend {
	case "postgres", "memory":
	case "redis":
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL must be set when CACHE_BACKEND=redis")
		}
	default:
		return nil, fmt.Errorf("unsupported CACHE_BACKEND value: %q", cfg.CacheBackend)
	}

	if cfg.MaxProviderCalls <= 0 {
		return nil, fmt.Errorf("MAX_PROVIDER_REQUESTS must be positive")
	}
	if cfg.PageDepth <= 0 {
		cfg.PageDepth = 1
	}

	rl, err := parseRateLimit(getEnv("RATE_LIMIT_NEARBY", "60/min"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_NEARBY value: %w", err)
	}
	cfg.RateLimitNearby = rl

	prl, err := parseRateLimit(getEnv("PROVIDER_RATE_LIMIT", "10/s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PROVIDER_RATE_LIMIT value: %w", err)
	}
	cfg.ProviderRateLimit = prl

	return cfg, nil
}

func parseRateLimit(value string) (RateLimitConfig, error) {
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return RateLimitConfig{}, fmt.Errorf("expected format <requests>/<interval>, got %q", value)
	}

	requests, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || requests <= 0 {
		return RateLimitConfig{}, fmt.Errorf("invalid request count: %v", parts[0])
	}

	unit := strings.ToLower(strings.TrimSpace(parts[1]))
	var interval time.Duration
	switch unit {
	case "s", "sec", "second", "seconds":
		interval = time.Second
	case "m", "min", "minute", "minutes":
		interval = time.Minute
	case "h", "hr", "hour", "hours":
		interval = time.Hour
	default:
		return RateLimitConfig{}, fmt.Errorf("unsupported interval unit: %s", unit)
	}

	return RateLimitConfig{Requests: requests, Interval: interval}, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func parseInt(input string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return fallback
	}
	return n
}

func parseDuration(input string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(input)
	if err != nil {
		return fallback
	}
	return d
}
