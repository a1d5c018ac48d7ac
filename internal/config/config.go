// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	MaxRequestBodyBytes int64
	ShutdownTimeout     time.Duration // 0 waits for in-flight requests indefinitely

	// Per-client limit on POST endpoints. RateLimitRPS 0 disables it.
	RateLimitRPS   float64
	RateLimitBurst int

	// Run storage: a postgres:// URL, or a SQLite file path.
	DatabaseURL string

	// Result cache. Empty RedisURL keeps the cache in process.
	RedisURL string
	CacheTTL time.Duration

	// Simulation settings.
	MassBalanceRelTol float64
	DatasetPath       string // Optional series registered at startup.
	DatasetFormat     string // "table" or "dnrm".
	DatasetName       string

	// OTEL settings.
	OTELEndpoint string
	ServiceName  string
	OTELInsecure bool

	LogLevel string
}

// Load reads configuration from environment variables with defaults. Every
// malformed variable is reported, not just the first.
func Load() (Config, error) {
	var errs []error
	str := func(key, def string) string { return envStr(key, def) }
	integer := func(key string, def int) int {
		v, err := envInt(key, def)
		errs = append(errs, err)
		return v
	}
	dur := func(key string, def time.Duration) time.Duration {
		v, err := envDuration(key, def)
		errs = append(errs, err)
		return v
	}

	cfg := Config{
		Port:                integer("HARVEST_PORT", 8080),
		ReadTimeout:         dur("HARVEST_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:        dur("HARVEST_WRITE_TIMEOUT", 60*time.Second),
		MaxRequestBodyBytes: int64(integer("HARVEST_MAX_REQUEST_BODY_BYTES", 32*1024*1024)),
		ShutdownTimeout:     dur("HARVEST_SHUTDOWN_TIMEOUT", 30*time.Second),
		DatabaseURL:         str("DATABASE_URL", "harvest.db"),
		RedisURL:            str("REDIS_URL", ""),
		CacheTTL:            dur("HARVEST_CACHE_TTL", time.Hour),
		DatasetPath:         str("HARVEST_DATASET_PATH", ""),
		DatasetFormat:       str("HARVEST_DATASET_FORMAT", "table"),
		DatasetName:         str("HARVEST_DATASET_NAME", "default"),
		OTELEndpoint:        str("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:         str("OTEL_SERVICE_NAME", "harvestd"),
		LogLevel:            strings.ToLower(str("HARVEST_LOG_LEVEL", "info")),
	}
	var err error
	cfg.MassBalanceRelTol, err = envFloat("HARVEST_MASS_BALANCE_REL_TOL", 1e-6)
	errs = append(errs, err)
	cfg.OTELInsecure, err = envBool("HARVEST_OTEL_INSECURE", false)
	errs = append(errs, err)
	cfg.RateLimitRPS, err = envFloat("HARVEST_RATE_LIMIT_RPS", 5)
	errs = append(errs, err)
	cfg.RateLimitBurst = integer("HARVEST_RATE_LIMIT_BURST", 20)

	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: HARVEST_PORT must be in 1-65535 (got %d)", c.Port)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: DATABASE_URL is required")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: HARVEST_MAX_REQUEST_BODY_BYTES must be positive")
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("config: HARVEST_SHUTDOWN_TIMEOUT must not be negative")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("config: HARVEST_CACHE_TTL must not be negative")
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("config: HARVEST_RATE_LIMIT_RPS must not be negative")
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		return fmt.Errorf("config: HARVEST_RATE_LIMIT_BURST must be at least 1 when rate limiting is enabled")
	}
	if c.MassBalanceRelTol <= 0 {
		return fmt.Errorf("config: HARVEST_MASS_BALANCE_REL_TOL must be positive")
	}
	switch c.DatasetFormat {
	case "table", "dnrm":
	default:
		return fmt.Errorf("config: HARVEST_DATASET_FORMAT must be table or dnrm (got %q)", c.DatasetFormat)
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid number", key, v)
	}
	return f, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid boolean", key, v)
	}
	return b, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid duration", key, v)
	}
	return d, nil
}
