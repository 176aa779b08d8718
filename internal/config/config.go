package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds process settings read from the environment.
type Config struct {
	DatabaseURL     string
	ServerPort      string
	AllowedOrigins  string
	LogLevel        string
	Env             string
	OutboxInterval  time.Duration
	OutboxBatchSize int
	ShutdownTimeout time.Duration
}

// Load reads a .env file if present and then the process environment.
// DATABASE_URL is required; everything else has a default.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function so tests can supply their own environment.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		DatabaseURL:     getenv("DATABASE_URL"),
		ServerPort:      valueOr(getenv("SERVER_PORT"), "8080"),
		AllowedOrigins:  getenv("ALLOWED_ORIGINS"),
		LogLevel:        strings.ToLower(valueOr(getenv("LOG_LEVEL"), "info")),
		Env:             strings.ToLower(valueOr(getenv("APP_ENV"), "development")),
		OutboxInterval:  5 * time.Second,
		OutboxBatchSize: 100,
		ShutdownTimeout: 20 * time.Second,
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("LOG_LEVEL: unsupported level %q", cfg.LogLevel)
	}

	switch cfg.Env {
	case "development", "production":
	default:
		return nil, fmt.Errorf("APP_ENV: unsupported environment %q", cfg.Env)
	}

	if v := getenv("OUTBOX_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("OUTBOX_INTERVAL: invalid duration %q", v)
		}
		cfg.OutboxInterval = d
	}

	if v := getenv("OUTBOX_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("OUTBOX_BATCH_SIZE: must be a positive integer, got %q", v)
		}
		cfg.OutboxBatchSize = n
	}

	if v := getenv("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("SHUTDOWN_TIMEOUT: invalid duration %q", v)
		}
		cfg.ShutdownTimeout = d
	}

	return cfg, nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
