package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Ledger
	LedgerURL      string
	LedgerToken    string
	LedgerBudgetID string
	LedgerTimeout  time.Duration
	// Post transactions as approved instead of leaving them for review
	LedgerAutoApprove bool

	// Key-value store for account mappings and the dedup index
	KVURL    string
	KVAPIKey string
	DedupTTL time.Duration

	// Raw document archive; empty disables archiving
	ArchiveBucket string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	LogLevel slog.Level
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("ALERTLEDGER_API_KEY"),

		LedgerURL:      envOr("LEDGER_URL", "https://api.ynab.com/v1"),
		LedgerToken:    os.Getenv("LEDGER_TOKEN"),
		LedgerBudgetID: envOr("LEDGER_BUDGET_ID", "last-used"),
		LedgerTimeout:  envDuration("LEDGER_TIMEOUT", 30*time.Second),

		LedgerAutoApprove: envBool("LEDGER_AUTO_APPROVE", false),

		KVURL:    envOr("KV_URL", "http://localhost:8080"),
		KVAPIKey: os.Getenv("KV_API_KEY"),
		DedupTTL: envDuration("DEDUP_TTL", 90*24*time.Hour),

		ArchiveBucket: os.Getenv("ARCHIVE_BUCKET"),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 10<<20), // 10MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		LogLevel: envLevel("LOG_LEVEL", slog.LevelInfo),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.LedgerTimeout <= 0 {
		cfg.LedgerTimeout = 30 * time.Second
	}
	if cfg.DedupTTL < 0 {
		cfg.DedupTTL = 0
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("ALERTLEDGER_API_KEY is required")
	}
	if c.LedgerToken == "" {
		return fmt.Errorf("LEDGER_TOKEN is required")
	}
	if c.KVAPIKey == "" {
		return fmt.Errorf("KV_API_KEY is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envLevel accepts debug, info, warn or error.
func envLevel(key string, fallback slog.Level) slog.Level {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		return fallback
	}
	return lvl
}
