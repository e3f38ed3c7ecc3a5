package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "WORKER_COUNT", "MAX_QUEUE_SIZE", "JOB_TTL", "LOG_LEVEL", "ARCHIVE_BUCKET", "LEDGER_BUDGET_ID"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.Port != "8090" {
		t.Errorf("expected port 8090, got %q", cfg.Port)
	}
	if cfg.WorkerCount != 4 || cfg.MaxQueueSize != 100 {
		t.Errorf("unexpected pool defaults: workers=%d queue=%d", cfg.WorkerCount, cfg.MaxQueueSize)
	}
	if cfg.JobTTL != time.Hour {
		t.Errorf("expected 1h job ttl, got %s", cfg.JobTTL)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("expected info level, got %s", cfg.LogLevel)
	}
	if cfg.ArchiveBucket != "" {
		t.Errorf("expected archiving disabled, got %q", cfg.ArchiveBucket)
	}
	if cfg.LedgerBudgetID != "last-used" {
		t.Errorf("expected last-used budget, got %q", cfg.LedgerBudgetID)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")
	t.Setenv("LEDGER_TIMEOUT", "5s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ARCHIVE_BUCKET", "raw-alerts")
	t.Setenv("LEDGER_AUTO_APPROVE", "true")

	cfg := Load()
	if cfg.WorkerCount != 8 {
		t.Errorf("expected 8 workers, got %d", cfg.WorkerCount)
	}
	if cfg.MaxUploadBytes != 1024 {
		t.Errorf("expected 1024 bytes, got %d", cfg.MaxUploadBytes)
	}
	if cfg.LedgerTimeout != 5*time.Second {
		t.Errorf("expected 5s, got %s", cfg.LedgerTimeout)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("expected debug, got %s", cfg.LogLevel)
	}
	if !cfg.LedgerAutoApprove {
		t.Error("expected auto approve")
	}
	if cfg.ArchiveBucket != "raw-alerts" {
		t.Errorf("expected raw-alerts, got %q", cfg.ArchiveBucket)
	}
}

func TestLoad_ClampsInvalidValues(t *testing.T) {
	t.Setenv("WORKER_COUNT", "-1")
	t.Setenv("MAX_QUEUE_SIZE", "abc")
	t.Setenv("JOB_TTL", "0s")
	t.Setenv("LOG_LEVEL", "loud")

	cfg := Load()
	if cfg.WorkerCount != 4 {
		t.Errorf("expected clamped worker count 4, got %d", cfg.WorkerCount)
	}
	if cfg.MaxQueueSize != 100 {
		t.Errorf("expected fallback queue size 100, got %d", cfg.MaxQueueSize)
	}
	if cfg.JobTTL != time.Hour {
		t.Errorf("expected clamped ttl 1h, got %s", cfg.JobTTL)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("expected fallback level info, got %s", cfg.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	ok := Config{APIKey: "a", LedgerToken: "b", KVAPIKey: "c"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"api key", func(c *Config) { c.APIKey = "" }},
		{"ledger token", func(c *Config) { c.LedgerToken = "" }},
		{"kv key", func(c *Config) { c.KVAPIKey = "" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := ok
			tc.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
