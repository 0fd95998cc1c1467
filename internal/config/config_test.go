package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Write.Mode != "batch" {
		t.Errorf("Write.Mode = %q, want batch", cfg.Write.Mode)
	}
	if cfg.Pagination.PerPage != 50 || cfg.Pagination.MaxPerPage != 100 {
		t.Errorf("Pagination = %+v, want 50/100", cfg.Pagination)
	}
	if cfg.Limits.TruncateAt != 1000000 {
		t.Errorf("Limits.TruncateAt = %d, want 1000000", cfg.Limits.TruncateAt)
	}
	if cfg.Limits.MessageInlineMax != 16000 || cfg.Limits.ContextInlineMax != 32000 {
		t.Errorf("inline maxima = %d/%d", cfg.Limits.MessageInlineMax, cfg.Limits.ContextInlineMax)
	}
	if cfg.Retention.Days != 30 || !cfg.Retention.Enabled {
		t.Errorf("Retention = %+v", cfg.Retention)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad write mode", func(c *Config) { c.Write.Mode = "async" }, "write.mode"},
		{"bad capture mode", func(c *Config) { c.Capture.Mode = "some" }, "capture.mode"},
		{"bad min level", func(c *Config) { c.Capture.MinLevel = "loud" }, "capture.min_level"},
		{"bad server log level", func(c *Config) { c.Server.LogLevel = "chatty" }, "server.log_level"},
		{"bad queue connection", func(c *Config) { c.Write.Mode = "queue"; c.Queue.Connection = "redis" }, "queue.connection"},
		{"zero retention", func(c *Config) { c.Retention.Days = 0 }, "retention.days"},
		{"inline above ceiling", func(c *Config) { c.Limits.MessageInlineMax = 2000000 }, "inline maxima"},
		{"per page above max", func(c *Config) { c.Pagination.PerPage = 500 }, "pagination"},
		{"negative queue retries", func(c *Config) { c.Queue.MaxRetries = -1 }, "queue.max_retries"},
		{"empty table", func(c *Config) { c.Tables.Entries = "" }, "table names"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_LevelAliases(t *testing.T) {
	for _, level := range []string{"warn", "WARNING", "err", "crit", "fatal", "emerg", "trace", " info "} {
		t.Run(level, func(t *testing.T) {
			cfg := Default()
			cfg.Capture.MinLevel = level
			cfg.Server.LogLevel = level
			if err := cfg.Validate(); err != nil {
				t.Errorf("level %q should validate: %v", level, err)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("LOGBOOK_WRITE_MODE", "sync")
	t.Setenv("LOGBOOK_RETENTION_DAYS", "7")
	t.Setenv("LOGBOOK_RETENTION_INTERVAL", "1h")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("LOGBOOK_IGNORE_NULL_CHANNEL", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Write.Mode != "sync" {
		t.Errorf("Write.Mode = %q, want sync", cfg.Write.Mode)
	}
	if cfg.Retention.Days != 7 {
		t.Errorf("Retention.Days = %d, want 7", cfg.Retention.Days)
	}
	if cfg.Retention.Interval != time.Hour {
		t.Errorf("Retention.Interval = %v, want 1h", cfg.Retention.Interval)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("Database.Host = %q", cfg.Database.Host)
	}
	if !cfg.Ignore.NullChannel {
		t.Error("Ignore.NullChannel should be true")
	}
	if !strings.Contains(cfg.DSN(), "host=db.internal") {
		t.Errorf("DSN() = %q", cfg.DSN())
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logbook.yaml")
	yaml := "write:\n  mode: queue\npagination:\n  per_page: 25\ntables:\n  entries: app_logs\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Write.Mode != "queue" {
		t.Errorf("Write.Mode = %q, want queue", cfg.Write.Mode)
	}
	if cfg.Pagination.PerPage != 25 {
		t.Errorf("PerPage = %d, want 25", cfg.Pagination.PerPage)
	}
	if cfg.Tables.Entries != "app_logs" {
		t.Errorf("Tables.Entries = %q", cfg.Tables.Entries)
	}
	if cfg.Tables.Presets != "log_filter_presets" {
		t.Errorf("Tables.Presets default lost: %q", cfg.Tables.Presets)
	}
}

func TestLoad_InvalidFails(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("LOGBOOK_CAPTURE_MODE", "sometimes")

	if _, err := Load(); err == nil {
		t.Fatal("expected Load() to reject an unknown capture mode")
	}
}
