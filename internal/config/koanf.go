package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "LOGBOOK_CONFIG"

var DefaultConfigPaths = []string{
	"logbook.yaml",
	"logbook.yml",
	"/etc/logbook/logbook.yaml",
}

// envMappings maps environment variables onto koanf keys. The DB_*, PORT,
// JWT_SECRET and ADMIN_* names are kept for existing deployments.
var envMappings = map[string]string{
	"db_host":     "database.host",
	"db_port":     "database.port",
	"db_user":     "database.user",
	"db_password": "database.password",
	"db_name":     "database.name",
	"db_sslmode":  "database.sslmode",

	"port":         "server.port",
	"cors_origins": "server.cors_origins",
	"log_level":    "server.log_level",

	"jwt_secret":       "auth.jwt_secret",
	"admin_token":      "auth.admin_token",
	"admin_token_hash": "auth.admin_token_hash",
	"admin_emails":     "auth.admin_emails",
	"admin_user_ids":   "auth.admin_user_ids",

	"sentry_dsn": "sentry.dsn",
	"app_env":    "sentry.environment",

	"logbook_entries_table":          "tables.entries",
	"logbook_presets_table":          "tables.presets",
	"logbook_retention_enabled":      "retention.enabled",
	"logbook_retention_days":         "retention.days",
	"logbook_retention_interval":     "retention.interval",
	"logbook_retention_chunk_size":   "retention.chunk_size",
	"logbook_message_preview_length": "limits.message_preview_length",
	"logbook_message_inline_max":     "limits.message_inline_max",
	"logbook_context_preview_length": "limits.context_preview_length",
	"logbook_context_inline_max":     "limits.context_inline_max",
	"logbook_truncate_at":            "limits.truncate_at",
	"logbook_per_page":               "pagination.per_page",
	"logbook_max_per_page":           "pagination.max_per_page",
	"logbook_write_mode":             "write.mode",
	"logbook_flush_interval":         "write.flush_interval",
	"logbook_queue_name":             "queue.name",
	"logbook_queue_connection":       "queue.connection",
	"logbook_queue_buffer":           "queue.buffer",
	"logbook_queue_max_retries":      "queue.max_retries",
	"logbook_queue_retry_interval":   "queue.retry_interval",
	"logbook_queue_close_timeout":    "queue.close_timeout",
	"logbook_capture_mode":           "capture.mode",
	"logbook_capture_min_level":      "capture.min_level",
	"logbook_ignore_deprecations":    "ignore.deprecations",
	"logbook_ignore_null_channel":    "ignore.null_channel",
}

// Load layers defaults, an optional YAML file and the environment, then validates.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransform returns "" for variables koanf should ignore.
func envTransform(key string) string {
	return envMappings[strings.ToLower(key)]
}
