package config

import (
	"time"
)

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Auth       AuthConfig       `koanf:"auth"`
	Tables     TablesConfig     `koanf:"tables"`
	Retention  RetentionConfig  `koanf:"retention"`
	Limits     LimitsConfig     `koanf:"limits"`
	Pagination PaginationConfig `koanf:"pagination"`
	Write      WriteConfig      `koanf:"write"`
	Queue      QueueConfig      `koanf:"queue"`
	Capture    CaptureConfig    `koanf:"capture"`
	Ignore     IgnoreConfig     `koanf:"ignore"`
	Sentry     SentryConfig     `koanf:"sentry"`
}

type ServerConfig struct {
	Port        string `koanf:"port"`
	CORSOrigins string `koanf:"cors_origins"`
	LogLevel    string `koanf:"log_level"`
	BodyLimit   int    `koanf:"body_limit"`
}

type DatabaseConfig struct {
	Host     string `koanf:"host"`
	Port     string `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
	SSLMode  string `koanf:"sslmode"`

	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

// AuthConfig guards the admin API.
type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
	// AdminToken is compared verbatim; AdminTokenHash is a bcrypt hash and wins when set.
	AdminToken     string `koanf:"admin_token"`
	AdminTokenHash string `koanf:"admin_token_hash"`
	AdminEmails    string `koanf:"admin_emails"`
	AdminUserIDs   string `koanf:"admin_user_ids"`
}

type TablesConfig struct {
	Entries string `koanf:"entries"`
	Presets string `koanf:"presets"`
}

type RetentionConfig struct {
	Enabled   bool          `koanf:"enabled"`
	Days      int           `koanf:"days"`
	Interval  time.Duration `koanf:"interval"`
	ChunkSize int           `koanf:"chunk_size"`
}

// LimitsConfig mirrors entry.Limits field for field so it converts directly.
type LimitsConfig struct {
	MessagePreviewLength int `koanf:"message_preview_length"`
	MessageInlineMax     int `koanf:"message_inline_max"`
	ContextPreviewLength int `koanf:"context_preview_length"`
	ContextInlineMax     int `koanf:"context_inline_max"`
	TruncateAt           int `koanf:"truncate_at"`
}

type PaginationConfig struct {
	PerPage    int `koanf:"per_page"`
	MaxPerPage int `koanf:"max_per_page"`
}

type WriteConfig struct {
	Mode          string        `koanf:"mode"`
	FlushInterval time.Duration `koanf:"flush_interval"`
}

type QueueConfig struct {
	Name       string `koanf:"name"`
	Connection string `koanf:"connection"`
	Buffer     int    `koanf:"buffer"`
	// Failed inserts are retried MaxRetries times with exponential backoff
	// starting at RetryInterval, then reported and dropped.
	MaxRetries    int           `koanf:"max_retries"`
	RetryInterval time.Duration `koanf:"retry_interval"`
	// CloseTimeout bounds the shutdown drain of queued entries.
	CloseTimeout time.Duration `koanf:"close_timeout"`
}

type CaptureConfig struct {
	Mode     string `koanf:"mode"`
	MinLevel string `koanf:"min_level"`
}

type IgnoreConfig struct {
	Deprecations bool `koanf:"deprecations"`
	NullChannel  bool `koanf:"null_channel"`
}

type SentryConfig struct {
	DSN         string `koanf:"dsn"`
	Environment string `koanf:"environment"`
}

func (c *Config) DSN() string {
	return "host=" + c.Database.Host +
		" user=" + c.Database.User +
		" password=" + c.Database.Password +
		" dbname=" + c.Database.Name +
		" port=" + c.Database.Port +
		" sslmode=" + c.Database.SSLMode +
		" TimeZone=UTC"
}

// Default returns the configuration used before any file or environment overrides.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			CORSOrigins: "*",
			LogLevel:    "info",
			BodyLimit:   8 * 1024 * 1024,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			Name:            "logbook",
			SSLMode:         "disable",
			MaxOpenConns:    50,
			MaxIdleConns:    25,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Tables: TablesConfig{
			Entries: "log_entries",
			Presets: "log_filter_presets",
		},
		Retention: RetentionConfig{
			Enabled:   true,
			Days:      30,
			Interval:  24 * time.Hour,
			ChunkSize: 1000,
		},
		Limits: LimitsConfig{
			MessagePreviewLength: 500,
			MessageInlineMax:     16000,
			ContextPreviewLength: 500,
			ContextInlineMax:     32000,
			TruncateAt:           1000000,
		},
		Pagination: PaginationConfig{
			PerPage:    50,
			MaxPerPage: 100,
		},
		Write: WriteConfig{
			Mode:          "batch",
			FlushInterval: 5 * time.Second,
		},
		Queue: QueueConfig{
			Name:       "logbook",
			Connection: "gochannel",
			Buffer:     1024,

			MaxRetries:    4,
			RetryInterval: 100 * time.Millisecond,
			CloseTimeout:  10 * time.Second,
		},
		Capture: CaptureConfig{
			Mode:     "all",
			MinLevel: "debug",
		},
		Ignore: IgnoreConfig{
			Deprecations: true,
			NullChannel:  false,
		},
	}
}
