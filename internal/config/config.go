// Package config defines the top-level configuration for the sambatan
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from
// a TOML file and then optionally overridden by SAMBATAN_* environment
// variables.
type Config struct {
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Wallet   WalletConfig   `toml:"wallet"`
	Engine   EngineConfig   `toml:"engine"`
	Sweeper  SweeperConfig  `toml:"sweeper"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	// CacheTTLMinutes bounds the lifetime of campaign snapshots in the
	// read cache. 0 means no expiry.
	CacheTTLMinutes int `toml:"cache_ttl_minutes"`
}

// S3Config holds S3-compatible object storage parameters for the
// cold-storage archiver.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// WalletConfig holds the external wallet service endpoint. When BaseURL
// is empty the engine runs against the in-memory wallet, which is only
// suitable for local development.
type WalletConfig struct {
	BaseURL string   `toml:"base_url"`
	APIKey  string   `toml:"api_key"`
	Timeout duration `toml:"timeout"`
}

// EngineConfig holds the group-buy engine parameters.
type EngineConfig struct {
	// FeeRate is the platform fee withheld from seller payouts, as a
	// fraction (0.03 = 3%).
	FeeRate float64 `toml:"fee_rate"`
	// LockTTL bounds how long a campaign's exclusive section may be held
	// before Redis expires it.
	LockTTL duration `toml:"lock_ttl"`
	// LockRetries and LockBackoff control the bounded exponential backoff
	// a join performs before surfacing Busy.
	LockRetries int      `toml:"lock_retries"`
	LockBackoff duration `toml:"lock_backoff"`
	// JoinRateLimit caps join attempts per buyer per JoinRateWindow.
	JoinRateLimit  int      `toml:"join_rate_limit"`
	JoinRateWindow duration `toml:"join_rate_window"`
}

// SweeperConfig holds deadline sweep and archival parameters.
type SweeperConfig struct {
	Interval duration `toml:"interval"`
	// LeaderTTL is the TTL on the global sweep leader lock; it must
	// comfortably exceed the expected duration of one sweep.
	LeaderTTL            duration `toml:"leader_ttl"`
	ArchiveEnabled       bool     `toml:"archive_enabled"`
	ArchiveInterval      duration `toml:"archive_interval"`
	ArchiveRetentionDays int      `toml:"archive_retention_days"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// OperatorKey authenticates operator endpoints (create, launch,
	// cancel). Empty disables authentication.
	OperatorKey string `toml:"operator_key"`
	// APIRateLimit caps requests per client IP per second.
	APIRateLimit int `toml:"api_rate_limit"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder
// can parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "sambatan",
			User:          "sambatan",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:            "localhost:6379",
			DB:              0,
			PoolSize:        20,
			MaxRetries:      3,
			TLSEnabled:      false,
			CacheTTLMinutes: 10,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "ap-southeast-1",
			Bucket:         "sambatan-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Wallet: WalletConfig{
			Timeout: duration{10 * time.Second},
		},
		Engine: EngineConfig{
			FeeRate:        0.03,
			LockTTL:        duration{10 * time.Second},
			LockRetries:    5,
			LockBackoff:    duration{50 * time.Millisecond},
			JoinRateLimit:  10,
			JoinRateWindow: duration{time.Second},
		},
		Sweeper: SweeperConfig{
			Interval:             duration{2 * time.Minute},
			LeaderTTL:            duration{5 * time.Minute},
			ArchiveEnabled:       false,
			ArchiveInterval:      duration{24 * time.Hour},
			ArchiveRetentionDays: 90,
		},
		Server: ServerConfig{
			Enabled:      true,
			Port:         8000,
			CORSOrigins:  []string{"http://localhost:3000"},
			APIRateLimit: 50,
		},
		Notify: NotifyConfig{
			Events: []string{"campaign_fulfilled", "campaign_expired", "campaign_cancelled"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server": true,
	"sweep":  true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, sweep, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 only matters when archival is on.
	if c.Sweeper.ArchiveEnabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archiving is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archiving is enabled")
		}
		if c.Sweeper.ArchiveRetentionDays < 1 {
			errs = append(errs, "sweeper: archive_retention_days must be >= 1")
		}
	}

	// Engine
	if c.Engine.FeeRate < 0 || c.Engine.FeeRate >= 1 {
		errs = append(errs, fmt.Sprintf("engine: fee_rate must be in [0, 1), got %g", c.Engine.FeeRate))
	}
	if c.Engine.LockTTL.Duration <= 0 {
		errs = append(errs, "engine: lock_ttl must be positive")
	}
	if c.Engine.LockRetries < 0 {
		errs = append(errs, "engine: lock_retries must be >= 0")
	}
	if c.Engine.JoinRateLimit < 1 {
		errs = append(errs, "engine: join_rate_limit must be >= 1")
	}

	// Sweeper
	if c.Sweeper.Interval.Duration <= 0 {
		errs = append(errs, "sweeper: interval must be positive")
	}
	if c.Sweeper.LeaderTTL.Duration <= 0 {
		errs = append(errs, "sweeper: leader_ttl must be positive")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
