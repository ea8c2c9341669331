package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SAMBATAN_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SAMBATAN_* environment variables
// and overwrites the corresponding Config fields when a variable is set.
// This lets operators inject secrets at deploy time without touching the
// TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SAMBATAN_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SAMBATAN_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SAMBATAN_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SAMBATAN_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SAMBATAN_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SAMBATAN_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SAMBATAN_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SAMBATAN_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SAMBATAN_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SAMBATAN_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SAMBATAN_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SAMBATAN_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SAMBATAN_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SAMBATAN_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SAMBATAN_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SAMBATAN_REDIS_TLS_ENABLED")
	setInt(&cfg.Redis.CacheTTLMinutes, "SAMBATAN_REDIS_CACHE_TTL_MINUTES")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "SAMBATAN_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SAMBATAN_S3_REGION")
	setStr(&cfg.S3.Bucket, "SAMBATAN_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SAMBATAN_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SAMBATAN_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SAMBATAN_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SAMBATAN_S3_FORCE_PATH_STYLE")

	// ── Wallet ──
	setStr(&cfg.Wallet.BaseURL, "SAMBATAN_WALLET_BASE_URL")
	setStr(&cfg.Wallet.APIKey, "SAMBATAN_WALLET_API_KEY")
	setDuration(&cfg.Wallet.Timeout, "SAMBATAN_WALLET_TIMEOUT")

	// ── Engine ──
	setFloat64(&cfg.Engine.FeeRate, "SAMBATAN_ENGINE_FEE_RATE")
	setDuration(&cfg.Engine.LockTTL, "SAMBATAN_ENGINE_LOCK_TTL")
	setInt(&cfg.Engine.LockRetries, "SAMBATAN_ENGINE_LOCK_RETRIES")
	setDuration(&cfg.Engine.LockBackoff, "SAMBATAN_ENGINE_LOCK_BACKOFF")
	setInt(&cfg.Engine.JoinRateLimit, "SAMBATAN_ENGINE_JOIN_RATE_LIMIT")
	setDuration(&cfg.Engine.JoinRateWindow, "SAMBATAN_ENGINE_JOIN_RATE_WINDOW")

	// ── Sweeper ──
	setDuration(&cfg.Sweeper.Interval, "SAMBATAN_SWEEPER_INTERVAL")
	setDuration(&cfg.Sweeper.LeaderTTL, "SAMBATAN_SWEEPER_LEADER_TTL")
	setBool(&cfg.Sweeper.ArchiveEnabled, "SAMBATAN_SWEEPER_ARCHIVE_ENABLED")
	setDuration(&cfg.Sweeper.ArchiveInterval, "SAMBATAN_SWEEPER_ARCHIVE_INTERVAL")
	setInt(&cfg.Sweeper.ArchiveRetentionDays, "SAMBATAN_SWEEPER_ARCHIVE_RETENTION_DAYS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SAMBATAN_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SAMBATAN_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SAMBATAN_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.OperatorKey, "SAMBATAN_SERVER_OPERATOR_KEY")
	setInt(&cfg.Server.APIRateLimit, "SAMBATAN_SERVER_API_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SAMBATAN_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SAMBATAN_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SAMBATAN_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SAMBATAN_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SAMBATAN_MODE")
	setStr(&cfg.LogLevel, "SAMBATAN_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the
// environment variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
