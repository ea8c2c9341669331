package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]struct {
		mutate func(*Config)
		want   string
	}{
		"unknown mode": {
			mutate: func(c *Config) { c.Mode = "batch" },
			want:   "unknown mode",
		},
		"unknown log level": {
			mutate: func(c *Config) { c.LogLevel = "trace" },
			want:   "unknown log_level",
		},
		"fee rate above one": {
			mutate: func(c *Config) { c.Engine.FeeRate = 1.5 },
			want:   "fee_rate must be in [0, 1)",
		},
		"negative fee rate": {
			mutate: func(c *Config) { c.Engine.FeeRate = -0.01 },
			want:   "fee_rate",
		},
		"zero lock ttl": {
			mutate: func(c *Config) { c.Engine.LockTTL = duration{} },
			want:   "lock_ttl must be positive",
		},
		"bad server port": {
			mutate: func(c *Config) { c.Server.Port = 70000 },
			want:   "port must be 1-65535",
		},
		"empty redis addr": {
			mutate: func(c *Config) { c.Redis.Addr = "" },
			want:   "redis: addr",
		},
		"archiving without bucket": {
			mutate: func(c *Config) {
				c.Sweeper.ArchiveEnabled = true
				c.S3.Bucket = ""
			},
			want: "bucket must not be empty when archiving is enabled",
		},
		"min conns above max": {
			mutate: func(c *Config) {
				c.Postgres.PoolMinConns = 50
			},
			want: "pool_min_conns must not exceed pool_max_conns",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidateCombinesErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "nope"
	cfg.Engine.FeeRate = 2
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "fee_rate")
	assert.Contains(t, err.Error(), "redis: addr")
}

func TestValidateDisabledServerSkipsPortCheck(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Enabled = false
	cfg.Server.Port = 0
	assert.NoError(t, cfg.Validate())
}

func TestDurationUnmarshalText(t *testing.T) {
	var d duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration)

	assert.Error(t, d.UnmarshalText([]byte("ninety seconds")))

	out, err := duration{5 * time.Minute}.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "5m0s", string(out))
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
mode = "sweep"
log_level = "debug"

[engine]
fee_rate = 0.05
lock_ttl = "30s"

[sweeper]
interval = "45s"
archive_enabled = true

[s3]
bucket = "archive-test"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sweep", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 0.05, cfg.Engine.FeeRate)
	assert.Equal(t, 30*time.Second, cfg.Engine.LockTTL.Duration)
	assert.Equal(t, 45*time.Second, cfg.Sweeper.Interval.Duration)
	assert.True(t, cfg.Sweeper.ArchiveEnabled)
	assert.Equal(t, "archive-test", cfg.S3.Bucket)

	// Untouched sections keep their defaults.
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`mode = "server"`), 0o644))

	t.Setenv("SAMBATAN_MODE", "full")
	t.Setenv("SAMBATAN_POSTGRES_PASSWORD", "hunter2")
	t.Setenv("SAMBATAN_ENGINE_FEE_RATE", "0.025")
	t.Setenv("SAMBATAN_SWEEPER_INTERVAL", "3m")
	t.Setenv("SAMBATAN_SERVER_CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("SAMBATAN_POSTGRES_RUN_MIGRATIONS", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
	assert.Equal(t, 0.025, cfg.Engine.FeeRate)
	assert.Equal(t, 3*time.Minute, cfg.Sweeper.Interval.Duration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.False(t, cfg.Postgres.RunMigrations)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "pg-secret"
	cfg.Redis.Password = "redis-secret"
	cfg.S3.SecretKey = "s3-secret"
	cfg.Wallet.APIKey = "wallet-secret"
	cfg.Server.OperatorKey = "op-secret"
	cfg.Notify.TelegramToken = "tg-secret"

	red := RedactedConfig(&cfg)

	assert.NotContains(t, red.Postgres.Password, "pg-secret")
	assert.NotContains(t, red.Redis.Password, "redis-secret")
	assert.NotContains(t, red.S3.SecretKey, "s3-secret")
	assert.NotContains(t, red.Wallet.APIKey, "wallet-secret")
	assert.NotContains(t, red.Server.OperatorKey, "op-secret")
	assert.NotContains(t, red.Notify.TelegramToken, "tg-secret")

	// The original is untouched.
	assert.Equal(t, "pg-secret", cfg.Postgres.Password)
}
