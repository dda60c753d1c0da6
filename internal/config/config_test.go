// AngelaMos | 2026
// config_test.go

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Database: DatabaseConfig{URL: "postgres://localhost/outreach"},
		Redis:    RedisConfig{URL: "redis://localhost:6379/0"},
		JWT:      JWTConfig{PrivateKeyPath: "keys/private.pem"},
		Server:   ServerConfig{ReadTimeout: time.Second, WriteTimeout: time.Second},
		Outreach: OutreachConfig{
			WindowStartHour: 9,
			WindowEndHour:   17,
			MinGapMinutes:   10,
			DefaultTimezone: "UTC",
		},
		Worker:   WorkerConfig{BatchSize: 50, RetryBase: time.Minute, RetryMax: time.Hour},
		Cron:     CronConfig{Secret: "tick"},
		Security: SecurityConfig{EncryptionKey: strings.Repeat("k", 32)},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing cron secret", func(c *Config) { c.Cron.Secret = "" }, "CRON_SECRET"},
		{"short encryption key", func(c *Config) { c.Security.EncryptionKey = "short" }, "ENCRYPTION_KEY"},
		{"window inverted", func(c *Config) { c.Outreach.WindowEndHour = 8 }, "window_end_hour"},
		{"gap too small", func(c *Config) { c.Outreach.MinGapMinutes = 0 }, "min_gap_minutes"},
		{"unknown timezone", func(c *Config) { c.Outreach.DefaultTimezone = "Mars/Olympus" }, "default_timezone"},
		{"retry max below base", func(c *Config) { c.Worker.RetryMax = time.Second }, "retry_max"},
		{"amqp without url", func(c *Config) { c.AMQP.Enabled = true }, "AMQP_URL"},
		{"cors wildcard with credentials", func(c *Config) {
			c.CORS.AllowCredentials = true
			c.CORS.AllowedOrigins = []string{"*"}
		}, "CORS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)

			err := validate(c)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestEnvKeyReplacer(t *testing.T) {
	assert.Equal(t, "cron.secret", envKeyReplacer("CRON_SECRET"))
	assert.Equal(t, "worker.batch_size", envKeyReplacer("WORKER_BATCH_SIZE"))
}

func TestLoadFromEnvWithoutFile(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/outreach")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("CRON_SECRET", "tick")
	t.Setenv("ENCRYPTION_KEY", strings.Repeat("k", 32))
	t.Setenv("PORT", "9090")
	t.Setenv("WORKER_BATCH_SIZE", "25")
	t.Setenv("OUTREACH_DEFAULT_TIMEZONE", "UTC")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 25, cfg.Worker.BatchSize)
	assert.Equal(t, "tick", cfg.Cron.Secret)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 9, cfg.Outreach.WindowStartHour)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/outreach")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("CRON_SECRET", "tick")
	t.Setenv("ENCRYPTION_KEY", strings.Repeat("k", 32))
	t.Setenv("OUTREACH_DEFAULT_TIMEZONE", "UTC")

	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := "outreach:\n  window_start_hour: 8\n  window_end_hour: 12\nworker:\n  send_schedule: \"@every 30s\"\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Outreach.WindowStartHour)
	assert.Equal(t, 12, cfg.Outreach.WindowEndHour)
	assert.Equal(t, "@every 30s", cfg.Worker.SendSchedule)
}
