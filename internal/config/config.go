// AngelaMos | 2026
// config.go

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	JWT       JWTConfig       `koanf:"jwt"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	CORS      CORSConfig      `koanf:"cors"`
	Log       LogConfig       `koanf:"log"`
	Otel      OtelConfig      `koanf:"otel"`
	Outreach  OutreachConfig  `koanf:"outreach"`
	Worker    WorkerConfig    `koanf:"worker"`
	Cron      CronConfig      `koanf:"cron"`
	Discovery DiscoveryConfig `koanf:"discovery"`
	Gmail     GmailConfig     `koanf:"gmail"`
	SMTP      SMTPConfig      `koanf:"smtp"`
	AMQP      AMQPConfig      `koanf:"amqp"`
	Security  SecurityConfig  `koanf:"security"`
	Webhook   WebhookConfig   `koanf:"webhook"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

type JWTConfig struct {
	PrivateKeyPath    string        `koanf:"private_key_path"`
	AccessTokenExpire time.Duration `koanf:"access_token_expire"`
	Issuer            string        `koanf:"issuer"`
	Audience          string        `koanf:"audience"`
}

type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
	Burst    int           `koanf:"burst"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// OutreachConfig describes the sending window handed to the scheduler.
// Accounts with business_hours_only use [WindowStartHour, WindowEndHour),
// everyone else gets the full day.
type OutreachConfig struct {
	WindowStartHour int    `koanf:"window_start_hour"`
	WindowEndHour   int    `koanf:"window_end_hour"`
	MinGapMinutes   int    `koanf:"min_gap_minutes"`
	DefaultTimezone string `koanf:"default_timezone"`
	FromName        string `koanf:"from_name"`
}

type WorkerConfig struct {
	BatchSize        int           `koanf:"batch_size"`
	MaxBatches       int           `koanf:"max_batches"`
	LeaseTTL         time.Duration `koanf:"lease_ttl"`
	MaxRetries       int           `koanf:"max_retries"`
	RetryBase        time.Duration `koanf:"retry_base"`
	RetryMax         time.Duration `koanf:"retry_max"`
	SendSchedule     string        `koanf:"send_schedule"`
	CampaignSchedule string        `koanf:"campaign_schedule"`
	ResetSchedule    string        `koanf:"reset_schedule"`
	RecoverySchedule string        `koanf:"recovery_schedule"`
}

type CronConfig struct {
	Secret  string        `koanf:"secret"`
	LockTTL time.Duration `koanf:"lock_ttl"`
}

type DiscoveryConfig struct {
	BaseURL          string        `koanf:"base_url"`
	APIKey           string        `koanf:"api_key"`
	Timeout          time.Duration `koanf:"timeout"`
	PageSize         int           `koanf:"page_size"`
	MaxConcurrency   int           `koanf:"max_concurrency"`
	CacheTTL         time.Duration `koanf:"cache_ttl"`
	CampaignInterval time.Duration `koanf:"campaign_interval"`
}

type GmailConfig struct {
	BaseURL         string        `koanf:"base_url"`
	Timeout         time.Duration `koanf:"timeout"`
	PerMinute       int           `koanf:"per_minute"`
	DefaultDailyCap int           `koanf:"default_daily_cap"`
}

type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

type AMQPConfig struct {
	Enabled  bool   `koanf:"enabled"`
	URL      string `koanf:"url"`
	Exchange string `koanf:"exchange"`
}

type SecurityConfig struct {
	EncryptionKey string `koanf:"encryption_key"`
}

type WebhookConfig struct {
	EnrichmentSecret string `koanf:"enrichment_secret"`
	BillingSecret    string `koanf:"billing_secret"`
	ReplySecret      string `koanf:"reply_secret"`
}

// Load layers defaults, then the YAML file if it exists, then the
// environment. A missing file is not an error so env-only deployments work.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		err := k.Load(file.Provider(configPath), yaml.Parser())
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "Creator Outreach",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "60s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",

		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,

		"jwt.access_token_expire": "1h",
		"jwt.issuer":              "creator-outreach",
		"jwt.audience":            "creator-outreach-api",
		"jwt.private_key_path":    "keys/private.pem",

		"rate_limit.requests": 100,
		"rate_limit.window":   "1m",
		"rate_limit.burst":    20,

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "creator-outreach",

		"outreach.window_start_hour": 9,
		"outreach.window_end_hour":   17,
		"outreach.min_gap_minutes":   10,
		"outreach.default_timezone":  "UTC",
		"outreach.from_name":         "",

		"worker.batch_size":        50,
		"worker.max_batches":       20,
		"worker.lease_ttl":         "5m",
		"worker.max_retries":       5,
		"worker.retry_base":        "5m",
		"worker.retry_max":         "6h",
		"worker.send_schedule":     "@every 1m",
		"worker.campaign_schedule": "0 * * * *",
		"worker.reset_schedule":    "0 0 * * *",
		"worker.recovery_schedule": "30 3 * * *",

		"cron.lock_ttl": "10m",

		"discovery.timeout":           "20s",
		"discovery.page_size":         25,
		"discovery.max_concurrency":   4,
		"discovery.cache_ttl":         "10m",
		"discovery.campaign_interval": "24h",

		"gmail.base_url":          "https://gmail.googleapis.com",
		"gmail.timeout":           "15s",
		"gmail.per_minute":        10,
		"gmail.default_daily_cap": 50,

		"smtp.port": 587,

		"amqp.enabled":  false,
		"amqp.exchange": "outreach.events",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":                "database.url",
	"REDIS_URL":                   "redis.url",
	"ENVIRONMENT":                 "app.environment",
	"HOST":                        "server.host",
	"PORT":                        "server.port",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"JWT_PRIVATE_KEY_PATH":        "jwt.private_key_path",
	"JWT_ACCESS_TOKEN_EXPIRE":     "jwt.access_token_expire",
	"JWT_ISSUER":                  "jwt.issuer",
	"JWT_AUDIENCE":                "jwt.audience",
	"RATE_LIMIT_REQUESTS":         "rate_limit.requests",
	"RATE_LIMIT_WINDOW":           "rate_limit.window",
	"RATE_LIMIT_BURST":            "rate_limit.burst",
	"OTEL_ENDPOINT":               "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_SERVICE_NAME":           "otel.service_name",
	"OTEL_ENABLED":                "otel.enabled",
	"OTEL_INSECURE":               "otel.insecure",
	"OTEL_SAMPLE_RATE":            "otel.sample_rate",
	"OUTREACH_WINDOW_START_HOUR":  "outreach.window_start_hour",
	"OUTREACH_WINDOW_END_HOUR":    "outreach.window_end_hour",
	"OUTREACH_MIN_GAP_MINUTES":    "outreach.min_gap_minutes",
	"OUTREACH_DEFAULT_TIMEZONE":   "outreach.default_timezone",
	"OUTREACH_FROM_NAME":          "outreach.from_name",
	"WORKER_BATCH_SIZE":           "worker.batch_size",
	"WORKER_LEASE_TTL":            "worker.lease_ttl",
	"WORKER_MAX_RETRIES":          "worker.max_retries",
	"WORKER_RETRY_BASE":           "worker.retry_base",
	"WORKER_RETRY_MAX":            "worker.retry_max",
	"CRON_SECRET":                 "cron.secret",
	"DISCOVERY_BASE_URL":          "discovery.base_url",
	"DISCOVERY_API_KEY":           "discovery.api_key",
	"DISCOVERY_PAGE_SIZE":         "discovery.page_size",
	"GMAIL_BASE_URL":              "gmail.base_url",
	"GMAIL_PER_MINUTE":            "gmail.per_minute",
	"SMTP_HOST":                   "smtp.host",
	"SMTP_PORT":                   "smtp.port",
	"SMTP_USERNAME":               "smtp.username",
	"SMTP_PASSWORD":               "smtp.password",
	"AMQP_ENABLED":                "amqp.enabled",
	"AMQP_URL":                    "amqp.url",
	"AMQP_EXCHANGE":               "amqp.exchange",
	"ENCRYPTION_KEY":              "security.encryption_key",
	"ENRICHMENT_WEBHOOK_SECRET":   "webhook.enrichment_secret",
	"BILLING_WEBHOOK_SECRET":      "webhook.billing_secret",
	"REPLY_WEBHOOK_SECRET":        "webhook.reply_secret",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

//nolint:gocyclo // flat list of independent checks
func validate(c *Config) error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.JWT.PrivateKeyPath == "" {
		return fmt.Errorf("JWT_PRIVATE_KEY_PATH is required")
	}

	if c.Cron.Secret == "" {
		return fmt.Errorf("CRON_SECRET is required")
	}

	if len(c.Security.EncryptionKey) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes")
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	if err := c.Outreach.Validate(); err != nil {
		return err
	}

	if c.Worker.BatchSize <= 0 {
		return fmt.Errorf("worker.batch_size must be positive")
	}

	if c.Worker.RetryBase <= 0 || c.Worker.RetryMax < c.Worker.RetryBase {
		return fmt.Errorf("worker.retry_max must be >= worker.retry_base > 0")
	}

	if c.AMQP.Enabled && c.AMQP.URL == "" {
		return fmt.Errorf("AMQP_URL is required when amqp is enabled")
	}

	return nil
}

func (o *OutreachConfig) Validate() error {
	if o.WindowStartHour < 0 || o.WindowStartHour > 23 {
		return fmt.Errorf("outreach.window_start_hour must be in [0, 23]")
	}
	if o.WindowEndHour < 1 || o.WindowEndHour > 24 {
		return fmt.Errorf("outreach.window_end_hour must be in [1, 24]")
	}
	if o.WindowEndHour <= o.WindowStartHour {
		return fmt.Errorf("outreach.window_end_hour must be after window_start_hour")
	}
	if o.MinGapMinutes < 1 {
		return fmt.Errorf("outreach.min_gap_minutes must be at least 1")
	}
	if _, err := time.LoadLocation(o.DefaultTimezone); err != nil {
		return fmt.Errorf("outreach.default_timezone: %w", err)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}
