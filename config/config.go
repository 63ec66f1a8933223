package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Redis
	Redis RedisConfig `mapstructure:"redis"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`

	// Grafana
	Grafana GrafanaConfig `mapstructure:"grafana"`

	// Webhook delivery defaults
	Webhook WebhookConfig `mapstructure:"webhook"`

	// Resolver behavior
	Resolver ResolverConfig `mapstructure:"resolver"`

	// HTTP listen address
	HTTP HTTPConfig `mapstructure:"http"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	Port     int    `mapstructure:"port"`
	SSLMode  string `mapstructure:"sslmode"`

	// Pool tuning, consumed by internal/infra/postgres.NewPool.
	MaxConns          int32  `mapstructure:"max_conns"`
	MinConns          int32  `mapstructure:"min_conns"`
	MaxConnLifetime   string `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   string `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod string `mapstructure:"health_check_period"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	MonitorPort int    `mapstructure:"monitor_port"`
}

type PrometheusConfig struct {
	Port           int    `mapstructure:"port"`
	Retention      string `mapstructure:"retention"`
	ScrapeInterval string `mapstructure:"scrape_interval"`
	Target         string `mapstructure:"target"`
}

type GrafanaConfig struct {
	Port          int    `mapstructure:"port"`
	AdminUser     string `mapstructure:"admin_user"`
	AdminPassword string `mapstructure:"admin_password"`
}

// WebhookConfig holds default attempt/timeout values for webhooks. No code
// in this module reads them; the dispatcher uses each webhook's own
// MaxAttempts and TimeoutMS.
type WebhookConfig struct {
	DefaultMaxAttempts int `mapstructure:"default_max_attempts"`
	DefaultTimeoutMS   int `mapstructure:"default_timeout_ms"`
}

// ResolverConfig holds Resolver settings. Only BloomExpectedCodes is read
// (it sizes the short-code filter); CacheTTLSeconds and InAppBrowserUAFile
// are not read: the link-cache TTL is the fixed cache.TTL and the in-app
// browser UA list is built into internal/deviceparse.
type ResolverConfig struct {
	CacheTTLSeconds     int    `mapstructure:"cache_ttl_seconds"`
	InAppBrowserUAFile  string `mapstructure:"in_app_browser_ua_file"`
	BloomExpectedCodes  uint   `mapstructure:"bloom_expected_codes"`
}

type HTTPConfig struct {
	Port int `mapstructure:"port"`
}

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Allow environment variables to override YAML entries.
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	setDefaults(v)
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("webhook.default_max_attempts", 3)
	v.SetDefault("webhook.default_timeout_ms", 10000)
	v.SetDefault("resolver.cache_ttl_seconds", 300)
	v.SetDefault("resolver.bloom_expected_codes", 1_000_000)
	v.SetDefault("http.port", 8080)
}

func bindEnvVars(v *viper.Viper) {
	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")
	v.BindEnv("postgres.max_conns", "PG_MAX_CONNS")
	v.BindEnv("postgres.min_conns", "PG_MIN_CONNS")
	v.BindEnv("postgres.max_conn_lifetime", "PG_MAX_CONN_LIFETIME")
	v.BindEnv("postgres.max_conn_idle_time", "PG_MAX_CONN_IDLE_TIME")
	v.BindEnv("postgres.health_check_period", "PG_HEALTH_CHECK_PERIOD")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// NATS
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")
	v.BindEnv("nats.monitor_port", "NATS_MONITOR_PORT")

	// Prometheus
	v.BindEnv("prometheus.port", "PROM_PORT")
	v.BindEnv("prometheus.retention", "PROM_RETENTION")
	v.BindEnv("prometheus.scrape_interval", "PROM_SCRAPE_INTERVAL")
	v.BindEnv("prometheus.target", "PROM_TARGET")

	// Grafana
	v.BindEnv("grafana.port", "GRAFANA_PORT")
	v.BindEnv("grafana.admin_user", "GF_SECURITY_ADMIN_USER")
	v.BindEnv("grafana.admin_password", "GF_SECURITY_ADMIN_PASSWORD")

	// Webhook
	v.BindEnv("webhook.default_max_attempts", "WEBHOOK_DEFAULT_MAX_ATTEMPTS")
	v.BindEnv("webhook.default_timeout_ms", "WEBHOOK_DEFAULT_TIMEOUT_MS")

	// Resolver
	v.BindEnv("resolver.cache_ttl_seconds", "RESOLVER_CACHE_TTL_SECONDS")
	v.BindEnv("resolver.in_app_browser_ua_file", "RESOLVER_IN_APP_BROWSER_UA_FILE")
	v.BindEnv("resolver.bloom_expected_codes", "RESOLVER_BLOOM_EXPECTED_CODES")

	// HTTP
	v.BindEnv("http.port", "HTTP_PORT")
}
