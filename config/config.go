package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Crypto    CryptoConfig    `mapstructure:"crypto"`
	Checkout  CheckoutConfig  `mapstructure:"checkout"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Mode           string        `mapstructure:"mode"` // debug, release, test
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type DatabaseConfig struct {
	// URL, when set (DATABASE_URL), wins over the discrete fields.
	URL             string        `mapstructure:"url"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type AuthConfig struct {
	// SecretKey signs user JWTs (SECRET_KEY). Must be at least 32 bytes.
	SecretKey   string        `mapstructure:"secret_key"`
	TokenExpiry time.Duration `mapstructure:"token_expiry"`
	Issuer      string        `mapstructure:"issuer"`
	// KeyCacheTTL bounds how long a revoked API key may still authenticate.
	KeyCacheTTL time.Duration `mapstructure:"key_cache_ttl"`
}

type CryptoConfig struct {
	// AESKey seals payment contact fields at rest. 32-byte hex-encoded key.
	AESKey string `mapstructure:"aes_key"`
}

type CheckoutConfig struct {
	// FrontendURL is the base of the hosted checkout (FRONTEND_URL).
	FrontendURL string        `mapstructure:"frontend_url"`
	OrderTTL    time.Duration `mapstructure:"order_ttl"`
}

type WebhookConfig struct {
	// SigningSecret is used when a merchant has no webhook_secret of its own
	// (WEBHOOK_SIGNING_SECRET).
	SigningSecret string        `mapstructure:"signing_secret"`
	Workers       int           `mapstructure:"workers"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	LeaseDuration time.Duration `mapstructure:"lease_duration"`
}

type SimulatorConfig struct {
	// Success probabilities for the simulated authorizer, in [0,1].
	CheckoutSuccessRate    float64 `mapstructure:"checkout_success_rate"`
	TransactionSuccessRate float64 `mapstructure:"transaction_success_rate"`
	RefundSuccessRate      float64 `mapstructure:"refund_success_rate"`
	// Seed pins the simulator RNG; 0 means random.
	Seed int64 `mapstructure:"seed"`
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: PAYFLOW_.
// Nested keys use underscore: PAYFLOW_DATABASE_HOST, PAYFLOW_AUTH_SECRET_KEY, etc.
// The canonical deployment variables DATABASE_URL, SECRET_KEY,
// WEBHOOK_SIGNING_SECRET and FRONTEND_URL are also honored unprefixed.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "payflow")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.secret_key", "")
	v.SetDefault("auth.token_expiry", "24h")
	v.SetDefault("auth.issuer", "payflow")
	v.SetDefault("auth.key_cache_ttl", "60s")
	v.SetDefault("crypto.aes_key", "")
	v.SetDefault("checkout.frontend_url", "http://localhost:3000")
	v.SetDefault("checkout.order_ttl", "30m")
	v.SetDefault("webhook.signing_secret", "")
	v.SetDefault("webhook.workers", 4)
	v.SetDefault("webhook.poll_interval", "2s")
	v.SetDefault("webhook.timeout", "10s")
	v.SetDefault("webhook.max_attempts", 8)
	v.SetDefault("webhook.lease_duration", "60s")
	v.SetDefault("simulator.checkout_success_rate", 0.96)
	v.SetDefault("simulator.transaction_success_rate", 0.95)
	v.SetDefault("simulator.refund_success_rate", 1.0)
	v.SetDefault("simulator.seed", 0)
	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.requests", 60)
	v.SetDefault("ratelimit.window", "1m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: PAYFLOW_DATABASE_HOST -> database.host
	v.SetEnvPrefix("PAYFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Canonical unprefixed variables used by deployments.
	_ = v.BindEnv("database.url", "PAYFLOW_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("auth.secret_key", "PAYFLOW_AUTH_SECRET_KEY", "SECRET_KEY")
	_ = v.BindEnv("webhook.signing_secret", "PAYFLOW_WEBHOOK_SIGNING_SECRET", "WEBHOOK_SIGNING_SECRET")
	_ = v.BindEnv("checkout.frontend_url", "PAYFLOW_CHECKOUT_FRONTEND_URL", "FRONTEND_URL")

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations that cannot produce a working process.
func (c *Config) Validate() error {
	if len(c.Auth.SecretKey) < 32 {
		return fmt.Errorf("auth.secret_key (SECRET_KEY) must be at least 32 bytes, got %d", len(c.Auth.SecretKey))
	}
	if c.Webhook.MaxAttempts < 1 {
		return fmt.Errorf("webhook.max_attempts must be at least 1")
	}
	if c.Simulator.CheckoutSuccessRate < 0 || c.Simulator.CheckoutSuccessRate > 1 {
		return fmt.Errorf("simulator.checkout_success_rate must be in [0,1]")
	}
	if c.Simulator.TransactionSuccessRate < 0 || c.Simulator.TransactionSuccessRate > 1 {
		return fmt.Errorf("simulator.transaction_success_rate must be in [0,1]")
	}
	if c.Simulator.RefundSuccessRate < 0 || c.Simulator.RefundSuccessRate > 1 {
		return fmt.Errorf("simulator.refund_success_rate must be in [0,1]")
	}
	return nil
}
