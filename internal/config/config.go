// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Token store backends accepted by TOKEN_STORE.
const (
	TokenStorePostgres = "postgres"
	TokenStoreRedis    = "redis"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the REST API listens on (e.g. :5000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address of the gRPC health endpoint; empty disables it.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN holding auth_tokens, activity_logs and the business tables.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is the zap level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogFormat is "json" or "console".
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// TokenHeader is the request header carrying the opaque session token.
	TokenHeader string `mapstructure:"TOKEN_HEADER"`
	// TokenTTLRaw is the session lifetime after issue or last use (e.g. "60m").
	TokenTTLRaw string `mapstructure:"TOKEN_TTL"`
	// TokenStore selects the session backend: postgres or redis.
	TokenStore string `mapstructure:"TOKEN_STORE"`
	// RedisURL is required when TokenStore is redis (e.g. redis://localhost:6379/0).
	RedisURL string `mapstructure:"REDIS_URL"`
	// TokenSweepIntervalRaw is how often expired sessions are deleted (e.g. "10m").
	TokenSweepIntervalRaw string `mapstructure:"TOKEN_SWEEP_INTERVAL"`
	// AdminRole is the role that bypasses ownership checks.
	AdminRole string `mapstructure:"ADMIN_ROLE"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// LoginRateLimit is the number of login attempts allowed per client IP per minute.
	LoginRateLimit int `mapstructure:"LOGIN_RATE_LIMIT"`
	// CORSAllowedOrigins is a comma-separated list of allowed origins.
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	// AuditRetentionRaw is how long activity entries are kept (e.g. "720h").
	AuditRetentionRaw string `mapstructure:"AUDIT_RETENTION"`
	// AuditPreviewLimit caps the request-body preview stored in details, in characters.
	AuditPreviewLimit int `mapstructure:"AUDIT_PREVIEW_LIMIT"`
	// AuditQueueSize is the audit write buffer; 0 writes synchronously.
	AuditQueueSize int `mapstructure:"AUDIT_QUEUE_SIZE"`
	// AuditPruneEvery runs the retention sweep once per this many writes.
	AuditPruneEvery int `mapstructure:"AUDIT_PRUNE_EVERY"`
	// AuditKafkaTopic is the topic activity entries are mirrored to when KafkaBrokers is set.
	AuditKafkaTopic string `mapstructure:"AUDIT_KAFKA_TOPIC"`
	// KafkaBrokers is a comma-separated list of Kafka broker addresses; empty disables Kafka.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// KafkaGroupID is the consumer group of cmd/worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// LokiURL is where cmd/worker archives activity entries (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`

	// OTLPEndpoint is the OpenTelemetry collector endpoint; empty uses no-op providers.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext gRPC to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is reported as the OTel service.name resource attribute.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":5000")
	v.SetDefault("GRPC_ADDR", ":5001")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("TOKEN_HEADER", "X-Auth-Token")
	v.SetDefault("TOKEN_TTL", "60m")
	v.SetDefault("TOKEN_STORE", TokenStorePostgres)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("TOKEN_SWEEP_INTERVAL", "10m")
	v.SetDefault("ADMIN_ROLE", "admin")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("LOGIN_RATE_LIMIT", 10)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("AUDIT_RETENTION", "720h") // 30d
	v.SetDefault("AUDIT_PREVIEW_LIMIT", 500)
	v.SetDefault("AUDIT_QUEUE_SIZE", 1024)
	v.SetDefault("AUDIT_PRUNE_EVERY", 100)
	v.SetDefault("AUDIT_KAFKA_TOPIC", "loandesk-activity")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_GROUP_ID", "loandesk-activity-archiver")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "loandesk-backend")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if strings.TrimSpace(cfg.TokenHeader) == "" {
		return nil, errors.New("config: TOKEN_HEADER must be set")
	}
	if strings.TrimSpace(cfg.AdminRole) == "" {
		return nil, errors.New("config: ADMIN_ROLE must be set")
	}

	cfg.TokenStore = strings.ToLower(strings.TrimSpace(cfg.TokenStore))
	switch cfg.TokenStore {
	case TokenStorePostgres:
	case TokenStoreRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("config: REDIS_URL must be set when TOKEN_STORE=redis")
		}
	default:
		return nil, fmt.Errorf("config: TOKEN_STORE must be %q or %q, got %q", TokenStorePostgres, TokenStoreRedis, cfg.TokenStore)
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.AuditPreviewLimit <= 0 {
		cfg.AuditPreviewLimit = 500
	}
	if cfg.AuditQueueSize < 0 {
		return nil, errors.New("config: AUDIT_QUEUE_SIZE must not be negative")
	}
	if cfg.AuditPruneEvery <= 0 {
		cfg.AuditPruneEvery = 100
	}
	if cfg.LoginRateLimit <= 0 {
		cfg.LoginRateLimit = 10
	}

	return &cfg, nil
}

// TokenTTL parses TokenTTLRaw as a time.Duration. Returns 60m if unset or invalid.
func (c *Config) TokenTTL() time.Duration {
	return parseDuration(c.TokenTTLRaw, 60*time.Minute)
}

// SweepInterval parses TokenSweepIntervalRaw. Returns 10m if unset or invalid.
func (c *Config) SweepInterval() time.Duration {
	return parseDuration(c.TokenSweepIntervalRaw, 10*time.Minute)
}

// AuditRetention parses AuditRetentionRaw. Returns 30 days if unset or invalid.
func (c *Config) AuditRetention() time.Duration {
	return parseDuration(c.AuditRetentionRaw, 30*24*time.Hour)
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
func (c *Config) KafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.KafkaBrokers)
}

// CORSOrigins returns the allowed CORS origins; nil means same-origin only.
func (c *Config) CORSOrigins() []string {
	if c == nil {
		return nil
	}
	return splitList(c.CORSAllowedOrigins)
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c != nil && strings.EqualFold(c.Env, "production")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
