// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the realtime HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN; required by the server and seed commands.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// MigrateOnStart when true runs pending migrations before the server starts listening.
	MigrateOnStart bool `mapstructure:"MIGRATE_ON_START"`
	// JWTPublicKey is the PEM-encoded public key (RSA or ECDSA) or path to file, used to verify handshake tokens.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the expected iss claim.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the expected aud claim.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// PresenceTTL is how long a presence entry or field lock survives without refresh (e.g. "45s").
	PresenceTTL string `mapstructure:"PRESENCE_TTL"`
	// SweepInterval is how often expired presence entries are reclaimed (e.g. "15s").
	SweepInterval string `mapstructure:"SWEEP_INTERVAL"`
	// SendBuffer is the per-connection outbound queue size; 0 uses the default.
	SendBuffer int `mapstructure:"SEND_BUFFER"`
	// Env is the application environment (e.g. "development", "production"). Dev-mode auth (?user=) is only allowed outside production.
	Env string `mapstructure:"APP_ENV"`

	// OTelExporterEndpoint is the OTLP gRPC endpoint (e.g. http://localhost:4317). Empty disables export.
	OTelExporterEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTelExporterInsecure forces plaintext OTLP even for https endpoints.
	OTelExporterInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// Telemetry (optional). When Kafka brokers are set, the server also emits telemetry events to Kafka.
	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for telemetry events (default orderdesk-telemetry).
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`

	// Worker-only: Loki URL for the telemetry worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the telemetry worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("MIGRATE_ON_START", false)
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "orderdesk")
	v.SetDefault("JWT_AUDIENCE", "orderdesk-realtime")
	v.SetDefault("PRESENCE_TTL", "45s")
	v.SetDefault("SWEEP_INTERVAL", "15s")
	v.SetDefault("SEND_BUFFER", 0)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "orderdesk-telemetry")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "orderdesk-telemetry-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.JWTPublicKey == "" && cfg.Env == "production" {
		return nil, errors.New("config: JWT_PUBLIC_KEY must be set when APP_ENV=production")
	}

	if cfg.SendBuffer < 0 {
		return nil, errors.New("config: SEND_BUFFER must not be negative")
	}

	return &cfg, nil
}

// IsProduction reports whether the app runs in production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// PresenceTTLDuration parses PresenceTTL. Returns 45s if unset or invalid.
func (c *Config) PresenceTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.PresenceTTL)
	if err != nil || d <= 0 {
		return 45 * time.Second
	}
	return d
}

// SweepIntervalDuration parses SweepInterval. Returns 15s if unset or invalid.
func (c *Config) SweepIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.SweepInterval)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if Kafka telemetry is enabled (non-empty list) and to create the producer.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil || c.TelemetryKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.TelemetryKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
