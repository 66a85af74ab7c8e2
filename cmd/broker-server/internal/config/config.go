// Package config provides configuration management for the broker standalone server.
// It loads settings from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/coregx/broker"
)

// Config holds all configuration for the broker server.
type Config struct {
	Server ServerConfig
	Broker BrokerConfig
	Audit  AuditConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host     string
	Port     int
	LogLevel string // debug, info, warn, error
}

// BrokerConfig holds broker tuning.
type BrokerConfig struct {
	Workers       int
	QueueSize     int
	SweepDelay    int    // Seconds before the first sweep
	SweepPeriod   int    // Seconds between sweeps
	SweepPolicy   string // redeliver, report
	Retention     int    // Seconds; 0 keeps consumed messages forever
	StrictMissing bool   // Fail consumption of ids unknown to the store
	Topics        []string
}

// AuditConfig holds the optional audit database configuration.
// An empty Driver disables the audit trail.
type AuditConfig struct {
	Driver string // "", sqlite3, mysql, postgres
	DSN    string
	Prefix string // Table prefix (default: "broker_")
}

// Load loads configuration from environment variables.
// Follows 12-factor app principles - configuration via environment.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			Port:     getEnvInt("SERVER_PORT", 8080),
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		Broker: BrokerConfig{
			Workers:       getEnvInt("BROKER_WORKERS", 8),
			QueueSize:     getEnvInt("BROKER_QUEUE_SIZE", 1024),
			SweepDelay:    getEnvInt("BROKER_SWEEP_DELAY", 120),
			SweepPeriod:   getEnvInt("BROKER_SWEEP_PERIOD", 60),
			SweepPolicy:   strings.ToLower(getEnv("BROKER_SWEEP_POLICY", "redeliver")),
			Retention:     getEnvInt("BROKER_RETENTION", 0),
			StrictMissing: getEnvBool("BROKER_STRICT_MISSING", true),
			Topics:        getEnvList("BROKER_TOPICS"),
		},
		Audit: AuditConfig{
			Driver: strings.ToLower(getEnv("AUDIT_DRIVER", "")),
			DSN:    getEnv("AUDIT_DSN", ""),
			Prefix: getEnv("AUDIT_PREFIX", "broker_"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.Server,
		validation.Field(&c.Server.Host, validation.Required),
		validation.Field(&c.Server.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.Server.LogLevel, validation.In("debug", "info", "warn", "error")),
	); err != nil {
		return err
	}

	if err := validation.ValidateStruct(&c.Broker,
		validation.Field(&c.Broker.Workers, validation.Required, validation.Min(1)),
		validation.Field(&c.Broker.QueueSize, validation.Required, validation.Min(1)),
		validation.Field(&c.Broker.SweepDelay, validation.Min(0)),
		validation.Field(&c.Broker.SweepPeriod, validation.Required, validation.Min(1)),
		validation.Field(&c.Broker.SweepPolicy, validation.In("redeliver", "report")),
		validation.Field(&c.Broker.Retention, validation.Min(0)),
	); err != nil {
		return err
	}

	return validation.ValidateStruct(&c.Audit,
		validation.Field(&c.Audit.Driver, validation.In("sqlite3", "mysql", "postgres")),
		validation.Field(&c.Audit.DSN, validation.When(c.Audit.Driver != "", validation.Required)),
	)
}

// Options translates the broker section into broker options.
func (c *BrokerConfig) Options() []broker.Option {
	policy := broker.SweepRedeliver
	if c.SweepPolicy == "report" {
		policy = broker.SweepReportOnly
	}
	missing := broker.MissingMessageFail
	if !c.StrictMissing {
		missing = broker.MissingMessageIgnore
	}

	return []broker.Option{
		broker.WithDispatcher(c.Workers, c.QueueSize),
		broker.WithSweepSchedule(seconds(c.SweepDelay), seconds(c.SweepPeriod)),
		broker.WithSweepPolicy(policy),
		broker.WithRetention(seconds(c.Retention)),
		broker.WithMissingMessagePolicy(missing),
	}
}

// Enabled reports whether an audit database is configured.
func (c *AuditConfig) Enabled() bool {
	return c.Driver != ""
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// getEnv retrieves environment variable or returns default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves environment variable as integer or returns default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool retrieves environment variable as boolean or returns default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvList retrieves a comma-separated environment variable, skipping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
