// Package config provides environment-aware configuration management,
// mirroring the teacher's pkg/config.Config shape (env-tagged structs
// decoded with envdecode, optionally overlaid with a YAML file).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig controls the HTTP command surface.
type ServerConfig struct {
	Host string `json:"host" env:"SERVER_HOST"`
	Port int    `json:"port" env:"SERVER_PORT"`
}

// Addr returns the server's listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig controls persistence for the trigger, load controller,
// upgrade planner and orchestrator Postgres stores.
type DatabaseConfig struct {
	DSN             string `json:"dsn" env:"DATABASE_DSN"`
	MaxOpenConns    int    `json:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `json:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime int    `json:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME"`
	MigrateOnStart  bool   `json:"migrate_on_start" yaml:"migrate_on_start" env:"DATABASE_MIGRATE_ON_START"`
}

// RedisConfig holds settings for the Redis-streams event bus
// (events.RedisBus). cmd/orchestrator does not read it; the application
// always runs on the in-process Dispatcher.
type RedisConfig struct {
	URL           string `json:"url" env:"REDIS_URL"`
	ConsumerGroup string `json:"consumer_group" env:"REDIS_CONSUMER_GROUP"`
}

// LoggingConfig controls application logging.
type LoggingConfig struct {
	Level  string `json:"level" env:"LOG_LEVEL"`
	Format string `json:"format" env:"LOG_FORMAT"`
	Output string `json:"output" env:"LOG_OUTPUT"`
}

// AuthConfig controls HTTP API authentication and per-tenant rate limiting.
type AuthConfig struct {
	JWTSecret     string  `json:"jwt_secret" env:"AUTH_JWT_SECRET"`
	RatePerSecond float64 `json:"rate_per_second" env:"AUTH_RATE_PER_SECOND"`
	RateBurst     int     `json:"rate_burst" env:"AUTH_RATE_BURST"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Redis    RedisConfig    `json:"redis"`
	Logging  LoggingConfig  `json:"logging"`
	Runtime  RuntimeConfig  `json:"runtime"`
	Auth     AuthConfig     `json:"auth"`
}

// New returns a configuration populated with defaults.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
			MigrateOnStart:  true,
		},
		Redis: RedisConfig{
			ConsumerGroup: "fleet-orchestrator",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Runtime: defaultRuntimeConfig(),
		Auth: AuthConfig{
			RatePerSecond: 20,
			RateBurst:     40,
		},
	}
}

// Load loads configuration from file (if present) and environment
// variables; environment variables take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	} else {
		_ = loadFromFile("configs/config.yaml", cfg)
	}

	if err := envdecode.Decode(cfg); err != nil {
		// envdecode returns an error when no tagged fields are present in the
		// environment; treat that case as "no overrides" so local runs work
		// without exporting vars.
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	applyDatabaseURLOverride(cfg)
	return cfg, nil
}

// LoadFile reads configuration from a YAML file, without consulting the
// environment. Used by tests.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}
	applyDatabaseURLOverride(cfg)
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	expanded, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyDatabaseURLOverride aligns config loading with cmd/orchestrator:
// DATABASE_URL overrides any file-based DSN to reduce setup friction in
// container environments that inject a single connection string.
func applyDatabaseURLOverride(cfg *Config) {
	if cfg == nil {
		return
	}
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		cfg.Database.DSN = dsn
	}
}

// Validate checks invariants Load cannot enforce via struct tags alone.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Runtime.SweepInterval <= 0 {
		return fmt.Errorf("runtime.sweep_interval must be positive")
	}
	if c.Runtime.ReconcileInterval <= 0 {
		return fmt.Errorf("runtime.reconcile_interval must be positive")
	}
	return nil
}
