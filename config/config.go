package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the daemon configuration
type Config struct {
	Address  string         `yaml:"address"`
	Database DatabaseConfig `yaml:"database"`
	Pool     PoolConfig     `yaml:"pool"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig represents store settings
type DatabaseConfig struct {
	URL                    string `yaml:"url"`
	StartupDeadlineSeconds int    `yaml:"startup_deadline_seconds"`
}

// PoolConfig represents connection pool settings
type PoolConfig struct {
	MinConns                   int `yaml:"min_conns"`
	MaxConns                   int `yaml:"max_conns"`
	AcquireTimeoutMillis       int `yaml:"acquire_timeout_ms"`
	IdleTimeoutSeconds         int `yaml:"idle_timeout_seconds"`
	HealthCheckIntervalSeconds int `yaml:"health_check_interval_seconds"`
	ShutdownGraceSeconds       int `yaml:"shutdown_grace_seconds"`
}

// LoggingConfig represents logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Address: ":8080",
		Database: DatabaseConfig{
			URL:                    "",
			StartupDeadlineSeconds: 30,
		},
		Pool: PoolConfig{
			MinConns:                   2,
			MaxConns:                   10,
			AcquireTimeoutMillis:       3000,
			IdleTimeoutSeconds:         300,
			HealthCheckIntervalSeconds: 30,
			ShutdownGraceSeconds:       30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from an optional YAML file and environment
// variable overrides
func Load(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		if err := loadFromFile(configPath, config); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func loadFromFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, config)
}

func applyEnvOverrides(config *Config) {
	if addr := os.Getenv("SESSIOND_ADDR"); addr != "" {
		config.Address = addr
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.Logging.Level = logLevel
	}

	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		config.Logging.Format = logFormat
	}

	if minConns := os.Getenv("POOL_MIN_CONNS"); minConns != "" {
		if val, err := strconv.Atoi(minConns); err == nil {
			config.Pool.MinConns = val
		}
	}

	if maxConns := os.Getenv("POOL_MAX_CONNS"); maxConns != "" {
		if val, err := strconv.Atoi(maxConns); err == nil {
			config.Pool.MaxConns = val
		}
	}
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.Address == "" {
		return errors.New("address cannot be empty")
	}
	if c.Database.URL == "" {
		return errors.New("database url is required (set database.url or DATABASE_URL)")
	}
	if c.Pool.MinConns <= 0 || c.Pool.MaxConns <= 0 {
		return errors.New("pool sizes must be positive")
	}
	if c.Pool.MinConns > c.Pool.MaxConns {
		return errors.New("pool min_conns cannot exceed max_conns")
	}
	if c.Pool.AcquireTimeoutMillis < 0 {
		return errors.New("pool acquire_timeout_ms cannot be negative")
	}
	if c.Pool.HealthCheckIntervalSeconds <= 0 {
		return errors.New("pool health_check_interval_seconds must be positive")
	}
	return nil
}

func (c *Config) StartupDeadline() time.Duration {
	return time.Duration(c.Database.StartupDeadlineSeconds) * time.Second
}

func (c *PoolConfig) AcquireTimeout() time.Duration {
	return time.Duration(c.AcquireTimeoutMillis) * time.Millisecond
}

func (c *PoolConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSeconds) * time.Second
}

func (c *PoolConfig) HealthCheckInterval() time.Duration {
	return time.Duration(c.HealthCheckIntervalSeconds) * time.Second
}

func (c *PoolConfig) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceSeconds) * time.Second
}
