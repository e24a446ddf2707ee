// Package config loads the service configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	API      APIConfig      `yaml:"api"`
	Session  SessionConfig  `yaml:"session"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	LogLevel string         `yaml:"log_level"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// APIConfig points at the restaurant API
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// SessionConfig holds per-session timings
type SessionConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval"`
	FeedbackDelay time.Duration `yaml:"feedback_delay"`
}

// ServerConfig configures the session HTTP server
type ServerConfig struct {
	Port      int           `yaml:"port"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// DatabaseConfig selects the payment journal database
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// Default returns the configuration used for anything the file leaves out
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 10 * time.Second,
		},
		Session: SessionConfig{
			PollInterval:  10 * time.Second,
			FeedbackDelay: time.Second,
		},
		Server: ServerConfig{
			Port:     8080,
			TokenTTL: 12 * time.Hour,
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "tabble.db",
		},
		LogLevel: "info",
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// Load reads the file at path over the defaults and applies environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TABBLE_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("TABBLE_JWT_SECRET"); v != "" {
		c.Server.JWTSecret = v
	}
	if v := os.Getenv("TABBLE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("TABBLE_DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url %q is not an absolute URL", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}
	if c.Session.PollInterval <= 0 {
		return errors.New("session.poll_interval must be positive")
	}
	if c.Session.FeedbackDelay < 0 {
		return errors.New("session.feedback_delay must not be negative")
	}
	if c.Server.JWTSecret == "" {
		return errors.New("server.jwt_secret is required")
	}
	if c.Server.TokenTTL <= 0 {
		return errors.New("server.token_ttl must be positive")
	}
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("database.driver %q must be sqlite3 or postgres", c.Database.Driver)
	}
	if c.Metrics.Enabled && c.Metrics.Port == c.Server.Port {
		return errors.New("metrics.port must differ from server.port")
	}
	return nil
}
