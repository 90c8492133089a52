// Package config provides configuration management for GitLite.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// EnvDevelopment is the default local development environment.
	EnvDevelopment Environment = "development"
	// EnvStaging is the staging/pre-production environment.
	EnvStaging Environment = "staging"
	// EnvProduction is the production environment.
	EnvProduction Environment = "production"
)

// ServerConfig holds server configuration. Values come from environment
// variables, optionally overlaid by a YAML file named in GITLITE_CONFIG.
type ServerConfig struct {
	Environment Environment `yaml:"environment,omitempty"`
	ListenAddr  string      `yaml:"listen_addr,omitempty"`
	DatabaseURL string      `yaml:"database_url,omitempty"`
	LogLevel    string      `yaml:"log_level,omitempty"`

	OIDCIssuer   string `yaml:"oidc_issuer,omitempty"`
	OIDCClientID string `yaml:"oidc_client_id,omitempty"`

	// RateLimit is a limiter formatted rate such as "100-M" (100 per minute).
	RateLimit string `yaml:"rate_limit,omitempty"`

	// IntegritySchedule is a cron expression for the background content
	// hash sweep. Empty disables the sweep.
	IntegritySchedule string `yaml:"integrity_schedule,omitempty"`

	// MaxContentBytes caps the size of a single version's content.
	MaxContentBytes int64 `yaml:"max_content_bytes,omitempty"`

	// ActivityLimit is the default number of entries returned by the
	// repository activity feed.
	ActivityLimit int `yaml:"activity_limit,omitempty"`
}

// LoadServerConfig reads server configuration from environment variables and
// applies the YAML overlay if GITLITE_CONFIG points at a file.
func LoadServerConfig() (ServerConfig, error) {
	env := Environment(os.Getenv("ENV"))
	switch env {
	case EnvDevelopment, EnvStaging, EnvProduction:
		// valid
	default:
		env = EnvDevelopment
	}

	cfg := ServerConfig{
		Environment:       env,
		ListenAddr:        getEnv("LISTEN_ADDR", ":8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		OIDCIssuer:        os.Getenv("OIDC_ISSUER"),
		OIDCClientID:      os.Getenv("OIDC_CLIENT_ID"),
		RateLimit:         getEnv("RATE_LIMIT", "300-M"),
		IntegritySchedule: getEnv("INTEGRITY_SCHEDULE", "0 3 * * *"),
		MaxContentBytes:   int64(getEnvInt("MAX_CONTENT_BYTES", 10<<20)),
		ActivityLimit:     getEnvInt("ACTIVITY_LIMIT", 20),
	}

	if path := os.Getenv("GITLITE_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return cfg, err
		}
	}

	if cfg.MaxContentBytes <= 0 {
		cfg.MaxContentBytes = 10 << 20
	}
	if cfg.ActivityLimit <= 0 {
		cfg.ActivityLimit = 20
	}

	return cfg, nil
}

// Validate checks that the configuration has required fields for operation.
func (c *ServerConfig) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database_url is required")
	}
	if c.OIDCIssuer == "" {
		return errors.New("oidc_issuer is required")
	}
	if c.OIDCClientID == "" {
		return errors.New("oidc_client_id is required")
	}
	return nil
}

// applyFile overlays values from a YAML file. Only fields set in the file
// replace the environment-derived values.
func (c *ServerConfig) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var overlay ServerConfig
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if overlay.Environment != "" {
		c.Environment = overlay.Environment
	}
	if overlay.ListenAddr != "" {
		c.ListenAddr = overlay.ListenAddr
	}
	if overlay.DatabaseURL != "" {
		c.DatabaseURL = overlay.DatabaseURL
	}
	if overlay.LogLevel != "" {
		c.LogLevel = overlay.LogLevel
	}
	if overlay.OIDCIssuer != "" {
		c.OIDCIssuer = overlay.OIDCIssuer
	}
	if overlay.OIDCClientID != "" {
		c.OIDCClientID = overlay.OIDCClientID
	}
	if overlay.RateLimit != "" {
		c.RateLimit = overlay.RateLimit
	}
	if overlay.IntegritySchedule != "" {
		c.IntegritySchedule = overlay.IntegritySchedule
	}
	if overlay.MaxContentBytes > 0 {
		c.MaxContentBytes = overlay.MaxContentBytes
	}
	if overlay.ActivityLimit > 0 {
		c.ActivityLimit = overlay.ActivityLimit
	}

	return nil
}

// getEnv reads a string from an environment variable, returning the default if unset.
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer from an environment variable, returning the default if unset or invalid.
func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
