// Package config loads application configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Aggregate  AggregateConfig  `yaml:"aggregate"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port     int    `yaml:"port"`
	BasePath string `yaml:"base_path"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds API authentication settings. APITokenHash is a bcrypt
// hash of the bearer token admin clients must present; empty disables the
// admin surface.
type AuthConfig struct {
	APITokenHash string `yaml:"api_token_hash"`
}

// EncryptionConfig holds the key protecting stored provider credentials.
type EncryptionConfig struct {
	Key string `yaml:"key"`
}

// AggregateConfig holds aggregation defaults.
type AggregateConfig struct {
	DefaultCountry string `yaml:"default_country"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level          string `yaml:"level"`
	Format         string `yaml:"format"`
	FilePath       string `yaml:"file_path"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb"`
	FileMaxFiles   int    `yaml:"file_max_files"`
	FileMaxAgeDays int    `yaml:"file_max_age_days"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     8080,
			BasePath: "/",
		},
		Database: DatabaseConfig{
			Path: "/data/medley.db",
		},
		Aggregate: AggregateConfig{
			DefaultCountry: "US",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("MEDLEY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("MEDLEY_BASE_PATH"); v != "" {
		c.Server.BasePath = v
	}
	if v := os.Getenv("MEDLEY_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("MEDLEY_API_TOKEN_HASH"); v != "" {
		c.Auth.APITokenHash = v
	}
	if v := os.Getenv("MEDLEY_ENCRYPTION_KEY"); v != "" {
		c.Encryption.Key = v
	}
	if v := os.Getenv("MEDLEY_DEFAULT_COUNTRY"); v != "" {
		c.Aggregate.DefaultCountry = v
	}
	if v := os.Getenv("MEDLEY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("MEDLEY_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("MEDLEY_LOG_FILE"); v != "" {
		c.Logging.FilePath = v
	}
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if len(c.Aggregate.DefaultCountry) != 2 {
		return fmt.Errorf("default country must be a two-letter code, got %q", c.Aggregate.DefaultCountry)
	}
	c.Aggregate.DefaultCountry = strings.ToUpper(c.Aggregate.DefaultCountry)
	c.Server.BasePath = strings.TrimRight(c.Server.BasePath, "/")
	return nil
}
