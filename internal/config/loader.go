package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kyungseopkim/algorithm-trading/internal/auth"
	"github.com/kyungseopkim/algorithm-trading/internal/model"
)

// Environment variables read on top of the file.
const (
	EnvFeed     = "ALPACA_FEED"
	EnvSymbols  = "BAR_SYMBOLS"
	EnvLogLevel = "LOG_LEVEL"
)

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand ${VAR} environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config, applies environment overrides and default
// values.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// FromEnv builds a validated config from defaults and the environment alone.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Resolve loads path when set and falls back to FromEnv otherwise.
func Resolve(path string) (*Config, error) {
	if path == "" {
		return FromEnv()
	}
	return LoadAndValidate(path)
}

// applyEnv overrides file values with non-empty environment variables.
func (c *Config) applyEnv() {
	creds := auth.FromEnv()
	if creds.KeyID != "" {
		c.API.KeyID = creds.KeyID
	}
	if creds.SecretKey != "" {
		c.API.SecretKey = creds.SecretKey
	}
	if creds.BaseURL != "" {
		c.API.BaseURL = creds.BaseURL
	}
	if v := strings.TrimSpace(os.Getenv(EnvFeed)); v != "" {
		c.Stream.Feed = v
	}
	if v := os.Getenv(EnvSymbols); strings.TrimSpace(v) != "" {
		c.Stream.Symbols = model.ParseSymbols(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.Logging.Level = v
	}
}
