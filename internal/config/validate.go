package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kyungseopkim/algorithm-trading/internal/model"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if err := c.Credentials().Validate(); err != nil {
		return err
	}
	if c.API.Retries() < 0 {
		return errors.New("api.max_retries must be >= 0")
	}

	if len(c.Stream.Symbols) == 0 {
		return errors.New("stream.symbols must not be empty")
	}
	if c.Stream.ReconnectBaseDelay <= 0 {
		return errors.New("stream.reconnect_base_delay must be > 0")
	}
	if c.Stream.ReconnectMaxDelay < c.Stream.ReconnectBaseDelay {
		return fmt.Errorf("stream.reconnect_max_delay (%s) cannot be less than reconnect_base_delay (%s)",
			c.Stream.ReconnectMaxDelay, c.Stream.ReconnectBaseDelay)
	}
	if c.Stream.BufferSize < 1 {
		return errors.New("stream.buffer_size must be >= 1")
	}
	if c.Stream.IdleTimeout < 0 {
		return errors.New("stream.idle_timeout must be >= 0")
	}

	if _, err := model.ParseFeed(c.Historical.Feed); err != nil {
		return fmt.Errorf("historical.feed: %w", err)
	}
	if _, err := model.ParseTimeframe(c.Historical.Timeframe); err != nil {
		return fmt.Errorf("historical.timeframe: %w", err)
	}
	switch strings.ToLower(c.Historical.Gateway) {
	case "rest", "sdk":
	default:
		return fmt.Errorf("historical.gateway must be rest or sdk, got %q", c.Historical.Gateway)
	}
	if c.Historical.Concurrency < 1 {
		return errors.New("historical.concurrency must be >= 1")
	}
	if c.Historical.Retries < 0 {
		return errors.New("historical.retries must be >= 0")
	}

	if c.Database.Enabled {
		if err := c.Database.Timescale.validate("database.timescale"); err != nil {
			return err
		}
		if c.Writer.BatchSize < 1 {
			return errors.New("writer.batch_size must be >= 1")
		}
		if c.Writer.BufferSize < 1 {
			return errors.New("writer.buffer_size must be >= 1")
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
