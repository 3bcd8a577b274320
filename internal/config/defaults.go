package config

import (
	"strings"
	"time"

	"github.com/kyungseopkim/algorithm-trading/internal/model"
)

// Default values for optional configuration fields.
const (
	DefaultDataURL            = "https://data.alpaca.markets/v2"
	DefaultStreamURL          = "wss://stream.data.alpaca.markets/v2"
	DefaultAPITimeout         = 30 * time.Second
	DefaultMaxRetries         = 3
	DefaultStreamFeed         = "iex"
	DefaultSymbols            = "AAPL,SPY"
	DefaultAuthTimeout        = 10 * time.Second
	DefaultSubscribeTimeout   = 10 * time.Second
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 60 * time.Second
	DefaultPingTimeout        = 60 * time.Second
	DefaultStreamBufferSize   = 1000
	DefaultHistoricalFeed     = "sip"
	DefaultTimeframe          = "1Day"
	DefaultGateway            = "rest"
	DefaultPageSize           = 1000
	DefaultPageDelay          = 100 * time.Millisecond
	DefaultConcurrency        = 1
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
	DefaultBatchSize          = 500
	DefaultFlushInterval      = 1 * time.Second
	DefaultWriterBufferSize   = 10000
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
	DefaultLogMaxSizeMB       = 100
	DefaultLogMaxBackups      = 5
	DefaultLogMaxAgeDays      = 28
)

func (c *Config) applyDefaults() {
	// API defaults
	if c.API.DataURL == "" {
		c.API.DataURL = DefaultDataURL
	}
	if c.API.StreamURL == "" {
		c.API.StreamURL = DefaultStreamURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == nil {
		retries := DefaultMaxRetries
		c.API.MaxRetries = &retries
	}

	// Stream defaults
	c.Stream.Feed = string(model.ParseStreamFeed(c.Stream.Feed))
	if len(c.Stream.Symbols) == 0 {
		c.Stream.Symbols = model.ParseSymbols(DefaultSymbols)
	} else {
		c.Stream.Symbols = model.ParseSymbols(strings.Join(c.Stream.Symbols, ","))
	}
	if c.Stream.AuthTimeout == 0 {
		c.Stream.AuthTimeout = DefaultAuthTimeout
	}
	if c.Stream.SubscribeTimeout == 0 {
		c.Stream.SubscribeTimeout = DefaultSubscribeTimeout
	}
	if c.Stream.ReconnectBaseDelay == 0 {
		c.Stream.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Stream.ReconnectMaxDelay == 0 {
		c.Stream.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Stream.PingTimeout == 0 {
		c.Stream.PingTimeout = DefaultPingTimeout
	}
	if c.Stream.BufferSize == 0 {
		c.Stream.BufferSize = DefaultStreamBufferSize
	}

	// Historical defaults
	if c.Historical.Feed == "" {
		c.Historical.Feed = DefaultHistoricalFeed
	}
	if c.Historical.Timeframe == "" {
		c.Historical.Timeframe = DefaultTimeframe
	}
	if c.Historical.Gateway == "" {
		c.Historical.Gateway = DefaultGateway
	}
	if c.Historical.PageSize == 0 {
		c.Historical.PageSize = DefaultPageSize
	}
	if c.Historical.PageDelay == 0 {
		c.Historical.PageDelay = DefaultPageDelay
	}
	if c.Historical.Concurrency == 0 {
		c.Historical.Concurrency = DefaultConcurrency
	}

	// Database defaults
	applyDBDefaults(&c.Database.Timescale)

	// Writer defaults
	if c.Writer.BatchSize == 0 {
		c.Writer.BatchSize = DefaultBatchSize
	}
	if c.Writer.FlushInterval == 0 {
		c.Writer.FlushInterval = DefaultFlushInterval
	}
	if c.Writer.BufferSize == 0 {
		c.Writer.BufferSize = DefaultWriterBufferSize
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = DefaultLogMaxBackups
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = DefaultLogMaxAgeDays
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
