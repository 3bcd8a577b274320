package config

import (
	"time"

	"github.com/kyungseopkim/algorithm-trading/internal/auth"
)

// Config is the root configuration shared by the stream and historical CLIs.
type Config struct {
	API        APIConfig        `yaml:"api"`
	Stream     StreamConfig     `yaml:"stream"`
	Historical HistoricalConfig `yaml:"historical"`
	Database   DatabaseConfig   `yaml:"database"`
	Writer     WriterConfig     `yaml:"writer"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// APIConfig holds Alpaca credentials and endpoints.
type APIConfig struct {
	KeyID      string        `yaml:"key_id"`     // Overridden by APCA_API_KEY_ID
	SecretKey  string        `yaml:"secret_key"` // Overridden by APCA_API_SECRET_KEY
	BaseURL    string        `yaml:"base_url"`   // Trading API base URL, APCA_API_BASE_URL
	DataURL    string        `yaml:"data_url"`
	StreamURL  string        `yaml:"stream_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries *int          `yaml:"max_retries"` // Unset means DefaultMaxRetries, 0 disables retries
}

// Retries returns the configured retry count.
func (a APIConfig) Retries() int {
	if a.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *a.MaxRetries
}

// StreamConfig holds real-time session settings.
type StreamConfig struct {
	Feed               string        `yaml:"feed"`
	Symbols            []string      `yaml:"symbols"`
	AuthTimeout        time.Duration `yaml:"auth_timeout"`
	SubscribeTimeout   time.Duration `yaml:"subscribe_timeout"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	PingTimeout        time.Duration `yaml:"ping_timeout"`
	IdleTimeout        time.Duration `yaml:"idle_timeout"` // 0 disables the idle watchdog
	BufferSize         int           `yaml:"buffer_size"`
	HealthAddr         string        `yaml:"health_addr"`
}

// HistoricalConfig holds range fetcher settings.
type HistoricalConfig struct {
	Feed        string        `yaml:"feed"`
	Timeframe   string        `yaml:"timeframe"`
	Gateway     string        `yaml:"gateway"` // rest or sdk
	PageSize    int           `yaml:"page_size"`
	PageDelay   time.Duration `yaml:"page_delay"`
	Concurrency int           `yaml:"concurrency"`
	Retries     int           `yaml:"retries"` // Resume attempts per symbol, 0 disables
}

// DatabaseConfig holds the optional TimescaleDB bar sink.
type DatabaseConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Timescale DBConfig `yaml:"timescale"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// WriterConfig holds batch writer settings for the database sink.
type WriterConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// LoggingConfig controls the root logger.
type LoggingConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // text or json
	File       string `yaml:"file"`   // Empty logs to stderr
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Credentials returns the API key pair as auth credentials.
func (c *Config) Credentials() auth.Credentials {
	return auth.Credentials{
		KeyID:     c.API.KeyID,
		SecretKey: c.API.SecretKey,
		BaseURL:   c.API.BaseURL,
	}
}
