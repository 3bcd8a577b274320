package writer

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Config contains configuration for the bar writer.
type Config struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration

	// BufferSize is the capacity of the input queue.
	BufferSize int

	// Timeframe is stored with every row (e.g., "1Min").
	Timeframe string

	// Source tags rows by acquisition path: "stream" or "historical".
	Source string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		FlushInterval: time.Second,
		BufferSize:    10000,
		Timeframe:     "1Min",
		Source:        "stream",
	}
}

// barRow represents a row to be inserted into the bars table.
type barRow struct {
	Symbol     string
	Timeframe  string
	Ts         time.Time
	Open       pgtype.Numeric
	High       pgtype.Numeric
	Low        pgtype.Numeric
	Close      pgtype.Numeric
	Volume     int64
	TradeCount int64
	VWAP       pgtype.Numeric
	Source     string
}

// Metrics holds counters for a writer.
type Metrics struct {
	Inserts     int64
	Conflicts   int64
	Errors      int64
	Flushes     int64
	LastBatchID string
}
