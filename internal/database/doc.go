// Package database provides the TimescaleDB connection pool for the bar sink.
//
// Bars are stored in a single append-only table keyed by
// (symbol, timeframe, ts). EnsureSchema creates it when missing.
package database
