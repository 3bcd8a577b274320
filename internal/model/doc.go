// Package model defines the bar record shared by every stage of the pipeline.
//
// Conventions:
//   - Prices: shopspring decimal, always positive
//   - Timestamps: time.Time in UTC
//   - Symbols: upper-case tickers (e.g. "AAPL")
//
// Records are built only through Normalize and are never mutated afterwards.
package model
