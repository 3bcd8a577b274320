// Package gateway defines the provider boundary used by the acquisition core.
//
// The core depends only on the interfaces here:
//   - HistoricalGateway: one page of bars per call, chained by page token
//   - StreamGateway / Conn: an authenticated connection yielding raw messages
//
// Implementations:
//   - REST: market data REST API through internal/api
//   - SDK: the official alpaca-trade-api-go marketdata client
//   - websocket streaming lives in internal/connection
package gateway
