// Package api provides the Alpaca market data REST client.
//
// REST endpoints:
//   - Market data: https://data.alpaca.markets/v2
//   - Sandbox: https://data.sandbox.alpaca.markets/v2
//
// Only the stock bars endpoint is used:
//
//	GET /stocks/{symbol}/bars?timeframe=&start=&end=&limit=&page_token=&feed=
//
// Results are paged; a response with an empty next_page_token is the last page.
package api
