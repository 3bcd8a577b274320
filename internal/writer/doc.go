// Package writer implements the batched TimescaleDB sink for bar records.
//
// The sink is append-only: rows are inserted with ON CONFLICT DO NOTHING, so
// a bar delivered twice (for example a streaming redelivery after reconnect,
// or an overlapping historical backfill) is counted as a conflict and kept
// once.
package writer
