package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kyungseopkim/algorithm-trading/internal/config"
)

// ApplicationName is reported to the server for every connection.
const ApplicationName = "bars"

// Schema creates the bars table. Prices are exact numerics.
const Schema = `
CREATE TABLE IF NOT EXISTS bars (
	symbol      TEXT NOT NULL,
	timeframe   TEXT NOT NULL,
	ts          TIMESTAMPTZ NOT NULL,
	open        NUMERIC NOT NULL,
	high        NUMERIC NOT NULL,
	low         NUMERIC NOT NULL,
	close       NUMERIC NOT NULL,
	volume      BIGINT NOT NULL,
	trade_count BIGINT NOT NULL DEFAULT 0,
	vwap        NUMERIC NOT NULL DEFAULT 0,
	source      TEXT NOT NULL,
	batch_id    UUID NOT NULL,
	received_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT bars_pk PRIMARY KEY (symbol, timeframe, ts),
	CONSTRAINT bars_ohlc_valid CHECK (low <= open AND open <= high AND low <= close AND close <= high),
	CONSTRAINT bars_prices_positive CHECK (open > 0 AND high > 0 AND low > 0 AND close > 0),
	CONSTRAINT bars_counts_non_negative CHECK (volume >= 0 AND trade_count >= 0 AND vwap >= 0)
)`

// Connect creates a connection pool and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	connStr := BuildConnString(cfg)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// EnsureSchema creates the bars table when it does not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create bars table: %w", err)
	}
	return nil
}
