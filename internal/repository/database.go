// Package repository persists candle history in postgres and hands it back
// as ordered series for signal generation and simulation.
package repository

import (
	"context"
	"errors"
	"fmt"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrIntervalNotSupported = errors.New("timeframe not supported")
	ErrNoCandles            = errors.New("no candles found in datasource")
)

// Database holds the connection pool. All prices move through the wire as
// numeric and land in shopspring decimals, never floats.
type Database struct {
	pool *pgxpool.Pool
}

// NewDatabase creates a new Database instance and verifies connectivity.
func NewDatabase(ctx context.Context, dbURL string) (*Database, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// Register shopspring decimal
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	// Ensure the connection is established.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &Database{pool: pool}, nil
}

// Init creates the candle table if it does not exist yet.
func (db *Database) Init(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS candles (
			symbol    TEXT        NOT NULL,
			interval  TEXT        NOT NULL,
			open_time TIMESTAMPTZ NOT NULL,
			open      NUMERIC     NOT NULL,
			high      NUMERIC     NOT NULL,
			low       NUMERIC     NOT NULL,
			close     NUMERIC     NOT NULL,
			volume    NUMERIC     NOT NULL,
			PRIMARY KEY (symbol, interval, open_time)
		)`)
	if err != nil {
		return fmt.Errorf("create candles table: %w", err)
	}
	return nil
}

func (db *Database) Close() {
	db.pool.Close()
}
