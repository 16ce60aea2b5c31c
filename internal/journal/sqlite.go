// Package journal records executed paper fills in a local SQLite database so
// a live session leaves a durable audit trail across restarts.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"macdbot/types"
)

// Fill is one executed paper trade plus the equity it left behind.
type Fill struct {
	Time     time.Time
	Side     types.Signal
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Equity   decimal.Decimal
}

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the journal database at dbPath and ensures the
// schema exists. Decimals are stored as TEXT to keep them exact.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS fills (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			time     TEXT NOT NULL,
			side     INTEGER NOT NULL,
			quantity TEXT NOT NULL,
			price    TEXT NOT NULL,
			equity   TEXT NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create fills table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveFill appends one fill to the journal.
func (s *Store) SaveFill(ctx context.Context, f Fill) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fills (time, side, quantity, price, equity)
		VALUES (?, ?, ?, ?, ?)`,
		f.Time.UTC().Format(time.RFC3339Nano),
		int(f.Side),
		f.Quantity.String(),
		f.Price.String(),
		f.Equity.String())
	if err != nil {
		return fmt.Errorf("insert fill: %w", err)
	}
	return nil
}

// ListFills returns all recorded fills in insertion order.
func (s *Store) ListFills(ctx context.Context) ([]Fill, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT time, side, quantity, price, equity
		FROM fills ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query fills: %w", err)
	}
	defer rows.Close()

	var fills []Fill
	for rows.Next() {
		var (
			ts   string
			side int
			f    Fill
		)
		var qty, price, equity string
		if err := rows.Scan(&ts, &side, &qty, &price, &equity); err != nil {
			return nil, fmt.Errorf("scan fill: %w", err)
		}
		f.Time, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse fill time %q: %w", ts, err)
		}
		f.Side = types.Signal(side)
		if f.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("parse quantity %q: %w", qty, err)
		}
		if f.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse price %q: %w", price, err)
		}
		if f.Equity, err = decimal.NewFromString(equity); err != nil {
			return nil, fmt.Errorf("parse equity %q: %w", equity, err)
		}
		fills = append(fills, f)
	}
	return fills, rows.Err()
}
