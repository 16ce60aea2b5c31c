package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"macdbot/types"
)

// GetCandles loads the full stored series for one symbol and interval in
// chronological order.
func (db *Database) GetCandles(ctx context.Context, symbol string, interval types.Interval) ([]types.Candle, error) {
	if _, ok := types.IntervalToTime[interval]; !ok {
		return nil, ErrIntervalNotSupported
	}
	rows, err := db.pool.Query(ctx, `
		SELECT open_time, open, high, low, close, volume
		FROM candles
		WHERE symbol = $1 AND interval = $2
		ORDER BY open_time ASC`,
		symbol, string(interval))
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	var candles []types.Candle
	for rows.Next() {
		c := types.Candle{Interval: interval}
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, ErrNoCandles
	}
	return candles, nil
}

// SaveCandles upserts a batch; rows already present are left untouched so a
// re-fetch of an overlapping range is harmless.
func (db *Database) SaveCandles(ctx context.Context, symbol string, candles []types.Candle) (int64, error) {
	batch := &pgx.Batch{}
	for _, c := range candles {
		batch.Queue(`
			INSERT INTO candles (symbol, interval, open_time, open, high, low, close, volume)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (symbol, interval, open_time) DO NOTHING`,
			symbol, string(c.Interval), c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume)
	}

	results := db.pool.SendBatch(ctx, batch)
	defer results.Close()

	var inserted int64
	for range candles {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert candle: %w", err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// CleanCandles normalizes a raw series before it is stored or simulated:
// duplicate timestamps keep the first occurrence, rows with a non-positive
// close are dropped, and the result is sorted chronologically.
func CleanCandles(candles []types.Candle) []types.Candle {
	seen := make(map[time.Time]bool, len(candles))
	cleaned := make([]types.Candle, 0, len(candles))
	for _, c := range candles {
		if seen[c.Timestamp] {
			continue
		}
		if !c.Close.IsPositive() {
			continue
		}
		seen[c.Timestamp] = true
		cleaned = append(cleaned, c)
	}
	sort.Slice(cleaned, func(i, j int) bool {
		return cleaned[i].Timestamp.Before(cleaned[j].Timestamp)
	})
	return cleaned
}
