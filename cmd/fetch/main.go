package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"macdbot/internal/config"
	"macdbot/internal/exchange"
	"macdbot/internal/repository"
	"macdbot/internal/util"
	"macdbot/types"
)

// Binance caps klines responses at 1000 rows per request.
const pageSize = 1000

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	logger := util.NewLogger(cfg.Logging.Level)

	if err := run(cfg, logger); err != nil {
		logger.Error("fetch failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	db, err := repository.NewDatabase(ctx, cfg.Data.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()
	if err := db.Init(ctx); err != nil {
		return err
	}

	start, end, err := cfg.Backtest.Window()
	if err != nil {
		return err
	}
	interval := cfg.Data.CandleInterval()
	step := types.IntervalToTime[interval]

	client := exchange.NewClient(cfg.Live.APIBaseURL)
	var total int64

	for cursor := start; cursor.Before(end); {
		var page []types.Candle
		err := util.Retry(ctx, 3, time.Second, func() error {
			var fetchErr error
			page, fetchErr = client.Klines(ctx, cfg.Data.Symbol, interval, cursor, end, pageSize)
			return fetchErr
		})
		if err != nil {
			return fmt.Errorf("fetch klines from %s: %w", cursor.Format(time.DateOnly), err)
		}
		if len(page) == 0 {
			break
		}

		page = repository.CleanCandles(page)
		inserted, err := db.SaveCandles(ctx, cfg.Data.Symbol, page)
		if err != nil {
			return fmt.Errorf("store candles: %w", err)
		}
		total += inserted
		logger.Info("page stored",
			"from", page[0].Timestamp, "to", page[len(page)-1].Timestamp,
			"rows", len(page), "inserted", inserted)

		cursor = page[len(page)-1].Timestamp.Add(step)
	}

	logger.Info("fetch finished", "symbol", cfg.Data.Symbol, "inserted", total)
	return nil
}
