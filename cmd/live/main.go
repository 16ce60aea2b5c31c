package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"macdbot/internal/config"
	"macdbot/internal/engine"
	"macdbot/internal/exchange"
	"macdbot/internal/journal"
	"macdbot/internal/live"
	"macdbot/internal/strategy"
	"macdbot/internal/util"
)

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("live session failed", "error", err)
		os.Exit(1)
	}
	logger.Info("live session ended")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	strat, err := strategy.NewMACD(
		cfg.Strategy.FastPeriod, cfg.Strategy.SlowPeriod, cfg.Strategy.SignalPeriod)
	if err != nil {
		return err
	}

	var jrnl live.Journal
	if cfg.Live.JournalPath != "" {
		store, err := journal.Open(cfg.Live.JournalPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer store.Close()
		jrnl = store
	}

	ledger := engine.NewLedger(
		decimal.NewFromFloat(cfg.Backtest.InitialCapital),
		decimal.NewFromFloat(cfg.Strategy.TradeAmount),
		decimal.NewFromFloat(cfg.Backtest.Commission),
		logger)

	eng := live.NewEngine(
		live.Config{
			Symbol:       cfg.Data.Symbol,
			Interval:     cfg.Data.CandleInterval(),
			HistoryBars:  cfg.Live.HistoryBars,
			PollInterval: time.Duration(cfg.Live.PollSeconds) * time.Second,
		},
		exchange.NewClient(cfg.Live.APIBaseURL),
		strat, ledger, jrnl, logger)

	hub := live.NewHub(logger)
	go hub.Run(ctx)
	if cfg.Live.TelemetryAddr != "" {
		go func() {
			if err := live.ServeTelemetry(ctx, hub, cfg.Live.TelemetryAddr, logger); err != nil {
				logger.Error("telemetry server failed", "error", err)
			}
		}()
	}

	// Monitor: print every snapshot and mirror it to the websocket feed.
	go func() {
		for snap := range eng.Snapshots() {
			logger.Info("portfolio",
				"time", snap.Time, "signal", snap.Signal.String(),
				"price", snap.Price, "cash", snap.Cash,
				"position", snap.Position, "equity", snap.Equity)
			hub.Broadcast(live.MarshalSnapshot(snap))
		}
	}()

	return eng.Run(ctx)
}
