package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/shopspring/decimal"

	"macdbot/internal/config"
	"macdbot/internal/engine"
	"macdbot/internal/repository"
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

	if err := run(cfg, logger); err != nil {
		logger.Error("backtest failed", "error", err)
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

	candles, err := db.GetCandles(ctx, cfg.Data.Symbol, cfg.Data.CandleInterval())
	if err != nil {
		return fmt.Errorf("load candles: %w", err)
	}
	candles = repository.CleanCandles(candles)

	strat, err := strategy.NewMACD(
		cfg.Strategy.FastPeriod, cfg.Strategy.SlowPeriod, cfg.Strategy.SignalPeriod)
	if err != nil {
		return err
	}
	signals, err := strat.GenerateSignals(candles)
	if err != nil {
		return fmt.Errorf("generate signals: %w", err)
	}

	start, end, err := cfg.Backtest.Window()
	if err != nil {
		return err
	}
	runCfg := engine.RunConfig{
		Start:          start,
		End:            end,
		InitialCapital: decimal.NewFromFloat(cfg.Backtest.InitialCapital),
		Commission:     decimal.NewFromFloat(cfg.Backtest.Commission),
		TradeAmount:    decimal.NewFromFloat(cfg.Strategy.TradeAmount),
	}

	backtester := engine.NewBacktester(runCfg, logger)
	backtester.ShowProgress()
	result, err := backtester.Run(candles, signals)
	if err != nil {
		return err
	}

	report := engine.Analyze(result.Trace, engine.DefaultAnalyzerConfig())
	fmt.Println()
	report.Write(os.Stdout)

	if cfg.Backtest.ResultsCSV != "" {
		if err := result.Trace.WriteCSVFile(cfg.Backtest.ResultsCSV); err != nil {
			return fmt.Errorf("export trace: %w", err)
		}
		logger.Info("trace exported", "path", cfg.Backtest.ResultsCSV, "rows", len(result.Trace))
	}
	return nil
}
