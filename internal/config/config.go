// Package config loads and validates the YAML configuration file. Defaulting
// and environment overrides happen here, before the simulation core ever sees
// the values; the core itself never fills gaps.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"macdbot/types"
)

var ErrMissingConfigKey = errors.New("missing required config key")

type Config struct {
	Backtest BacktestConfig `yaml:"backtest"`
	Strategy StrategyConfig `yaml:"strategy"`
	Data     DataConfig     `yaml:"data"`
	Live     LiveConfig     `yaml:"live"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type BacktestConfig struct {
	StartDate      string  `yaml:"start_date"`
	EndDate        string  `yaml:"end_date"`
	InitialCapital float64 `yaml:"initial_capital"`
	Commission     float64 `yaml:"commission"`
	ResultsCSV     string  `yaml:"results_csv"`
}

type StrategyConfig struct {
	FastPeriod   int     `yaml:"fast_period"`
	SlowPeriod   int     `yaml:"slow_period"`
	SignalPeriod int     `yaml:"signal_period"`
	TradeAmount  float64 `yaml:"trade_amount"`
}

type DataConfig struct {
	DatabaseURL string `yaml:"database_url"`
	Symbol      string `yaml:"symbol"`
	Interval    string `yaml:"interval"`
}

type LiveConfig struct {
	APIBaseURL    string `yaml:"api_base_url"`
	PollSeconds   int    `yaml:"poll_seconds"`
	JournalPath   string `yaml:"journal_path"`
	TelemetryAddr string `yaml:"telemetry_addr"`
	HistoryBars   int    `yaml:"history_bars"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads the YAML file at path, applies defaults for the optional keys,
// and then applies environment overrides. Required keys stay empty when
// absent; Validate reports them by name.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Strategy.FastPeriod == 0 {
		cfg.Strategy.FastPeriod = 12
	}
	if cfg.Strategy.SlowPeriod == 0 {
		cfg.Strategy.SlowPeriod = 26
	}
	if cfg.Strategy.SignalPeriod == 0 {
		cfg.Strategy.SignalPeriod = 9
	}
	if cfg.Data.Symbol == "" {
		cfg.Data.Symbol = "BTCUSDT"
	}
	if cfg.Data.Interval == "" {
		cfg.Data.Interval = string(types.FourHours)
	}
	if cfg.Live.APIBaseURL == "" {
		cfg.Live.APIBaseURL = "https://api.binance.com"
	}
	if cfg.Live.PollSeconds == 0 {
		cfg.Live.PollSeconds = 30
	}
	if cfg.Live.HistoryBars == 0 {
		cfg.Live.HistoryBars = 100
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Data.DatabaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks every required key and names the first one that is missing
// or out of range.
func (c *Config) Validate() error {
	switch {
	case c.Backtest.StartDate == "":
		return fmt.Errorf("backtest.start_date: %w", ErrMissingConfigKey)
	case c.Backtest.EndDate == "":
		return fmt.Errorf("backtest.end_date: %w", ErrMissingConfigKey)
	case c.Backtest.InitialCapital <= 0:
		return fmt.Errorf("backtest.initial_capital: %w", ErrMissingConfigKey)
	case c.Backtest.Commission < 0 || c.Backtest.Commission >= 1:
		return fmt.Errorf("backtest.commission must be in [0,1): got %v", c.Backtest.Commission)
	case c.Strategy.TradeAmount <= 0:
		return fmt.Errorf("strategy.trade_amount: %w", ErrMissingConfigKey)
	case c.Strategy.FastPeriod >= c.Strategy.SlowPeriod:
		return fmt.Errorf("strategy.fast_period %d must be below slow_period %d",
			c.Strategy.FastPeriod, c.Strategy.SlowPeriod)
	}
	if _, ok := types.ConvertInterval[c.Data.Interval]; !ok {
		return fmt.Errorf("data.interval %q not supported", c.Data.Interval)
	}
	return nil
}

// Window parses the configured backtest date range.
func (b BacktestConfig) Window() (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", b.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("backtest.start_date: %w", err)
	}
	end, err := time.Parse("2006-01-02", b.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("backtest.end_date: %w", err)
	}
	return start, end, nil
}

// Interval returns the configured candle interval.
func (d DataConfig) CandleInterval() types.Interval {
	return types.ConvertInterval[d.Interval]
}
