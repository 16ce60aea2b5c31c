// Package live runs the crossover strategy against current market data as a
// paper trader. It reuses the backtest ledger unchanged; only the candle
// source and the pacing differ from a historical run.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"macdbot/internal/engine"
	"macdbot/internal/journal"
	"macdbot/internal/strategy"
	"macdbot/internal/util"
	"macdbot/types"
)

// MarketData supplies candles and the latest price. The exchange REST client
// satisfies it; tests swap in a fake.
type MarketData interface {
	Klines(ctx context.Context, symbol string, interval types.Interval, start, end time.Time, limit int) ([]types.Candle, error)
	TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Journal persists executed fills.
type Journal interface {
	SaveFill(ctx context.Context, f journal.Fill) error
}

// Snapshot is the post-iteration portfolio state pushed to monitors.
type Snapshot struct {
	Time     time.Time       `json:"time"`
	Signal   types.Signal    `json:"signal"`
	Price    decimal.Decimal `json:"price"`
	Cash     decimal.Decimal `json:"cash"`
	Position decimal.Decimal `json:"position"`
	Equity   decimal.Decimal `json:"equity"`
}

// Config holds the per-session parameters of one live engine.
type Config struct {
	Symbol       string
	Interval     types.Interval
	HistoryBars  int
	PollInterval time.Duration
}

// Engine polls the market, recomputes signals over the trailing window, and
// applies the newest signal to its ledger. Data fetches serialize on dataMu
// and trade execution on tradeMu, so a status reader never blocks behind a
// slow HTTP call.
type Engine struct {
	cfg    Config
	market MarketData
	strat  strategy.Strategy
	jrnl   Journal
	logger *slog.Logger

	dataMu  sync.Mutex
	tradeMu sync.Mutex
	running atomic.Bool

	ledger     *engine.Ledger
	lastCandle time.Time

	snapshots chan Snapshot
}

func NewEngine(cfg Config, market MarketData, strat strategy.Strategy, ledger *engine.Ledger, jrnl Journal, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = util.DiscardLogger()
	}
	if cfg.HistoryBars <= 0 {
		cfg.HistoryBars = 100
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	return &Engine{
		cfg:       cfg,
		market:    market,
		strat:     strat,
		jrnl:      jrnl,
		logger:    logger,
		ledger:    ledger,
		snapshots: make(chan Snapshot, 64),
	}
}

// Snapshots is the monitor feed. The engine never blocks on it: when the
// buffer is full the oldest unread state is simply superseded by silence.
// The channel is closed when Run returns, so consumers can range over it.
func (e *Engine) Snapshots() <-chan Snapshot {
	return e.snapshots
}

// Stop requests a graceful halt; the loop observes the flag at the top of
// its next iteration.
func (e *Engine) Stop() {
	e.running.Store(false)
}

// Run polls until Stop is called or ctx is cancelled. Run is single-use: it
// closes the snapshot feed on exit and must not be restarted.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.snapshots)
	e.running.Store(true)
	e.logger.Info("live engine started",
		"symbol", e.cfg.Symbol, "interval", string(e.cfg.Interval),
		"strategy", e.strat.Name(), "poll", e.cfg.PollInterval)

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for e.running.Load() {
		if err := e.Step(ctx); err != nil {
			e.logger.Error("iteration failed, will retry next poll", "error", err)
		}
		select {
		case <-ctx.Done():
			e.running.Store(false)
			return ctx.Err()
		case <-ticker.C:
		}
	}
	e.logger.Info("live engine stopped")
	return nil
}

// Step performs one poll-evaluate-execute iteration. It is exported so tests
// and manual drivers can pace the engine themselves.
func (e *Engine) Step(ctx context.Context) error {
	candles, price, err := e.fetch(ctx)
	if err != nil {
		return err
	}
	if len(candles) == 0 {
		e.logger.Warn("exchange returned no candles")
		return nil
	}

	signals, err := e.strat.GenerateSignals(candles)
	if err != nil {
		return err
	}

	last := candles[len(candles)-1]
	sig := signals[len(signals)-1]

	e.tradeMu.Lock()
	defer e.tradeMu.Unlock()

	// One decision per candle: a repeat poll inside the same bar is a no-op.
	if !last.Timestamp.After(e.lastCandle) {
		return nil
	}
	e.lastCandle = last.Timestamp

	tradesBefore := e.ledger.Trades()
	posBefore := e.ledger.Position()
	rec := e.ledger.Apply(last.Timestamp, sig, price)

	if e.ledger.Trades() > tradesBefore && e.jrnl != nil {
		fill := journal.Fill{
			Time:     last.Timestamp,
			Side:     sig,
			Quantity: rec.Position.Sub(posBefore).Abs(),
			Price:    price,
			Equity:   rec.Total,
		}
		if err := e.jrnl.SaveFill(ctx, fill); err != nil {
			e.logger.Error("journal write failed", "error", err)
		}
	}

	snap := Snapshot{
		Time:     rec.Timestamp,
		Signal:   sig,
		Price:    price,
		Cash:     rec.Cash,
		Position: rec.Position,
		Equity:   rec.Total,
	}
	select {
	case e.snapshots <- snap:
	default:
		e.logger.Warn("snapshot buffer full, dropping state update")
	}
	return nil
}

// fetch pulls the trailing candle window and the current price under dataMu.
func (e *Engine) fetch(ctx context.Context) ([]types.Candle, decimal.Decimal, error) {
	e.dataMu.Lock()
	defer e.dataMu.Unlock()

	candles, err := e.market.Klines(ctx, e.cfg.Symbol, e.cfg.Interval,
		time.Time{}, time.Time{}, e.cfg.HistoryBars)
	if err != nil {
		return nil, decimal.Zero, err
	}
	price, err := e.market.TickerPrice(ctx, e.cfg.Symbol)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return candles, price, nil
}

// MarshalSnapshot renders a snapshot for the telemetry hub.
func MarshalSnapshot(s Snapshot) []byte {
	b, _ := json.Marshal(s)
	return b
}
