// Package engine contains the simulation core: the portfolio ledger, the
// backtest driver, and the performance analyzer. The engine consumes a
// pre-cleaned candle series with one signal attached per candle and produces
// a deterministic per-step trace.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"

	"macdbot/internal/util"
	"macdbot/types"
)

var (
	ErrInvalidDateRange     = errors.New("start date must be before end date")
	ErrNonPositiveCapital   = errors.New("initial capital must be positive")
	ErrCommissionOutOfRange = errors.New("commission rate must be in [0,1)")
	ErrNonPositiveTradeSize = errors.New("trade amount must be positive")
	ErrSignalCountMismatch  = errors.New("every candle needs exactly one signal")
	ErrUnorderedCandles     = errors.New("candle timestamps must be strictly increasing")
	ErrSimulationFailure    = errors.New("simulation aborted")
)

// RunConfig is immutable for the duration of one run.
type RunConfig struct {
	Start          time.Time
	End            time.Time
	InitialCapital decimal.Decimal
	Commission     decimal.Decimal
	TradeAmount    decimal.Decimal
}

func (c RunConfig) validate() error {
	switch {
	case !c.Start.Before(c.End):
		return fmt.Errorf("start %s, end %s: %w",
			c.Start.Format(time.DateOnly), c.End.Format(time.DateOnly), ErrInvalidDateRange)
	case !c.InitialCapital.IsPositive():
		return fmt.Errorf("initial_capital %s: %w", c.InitialCapital, ErrNonPositiveCapital)
	case c.Commission.IsNegative() || !c.Commission.LessThan(one):
		return fmt.Errorf("commission %s: %w", c.Commission, ErrCommissionOutOfRange)
	case !c.TradeAmount.IsPositive():
		return fmt.Errorf("trade_amount %s: %w", c.TradeAmount, ErrNonPositiveTradeSize)
	}
	return nil
}

// Result aggregates one finished run. An empty window yields a Result with a
// zero-row Trace and a nil error; any returned error means the run aborted
// and no partial trace is available.
type Result struct {
	Trace       Trace
	Trades      int
	FinalEquity decimal.Decimal
}

// Backtester drives the ledger across a candle series, one call per candle
// in timestamp order. Each step depends on the cash drawn by every prior
// step, so the loop is strictly sequential.
type Backtester struct {
	cfg          RunConfig
	logger       *slog.Logger
	showProgress bool
}

func NewBacktester(cfg RunConfig, logger *slog.Logger) *Backtester {
	if logger == nil {
		logger = util.DiscardLogger()
	}
	return &Backtester{cfg: cfg, logger: logger}
}

// ShowProgress enables the terminal progress bar during Run.
func (b *Backtester) ShowProgress() {
	b.showProgress = true
}

// Run simulates the signal stream against the candle series. Candles and
// signals must be index-aligned; the series is filtered to the configured
// window [start, end] inclusive before simulation. Any fault inside the
// candle loop aborts the run with ErrSimulationFailure; no partial trace is
// returned.
func (b *Backtester) Run(candles []types.Candle, signals []types.Signal) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("%v: %w", r, ErrSimulationFailure)
		}
	}()
	if err := b.cfg.validate(); err != nil {
		return nil, err
	}
	if len(signals) != len(candles) {
		return nil, fmt.Errorf("%d candles, %d signals: %w",
			len(candles), len(signals), ErrSignalCountMismatch)
	}

	idx := filterWindow(candles, b.cfg.Start, b.cfg.End)
	if err := checkOrdering(candles, idx); err != nil {
		return nil, err
	}

	b.logger.Info("starting backtest",
		"start", b.cfg.Start, "end", b.cfg.End,
		"candles", len(idx),
		"initial_capital", b.cfg.InitialCapital,
		"commission", b.cfg.Commission,
		"trade_amount", b.cfg.TradeAmount)

	if len(idx) == 0 {
		b.logger.Warn("no candles in the configured window")
		return &Result{Trace: Trace{}, FinalEquity: b.cfg.InitialCapital}, nil
	}

	ledger := NewLedger(b.cfg.InitialCapital, b.cfg.TradeAmount, b.cfg.Commission, b.logger)
	trace := make(Trace, 0, len(idx))

	var bar *progressbar.ProgressBar
	if b.showProgress {
		bar = newProgressBar(len(idx))
	}

	for _, i := range idx {
		if !candles[i].Close.IsPositive() {
			return nil, fmt.Errorf("candle at %s has non-positive close %s: %w",
				candles[i].Timestamp.Format(time.RFC3339), candles[i].Close,
				ErrSimulationFailure)
		}
		rec := ledger.Apply(candles[i].Timestamp, signals[i], candles[i].Close)
		trace = append(trace, rec)
		if bar != nil {
			bar.Add(1)
		}
	}

	res = &Result{
		Trace:       trace,
		Trades:      ledger.Trades(),
		FinalEquity: trace[len(trace)-1].Total,
	}
	b.logger.Info("backtest finished",
		"trades", res.Trades, "final_equity", res.FinalEquity)
	return res, nil
}

// filterWindow returns the indexes of candles inside [start, end] inclusive,
// preserving input order so signal alignment survives the filter.
func filterWindow(candles []types.Candle, start, end time.Time) []int {
	idx := make([]int, 0, len(candles))
	for i, c := range candles {
		if c.Timestamp.Before(start) || c.Timestamp.After(end) {
			continue
		}
		idx = append(idx, i)
	}
	return idx
}

func checkOrdering(candles []types.Candle, idx []int) error {
	for j := 1; j < len(idx); j++ {
		prev, cur := candles[idx[j-1]], candles[idx[j]]
		if !cur.Timestamp.After(prev.Timestamp) {
			return fmt.Errorf("candle at %s follows %s: %w",
				cur.Timestamp.Format(time.RFC3339), prev.Timestamp.Format(time.RFC3339),
				ErrUnorderedCandles)
		}
	}
	return nil
}

func newProgressBar(steps int) *progressbar.ProgressBar {
	return progressbar.NewOptions(steps,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription("Backtesting in progress..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
