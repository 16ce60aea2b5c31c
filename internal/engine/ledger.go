package engine

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"macdbot/internal/util"
	"macdbot/types"
)

var one = decimal.NewFromInt(1)

// Ledger owns the cash and position balances of a single run. It moves
// between flat and long as signals arrive; there is no shorting, so cash and
// position never go negative. The ledger assumes exclusive single-threaded
// ownership — the backtest driver and the live engine each serialize access
// on their side.
type Ledger struct {
	cash       decimal.Decimal
	position   decimal.Decimal
	tradeSize  decimal.Decimal
	commission decimal.Decimal
	trades     int
	logger     *slog.Logger
}

func NewLedger(initialCapital, tradeSize, commission decimal.Decimal, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = util.DiscardLogger()
	}
	return &Ledger{
		cash:       initialCapital,
		tradeSize:  tradeSize,
		commission: commission,
		logger:     logger,
	}
}

// Apply executes one signal at the given close price and returns the
// post-step snapshot. Revaluation happens on every call, trade or not, so
// the equity series is mark-to-market rather than trade-event based.
func (l *Ledger) Apply(ts time.Time, sig types.Signal, price decimal.Decimal) StepRecord {
	if !sig.Valid() {
		l.logger.Warn("signal outside {-1,0,1}, treating as hold",
			"signal", int(sig), "time", ts)
	}
	switch sig {
	case types.SignalBuy:
		l.buy(ts, price)
	case types.SignalSell:
		l.sell(ts, price)
	}

	holdings := l.position.Mul(price)
	return StepRecord{
		Timestamp: ts,
		Signal:    sig,
		Position:  l.position,
		Cash:      l.cash,
		Holdings:  holdings,
		Total:     l.cash.Add(holdings),
	}
}

func (l *Ledger) buy(ts time.Time, price decimal.Decimal) {
	if !l.cash.IsPositive() {
		return
	}
	// Affordable quantity is sized before commission; the cost check below
	// then caps actual spend at the cash balance. Near full deployment this
	// can skip a buy by a commission-sized margin, which is the accepted
	// sizing rule, not a bug to fix.
	qty := decimal.Min(l.tradeSize, l.cash.Div(price))
	cost := qty.Mul(price).Mul(one.Add(l.commission))
	if cost.GreaterThan(l.cash) {
		l.logger.Debug("buy skipped, cost exceeds cash",
			"time", ts, "cost", cost, "cash", l.cash)
		return
	}
	l.position = l.position.Add(qty)
	l.cash = l.cash.Sub(cost)
	l.trades++
	l.logger.Debug("buy filled", "time", ts, "qty", qty, "price", price, "cost", cost)
}

func (l *Ledger) sell(ts time.Time, price decimal.Decimal) {
	if !l.position.IsPositive() {
		return
	}
	qty := decimal.Min(l.position, l.tradeSize)
	proceeds := qty.Mul(price).Mul(one.Sub(l.commission))
	l.position = l.position.Sub(qty)
	l.cash = l.cash.Add(proceeds)
	l.trades++
	l.logger.Debug("sell filled", "time", ts, "qty", qty, "price", price, "proceeds", proceeds)
}

func (l *Ledger) Cash() decimal.Decimal {
	return l.cash
}

func (l *Ledger) Position() decimal.Decimal {
	return l.position
}

// Trades counts state-changing transitions only; skipped and no-op signals
// do not increment it.
func (l *Ledger) Trades() int {
	return l.trades
}

// Equity marks the portfolio to market at the given price.
func (l *Ledger) Equity(price decimal.Decimal) decimal.Decimal {
	return l.cash.Add(l.position.Mul(price))
}
