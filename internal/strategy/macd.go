package strategy

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"macdbot/types"
)

var ErrInvalidPeriods = errors.New("macd periods must be positive and fast < slow")

// MACD generates crossover signals from the close series: a buy when the
// MACD line crosses above its signal line, a sell when it crosses below.
type MACD struct {
	fastPeriod   int
	slowPeriod   int
	signalPeriod int
}

func NewMACD(fast, slow, signal int) (*MACD, error) {
	if fast <= 0 || slow <= 0 || signal <= 0 || fast >= slow {
		return nil, fmt.Errorf("fast=%d slow=%d signal=%d: %w", fast, slow, signal, ErrInvalidPeriods)
	}
	return &MACD{fastPeriod: fast, slowPeriod: slow, signalPeriod: signal}, nil
}

func (m *MACD) Name() string {
	return fmt.Sprintf("macd-%d-%d-%d", m.fastPeriod, m.slowPeriod, m.signalPeriod)
}

func (m *MACD) GenerateSignals(candles []types.Candle) ([]types.Signal, error) {
	closes := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	fast := ema(closes, m.fastPeriod)
	slow := ema(closes, m.slowPeriod)

	macd := make([]decimal.Decimal, len(candles))
	for i := range macd {
		macd[i] = fast[i].Sub(slow[i])
	}
	signalLine := ema(macd, m.signalPeriod)

	signals := make([]types.Signal, len(candles))
	for i := 1; i < len(candles); i++ {
		above := macd[i].GreaterThan(signalLine[i])
		below := macd[i].LessThan(signalLine[i])
		wasAbove := macd[i-1].GreaterThan(signalLine[i-1])
		wasBelow := macd[i-1].LessThan(signalLine[i-1])

		switch {
		case above && !wasAbove:
			signals[i] = types.SignalBuy
		case below && !wasBelow:
			signals[i] = types.SignalSell
		}
	}
	return signals, nil
}

// ema computes an exponential moving average seeded with the first value,
// matching the recursive form ema[i] = ema[i-1] + k*(v[i]-ema[i-1]) with
// k = 2/(period+1).
func ema(values []decimal.Decimal, period int) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	if len(values) == 0 {
		return out
	}
	k := decimal.NewFromInt(2).Div(decimal.NewFromInt(int64(period) + 1))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = out[i-1].Add(values[i].Sub(out[i-1]).Mul(k))
	}
	return out
}
