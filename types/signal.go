package types

import "strconv"

// Signal is one trading decision for a single candle.
// The ledger only acts on the three defined values; anything else is
// treated as a hold by the simulation.
type Signal int

const (
	SignalSell Signal = -1
	SignalHold Signal = 0
	SignalBuy  Signal = 1
)

func (s Signal) Valid() bool {
	return s == SignalSell || s == SignalHold || s == SignalBuy
}

func (s Signal) String() string {
	switch s {
	case SignalBuy:
		return "BUY"
	case SignalSell:
		return "SELL"
	case SignalHold:
		return "HOLD"
	default:
		return "SIGNAL(" + strconv.Itoa(int(s)) + ")"
	}
}
