// Package strategy contains signal generators. A Strategy maps a price
// series to exactly one signal per candle; the backtest driver and the live
// engine are both agnostic to which implementation produced the series.
package strategy

import "macdbot/types"

type Strategy interface {
	Name() string

	// GenerateSignals returns one signal per input candle, index-aligned.
	// Implementations must not mutate the candle slice.
	GenerateSignals(candles []types.Candle) ([]types.Signal, error)
}
