package engine

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"macdbot/types"
)

func testRunConfig() RunConfig {
	return RunConfig{
		Start:          time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		End:            time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
		InitialCapital: d("10000"),
		Commission:     d("0.001"),
		TradeAmount:    d("0.01"),
	}
}

func candleSeries(closes ...string) []types.Candle {
	candles := make([]types.Candle, len(closes))
	for i, c := range closes {
		price := d(c)
		candles[i] = types.Candle{
			Timestamp: t0.Add(time.Duration(i) * 4 * time.Hour),
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Interval:  types.FourHours,
		}
	}
	return candles
}

func TestRunConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RunConfig)
		want   error
	}{
		{
			"start after end",
			func(c *RunConfig) { c.Start, c.End = c.End, c.Start },
			ErrInvalidDateRange,
		},
		{
			"start equals end",
			func(c *RunConfig) { c.End = c.Start },
			ErrInvalidDateRange,
		},
		{
			"zero capital",
			func(c *RunConfig) { c.InitialCapital = decimal.Zero },
			ErrNonPositiveCapital,
		},
		{
			"negative commission",
			func(c *RunConfig) { c.Commission = d("-0.001") },
			ErrCommissionOutOfRange,
		},
		{
			"commission of one",
			func(c *RunConfig) { c.Commission = d("1") },
			ErrCommissionOutOfRange,
		},
		{
			"zero trade amount",
			func(c *RunConfig) { c.TradeAmount = decimal.Zero },
			ErrNonPositiveTradeSize,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testRunConfig()
			tt.mutate(&cfg)

			candles := candleSeries("100")
			res, err := NewBacktester(cfg, nil).Run(candles, []types.Signal{types.SignalHold})
			if !errors.Is(err, tt.want) {
				t.Fatalf("Run() error = %v, want %v", err, tt.want)
			}
			if res != nil {
				t.Errorf("Run() returned a result alongside an error")
			}
		})
	}
}

func TestRun_SignalCountMismatch(t *testing.T) {
	candles := candleSeries("100", "101", "102")
	signals := []types.Signal{types.SignalHold, types.SignalHold}

	res, err := NewBacktester(testRunConfig(), nil).Run(candles, signals)
	if !errors.Is(err, ErrSignalCountMismatch) {
		t.Fatalf("Run() error = %v, want ErrSignalCountMismatch", err)
	}
	if res != nil {
		t.Errorf("Run() returned a result alongside an error")
	}
}

func TestRun_UnorderedCandles(t *testing.T) {
	candles := candleSeries("100", "101", "102")
	candles[2].Timestamp = candles[0].Timestamp
	signals := make([]types.Signal, len(candles))

	_, err := NewBacktester(testRunConfig(), nil).Run(candles, signals)
	if !errors.Is(err, ErrUnorderedCandles) {
		t.Fatalf("Run() error = %v, want ErrUnorderedCandles", err)
	}
}

func TestRun_EmptyWindowIsNotAnError(t *testing.T) {
	cfg := testRunConfig()
	cfg.Start = time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg.End = time.Date(2099, 12, 31, 0, 0, 0, 0, time.UTC)

	candles := candleSeries("100", "101", "102")
	signals := make([]types.Signal, len(candles))

	res, err := NewBacktester(cfg, nil).Run(candles, signals)
	if err != nil {
		t.Fatalf("Run() error = %v, want nil for an empty window", err)
	}
	if len(res.Trace) != 0 {
		t.Errorf("trace has %d rows, want 0", len(res.Trace))
	}
	if res.Trades != 0 {
		t.Errorf("trades = %d, want 0", res.Trades)
	}
	if !res.FinalEquity.Equal(d("10000")) {
		t.Errorf("final equity = %s, want the untouched initial capital", res.FinalEquity)
	}
}

func TestRun_OneRecordPerCandle(t *testing.T) {
	candles := candleSeries("100", "101", "102", "103", "104")
	signals := []types.Signal{
		types.SignalHold, types.SignalBuy, types.SignalHold,
		types.SignalSell, types.SignalHold,
	}

	res, err := NewBacktester(testRunConfig(), nil).Run(candles, signals)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Trace) != len(candles) {
		t.Fatalf("trace has %d rows, want %d", len(res.Trace), len(candles))
	}
	for i, rec := range res.Trace {
		if !rec.Timestamp.Equal(candles[i].Timestamp) {
			t.Errorf("row %d timestamp = %s, want %s",
				i, rec.Timestamp, candles[i].Timestamp)
		}
		if rec.Signal != signals[i] {
			t.Errorf("row %d signal = %v, want %v", i, rec.Signal, signals[i])
		}
	}
}

func TestRun_WindowBoundsAreInclusive(t *testing.T) {
	candles := candleSeries("100", "101", "102")
	signals := make([]types.Signal, len(candles))

	cfg := testRunConfig()
	cfg.Start = candles[0].Timestamp
	cfg.End = candles[2].Timestamp

	res, err := NewBacktester(cfg, nil).Run(candles, signals)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Trace) != 3 {
		t.Errorf("trace has %d rows, want 3 (boundary candles included)", len(res.Trace))
	}
}

func TestRun_ScenarioEndToEnd(t *testing.T) {
	candles := candleSeries("100", "105", "110")
	signals := []types.Signal{types.SignalBuy, types.SignalHold, types.SignalSell}

	res, err := NewBacktester(testRunConfig(), nil).Run(candles, signals)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Trades != 2 {
		t.Errorf("trades = %d, want 2", res.Trades)
	}
	// 10000 - 0.01*100*1.001, then + 0.01*110*0.999
	if !res.Trace[0].Cash.Equal(d("9998.999")) {
		t.Errorf("cash after buy = %s, want 9998.999", res.Trace[0].Cash)
	}
	if !res.FinalEquity.Equal(d("10000.0979")) {
		t.Errorf("final equity = %s, want 10000.0979", res.FinalEquity)
	}

	report := Analyze(res.Trace, DefaultAnalyzerConfig())
	if report.Error != "" {
		t.Fatalf("Analyze() unexpected error %q", report.Error)
	}
	if report.TradeCount != res.Trades {
		t.Errorf("analyzer trade count = %d, driver counted %d",
			report.TradeCount, res.Trades)
	}
}

func TestRun_ZeroCloseAbortsWithFailureMarker(t *testing.T) {
	candles := candleSeries("100", "0", "102")
	signals := []types.Signal{types.SignalHold, types.SignalBuy, types.SignalHold}

	res, err := NewBacktester(testRunConfig(), nil).Run(candles, signals)
	if !errors.Is(err, ErrSimulationFailure) {
		t.Fatalf("Run() error = %v, want ErrSimulationFailure", err)
	}
	if res != nil {
		t.Errorf("Run() returned a partial result %+v alongside the failure", res)
	}
}

func TestRun_ReplayIsDeterministic(t *testing.T) {
	candles := candleSeries("100", "98", "103", "107", "101", "111")
	signals := []types.Signal{
		types.SignalBuy, types.SignalHold, types.SignalBuy,
		types.SignalSell, types.SignalBuy, types.SignalSell,
	}

	first, err := NewBacktester(testRunConfig(), nil).Run(candles, signals)
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	second, err := NewBacktester(testRunConfig(), nil).Run(candles, signals)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical inputs produced different results:\n%+v\n%+v", first, second)
	}
}
