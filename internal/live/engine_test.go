package live

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"macdbot/internal/engine"
	"macdbot/internal/journal"
	"macdbot/types"
)

type fakeMarket struct {
	candles []types.Candle
	price   decimal.Decimal
	err     error
}

func (f *fakeMarket) Klines(ctx context.Context, symbol string, interval types.Interval, start, end time.Time, limit int) ([]types.Candle, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.candles, nil
}

func (f *fakeMarket) TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return f.price, nil
}

type fakeJournal struct {
	fills []journal.Fill
}

func (f *fakeJournal) SaveFill(ctx context.Context, fill journal.Fill) error {
	f.fills = append(f.fills, fill)
	return nil
}

// alwaysBuy signals a buy on the last candle and holds everywhere else.
type alwaysBuy struct{}

func (alwaysBuy) Name() string { return "always-buy" }

func (alwaysBuy) GenerateSignals(candles []types.Candle) ([]types.Signal, error) {
	signals := make([]types.Signal, len(candles))
	if len(signals) > 0 {
		signals[len(signals)-1] = types.SignalBuy
	}
	return signals, nil
}

func fakeCandles(n int) []types.Candle {
	base := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]types.Candle, n)
	price := decimal.RequireFromString("27000")
	for i := range candles {
		candles[i] = types.Candle{
			Timestamp: base.Add(time.Duration(i) * 4 * time.Hour),
			Open:      price, High: price, Low: price, Close: price,
			Interval: types.FourHours,
		}
	}
	return candles
}

func newTestEngine(market MarketData, jrnl Journal) *Engine {
	ledger := engine.NewLedger(
		decimal.RequireFromString("10000"),
		decimal.RequireFromString("0.01"),
		decimal.RequireFromString("0.001"),
		nil)
	cfg := Config{Symbol: "BTCUSDT", Interval: types.FourHours, HistoryBars: 10}
	return NewEngine(cfg, market, alwaysBuy{}, ledger, jrnl, nil)
}

func TestStep_ExecutesAndJournals(t *testing.T) {
	market := &fakeMarket{
		candles: fakeCandles(5),
		price:   decimal.RequireFromString("27000"),
	}
	jrnl := &fakeJournal{}
	e := newTestEngine(market, jrnl)

	if err := e.Step(context.Background()); err != nil {
		t.Fatalf("Step() error = %v", err)
	}

	if len(jrnl.fills) != 1 {
		t.Fatalf("journal has %d fills, want 1", len(jrnl.fills))
	}
	fill := jrnl.fills[0]
	if fill.Side != types.SignalBuy {
		t.Errorf("fill side = %v, want buy", fill.Side)
	}
	if !fill.Quantity.Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("fill quantity = %s, want 0.01", fill.Quantity)
	}

	select {
	case snap := <-e.Snapshots():
		if !snap.Position.Equal(decimal.RequireFromString("0.01")) {
			t.Errorf("snapshot position = %s, want 0.01", snap.Position)
		}
		if !snap.Cash.Add(snap.Position.Mul(snap.Price)).Equal(snap.Equity) {
			t.Errorf("snapshot equity %s inconsistent with cash %s + position %s",
				snap.Equity, snap.Cash, snap.Position)
		}
	default:
		t.Fatal("no snapshot published")
	}
}

func TestStep_SameCandleIsNoOp(t *testing.T) {
	market := &fakeMarket{
		candles: fakeCandles(5),
		price:   decimal.RequireFromString("27000"),
	}
	jrnl := &fakeJournal{}
	e := newTestEngine(market, jrnl)

	ctx := context.Background()
	if err := e.Step(ctx); err != nil {
		t.Fatalf("first Step() error = %v", err)
	}
	if err := e.Step(ctx); err != nil {
		t.Fatalf("second Step() error = %v", err)
	}

	if len(jrnl.fills) != 1 {
		t.Errorf("journal has %d fills, want 1 (second poll hit the same bar)", len(jrnl.fills))
	}
}

func TestStep_FetchErrorPropagates(t *testing.T) {
	fetchErr := errors.New("exchange unavailable")
	e := newTestEngine(&fakeMarket{err: fetchErr}, &fakeJournal{})

	if err := e.Step(context.Background()); !errors.Is(err, fetchErr) {
		t.Fatalf("Step() error = %v, want the fetch error", err)
	}
	select {
	case <-e.Snapshots():
		t.Fatal("snapshot published despite a failed fetch")
	default:
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	market := &fakeMarket{
		candles: fakeCandles(5),
		price:   decimal.RequireFromString("27000"),
	}
	e := newTestEngine(market, &fakeJournal{})
	e.cfg.PollInterval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancellation")
	}
}

func TestRun_ClosesSnapshotsOnExit(t *testing.T) {
	market := &fakeMarket{
		candles: fakeCandles(5),
		price:   decimal.RequireFromString("27000"),
	}
	e := newTestEngine(market, &fakeJournal{})
	e.cfg.PollInterval = 5 * time.Millisecond

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	e.Stop()
	<-done

	// Drain whatever was buffered; the channel must then report closed.
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-e.Snapshots():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("snapshots channel still open after Run returned")
		}
	}
}

func TestRun_StopsOnStop(t *testing.T) {
	market := &fakeMarket{
		candles: fakeCandles(5),
		price:   decimal.RequireFromString("27000"),
	}
	e := newTestEngine(market, &fakeJournal{})
	e.cfg.PollInterval = 5 * time.Millisecond

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	e.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil after Stop", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after Stop")
	}
}
