package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"macdbot/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndListFills(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	fills := []Fill{
		{
			Time:     time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC),
			Side:     types.SignalBuy,
			Quantity: decimal.RequireFromString("0.01"),
			Price:    decimal.RequireFromString("27123.45"),
			Equity:   decimal.RequireFromString("9998.72"),
		},
		{
			Time:     time.Date(2023, 5, 2, 16, 0, 0, 0, time.UTC),
			Side:     types.SignalSell,
			Quantity: decimal.RequireFromString("0.01"),
			Price:    decimal.RequireFromString("27500.00"),
			Equity:   decimal.RequireFromString("10002.31"),
		},
	}
	for _, f := range fills {
		if err := store.SaveFill(ctx, f); err != nil {
			t.Fatalf("SaveFill() error = %v", err)
		}
	}

	got, err := store.ListFills(ctx)
	if err != nil {
		t.Fatalf("ListFills() error = %v", err)
	}
	if len(got) != len(fills) {
		t.Fatalf("got %d fills, want %d", len(got), len(fills))
	}
	for i, want := range fills {
		if !got[i].Time.Equal(want.Time) {
			t.Errorf("fill %d time = %s, want %s", i, got[i].Time, want.Time)
		}
		if got[i].Side != want.Side {
			t.Errorf("fill %d side = %v, want %v", i, got[i].Side, want.Side)
		}
		if !got[i].Price.Equal(want.Price) {
			t.Errorf("fill %d price = %s, want %s", i, got[i].Price, want.Price)
		}
		if !got[i].Equity.Equal(want.Equity) {
			t.Errorf("fill %d equity = %s, want %s", i, got[i].Equity, want.Equity)
		}
	}
}

func TestListFills_Empty(t *testing.T) {
	store := openTestStore(t)
	got, err := store.ListFills(context.Background())
	if err != nil {
		t.Fatalf("ListFills() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d fills from an empty journal, want 0", len(got))
	}
}
