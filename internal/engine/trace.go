package engine

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"macdbot/types"
)

// StepRecord is the cumulative portfolio state after one candle.
type StepRecord struct {
	Timestamp time.Time
	Signal    types.Signal
	Position  decimal.Decimal
	Cash      decimal.Decimal
	Holdings  decimal.Decimal
	Total     decimal.Decimal
}

// Trace is the ordered per-candle state series of one backtest run. The
// driver appends exactly one record per candle; afterwards the trace is
// read-only input for the analyzer and the CSV export.
type Trace []StepRecord

// WriteCSV writes the trace to w, one row per candle.
func (t Trace) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"timestamp", "signal", "position", "cash", "holdings", "total"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, rec := range t {
		row := []string{
			rec.Timestamp.Format(time.RFC3339),
			fmt.Sprintf("%d", int(rec.Signal)),
			rec.Position.String(),
			rec.Cash.String(),
			rec.Holdings.String(),
			rec.Total.String(),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteCSVFile writes the trace to a CSV file at the given path.
func (t Trace) WriteCSVFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create results file: %w", err)
	}
	defer f.Close()
	return t.WriteCSV(f)
}
