package engine

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// AnalyzerConfig controls how per-step returns are annualized.
type AnalyzerConfig struct {
	RiskFreeRate   float64
	PeriodsPerYear float64
}

// DefaultAnalyzerConfig matches the reference setup: zero risk-free rate,
// 365 periods per year.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{RiskFreeRate: 0, PeriodsPerYear: 365}
}

// Report is the summary output of one run. Invalid input never raises; it
// sets Error and leaves the metrics zeroed, so the report itself is the
// error channel of the analyzer.
type Report struct {
	StartEquity    decimal.Decimal
	EndEquity      decimal.Decimal
	TotalReturnPct float64
	SharpeRatio    float64
	MaxDrawdownPct float64
	TradeCount     int
	StartDate      time.Time
	EndDate        time.Time
	Error          string
}

// Analyze derives summary statistics from a finished trace. It is a pure
// function of the trace; the trace is never mutated.
func Analyze(trace Trace, cfg AnalyzerConfig) Report {
	if cfg.PeriodsPerYear <= 0 {
		cfg.PeriodsPerYear = 365
	}

	switch {
	case trace == nil:
		return Report{Error: "no trace data"}
	case len(trace) == 0:
		return Report{Error: "trace is empty"}
	}

	allZero := true
	for _, rec := range trace {
		if !rec.Total.IsZero() {
			allZero = false
			break
		}
	}
	if allZero {
		return Report{Error: "total equity series is all zero"}
	}

	start, end := trace[0], trace[len(trace)-1]
	if start.Total.IsZero() {
		return Report{Error: "start equity is zero"}
	}

	returns := stepReturns(trace)

	trades := 0
	for _, rec := range trace {
		if rec.Signal != 0 {
			trades++
		}
	}

	return Report{
		StartEquity:    start.Total,
		EndEquity:      end.Total,
		TotalReturnPct: (end.Total.Div(start.Total).InexactFloat64() - 1) * 100,
		SharpeRatio:    sharpeRatio(returns, cfg),
		MaxDrawdownPct: maxDrawdown(returns) * 100,
		TradeCount:     trades,
		StartDate:      start.Timestamp,
		EndDate:        end.Timestamp,
	}
}

// stepReturns computes total_equity[i]/total_equity[i-1] - 1 for i >= 1.
// Steps with a zero prior equity are skipped rather than producing an
// infinite return.
func stepReturns(trace Trace) []float64 {
	out := make([]float64, 0, len(trace)-1)
	for i := 1; i < len(trace); i++ {
		prev := trace[i-1].Total
		if prev.IsZero() {
			continue
		}
		out = append(out, trace[i].Total.Div(prev).InexactFloat64()-1)
	}
	return out
}

// sharpeRatio annualizes mean excess return over its sample standard
// deviation. Zero variance or an empty return series yields 0 by policy,
// never NaN.
func sharpeRatio(returns []float64, cfg AnalyzerConfig) float64 {
	if len(returns) < 2 {
		return 0
	}

	rfPerPeriod := cfg.RiskFreeRate / cfg.PeriodsPerYear
	excess := make([]float64, len(returns))
	var sum float64
	for i, r := range returns {
		excess[i] = r - rfPerPeriod
		sum += excess[i]
	}
	mean := sum / float64(len(excess))

	var varianceSum float64
	for _, x := range excess {
		d := x - mean
		varianceSum += d * d
	}
	std := math.Sqrt(varianceSum / float64(len(excess)-1))
	if std == 0 {
		return 0
	}
	return math.Sqrt(cfg.PeriodsPerYear) * mean / std
}

// maxDrawdown walks the cumulative return series against its running peak
// and returns the deepest trough as a negative fraction (0 = no drawdown).
func maxDrawdown(returns []float64) float64 {
	cum := 1.0
	peak := 1.0
	maxDD := 0.0
	for _, r := range returns {
		cum *= 1 + r
		if cum > peak {
			peak = cum
		}
		if dd := cum/peak - 1; dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// Write prints the report in the fixed-width text layout used by the
// backtest binary.
func (r Report) Write(w io.Writer) {
	fmt.Fprintln(w, "===== Backtest Results =====")
	if r.Error != "" {
		fmt.Fprintf(w, "Error:                 %s\n", r.Error)
		fmt.Fprintln(w, "============================")
		return
	}
	fmt.Fprintf(w, "Start Equity (USDT):   %s\n", r.StartEquity.StringFixed(2))
	fmt.Fprintf(w, "End Equity (USDT):     %s\n", r.EndEquity.StringFixed(2))
	fmt.Fprintf(w, "Total Return (%%):      %.2f\n", r.TotalReturnPct)
	fmt.Fprintf(w, "Annualized Sharpe:     %.2f\n", r.SharpeRatio)
	fmt.Fprintf(w, "Max Drawdown (%%):      %.2f\n", r.MaxDrawdownPct)
	fmt.Fprintf(w, "Total Trades:          %d\n", r.TradeCount)
	fmt.Fprintf(w, "Date Range:            %s - %s\n",
		r.StartDate.Format(time.DateOnly), r.EndDate.Format(time.DateOnly))
	fmt.Fprintln(w, "============================")
}
