package backtest

import (
	"math"
	"testing"
	"time"

	"quantsignals/internal/signal"
)

func curve(values ...float64) []signal.EquityPoint {
	start := time.Date(2024, 1, 2, 16, 0, 0, 0, time.UTC)
	out := make([]signal.EquityPoint, len(values))
	for i, v := range values {
		out[i] = signal.EquityPoint{Ts: start.AddDate(0, 0, i), Value: v}
	}
	return out
}

func TestAnalyzeTotalReturn(t *testing.T) {
	perf := Analyze(100000, curve(100000, 102000, 105000), nil)
	if math.Abs(perf.TotalReturn-0.05) > 1e-9 {
		t.Fatalf("expected total return 0.05, got %.6f", perf.TotalReturn)
	}
	if perf.FinalValue != 105000 {
		t.Fatalf("expected final value 105000, got %.2f", perf.FinalValue)
	}
}

func TestMaxDrawdownRunningPeak(t *testing.T) {
	// Peak 120000, trough 90000: drawdown 0.25.
	perf := Analyze(100000, curve(100000, 120000, 90000, 110000), nil)
	if math.Abs(perf.MaxDrawdown-0.25) > 1e-9 {
		t.Fatalf("expected drawdown 0.25, got %.6f", perf.MaxDrawdown)
	}
}

func TestMaxDrawdownMonotone(t *testing.T) {
	base := []float64{100000, 120000, 100000}
	prev := Analyze(100000, curve(base...), nil).MaxDrawdown

	// Appending more adverse history never shrinks the drawdown.
	worse := append(append([]float64{}, base...), 80000)
	next := Analyze(100000, curve(worse...), nil).MaxDrawdown
	if next < prev {
		t.Fatalf("drawdown shrank from %.4f to %.4f after worse history", prev, next)
	}
	if next < 0 || next > 1 {
		t.Fatalf("drawdown out of range: %.4f", next)
	}
}

func TestAnalyzeFlatCurve(t *testing.T) {
	perf := Analyze(100000, curve(100000, 100000, 100000), nil)
	if perf.TotalReturn != 0 || perf.MaxDrawdown != 0 || perf.Volatility != 0 || perf.SharpeRatio != 0 {
		t.Fatalf("flat curve should produce zero stats, got %+v", perf)
	}
}

func TestAnalyzeEmptyHistory(t *testing.T) {
	perf := Analyze(100000, nil, nil)
	if perf.TotalReturn != 0 || perf.FinalValue != 100000 {
		t.Fatalf("empty history should report initial capital, got %+v", perf)
	}
}

func TestRoundTripStats(t *testing.T) {
	ts := time.Now()
	trades := []signal.Trade{
		{Ts: ts, Symbol: "AAPL", Action: signal.Buy, Quantity: 10, Price: 100, Value: 1000},
		{Ts: ts, Symbol: "AAPL", Action: signal.Sell, Quantity: 10, Price: 110, Value: 1100, RealizedPnL: 99},
		{Ts: ts, Symbol: "MSFT", Action: signal.Sell, Quantity: 5, Price: 90, Value: 450, RealizedPnL: -50},
		{Ts: ts, Symbol: "TSLA", Action: signal.Sell, Quantity: 2, Price: 210, Value: 420, RealizedPnL: 21},
	}
	perf := Analyze(100000, curve(100000, 100070), trades)

	if math.Abs(perf.WinRate-2.0/3.0) > 1e-9 {
		t.Fatalf("expected win rate 2/3, got %.6f", perf.WinRate)
	}
	if math.Abs(perf.ProfitFactor-(99+21)/50.0) > 1e-9 {
		t.Fatalf("expected profit factor 2.4, got %.6f", perf.ProfitFactor)
	}
}

func TestVolatilityPositiveOnNoisyCurve(t *testing.T) {
	perf := Analyze(100000, curve(100000, 103000, 99000, 104000, 101000), nil)
	if perf.Volatility <= 0 {
		t.Fatalf("noisy curve should have positive volatility, got %.6f", perf.Volatility)
	}
}
