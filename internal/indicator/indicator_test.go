package indicator

import (
	"math"
	"testing"
)

func constantSeries(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestSMAConstantSeries(t *testing.T) {
	closes := constantSeries(42.5, 30)
	for _, period := range []int{1, 5, 20, 30} {
		got, ok := SMA(closes, period)
		if !ok {
			t.Fatalf("SMA(period=%d) should be defined", period)
		}
		if math.Abs(got-42.5) > 1e-9 {
			t.Fatalf("SMA(period=%d) of constant series = %.6f, want 42.5", period, got)
		}
	}
}

func TestSMAInsufficientData(t *testing.T) {
	if _, ok := SMA([]float64{1, 2, 3}, 5); ok {
		t.Fatalf("SMA should be undefined for short series")
	}
}

func TestEMAConstantSeries(t *testing.T) {
	closes := constantSeries(17, 40)
	got, ok := EMA(closes, 12)
	if !ok {
		t.Fatalf("EMA should be defined")
	}
	if math.Abs(got-17) > 1e-9 {
		t.Fatalf("EMA of constant series = %.6f, want 17", got)
	}
}

func TestEMAFollowsTrend(t *testing.T) {
	// Geometric growth: on a linear ramp the EMA converges to the SMA, so an
	// accelerating series is needed to separate the two.
	closes := make([]float64, 30)
	price := 100.0
	for i := range closes {
		closes[i] = price
		price *= 1.05
	}
	ema, ok := EMA(closes, 10)
	if !ok {
		t.Fatalf("EMA should be defined")
	}
	sma, _ := SMA(closes, 10)
	if ema <= sma {
		t.Fatalf("expected EMA %.4f above SMA %.4f on accelerating series", ema, sma)
	}
	if ema >= closes[len(closes)-1] {
		t.Fatalf("EMA %.4f should lag latest close %.4f", ema, closes[len(closes)-1])
	}
}

func TestRSIConsecutiveGains(t *testing.T) {
	// Closes 100,102,...,128: fourteen straight up-days.
	closes := make([]float64, 15)
	for i := range closes {
		closes[i] = 100 + float64(2*i)
	}
	rsi := RSI(closes, 14)
	if rsi != 100 {
		t.Fatalf("all-gain series should give RSI 100, got %.4f", rsi)
	}
	if rsi < 70 {
		t.Fatalf("expected overbought RSI, got %.4f", rsi)
	}
}

func TestRSIConsecutiveLosses(t *testing.T) {
	closes := make([]float64, 15)
	for i := range closes {
		closes[i] = 130 - float64(2*i)
	}
	rsi := RSI(closes, 14)
	if rsi > 30 {
		t.Fatalf("all-loss series should give low RSI, got %.4f", rsi)
	}
	if rsi < 0 {
		t.Fatalf("RSI below zero: %.4f", rsi)
	}
}

func TestRSIShortSeriesNeutral(t *testing.T) {
	if got := RSI([]float64{1, 2, 3}, 14); got != 50 {
		t.Fatalf("short series should give neutral 50, got %.4f", got)
	}
}

func TestRSIBounded(t *testing.T) {
	closes := []float64{10, 11, 9, 12, 8, 13, 7, 14, 6, 15, 5, 16, 4, 17, 3, 18, 2, 19}
	rsi := RSI(closes, 14)
	if rsi < 0 || rsi > 100 {
		t.Fatalf("RSI out of [0,100]: %.4f", rsi)
	}
}

func TestMACDInsufficientData(t *testing.T) {
	line, sig, hist := MACD(constantSeries(10, 25))
	if line != 0 || sig != 0 || hist != 0 {
		t.Fatalf("MACD with <26 closes should be zeros, got %.4f %.4f %.4f", line, sig, hist)
	}
}

func TestMACDRisingSeriesPositive(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	line, _, _ := MACD(closes)
	if line <= 0 {
		t.Fatalf("MACD line should be positive on a steadily rising series, got %.4f", line)
	}
}

func TestMACDConstantSeriesZero(t *testing.T) {
	line, sig, hist := MACD(constantSeries(50, 60))
	if math.Abs(line) > 1e-9 || math.Abs(sig) > 1e-9 || math.Abs(hist) > 1e-9 {
		t.Fatalf("MACD of constant series should be zero, got %.6f %.6f %.6f", line, sig, hist)
	}
}

func TestBollingerCollapseOnShortSeries(t *testing.T) {
	mid, up, lo := Bollinger([]float64{10, 11, 12}, 20, 2)
	if mid != 12 || up != 12 || lo != 12 {
		t.Fatalf("bands should collapse to latest close, got %.2f %.2f %.2f", mid, up, lo)
	}
}

func TestBollingerBandsOrdered(t *testing.T) {
	closes := []float64{10, 12, 11, 13, 12, 14, 13, 15, 14, 16, 15, 17, 16, 18, 17, 19, 18, 20, 19, 21}
	mid, up, lo := Bollinger(closes, 20, 2)
	if !(lo < mid && mid < up) {
		t.Fatalf("expected lower < middle < upper, got %.4f %.4f %.4f", lo, mid, up)
	}
}

func TestBollingerConstantSeries(t *testing.T) {
	mid, up, lo := Bollinger(constantSeries(25, 20), 20, 2)
	if mid != 25 || up != 25 || lo != 25 {
		t.Fatalf("zero-variance bands should equal the mean, got %.2f %.2f %.2f", mid, up, lo)
	}
}
