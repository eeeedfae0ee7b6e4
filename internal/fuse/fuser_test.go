package fuse

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"quantsignals/internal/signal"
)

func barsWithCloses(symbol string, closes []float64, volume int64, end time.Time) []signal.PriceBar {
	bars := make([]signal.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = signal.PriceBar{
			Symbol: symbol,
			Ts:     end.Add(-time.Duration(len(closes)-1-i) * time.Hour),
			Open:   c, High: c, Low: c, Close: c,
			Volume: volume,
		}
	}
	return bars
}

func TestExtractSymbols(t *testing.T) {
	got := ExtractSymbols("AAPL CEO says IPO delayed; MSFT and TSLA rally while the SEC watches AI plays")
	want := []string{"AAPL", "MSFT", "TSLA"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestFromNewsPositiveSentimentBuys(t *testing.T) {
	f := New(zerolog.Nop())
	now := time.Now()
	closes := []float64{100, 101, 102, 103, 104, 106}
	bars := barsWithCloses("AAPL", closes, 1000, now)

	item := signal.NewsItem{
		Title:          "AAPL beats estimates",
		PublishedAt:    now.Add(-time.Hour),
		SentimentScore: 0.9,
		SentimentLabel: signal.SentimentPositive,
	}

	s := f.FromNews(item, bars, now)
	if s == nil {
		t.Fatalf("expected a signal")
	}
	if s.Type != signal.Buy {
		t.Fatalf("expected BUY, got %s", s.Type)
	}
	if s.Strength < 0 || s.Strength > 1 || s.Confidence < 0 || s.Confidence > 1 {
		t.Fatalf("scores out of range: strength=%.2f confidence=%.2f", s.Strength, s.Confidence)
	}
	// 0.9*0.6 + 0.2 momentum alignment, no volume spike.
	if math.Abs(s.Confidence-0.74) > 1e-9 {
		t.Fatalf("expected confidence 0.74, got %.4f", s.Confidence)
	}
	if s.Explanation == "" {
		t.Fatalf("explanation is required")
	}
	if got := s.Expiration.Sub(s.GeneratedAt); got != 2*time.Hour {
		t.Fatalf("news signals expire after 2h, got %s", got)
	}
}

func TestFromNewsDipBuyRule(t *testing.T) {
	f := New(zerolog.Nop())
	now := time.Now()
	// Positive sentiment but the last close dropped: still a BUY. A volume
	// spike supplies the confidence the missing momentum alignment would.
	closes := []float64{100, 101, 102, 103, 104, 105, 104, 103, 104, 101}
	bars := barsWithCloses("AAPL", closes, 1000, now)
	bars[len(bars)-1].Volume = 5000

	item := signal.NewsItem{
		Title:          "AAPL announces buyback",
		PublishedAt:    now.Add(-time.Hour),
		SentimentScore: 0.95,
		SentimentLabel: signal.SentimentPositive,
	}
	s := f.FromNews(item, bars, now)
	if s == nil {
		t.Fatalf("expected dip-buy signal")
	}
	if s.Type != signal.Buy {
		t.Fatalf("expected BUY on dip, got %s", s.Type)
	}
	// 0.95*0.6 + 0.2 spike, no momentum alignment on a down move.
	if math.Abs(s.Confidence-0.77) > 1e-9 {
		t.Fatalf("expected confidence 0.77, got %.4f", s.Confidence)
	}
}

func TestFromNewsWeakSentimentDiscarded(t *testing.T) {
	f := New(zerolog.Nop())
	now := time.Now()
	bars := barsWithCloses("AAPL", []float64{100, 101, 102, 103, 104, 105}, 1000, now)

	item := signal.NewsItem{
		Title:          "AAPL neutral note",
		PublishedAt:    now.Add(-time.Hour),
		SentimentScore: 0.5,
		SentimentLabel: signal.SentimentPositive,
	}
	if s := f.FromNews(item, bars, now); s != nil {
		t.Fatalf("weak sentiment should not emit, got %+v", s)
	}
}

func TestFromNewsStaleItemDiscarded(t *testing.T) {
	f := New(zerolog.Nop())
	now := time.Now()
	bars := barsWithCloses("AAPL", []float64{100, 101, 102, 103, 104, 105}, 1000, now)

	item := signal.NewsItem{
		Title:          "old AAPL story",
		PublishedAt:    now.Add(-25 * time.Hour),
		SentimentScore: 0.9,
		SentimentLabel: signal.SentimentPositive,
	}
	if s := f.FromNews(item, bars, now); s != nil {
		t.Fatalf("stale news should not emit")
	}
}

func TestFromNewsInsufficientBarsSkipped(t *testing.T) {
	f := New(zerolog.Nop())
	now := time.Now()
	bars := barsWithCloses("AAPL", []float64{100, 101, 102}, 1000, now)

	item := signal.NewsItem{
		Title:          "AAPL pops",
		PublishedAt:    now.Add(-time.Hour),
		SentimentScore: 0.9,
		SentimentLabel: signal.SentimentPositive,
	}
	if s := f.FromNews(item, bars, now); s != nil {
		t.Fatalf("fusion needs more than 5 bars")
	}
}

func TestFromNewsVolumeSpikeBonus(t *testing.T) {
	f := New(zerolog.Nop())
	now := time.Now()
	closes := []float64{100, 100, 100, 100, 100, 100, 100, 100, 100, 99}
	bars := barsWithCloses("AAPL", closes, 1000, now)
	bars[len(bars)-1].Volume = 5000 // 5x the trailing average

	item := signal.NewsItem{
		Title:          "AAPL sell-off on downgrade",
		PublishedAt:    now.Add(-time.Hour),
		SentimentScore: -0.8,
		SentimentLabel: signal.SentimentNegative,
	}
	s := f.FromNews(item, bars, now)
	if s == nil {
		t.Fatalf("expected signal")
	}
	if s.Type != signal.Sell {
		t.Fatalf("expected SELL, got %s", s.Type)
	}
	// 0.8*0.6 + 0.2 spike + 0.2 alignment = 0.88.
	if math.Abs(s.Confidence-0.88) > 1e-9 {
		t.Fatalf("expected confidence 0.88, got %.4f", s.Confidence)
	}
}

func TestMeanReversionOversold(t *testing.T) {
	f := New(zerolog.Nop())
	closes := make([]float64, 15)
	for i := range closes {
		closes[i] = 130 - float64(2*i)
	}
	s := f.MeanReversion("AAPL", closes, 14, 30, 70, time.Now())
	if s == nil {
		t.Fatalf("expected oversold signal")
	}
	if s.Type != signal.Buy {
		t.Fatalf("oversold should buy, got %s", s.Type)
	}
	if s.Strength <= 0 || s.Strength > 1 {
		t.Fatalf("strength out of range: %.4f", s.Strength)
	}
	if !strings.Contains(s.Explanation, "OVERSOLD") {
		t.Fatalf("explanation should name the condition: %q", s.Explanation)
	}
	if got := s.Expiration.Sub(s.GeneratedAt); got != 4*time.Hour {
		t.Fatalf("technical signals expire after 4h, got %s", got)
	}
}

func TestMeanReversionOverbought(t *testing.T) {
	f := New(zerolog.Nop())
	closes := make([]float64, 15)
	for i := range closes {
		closes[i] = 100 + float64(2*i)
	}
	s := f.MeanReversion("AAPL", closes, 14, 30, 70, time.Now())
	if s == nil || s.Type != signal.Sell {
		t.Fatalf("overbought should sell, got %+v", s)
	}
	// RSI 100 on an all-gain series: strength (100-70)/30 = 1.
	if math.Abs(s.Strength-1) > 1e-9 {
		t.Fatalf("expected max strength, got %.4f", s.Strength)
	}
}

func TestMeanReversionInsufficientData(t *testing.T) {
	f := New(zerolog.Nop())
	if s := f.MeanReversion("AAPL", []float64{1, 2, 3}, 14, 30, 70, time.Now()); s != nil {
		t.Fatalf("short series should be skipped, not signalled")
	}
}

func TestCrossoverBullish(t *testing.T) {
	f := New(zerolog.Nop())
	// Long decline keeps SMA10 below SMA20, then a sharp rally drags the
	// short average through the long one on the final bar.
	closes := []float64{
		120, 118, 116, 114, 112, 110, 108, 106, 104, 102,
		100, 98, 96, 94, 92, 90, 92, 96, 102, 110, 250,
	}
	s := f.Crossover("AAPL", closes, 10, 20, time.Now())
	if s == nil {
		t.Fatalf("expected bullish crossover signal")
	}
	if s.Type != signal.Buy {
		t.Fatalf("expected BUY, got %s", s.Type)
	}
	if s.Strength != 0.8 || s.Confidence != 0.75 {
		t.Fatalf("crossover should score 0.8/0.75, got %.2f/%.2f", s.Strength, s.Confidence)
	}
}

func TestCrossoverNoCross(t *testing.T) {
	f := New(zerolog.Nop())
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	if s := f.Crossover("AAPL", closes, 10, 20, time.Now()); s != nil {
		t.Fatalf("monotone series has no cross, got %+v", s)
	}
}
