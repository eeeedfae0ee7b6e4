package signal

import (
	"testing"
	"time"
)

func TestLabelForScore(t *testing.T) {
	if got := LabelForScore(0.85); got != SentimentPositive {
		t.Fatalf("expected positive label, got %s", got)
	}
	if got := LabelForScore(-0.4); got != SentimentNegative {
		t.Fatalf("expected negative label, got %s", got)
	}
	if got := LabelForScore(0.05); got != SentimentNeutral {
		t.Fatalf("expected neutral label, got %s", got)
	}
	if got := LabelForScore(-0.1); got != SentimentNeutral {
		t.Fatalf("boundary -0.1 should be neutral, got %s", got)
	}
}

func TestPriceBarValidate(t *testing.T) {
	now := time.Now()
	good := PriceBar{Symbol: "AAPL", Ts: now, Open: 100, High: 105, Low: 99, Close: 104, Volume: 1000}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid bar rejected: %v", err)
	}

	bad := PriceBar{Symbol: "AAPL", Ts: now, Open: 100, High: 99, Low: 98, Close: 100, Volume: 10}
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for open above high")
	}

	negVol := PriceBar{Symbol: "AAPL", Ts: now, Open: 1, High: 1, Low: 1, Close: 1, Volume: -1}
	if err := negVol.Validate(); err == nil {
		t.Fatalf("expected error for negative volume")
	}
}

func TestSignalExpired(t *testing.T) {
	now := time.Now()
	s := Signal{GeneratedAt: now, Expiration: now.Add(2 * time.Hour)}
	if s.Expired(now.Add(time.Hour)) {
		t.Fatalf("signal should still be live")
	}
	if !s.Expired(now.Add(3 * time.Hour)) {
		t.Fatalf("signal should be expired")
	}
}
