package risk

import (
	"math"
	"testing"
	"time"

	"quantsignals/internal/signal"
)

func liveSignal(symbol string, typ signal.Type, generatedAt time.Time) signal.Signal {
	return signal.Signal{
		Symbol:      symbol,
		Type:        typ,
		Strength:    0.8,
		Confidence:  0.75,
		Source:      signal.SourceTechnicalAnalysis,
		GeneratedAt: generatedAt,
		Expiration:  generatedAt.Add(4 * time.Hour),
		Explanation: "test",
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	g := NewGate()
	now := time.Now()
	s := liveSignal("AAPL", signal.Buy, now.Add(-5*time.Hour))
	v := g.Validate(s, 100000, nil, nil, now)
	if v.Accepted || v.Reason != ReasonExpired {
		t.Fatalf("expected expiry rejection, got %+v", v)
	}
}

func TestValidateDuplicateWindow(t *testing.T) {
	g := NewGate()
	now := time.Now()

	recent := []signal.Signal{liveSignal("AAPL", signal.Buy, now.Add(-time.Hour))}
	s := liveSignal("AAPL", signal.Buy, now)
	if v := g.Validate(s, 100000, nil, recent, now); v.Accepted {
		t.Fatalf("signal one hour after an identical one must be rejected")
	}

	old := []signal.Signal{liveSignal("AAPL", signal.Buy, now.Add(-3*time.Hour))}
	if v := g.Validate(s, 100000, nil, old, now); !v.Accepted {
		t.Fatalf("signal three hours after the last one should pass, got %+v", v)
	}

	// A different type for the same symbol is not a duplicate.
	sell := liveSignal("AAPL", signal.Sell, now)
	if v := g.Validate(sell, 100000, nil, recent, now); v.Reason == ReasonDuplicate {
		t.Fatalf("SELL should not be suppressed by a recent BUY")
	}
}

func TestValidateConflictingPosition(t *testing.T) {
	g := NewGate()
	now := time.Now()
	positions := map[string]Position{
		"AAPL": {Symbol: "AAPL", Quantity: 10, EntryPrice: 150, SignalType: signal.Buy},
	}

	sell := liveSignal("AAPL", signal.Sell, now)
	v := g.Validate(sell, 100000, positions, nil, now)
	if v.Accepted || v.Reason != ReasonConflicting {
		t.Fatalf("SELL against a BUY-tagged holding must be rejected, got %+v", v)
	}
}

func TestValidatePositionCap(t *testing.T) {
	g := NewGate()
	now := time.Now()
	balance := 100000.0

	// Already invested up to the doubled cap: 2 * 10% * 100000 = 20000.
	full := map[string]Position{
		"AAPL": {Symbol: "AAPL", Quantity: 150, EntryPrice: 100, SignalType: signal.Buy},
	}
	buy := liveSignal("AAPL", signal.Buy, now)
	v := g.Validate(buy, balance, full, nil, now)
	if v.Accepted || v.Reason != ReasonPositionCap {
		t.Fatalf("expected cap rejection, got %+v", v)
	}

	// Room to double down.
	partial := map[string]Position{
		"AAPL": {Symbol: "AAPL", Quantity: 50, EntryPrice: 100, SignalType: signal.Buy},
	}
	if v := g.Validate(buy, balance, partial, nil, now); !v.Accepted {
		t.Fatalf("doubling down inside the cap should pass, got %+v", v)
	}
}

func TestValidateAcceptsFreshSignal(t *testing.T) {
	g := NewGate()
	now := time.Now()
	s := liveSignal("MSFT", signal.Buy, now)
	if v := g.Validate(s, 50000, nil, nil, now); !v.Accepted {
		t.Fatalf("clean signal should be accepted, got %+v", v)
	}
}

func TestPositionSize(t *testing.T) {
	g := NewGate()
	// riskBudget = 5000, priceDistance = 3, raw = 1666.67, cap = 100.
	size, err := g.PositionSize(100000, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(size-100) > 1e-9 {
		t.Fatalf("expected cap-limited size 100, got %.4f", size)
	}

	if _, err := g.PositionSize(100000, 0); err == nil {
		t.Fatalf("expected error for zero price")
	}
}
