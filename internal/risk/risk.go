// Package risk gates candidate signals against portfolio state and recent
// signal history, and sizes the positions of accepted ones.
package risk

import (
	"fmt"
	"math"
	"time"

	"quantsignals/internal/signal"
)

// Rejection reasons reported by Gate.Validate.
const (
	ReasonExpired     = "signal expired"
	ReasonDuplicate   = "similar signal recently generated"
	ReasonConflicting = "conflicting position already exists"
	ReasonPositionCap = "would exceed maximum position size"
)

// Position is the read-only view of one holding the gate checks against.
type Position struct {
	Symbol     string
	Quantity   float64
	EntryPrice float64
	EntryDate  time.Time
	SignalType signal.Type
}

// Invested returns the position's cost basis.
func (p Position) Invested() float64 { return p.Quantity * p.EntryPrice }

// Verdict is the outcome of validating a single signal.
type Verdict struct {
	Accepted bool
	Reason   string
}

// Gate validates candidate signals and computes position sizes.
type Gate struct {
	MaxPositionFraction  float64       // max fraction of balance in one position
	MaxDailyLossFraction float64       // risk budget per position-sizing call
	StopLossFraction     float64       // assumed stop distance as fraction of price
	DuplicateWindow      time.Duration // lookback for same symbol+type suppression
}

// NewGate returns a Gate with the standard limits: 10% per position, 5%
// daily loss budget, 3% stop distance, 2h duplicate window.
func NewGate() *Gate {
	return &Gate{
		MaxPositionFraction:  0.10,
		MaxDailyLossFraction: 0.05,
		StopLossFraction:     0.03,
		DuplicateWindow:      2 * time.Hour,
	}
}

// Validate checks a candidate signal against expiry, duplicate suppression,
// conflicting holdings, and the position-size cap. balance is the
// portfolio's current total value; positions is keyed by symbol; recent
// holds previously accepted signals, any order.
func (g *Gate) Validate(s signal.Signal, balance float64, positions map[string]Position, recent []signal.Signal, now time.Time) Verdict {
	if s.Expired(now) {
		return Verdict{Reason: ReasonExpired}
	}

	cutoff := now.Add(-g.DuplicateWindow)
	for _, prev := range recent {
		if prev.Symbol == s.Symbol && prev.Type == s.Type && prev.GeneratedAt.After(cutoff) {
			return Verdict{Reason: ReasonDuplicate}
		}
	}

	if pos, held := positions[s.Symbol]; held {
		if pos.SignalType != s.Type {
			return Verdict{Reason: ReasonConflicting}
		}
		proposed := balance * g.MaxPositionFraction
		if pos.Invested()+proposed > 2*g.MaxPositionFraction*balance {
			return Verdict{Reason: ReasonPositionCap}
		}
	}

	return Verdict{Accepted: true}
}

// PositionSize returns the share quantity to trade for an accepted signal:
// the risk budget divided by the stop distance, capped so the notional
// never exceeds the per-position fraction of balance.
func (g *Gate) PositionSize(balance, currentPrice float64) (float64, error) {
	if currentPrice <= 0 {
		return 0, fmt.Errorf("position size: non-positive price %.4f", currentPrice)
	}
	riskBudget := balance * g.MaxDailyLossFraction
	priceDistance := currentPrice * g.StopLossFraction
	rawSize := riskBudget / priceDistance
	capSize := balance * g.MaxPositionFraction / currentPrice
	return math.Min(rawSize, capSize), nil
}
