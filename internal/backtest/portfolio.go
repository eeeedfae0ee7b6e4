// Package backtest replays accepted signals against price history on an
// in-memory cash/positions ledger and reduces the outcome to performance
// statistics.
package backtest

import (
	"fmt"
	"time"

	"quantsignals/internal/risk"
	"quantsignals/internal/signal"
)

// TransactionCost is the fee applied to every execution, as a fraction of
// traded value. The fee is deducted from cash only; it never reduces the
// number of shares bought.
const TransactionCost = 0.001

// InvariantError reports an inconsistent ledger state. It indicates an
// implementation bug and is fatal to the run that produced it.
type InvariantError struct {
	Op  string
	Msg string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("ledger invariant violated in %s: %s", e.Op, e.Msg)
}

// Portfolio is the ledger for a single backtest run: cash, open positions,
// the append-only trade log, and the equity history. One Portfolio belongs
// to exactly one run and is mutated strictly sequentially, so it carries no
// lock.
type Portfolio struct {
	cash      float64
	positions map[string]risk.Position
	trades    []signal.Trade
	history   []signal.EquityPoint
}

// NewPortfolio creates a ledger holding only cash.
func NewPortfolio(initialCash float64) *Portfolio {
	return &Portfolio{
		cash:      initialCash,
		positions: make(map[string]risk.Position),
	}
}

// Cash returns the current free cash.
func (p *Portfolio) Cash() float64 { return p.cash }

// Positions returns a copy of the open positions keyed by symbol.
func (p *Portfolio) Positions() map[string]risk.Position {
	out := make(map[string]risk.Position, len(p.positions))
	for k, v := range p.positions {
		out[k] = v
	}
	return out
}

// Trades returns the append-only trade log.
func (p *Portfolio) Trades() []signal.Trade { return p.trades }

// History returns the recorded equity curve.
func (p *Portfolio) History() []signal.EquityPoint { return p.history }

// Buy invests cash*strength*0.1 at the given price, updating the weighted
// average entry. A buy whose cost (including fee) exceeds available cash is
// a no-op, not an error; the bool reports whether the trade executed.
func (p *Portfolio) Buy(symbol string, strength, price float64, sigType signal.Type, ts time.Time) (bool, error) {
	if price <= 0 || strength <= 0 {
		return false, nil
	}
	amount := p.cash * strength * 0.1
	fee := amount * TransactionCost
	if amount <= 0 || amount+fee > p.cash {
		return false, nil
	}

	quantity := amount / price
	p.cash -= amount + fee
	if p.cash < 0 {
		return false, &InvariantError{Op: "buy", Msg: fmt.Sprintf("cash went negative: %.6f", p.cash)}
	}

	pos, held := p.positions[symbol]
	if !held {
		pos = risk.Position{Symbol: symbol, EntryDate: ts, SignalType: sigType}
	}
	newQty := pos.Quantity + quantity
	pos.EntryPrice = (pos.Quantity*pos.EntryPrice + quantity*price) / newQty
	pos.Quantity = newQty
	p.positions[symbol] = pos

	p.trades = append(p.trades, signal.Trade{
		Ts:       ts,
		Symbol:   symbol,
		Action:   signal.Buy,
		Quantity: quantity,
		Price:    price,
		Value:    amount,
		Fee:      fee,
	})
	return true, nil
}

// Sell liquidates the entire position at the given price net of the
// transaction cost. Selling a symbol with no position is a no-op.
func (p *Portfolio) Sell(symbol string, price float64, ts time.Time) (bool, error) {
	pos, held := p.positions[symbol]
	if !held || price <= 0 {
		return false, nil
	}

	gross := pos.Quantity * price
	fee := gross * TransactionCost
	p.cash += gross - fee
	delete(p.positions, symbol)

	p.trades = append(p.trades, signal.Trade{
		Ts:          ts,
		Symbol:      symbol,
		Action:      signal.Sell,
		Quantity:    pos.Quantity,
		Price:       price,
		Value:       gross,
		Fee:         fee,
		RealizedPnL: (price-pos.EntryPrice)*pos.Quantity - fee,
	})
	return true, nil
}

// Value marks the portfolio to market: cash plus every position at its
// current price, falling back to the entry price for symbols missing from
// the map.
func (p *Portfolio) Value(prices map[string]float64) float64 {
	total := p.cash
	for sym, pos := range p.positions {
		price, ok := prices[sym]
		if !ok || price <= 0 {
			price = pos.EntryPrice
		}
		total += pos.Quantity * price
	}
	return total
}

// RecordEquity appends one equity-curve point at the given valuation.
func (p *Portfolio) RecordEquity(ts time.Time, prices map[string]float64) {
	p.history = append(p.history, signal.EquityPoint{Ts: ts, Value: p.Value(prices)})
}
