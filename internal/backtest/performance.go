package backtest

import (
	"math"

	"quantsignals/internal/signal"
)

// tradingDaysPerYear is the annualization base for daily bars.
const tradingDaysPerYear = 252

// Performance aggregates the statistics of a completed run. All ratios are
// fractions, not percentages: TotalReturn 0.05 means 5%.
type Performance struct {
	TotalReturn      float64 `json:"totalReturn"`
	AnnualizedReturn float64 `json:"annualizedReturn"`
	SharpeRatio      float64 `json:"sharpeRatio"`
	MaxDrawdown      float64 `json:"maxDrawdown"`
	Volatility       float64 `json:"volatility"`
	WinRate          float64 `json:"winRate"`
	ProfitFactor     float64 `json:"profitFactor"`
	FinalValue       float64 `json:"finalValue"`
	InitialCapital   float64 `json:"initialCapital"`
}

// Analyze reduces an equity history and trade log to aggregate statistics.
//
// Definitions (one standard formula per field):
//   - AnnualizedReturn: (1+total)^(252/periods) - 1, treating each equity
//     point as one trading day.
//   - Volatility: stddev of per-period equity returns, annualized by sqrt(252).
//   - SharpeRatio: annualized return over volatility, risk-free rate 0.
//   - WinRate: share of closed round trips (SELL executions) with positive
//     realized PnL.
//   - ProfitFactor: gross realized profit over gross realized loss; with no
//     losing trades it degrades to the gross profit itself, and 0 with no
//     closed trades.
func Analyze(initialCapital float64, history []signal.EquityPoint, trades []signal.Trade) Performance {
	perf := Performance{InitialCapital: initialCapital, FinalValue: initialCapital}
	if initialCapital <= 0 {
		return perf
	}
	if len(history) > 0 {
		perf.FinalValue = history[len(history)-1].Value
	}
	perf.TotalReturn = (perf.FinalValue - initialCapital) / initialCapital
	perf.MaxDrawdown = maxDrawdown(history)

	if n := len(history); n > 1 && perf.TotalReturn > -1 {
		perf.AnnualizedReturn = math.Pow(1+perf.TotalReturn, tradingDaysPerYear/float64(n)) - 1
	}
	perf.Volatility = annualizedVolatility(history)
	if perf.Volatility > 0 {
		perf.SharpeRatio = perf.AnnualizedReturn / perf.Volatility
	}
	perf.WinRate, perf.ProfitFactor = roundTripStats(trades)
	return perf
}

// maxDrawdown scans the equity history once left to right, tracking the
// running peak.
func maxDrawdown(history []signal.EquityPoint) float64 {
	if len(history) == 0 {
		return 0
	}
	peak := history[0].Value
	var worst float64
	for _, point := range history {
		if point.Value > peak {
			peak = point.Value
		}
		if peak > 0 {
			if dd := (peak - point.Value) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

func annualizedVolatility(history []signal.EquityPoint) float64 {
	if len(history) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(history)-1)
	for i := 1; i < len(history); i++ {
		prev := history[i-1].Value
		if prev <= 0 {
			continue
		}
		returns = append(returns, (history[i].Value-prev)/prev)
	}
	if len(returns) < 2 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)
	return math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear)
}

func roundTripStats(trades []signal.Trade) (winRate, profitFactor float64) {
	var closed, wins int
	var grossProfit, grossLoss float64
	for _, tr := range trades {
		if tr.Action != signal.Sell {
			continue
		}
		closed++
		if tr.RealizedPnL > 0 {
			wins++
			grossProfit += tr.RealizedPnL
		} else {
			grossLoss -= tr.RealizedPnL
		}
	}
	if closed == 0 {
		return 0, 0
	}
	winRate = float64(wins) / float64(closed)
	if grossLoss > 0 {
		profitFactor = grossProfit / grossLoss
	} else {
		profitFactor = grossProfit
	}
	return winRate, profitFactor
}
