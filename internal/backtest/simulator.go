package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"quantsignals/internal/fuse"
	"quantsignals/internal/metrics"
	"quantsignals/internal/risk"
	"quantsignals/internal/signal"
)

// ValidationError reports a malformed run configuration. It fails the run
// before any data is touched.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid backtest config: %s %s", e.Field, e.Msg)
}

// Config describes one backtest run.
type Config struct {
	StrategyName   string    `yaml:"strategy_name" json:"strategyName"`
	StrategyType   string    `yaml:"strategy_type" json:"strategyType"`
	Symbols        []string  `yaml:"symbols" json:"symbols"`
	Start          time.Time `yaml:"start" json:"startDate"`
	End            time.Time `yaml:"end" json:"endDate"`
	InitialCapital float64   `yaml:"initial_capital" json:"initialCapital"`
	Params         Params    `yaml:"params" json:"parameters"`
}

// Validate checks the structural constraints on the config: 1-10 symbols,
// a forward date range, capital of at least 100, and a known strategy type.
func (c Config) Validate() error {
	if n := len(c.Symbols); n < 1 || n > 10 {
		return &ValidationError{Field: "symbols", Msg: fmt.Sprintf("count %d outside 1-10", n)}
	}
	if c.Start.IsZero() || c.End.IsZero() || !c.End.After(c.Start) {
		return &ValidationError{Field: "dates", Msg: "end must be after start"}
	}
	if c.InitialCapital < 100 {
		return &ValidationError{Field: "initialCapital", Msg: "must be at least 100"}
	}
	switch c.StrategyType {
	case StrategyMovingAverageCrossover, StrategyRSIMeanReversion, StrategyNewsSentiment:
	default:
		return &ValidationError{Field: "strategyType", Msg: fmt.Sprintf("unsupported %q", c.StrategyType)}
	}
	return nil
}

// Result is the immutable output artifact of one completed run.
type Result struct {
	Config        Config               `json:"strategyConfig"`
	Performance   Performance          `json:"performance"`
	Trades        []signal.Trade       `json:"trades"`
	EquityCurve   []signal.EquityPoint `json:"equityCurve"`
	ExecutedAt    time.Time            `json:"executedAt"`
	ExecutionTime time.Duration        `json:"executionTime"`
}

// TradeRecorder captures executed trades for later inspection.
type TradeRecorder interface {
	Record(signal.Trade)
}

// Simulator replays a time-ordered stream of bars through a strategy, gates
// the resulting signals, and applies accepted ones to a fresh Portfolio per
// run. A Simulator is safe to reuse across runs; each run owns its ledger.
type Simulator struct {
	gate     *risk.Gate
	fuser    *fuse.Fuser
	recorder TradeRecorder
	log      zerolog.Logger
}

// Option configures Simulator construction.
type Option func(*Simulator)

// WithRecorder attaches a trade recorder that receives every execution.
func WithRecorder(r TradeRecorder) Option {
	return func(s *Simulator) { s.recorder = r }
}

// NewSimulator wires a simulator from its collaborators.
func NewSimulator(gate *risk.Gate, fuser *fuse.Fuser, log zerolog.Logger, opts ...Option) *Simulator {
	s := &Simulator{gate: gate, fuser: fuser, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one backtest over the provided per-symbol bar history
// (ascending by timestamp) and news items. Rejected signals are logged and
// skipped; a missing or empty series for one symbol excludes that symbol
// without failing the run. The context cancels a run between bars.
func (s *Simulator) Run(ctx context.Context, cfg Config, bars map[string][]signal.PriceBar, news []signal.NewsItem) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	started := time.Now()

	strat, err := Build(cfg.StrategyType, cfg.Params, s.fuser)
	if err != nil {
		return nil, &ValidationError{Field: "strategyType", Msg: err.Error()}
	}

	newsBySymbol := indexNews(news)
	timeline, series := buildTimeline(cfg, bars, s.log)
	symbols := sortedKeys(series)

	portfolio := NewPortfolio(cfg.InitialCapital)
	lastPrices := make(map[string]float64)
	var accepted []signal.Signal

	for _, ts := range timeline {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest cancelled: %w", err)
		}

		for _, sym := range symbols {
			bar, ok := series[sym].at(ts)
			if !ok {
				continue
			}
			lastPrices[sym] = bar.Close
			window := series[sym].upTo(ts)

			candidates := strat.Evaluate(BarContext{
				Symbol: sym,
				Bars:   window,
				News:   newsBySymbol[sym],
				Now:    ts,
			})

			for _, cand := range candidates {
				metrics.SignalsGenerated.WithLabelValues(cand.Symbol, string(cand.Source)).Inc()

				balance := portfolio.Value(lastPrices)
				verdict := s.gate.Validate(cand, balance, portfolio.Positions(), accepted, ts)
				if !verdict.Accepted {
					metrics.SignalsRejected.WithLabelValues(verdict.Reason).Inc()
					s.log.Debug().Str("sym", cand.Symbol).Str("type", string(cand.Type)).Str("reason", verdict.Reason).Msg("signal rejected")
					continue
				}
				accepted = append(accepted, cand)

				executed, err := s.execute(portfolio, cand, bar.Close, ts)
				if err != nil {
					return nil, err
				}
				if executed {
					trade := portfolio.Trades()[len(portfolio.Trades())-1]
					metrics.TradesExecuted.WithLabelValues(trade.Symbol, string(trade.Action)).Inc()
					if s.recorder != nil {
						s.recorder.Record(trade)
					}
				}
			}
		}

		portfolio.RecordEquity(ts, lastPrices)
	}

	metrics.BacktestRuns.Inc()
	return &Result{
		Config:        cfg,
		Performance:   Analyze(cfg.InitialCapital, portfolio.History(), portfolio.Trades()),
		Trades:        portfolio.Trades(),
		EquityCurve:   portfolio.History(),
		ExecutedAt:    started,
		ExecutionTime: time.Since(started),
	}, nil
}

func (s *Simulator) execute(p *Portfolio, cand signal.Signal, price float64, ts time.Time) (bool, error) {
	switch cand.Type {
	case signal.Buy:
		return p.Buy(cand.Symbol, cand.Strength, price, cand.Type, ts)
	case signal.Sell:
		return p.Sell(cand.Symbol, price, ts)
	default:
		return false, nil
	}
}

// barSeries wraps one symbol's ascending bars with timestamp lookups.
type barSeries struct {
	bars  []signal.PriceBar
	index map[int64]int
}

func newBarSeries(bars []signal.PriceBar) *barSeries {
	idx := make(map[int64]int, len(bars))
	for i, b := range bars {
		idx[b.Ts.UnixNano()] = i
	}
	return &barSeries{bars: bars, index: idx}
}

func (b *barSeries) at(ts time.Time) (signal.PriceBar, bool) {
	i, ok := b.index[ts.UnixNano()]
	if !ok {
		return signal.PriceBar{}, false
	}
	return b.bars[i], true
}

// upTo returns the bars from the start of the series through ts inclusive.
func (b *barSeries) upTo(ts time.Time) []signal.PriceBar {
	if i, ok := b.index[ts.UnixNano()]; ok {
		return b.bars[:i+1]
	}
	n := sort.Search(len(b.bars), func(i int) bool { return b.bars[i].Ts.After(ts) })
	return b.bars[:n]
}

// buildTimeline collects the union of bar timestamps inside the config's
// date range, ascending, and the per-symbol series. Symbols with no usable
// bars are logged and excluded; the run proceeds with the rest.
func buildTimeline(cfg Config, bars map[string][]signal.PriceBar, log zerolog.Logger) ([]time.Time, map[string]*barSeries) {
	series := make(map[string]*barSeries)
	stamps := make(map[int64]time.Time)

	for _, sym := range cfg.Symbols {
		var kept []signal.PriceBar
		for _, b := range bars[sym] {
			if b.Ts.Before(cfg.Start) || b.Ts.After(cfg.End) {
				continue
			}
			if err := b.Validate(); err != nil {
				log.Warn().Err(err).Msg("dropping malformed bar")
				continue
			}
			kept = append(kept, b)
		}
		if len(kept) == 0 {
			log.Warn().Str("sym", sym).Msg("no bars in range; symbol excluded from run")
			continue
		}
		series[sym] = newBarSeries(kept)
		for _, b := range kept {
			stamps[b.Ts.UnixNano()] = b.Ts
		}
	}

	timeline := make([]time.Time, 0, len(stamps))
	for _, ts := range stamps {
		timeline = append(timeline, ts)
	}
	sort.Slice(timeline, func(i, j int) bool { return timeline[i].Before(timeline[j]) })
	return timeline, series
}

// indexNews groups news items by each symbol they mention.
func indexNews(news []signal.NewsItem) map[string][]signal.NewsItem {
	out := make(map[string][]signal.NewsItem)
	for _, item := range news {
		for _, sym := range item.Symbols {
			out[sym] = append(out[sym], item)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
