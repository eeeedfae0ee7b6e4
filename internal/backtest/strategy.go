package backtest

import (
	"fmt"
	"strings"
	"time"

	"quantsignals/internal/fuse"
	"quantsignals/internal/signal"
)

// Strategy types accepted by the simulator.
const (
	StrategyMovingAverageCrossover = "movingAverageCrossover"
	StrategyRSIMeanReversion       = "rsiMeanReversion"
	StrategyNewsSentiment          = "newsSentiment"
)

// Params groups the tunable knobs shared by the built-in strategies. Zero
// values fall back to the standard defaults.
type Params struct {
	ShortPeriod int     `yaml:"short_period" json:"shortPeriod"`
	LongPeriod  int     `yaml:"long_period" json:"longPeriod"`
	RSIPeriod   int     `yaml:"rsi_period" json:"rsiPeriod"`
	Oversold    float64 `yaml:"oversold" json:"oversold"`
	Overbought  float64 `yaml:"overbought" json:"overbought"`
}

func (p Params) withDefaults() Params {
	if p.ShortPeriod <= 0 {
		p.ShortPeriod = 10
	}
	if p.LongPeriod <= 0 {
		p.LongPeriod = 20
	}
	if p.RSIPeriod <= 0 {
		p.RSIPeriod = 14
	}
	if p.Oversold <= 0 {
		p.Oversold = 30
	}
	if p.Overbought <= 0 {
		p.Overbought = 70
	}
	return p
}

// BarContext is the state a strategy sees at one step of the replay: the
// symbol's bars up to and including the current one, plus any news items
// mentioning the symbol.
type BarContext struct {
	Symbol string
	Bars   []signal.PriceBar
	News   []signal.NewsItem
	Now    time.Time
}

func (c BarContext) closes() []float64 {
	out := make([]float64, len(c.Bars))
	for i, b := range c.Bars {
		out[i] = b.Close
	}
	return out
}

// Strategy produces candidate signals for one symbol at one bar.
type Strategy interface {
	Name() string
	Evaluate(ctx BarContext) []signal.Signal
}

// Build returns the strategy implementation for the configured type, or an
// error naming the unsupported mode.
func Build(strategyType string, params Params, fuser *fuse.Fuser) (Strategy, error) {
	p := params.withDefaults()
	switch strings.TrimSpace(strategyType) {
	case StrategyMovingAverageCrossover:
		return &maCrossover{fuser: fuser, short: p.ShortPeriod, long: p.LongPeriod}, nil
	case StrategyRSIMeanReversion:
		return &rsiMeanReversion{fuser: fuser, period: p.RSIPeriod, oversold: p.Oversold, overbought: p.Overbought}, nil
	case StrategyNewsSentiment:
		return &newsSentiment{fuser: fuser}, nil
	default:
		return nil, fmt.Errorf("unsupported strategy type %q", strategyType)
	}
}

// GenerateSignals evaluates the configured strategy once against the latest
// bar of every symbol's history (ascending, per symbol) and returns the
// candidates it emits, ordered by symbol. Symbols with no bars are skipped.
func GenerateSignals(strategyType string, params Params, fuser *fuse.Fuser, bars map[string][]signal.PriceBar, news []signal.NewsItem, now time.Time) ([]signal.Signal, error) {
	strat, err := Build(strategyType, params, fuser)
	if err != nil {
		return nil, err
	}

	newsBySymbol := indexNews(news)
	var out []signal.Signal
	for _, sym := range sortedKeys(bars) {
		series := bars[sym]
		if len(series) == 0 {
			continue
		}
		out = append(out, strat.Evaluate(BarContext{
			Symbol: sym,
			Bars:   series,
			News:   newsBySymbol[sym],
			Now:    now,
		})...)
	}
	return out, nil
}

type maCrossover struct {
	fuser *fuse.Fuser
	short int
	long  int
}

func (s *maCrossover) Name() string { return StrategyMovingAverageCrossover }

func (s *maCrossover) Evaluate(ctx BarContext) []signal.Signal {
	sig := s.fuser.Crossover(ctx.Symbol, ctx.closes(), s.short, s.long, ctx.Now)
	if sig == nil {
		return nil
	}
	return []signal.Signal{*sig}
}

type rsiMeanReversion struct {
	fuser      *fuse.Fuser
	period     int
	oversold   float64
	overbought float64
}

func (s *rsiMeanReversion) Name() string { return StrategyRSIMeanReversion }

func (s *rsiMeanReversion) Evaluate(ctx BarContext) []signal.Signal {
	sig := s.fuser.MeanReversion(ctx.Symbol, ctx.closes(), s.period, s.oversold, s.overbought, ctx.Now)
	if sig == nil {
		return nil
	}
	return []signal.Signal{*sig}
}

type newsSentiment struct {
	fuser *fuse.Fuser
}

func (s *newsSentiment) Name() string { return StrategyNewsSentiment }

func (s *newsSentiment) Evaluate(ctx BarContext) []signal.Signal {
	var out []signal.Signal
	for _, item := range ctx.News {
		if sig := s.fuser.FromNews(item, ctx.Bars, ctx.Now); sig != nil {
			out = append(out, *sig)
		}
	}
	return out
}
