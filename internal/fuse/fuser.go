// Package fuse combines technical indicator output and news sentiment into
// typed trading signals with strength, confidence, and expiration.
package fuse

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"quantsignals/internal/indicator"
	"quantsignals/internal/signal"
)

const (
	defaultSentimentThreshold   = 0.7
	defaultVolumeSpikeThreshold = 2.0
	defaultNewsLookback         = 24 * time.Hour
	newsSignalTTL               = 2 * time.Hour
	technicalSignalTTL          = 4 * time.Hour

	minBarsForNewsFusion = 6 // need more than 5 recent bars to trust momentum
	confidenceFloor      = 0.6
)

// Fuser turns news items and price history into candidate signals.
type Fuser struct {
	sentimentThreshold   float64
	volumeSpikeThreshold float64
	newsLookback         time.Duration
	log                  zerolog.Logger
}

// New builds a Fuser with the standard thresholds.
func New(log zerolog.Logger) *Fuser {
	return &Fuser{
		sentimentThreshold:   defaultSentimentThreshold,
		volumeSpikeThreshold: defaultVolumeSpikeThreshold,
		newsLookback:         defaultNewsLookback,
		log:                  log,
	}
}

// FromNews evaluates one news item against the symbol's recent bars
// (oldest-first) and returns a signal, or nil when the item is stale, the
// sentiment is weak, there is not enough market data, or confidence does
// not clear the floor.
func (f *Fuser) FromNews(item signal.NewsItem, bars []signal.PriceBar, now time.Time) *signal.Signal {
	if math.Abs(item.SentimentScore) <= f.sentimentThreshold {
		return nil
	}
	if item.PublishedAt.Before(now.Add(-f.newsLookback)) || item.PublishedAt.After(now) {
		return nil
	}
	if len(bars) < minBarsForNewsFusion {
		f.log.Debug().Str("title", item.Title).Int("bars", len(bars)).Msg("not enough bars to fuse news signal")
		return nil
	}

	symbol := bars[len(bars)-1].Symbol
	last := bars[len(bars)-1].Close
	prev := bars[len(bars)-2].Close
	if prev <= 0 {
		return nil
	}
	momentum := (last - prev) / prev
	spike := volumeSpike(bars)

	sigType := directionFor(item.SentimentLabel, momentum)
	confidence := f.confidence(item, momentum, spike)
	if confidence <= confidenceFloor {
		return nil
	}

	out := &signal.Signal{
		Symbol:      symbol,
		Type:        sigType,
		Strength:    clamp01(math.Abs(item.SentimentScore)),
		Confidence:  confidence,
		Source:      signal.SourceNewsSentiment,
		GeneratedAt: now,
		Expiration:  now.Add(newsSignalTTL),
		Explanation: newsExplanation(item, momentum, spike, sigType),
		NewsTitle:   item.Title,
	}
	return out
}

// directionFor maps the 2x2 sentiment/momentum matrix to a signal type.
// Positive sentiment buys even into a dip; negative sentiment sells even
// into strength (overbought).
func directionFor(label signal.SentimentLabel, momentum float64) signal.Type {
	switch label {
	case signal.SentimentPositive:
		return signal.Buy
	case signal.SentimentNegative:
		return signal.Sell
	default:
		return signal.Neutral
	}
}

func (f *Fuser) confidence(item signal.NewsItem, momentum, spike float64) float64 {
	c := math.Abs(item.SentimentScore) * 0.6
	if spike > f.volumeSpikeThreshold {
		c += 0.2
	}
	if (item.SentimentLabel == signal.SentimentPositive && momentum > 0) ||
		(item.SentimentLabel == signal.SentimentNegative && momentum < 0) {
		c += 0.2
	}
	return math.Min(c, 1)
}

// volumeSpike compares the latest bar's volume to the average of the nine
// bars before it. Returns 1 when there is not enough history to compare.
func volumeSpike(bars []signal.PriceBar) float64 {
	if len(bars) < 10 {
		return 1
	}
	recent := float64(bars[len(bars)-1].Volume)
	var sum float64
	for _, b := range bars[len(bars)-10 : len(bars)-1] {
		sum += float64(b.Volume)
	}
	avg := sum / 9
	if avg <= 0 {
		return 1
	}
	return recent / avg
}

func newsExplanation(item signal.NewsItem, momentum, spike float64, sigType signal.Type) string {
	direction := "decreased"
	if momentum >= 0 {
		direction = "increased"
	}
	volume := "normal"
	if spike > 1.5 {
		volume = "high"
	}
	return fmt.Sprintf("Strong %s sentiment in news %q. Price %s by %.2f%% with %s trading volume, suggesting a %s opportunity.",
		item.SentimentLabel, item.Title, direction, math.Abs(momentum)*100, volume, sigType)
}

// MeanReversion emits an RSI-based signal for the symbol: oversold buys,
// overbought sells. Returns nil when the RSI sits between the thresholds or
// there is not enough history for the indicator.
func (f *Fuser) MeanReversion(symbol string, closes []float64, period int, oversold, overbought float64, now time.Time) *signal.Signal {
	if len(closes) < period+1 {
		return nil
	}
	rsi := indicator.RSI(closes, period)

	switch {
	case rsi < oversold:
		return &signal.Signal{
			Symbol:      symbol,
			Type:        signal.Buy,
			Strength:    clamp01((oversold - rsi) / oversold),
			Confidence:  0.7,
			Source:      signal.SourceTechnicalAnalysis,
			GeneratedAt: now,
			Expiration:  now.Add(technicalSignalTTL),
			Explanation: fmt.Sprintf("Technical indicator: OVERSOLD (RSI %.1f below %.0f)", rsi, oversold),
		}
	case rsi > overbought:
		return &signal.Signal{
			Symbol:      symbol,
			Type:        signal.Sell,
			Strength:    clamp01((rsi - overbought) / (100 - overbought)),
			Confidence:  0.7,
			Source:      signal.SourceTechnicalAnalysis,
			GeneratedAt: now,
			Expiration:  now.Add(technicalSignalTTL),
			Explanation: fmt.Sprintf("Technical indicator: OVERBOUGHT (RSI %.1f above %.0f)", rsi, overbought),
		}
	default:
		return nil
	}
}

// Crossover detects a short/long SMA cross between the previous bar and the
// current one. A bullish cross buys, a bearish cross sells; no cross yields
// nil.
func (f *Fuser) Crossover(symbol string, closes []float64, short, long int, now time.Time) *signal.Signal {
	if short <= 0 || long <= short || len(closes) < long+1 {
		return nil
	}
	prior := closes[:len(closes)-1]

	curShort, _ := indicator.SMA(closes, short)
	curLong, _ := indicator.SMA(closes, long)
	prevShort, _ := indicator.SMA(prior, short)
	prevLong, _ := indicator.SMA(prior, long)

	var sigType signal.Type
	var label string
	switch {
	case prevShort < prevLong && curShort > curLong:
		sigType, label = signal.Buy, "BULLISH_CROSSOVER"
	case prevShort > prevLong && curShort < curLong:
		sigType, label = signal.Sell, "BEARISH_CROSSOVER"
	default:
		return nil
	}

	return &signal.Signal{
		Symbol:      symbol,
		Type:        sigType,
		Strength:    0.8,
		Confidence:  0.75,
		Source:      signal.SourceTechnicalAnalysis,
		GeneratedAt: now,
		Expiration:  now.Add(technicalSignalTTL),
		Explanation: fmt.Sprintf("Technical indicator: %s (SMA%d crossed SMA%d)", label, short, long),
	}
}

// FromTechnical runs the standard technical checks (RSI 14 at 30/70 and the
// 10/20 SMA crossover) over the close series, oldest-first.
func (f *Fuser) FromTechnical(symbol string, closes []float64, now time.Time) []signal.Signal {
	var out []signal.Signal
	if s := f.MeanReversion(symbol, closes, 14, 30, 70, now); s != nil {
		out = append(out, *s)
	}
	if s := f.Crossover(symbol, closes, 10, 20, now); s != nil {
		out = append(out, *s)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
