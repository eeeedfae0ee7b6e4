// Package signal standardizes the typed records shared between ingestion,
// fusion, risk, and simulation layers.
package signal

import (
	"fmt"
	"time"
)

// Type enumerates the direction of a trading signal.
type Type string

const (
	Buy     Type = "BUY"
	Sell    Type = "SELL"
	Neutral Type = "NEUTRAL"
)

// Source identifies which subsystem produced a signal.
type Source string

const (
	SourceNewsSentiment     Source = "news_sentiment"
	SourceTechnicalAnalysis Source = "technical_analysis"
	SourceMarketPattern     Source = "market_pattern"
	SourceManual            Source = "manual"
)

// SentimentLabel classifies a news item's overall tone.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
)

// LabelForScore derives the sentiment label from a raw score in [-1,1].
// Callers invoke this explicitly before storing a NewsItem; labels are
// never derived implicitly at persistence time.
func LabelForScore(score float64) SentimentLabel {
	switch {
	case score > 0.1:
		return SentimentPositive
	case score < -0.1:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// PriceBar is one OHLCV bar for a symbol. Bars are immutable once produced
// by the ingestion layer.
type PriceBar struct {
	Symbol string    `json:"symbol"`
	Ts     time.Time `json:"timestamp"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Validate reports whether the bar satisfies low <= {open,close} <= high
// with non-negative prices and volume.
func (b PriceBar) Validate() error {
	if b.Open < 0 || b.High < 0 || b.Low < 0 || b.Close < 0 {
		return fmt.Errorf("bar %s@%s: negative price", b.Symbol, b.Ts.Format(time.RFC3339))
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar %s@%s: negative volume", b.Symbol, b.Ts.Format(time.RFC3339))
	}
	if b.Low > b.Open || b.Low > b.Close || b.Open > b.High || b.Close > b.High {
		return fmt.Errorf("bar %s@%s: low <= open,close <= high violated", b.Symbol, b.Ts.Format(time.RFC3339))
	}
	return nil
}

// NewsItem is a scored news article with the symbols it mentions.
type NewsItem struct {
	Title          string         `json:"title"`
	Content        string         `json:"content"`
	PublishedAt    time.Time      `json:"publishedAt"`
	SentimentScore float64        `json:"sentimentScore"` // [-1,1]
	SentimentLabel SentimentLabel `json:"sentimentLabel"`
	Symbols        []string       `json:"symbols"`
}

// Signal expresses a trading bias with independent strength and confidence
// scores. Signals are read-only after creation and expire naturally.
type Signal struct {
	Symbol      string    `json:"symbol"`
	Type        Type      `json:"type"`
	Strength    float64   `json:"strength"`   // [0,1] magnitude
	Confidence  float64   `json:"confidence"` // [0,1] estimated reliability
	Source      Source    `json:"source"`
	GeneratedAt time.Time `json:"generatedAt"`
	Expiration  time.Time `json:"expiration"`
	Explanation string    `json:"explanation"`
	NewsTitle   string    `json:"newsTitle,omitempty"` // originating article, if news-sourced
}

// Expired reports whether the signal's expiration has passed.
func (s Signal) Expired(now time.Time) bool {
	return now.After(s.Expiration)
}

// Trade is one append-only entry in a simulation's trade log.
type Trade struct {
	Ts          time.Time `json:"timestamp"`
	Symbol      string    `json:"symbol"`
	Action      Type      `json:"action"`
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price"`
	Value       float64   `json:"value"`
	Fee         float64   `json:"fee"`
	RealizedPnL float64   `json:"realizedPnl,omitempty"` // set on SELL only
}

// EquityPoint records total portfolio value at one moment of a simulation.
type EquityPoint struct {
	Ts    time.Time `json:"timestamp"`
	Value float64   `json:"value"`
}
