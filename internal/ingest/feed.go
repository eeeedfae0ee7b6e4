package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"

	"quantsignals/internal/metrics"
	"quantsignals/internal/signal"
)

const defaultStreamBaseURL = "wss://stream.binance.com:9443"

// Feed streams live closed klines from a public websocket endpoint and
// emits them as PriceBars. It reconnects with growing delays until the
// context is cancelled.
type Feed struct {
	baseURL  string
	symbols  []string
	interval string
	log      zerolog.Logger
}

// FeedOption configures Feed construction.
type FeedOption func(*Feed)

// WithStreamBaseURL overrides the websocket endpoint (tests point this at
// a local server).
func WithStreamBaseURL(url string) FeedOption {
	return func(f *Feed) {
		if url != "" {
			f.baseURL = strings.TrimSuffix(url, "/")
		}
	}
}

// WithInterval overrides the kline interval (default 1m).
func WithInterval(interval string) FeedOption {
	return func(f *Feed) {
		if interval != "" {
			f.interval = interval
		}
	}
}

// NewFeed builds a live bar feed for the given symbols.
func NewFeed(symbols []string, log zerolog.Logger, opts ...FeedOption) *Feed {
	f := &Feed{
		baseURL:  defaultStreamBaseURL,
		symbols:  symbols,
		interval: "1m",
		log:      log,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run streams bars into out until the context is cancelled.
func (f *Feed) Run(ctx context.Context, out chan<- signal.PriceBar) error {
	if len(f.symbols) == 0 {
		return fmt.Errorf("live feed requires at least one symbol")
	}

	streams := make([]string, len(f.symbols))
	for i, sym := range f.symbols {
		streams[i] = strings.ToLower(sym) + "@kline_" + f.interval
	}
	url := fmt.Sprintf("%s/stream?streams=%s", f.baseURL, strings.Join(streams, "/"))

	delays := &backoff.Backoff{Min: time.Second, Max: 30 * time.Second, Factor: 1.8}
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := f.consume(ctx, url, out); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.log.Warn().Err(err).Msg("bar feed disconnected, retrying")
			select {
			case <-time.After(delays.Duration()):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		return nil
	}
}

type klineEnvelope struct {
	Stream string    `json:"stream"`
	Data   klineData `json:"data"`
}

type klineData struct {
	Kline kline `json:"k"`
}

type kline struct {
	CloseTime int64  `json:"T"`
	Open      string `json:"o"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Close     string `json:"c"`
	Volume    string `json:"v"`
	Closed    bool   `json:"x"`
}

func (f *Feed) consume(ctx context.Context, url string, out chan<- signal.PriceBar) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	f.log.Info().Strs("symbols", f.symbols).Str("interval", f.interval).Msg("connected bar feed")

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		bar, ok, err := parseKlineMessage(message)
		if err != nil {
			f.log.Warn().Err(err).Msg("failed to decode kline message")
			continue
		}
		if !ok {
			continue // candle still forming
		}

		select {
		case out <- bar:
			metrics.BarsIngested.WithLabelValues(bar.Symbol).Inc()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// parseKlineMessage decodes one combined-stream message. The second return
// value is false for candles that have not closed yet.
func parseKlineMessage(message []byte) (signal.PriceBar, bool, error) {
	var env klineEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		return signal.PriceBar{}, false, err
	}
	k := env.Data.Kline
	if !k.Closed {
		return signal.PriceBar{}, false, nil
	}

	bar := signal.PriceBar{
		Symbol: streamSymbol(env.Stream),
		Ts:     time.UnixMilli(k.CloseTime),
	}
	var err error
	if bar.Open, err = strconv.ParseFloat(k.Open, 64); err != nil {
		return signal.PriceBar{}, false, fmt.Errorf("bad open: %w", err)
	}
	if bar.High, err = strconv.ParseFloat(k.High, 64); err != nil {
		return signal.PriceBar{}, false, fmt.Errorf("bad high: %w", err)
	}
	if bar.Low, err = strconv.ParseFloat(k.Low, 64); err != nil {
		return signal.PriceBar{}, false, fmt.Errorf("bad low: %w", err)
	}
	if bar.Close, err = strconv.ParseFloat(k.Close, 64); err != nil {
		return signal.PriceBar{}, false, fmt.Errorf("bad close: %w", err)
	}
	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return signal.PriceBar{}, false, fmt.Errorf("bad volume: %w", err)
	}
	bar.Volume = int64(volume)

	if err := bar.Validate(); err != nil {
		return signal.PriceBar{}, false, err
	}
	return bar, true, nil
}

func streamSymbol(stream string) string {
	parts := strings.Split(stream, "@")
	if len(parts) == 0 || parts[0] == "" {
		return strings.ToUpper(stream)
	}
	return strings.ToUpper(parts[0])
}
