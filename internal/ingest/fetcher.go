package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"

	"quantsignals/internal/breaker"
	"quantsignals/internal/metrics"
	"quantsignals/internal/signal"
)

// Service keys used with the circuit breaker registry.
const (
	ServicePriceHistory = "price-history"
	ServiceNews         = "news"
)

const (
	defaultMaxAttempts = 3
	defaultCallTimeout = 10 * time.Second
	defaultRetryBase   = time.Second
)

// Fetcher wraps providers with bounded retries, per-call timeouts, and the
// circuit breaker. One Fetcher is shared by all callers; the breaker
// registry is its only shared mutable state.
type Fetcher struct {
	bars        BarProvider
	news        NewsProvider
	breakers    *breaker.Registry
	maxAttempts int
	retryBase   time.Duration
	callTimeout time.Duration
	log         zerolog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithMaxAttempts overrides the retry attempt bound.
func WithMaxAttempts(n int) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxAttempts = n
		}
	}
}

// WithRetryBase overrides the first retry delay.
func WithRetryBase(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.retryBase = d
		}
	}
}

// WithCallTimeout overrides the per-call network timeout.
func WithCallTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.callTimeout = d
		}
	}
}

// NewFetcher builds a Fetcher over the given providers and breaker registry.
func NewFetcher(bars BarProvider, news NewsProvider, breakers *breaker.Registry, log zerolog.Logger, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		bars:        bars,
		news:        news,
		breakers:    breakers,
		maxAttempts: defaultMaxAttempts,
		retryBase:   defaultRetryBase,
		callTimeout: defaultCallTimeout,
		log:         log,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchBars returns a symbol's bars for the range, retrying transient
// failures. An open breaker aborts immediately with *breaker.OpenError.
func (f *Fetcher) FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]signal.PriceBar, error) {
	var bars []signal.PriceBar
	err := f.call(ctx, ServicePriceHistory, func(callCtx context.Context) error {
		var err error
		bars, err = f.bars.Bars(callCtx, symbol, start, end)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch bars %s: %w", symbol, err)
	}
	metrics.BarsIngested.WithLabelValues(symbol).Add(float64(len(bars)))
	return bars, nil
}

// FetchNews returns scored news for the lookback window under the news
// service breaker.
func (f *Fetcher) FetchNews(ctx context.Context, lookback time.Duration) ([]signal.NewsItem, error) {
	var items []signal.NewsItem
	err := f.call(ctx, ServiceNews, func(callCtx context.Context) error {
		var err error
		items, err = f.news.News(callCtx, lookback)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch news: %w", err)
	}
	return items, nil
}

// FetchAll fetches every symbol's bars, isolating per-symbol failures: a
// failed symbol is logged and reported in the second return value while the
// rest of the batch proceeds.
func (f *Fetcher) FetchAll(ctx context.Context, symbols []string, start, end time.Time) (map[string][]signal.PriceBar, []string) {
	out := make(map[string][]signal.PriceBar, len(symbols))
	var failed []string
	for _, sym := range symbols {
		bars, err := f.FetchBars(ctx, sym, start, end)
		if err != nil {
			f.log.Warn().Err(err).Str("sym", sym).Msg("symbol excluded from batch")
			failed = append(failed, sym)
			continue
		}
		out[sym] = bars
	}
	return out, failed
}

// call runs op under the service breaker with a bounded retry loop and an
// increasing delay between attempts.
func (f *Fetcher) call(ctx context.Context, service string, op func(context.Context) error) error {
	delays := &backoff.Backoff{Min: f.retryBase, Max: 30 * time.Second, Factor: 2}

	var err error
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		err = f.breakers.Execute(service, func() error {
			callCtx, cancel := context.WithTimeout(ctx, f.callTimeout)
			defer cancel()
			return op(callCtx)
		})
		f.publishBreakerState(service)
		if err == nil {
			return nil
		}

		var openErr *breaker.OpenError
		if errors.As(err, &openErr) {
			// Retrying an open breaker only burns the attempt budget.
			return err
		}
		if attempt < f.maxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delays.Duration()):
			}
		}
	}
	return err
}

func (f *Fetcher) publishBreakerState(service string) {
	var open float64
	if f.breakers.Status(service).State == breaker.Open {
		open = 1
	}
	metrics.BreakerOpen.WithLabelValues(service).Set(open)
}
