package main

import (
	"context"
	"os"
	ossignal "os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"quantsignals/internal/breaker"
	"quantsignals/internal/config"
	"quantsignals/internal/fuse"
	"quantsignals/internal/ingest"
	"quantsignals/internal/metrics"
	"quantsignals/internal/risk"
	sig "quantsignals/internal/signal"
	"quantsignals/internal/store"
	"quantsignals/internal/util"
)

// nominalBalance sizes the position-cap check for a service that carries no
// portfolio of its own.
const nominalBalance = 100_000

func main() {
	_ = godotenv.Load()

	log := util.NewLogger("signals", "info")
	cfg, err := config.Load(getEnv("QS_CONFIG", "internal/config/config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	log = util.NewLogger("signals", cfg.App.LogLevel)

	if len(cfg.Signals.Symbols) == 0 {
		log.Fatal().Msg("no symbols configured")
	}

	if cfg.App.MetricsAddr != "" {
		_ = metrics.Serve(cfg.App.MetricsAddr)
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer db.Close()

	provider := ingest.NewStub()
	fetcher := ingest.NewFetcher(provider, provider, newBreakers(cfg.Breaker), log, fetcherOptions(cfg.Data)...)

	live := newBarCache()
	if cfg.Data.Provider == "live" {
		feed := ingest.NewFeed(cfg.Signals.Symbols, log,
			ingest.WithStreamBaseURL(cfg.Data.StreamBaseURL),
			ingest.WithInterval(cfg.Data.StreamInterval),
		)
		bars := make(chan sig.PriceBar, 1024)
		go func() {
			defer close(bars)
			if err := feed.Run(ctx, bars); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("live feed stopped")
				cancel()
			}
		}()
		go func() {
			for bar := range bars {
				live.Add(bar)
			}
		}()
	}

	job := &generator{
		cfg:     cfg,
		fetcher: fetcher,
		fuser:   fuse.New(log),
		gate:    newGate(cfg.Risk),
		store:   db,
		live:    live,
		log:     log,
	}

	interval := cfg.Signals.Interval()
	log.Info().Strs("symbols", cfg.Signals.Symbols).Dur("interval", interval).Msg("signal generation started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	job.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return
		case <-ticker.C:
			// runOnce is synchronous, so cycles never overlap; a slow
			// cycle just delays the next tick's work.
			job.runOnce(ctx)
		}
	}
}

// generator runs one fetch-fuse-gate-store cycle at a time.
type generator struct {
	cfg     *config.Config
	fetcher *ingest.Fetcher
	fuser   *fuse.Fuser
	gate    *risk.Gate
	store   *store.SQLiteStore
	live    *barCache
	log     zerolog.Logger
}

func (g *generator) runOnce(ctx context.Context) {
	now := time.Now().UTC()
	lookbackDays := g.cfg.Signals.LookbackDays
	if lookbackDays <= 0 {
		lookbackDays = 90
	}

	bars, failed := g.fetcher.FetchAll(ctx, g.cfg.Signals.Symbols, now.AddDate(0, 0, -lookbackDays), now)
	if len(failed) > 0 {
		g.log.Warn().Strs("symbols", failed).Msg("symbols skipped this cycle")
	}
	news, err := g.fetcher.FetchNews(ctx, g.cfg.Data.NewsLookback())
	if err != nil {
		g.log.Warn().Err(err).Msg("news unavailable this cycle")
	}

	recent, err := g.store.RecentSignals(ctx, "", now.Add(-g.gate.DuplicateWindow))
	if err != nil {
		g.log.Error().Err(err).Msg("load recent signals")
		return
	}

	var accepted, rejected int
	for symbol, series := range bars {
		series = g.live.Merge(symbol, series)

		closes := make([]float64, len(series))
		for i, bar := range series {
			closes[i] = bar.Close
		}

		candidates := g.fuser.FromTechnical(symbol, closes, now)
		for _, item := range news {
			if !mentions(item, symbol) {
				continue
			}
			if s := g.fuser.FromNews(item, series, now); s != nil {
				candidates = append(candidates, *s)
			}
		}

		for _, candidate := range candidates {
			verdict := g.gate.Validate(candidate, nominalBalance, nil, recent, now)
			if !verdict.Accepted {
				metrics.SignalsRejected.WithLabelValues(verdict.Reason).Inc()
				g.log.Debug().Str("sym", symbol).Str("reason", verdict.Reason).Msg("signal rejected")
				rejected++
				continue
			}
			if err := g.store.SaveSignal(ctx, candidate); err != nil {
				g.log.Error().Err(err).Str("sym", symbol).Msg("persist signal")
				continue
			}
			metrics.SignalsGenerated.WithLabelValues(symbol, string(candidate.Source)).Inc()
			recent = append(recent, candidate)
			accepted++
			g.log.Info().
				Str("sym", symbol).
				Str("type", string(candidate.Type)).
				Float64("confidence", candidate.Confidence).
				Str("source", string(candidate.Source)).
				Msg("signal generated")
		}
	}
	g.log.Info().Int("accepted", accepted).Int("rejected", rejected).Msg("cycle complete")
}

func mentions(item sig.NewsItem, symbol string) bool {
	for _, s := range item.Symbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// barCache accumulates live bars per symbol so generation cycles can extend
// historical series with the freshest closes.
type barCache struct {
	mu   sync.Mutex
	bars map[string][]sig.PriceBar
}

func newBarCache() *barCache {
	return &barCache{bars: make(map[string][]sig.PriceBar)}
}

func (c *barCache) Add(bar sig.PriceBar) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bars[bar.Symbol] = append(c.bars[bar.Symbol], bar)
}

// Merge returns series extended with cached live bars newer than its last
// timestamp, sorted ascending.
func (c *barCache) Merge(symbol string, series []sig.PriceBar) []sig.PriceBar {
	c.mu.Lock()
	cached := c.bars[symbol]
	c.mu.Unlock()
	if len(cached) == 0 {
		return series
	}

	var last time.Time
	if len(series) > 0 {
		last = series[len(series)-1].Ts
	}
	out := append([]sig.PriceBar(nil), series...)
	for _, bar := range cached {
		if bar.Ts.After(last) {
			out = append(out, bar)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ts.Before(out[j].Ts) })
	return out
}

func newGate(rc config.Risk) *risk.Gate {
	gate := risk.NewGate()
	if rc.MaxPositionFraction > 0 {
		gate.MaxPositionFraction = rc.MaxPositionFraction
	}
	if rc.MaxDailyLossFraction > 0 {
		gate.MaxDailyLossFraction = rc.MaxDailyLossFraction
	}
	if rc.StopLossFraction > 0 {
		gate.StopLossFraction = rc.StopLossFraction
	}
	if rc.DuplicateWindowHours > 0 {
		gate.DuplicateWindow = time.Duration(rc.DuplicateWindowHours) * time.Hour
	}
	return gate
}

func newBreakers(bc config.Breaker) *breaker.Registry {
	var opts []breaker.Option
	if bc.FailureThreshold > 0 {
		opts = append(opts, breaker.WithFailureThreshold(bc.FailureThreshold))
	}
	if bc.ResetTimeoutSecs > 0 {
		opts = append(opts, breaker.WithResetTimeout(time.Duration(bc.ResetTimeoutSecs)*time.Second))
	}
	return breaker.NewRegistry(opts...)
}

func fetcherOptions(dc config.Data) []ingest.FetcherOption {
	var opts []ingest.FetcherOption
	if dc.MaxAttempts > 0 {
		opts = append(opts, ingest.WithMaxAttempts(dc.MaxAttempts))
	}
	if dc.RetryBaseMs > 0 {
		opts = append(opts, ingest.WithRetryBase(time.Duration(dc.RetryBaseMs)*time.Millisecond))
	}
	if dc.CallTimeoutMs > 0 {
		opts = append(opts, ingest.WithCallTimeout(time.Duration(dc.CallTimeoutMs)*time.Millisecond))
	}
	return opts
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
