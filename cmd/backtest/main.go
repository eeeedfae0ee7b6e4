package main

import (
	"context"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"quantsignals/internal/backtest"
	"quantsignals/internal/breaker"
	"quantsignals/internal/config"
	"quantsignals/internal/fuse"
	"quantsignals/internal/ingest"
	"quantsignals/internal/metrics"
	"quantsignals/internal/risk"
	"quantsignals/internal/store"
	"quantsignals/internal/util"
)

func main() {
	_ = godotenv.Load()

	log := util.NewLogger("backtest", "info")
	cfg, err := config.Load(getEnv("QS_CONFIG", "internal/config/config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	log = util.NewLogger("backtest", cfg.App.LogLevel)

	if cfg.App.MetricsAddr != "" {
		_ = metrics.Serve(cfg.App.MetricsAddr)
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	run := cfg.Backtest.Run
	if err := run.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid backtest config")
	}

	breakers := newBreakers(cfg.Breaker)
	provider := ingest.NewStub()
	fetcher := ingest.NewFetcher(provider, provider, breakers, log, fetcherOptions(cfg.Data)...)

	bars, failed := fetcher.FetchAll(ctx, run.Symbols, run.Start, run.End)
	if len(failed) > 0 {
		log.Warn().Strs("symbols", failed).Msg("symbols excluded from run")
	}
	if len(bars) == 0 {
		log.Fatal().Msg("no price history available for any symbol")
	}
	news, err := fetcher.FetchNews(ctx, cfg.Data.NewsLookback())
	if err != nil {
		log.Warn().Err(err).Msg("news unavailable, running without sentiment")
	}

	var opts []backtest.Option
	if cfg.Backtest.TradesPath != "" {
		recorder, err := backtest.NewJSONLRecorder(cfg.Backtest.TradesPath)
		if err != nil {
			log.Fatal().Err(err).Msg("open trade log")
		}
		defer recorder.Close()
		opts = append(opts, backtest.WithRecorder(recorder))
	}
	sim := backtest.NewSimulator(newGate(cfg.Risk), fuse.New(log), log, opts...)
	result, err := sim.Run(ctx, run, bars, news)
	if err != nil {
		log.Fatal().Err(err).Msg("backtest failed")
	}

	perf := result.Performance
	log.Info().
		Str("strategy", run.StrategyName).
		Float64("total_return", perf.TotalReturn).
		Float64("annualized_return", perf.AnnualizedReturn).
		Float64("sharpe", perf.SharpeRatio).
		Float64("max_drawdown", perf.MaxDrawdown).
		Float64("win_rate", perf.WinRate).
		Int("trades", len(result.Trades)).
		Dur("elapsed", result.ExecutionTime).
		Msg("backtest complete")

	if cfg.Store.Path != "" {
		db, err := store.Open(cfg.Store.Path)
		if err != nil {
			log.Fatal().Err(err).Msg("open store")
		}
		defer db.Close()
		id, err := db.SaveBacktest(ctx, result)
		if err != nil {
			log.Fatal().Err(err).Msg("persist result")
		}
		log.Info().Int64("id", id).Str("path", cfg.Store.Path).Msg("result stored")
	}
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
