// Package metrics exposes Prometheus instrumentation for the signal and
// backtest pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BarsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "price_bars_ingested_total", Help: "Price bars fetched or streamed per symbol"},
		[]string{"symbol"},
	)
	SignalsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_generated_total", Help: "Candidate signals emitted by the fuser"},
		[]string{"symbol", "source"},
	)
	SignalsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_rejected_total", Help: "Signals dropped by the risk gate, by reason"},
		[]string{"reason"},
	)
	TradesExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trades_executed_total", Help: "Simulated executions applied to the ledger"},
		[]string{"symbol", "action"},
	)
	BacktestRuns = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "backtest_runs_total", Help: "Completed backtest runs"},
	)
	BreakerOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "circuit_breaker_open", Help: "1 when the breaker for a service is open"},
		[]string{"service"},
	)
)

func init() {
	prometheus.MustRegister(BarsIngested, SignalsGenerated, SignalsRejected, TradesExecuted, BacktestRuns, BreakerOpen)
}

// Serve starts a metrics endpoint on addr and returns the server handle.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
