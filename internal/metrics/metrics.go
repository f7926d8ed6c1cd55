package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cache_hits_total", Help: "Price cache lookups served from disk"},
		[]string{"ticker"},
	)
	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cache_misses_total", Help: "Price cache lookups that fell through to a provider"},
		[]string{"ticker"},
	)
	ProviderFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "provider_fetches_total", Help: "Provider fetches by market and outcome"},
		[]string{"market", "outcome"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_total", Help: "Signals emitted by strategy evaluations"},
		[]string{"ticker", "type"},
	)
	RiskRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "risk_rejections_total", Help: "Orders rejected by the risk gate, by rule"},
		[]string{"rule"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Orders submitted"},
		[]string{"ticker", "side"},
	)
	JobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "scheduler_job_runs_total", Help: "Scheduled job executions by outcome"},
		[]string{"job", "outcome"},
	)
	SignalsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "signals_dropped_total", Help: "Signals dropped because the subscriber queue was full"},
	)
)

func init() {
	prometheus.MustRegister(
		CacheHitsTotal, CacheMissesTotal, ProviderFetchesTotal,
		SignalsTotal, RiskRejectionsTotal, OrdersTotal,
		JobRunsTotal, SignalsDroppedTotal,
	)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
