// Package metrics
package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crawler_fetch_duration_seconds",
			Help:    "Duration of HTTP fetches in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
	JobsCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crawler_jobs_completed_total",
			Help: "Total number of jobs whose completion was recorded in the ledger.",
		},
	)
	JobsSucceeded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crawler_jobs_succeeded_total",
			Help: "Total number of jobs that finished with an accepted status code.",
		},
	)
	JobsPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "crawler_jobs_pending",
			Help: "Number of jobs waiting in the ledger.",
		},
	)
	JobsReserved = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "crawler_jobs_reserved",
			Help: "Number of jobs currently checked out by a runner.",
		},
	)
	RunnersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "crawler_runners_total",
			Help: "Number of runners started for this crawl.",
		},
	)
	RunnersDead = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "crawler_runners_dead",
			Help: "Number of runners that exited or crashed.",
		},
	)
)

func init() {
	prometheus.MustRegister(FetchDuration)
	prometheus.MustRegister(JobsCompleted)
	prometheus.MustRegister(JobsSucceeded)
	prometheus.MustRegister(JobsPending)
	prometheus.MustRegister(JobsReserved)
	prometheus.MustRegister(RunnersTotal)
	prometheus.MustRegister(RunnersDead)
}

func ExposeMetrics(addr string) {
	slog.Info("Exposing Prometheus metrics", "address", addr)
	http.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("Failed to start Prometheus metrics server", "error", err)
	}
}
