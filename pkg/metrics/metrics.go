package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SweepRuns counts sweep executions by job name and outcome (success|failure|partial).
	SweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bbab_sweep_runs_total",
			Help: "Total number of background sweep executions",
		},
		[]string{"job", "result"},
	)

	// FetchResults counts external metric fetches by fetcher and outcome (success|error|skipped).
	FetchResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bbab_fetch_results_total",
			Help: "Total number of external metric fetch attempts",
		},
		[]string{"fetcher", "result"},
	)

	// NotificationsSent counts alert emails by outcome (success|failure).
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bbab_notifications_sent_total",
			Help: "Total number of alert notifications attempted",
		},
		[]string{"result"},
	)

	// SweepDuration measures wall-clock duration of sweep executions.
	SweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bbab_sweep_duration_seconds",
			Help:    "Background sweep execution duration",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"job"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bbab_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
