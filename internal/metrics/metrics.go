// Package metrics holds the engine's Prometheus collectors. They register
// with the default registry on import and are served at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Candidate results.
const (
	Admitted  = "admitted"
	Duplicate = "duplicate"
	Filtered  = "filtered"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobsweep_requests_total",
			Help: "Platform fetch tasks started, by collection method",
		},
		[]string{"method"}, // paginated, structured, title_filter
	)

	CandidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobsweep_candidates_total",
			Help: "Fetched candidates by what happened to them",
		},
		[]string{"result"}, // admitted, duplicate, filtered
	)

	AccountTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobsweep_account_transitions_total",
			Help: "Account status transitions, by the status entered",
		},
		[]string{"status"},
	)

	AccountsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jobsweep_accounts_in_use",
			Help: "Accounts currently bound to a worker",
		},
	)

	// Buckets: 50ms .. ~100s
	FetchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobsweep_fetch_duration_seconds",
			Help:    "Wall time of one fetch task including retries",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"method"},
	)
)

// ObserveFetch records a finished task of the given method.
func ObserveFetch(method string, started time.Time) {
	FetchDurationSeconds.WithLabelValues(method).Observe(time.Since(started).Seconds())
}
