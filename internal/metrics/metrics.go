package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	syncJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "metricsync",
			Name:      "sync_jobs_total",
			Help:      "Completed sync jobs by source and terminal state.",
		},
		[]string{"source", "state"},
	)

	sheetWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "metricsync",
			Name:      "sheet_writes_total",
			Help:      "Rows written to the tabular store by mode.",
		},
		[]string{"source", "mode"},
	)

	lockAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "metricsync",
			Name:      "lock_attempts_total",
			Help:      "Lock acquisition attempts by outcome (acquired, contended).",
		},
		[]string{"outcome"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "metricsync",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(syncJobs, sheetWrites, lockAttempts, httpRequests)
	})
}

// IncSyncJob increments the terminal-state counter for a source.
func IncSyncJob(source, state string) {
	syncJobs.WithLabelValues(source, state).Inc()
}

// IncSheetWrite increments the write counter for a source and mode.
func IncSheetWrite(source, mode string) {
	sheetWrites.WithLabelValues(source, mode).Inc()
}

// IncLockAttempt records a lock acquisition outcome.
func IncLockAttempt(outcome string) {
	lockAttempts.WithLabelValues(outcome).Inc()
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
