// Package metrics holds the Prometheus instruments for job processing,
// dispatch, and the text-generation circuit breaker. Instruments register
// with the default registry and are exposed at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Job outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeRetried = "retried"
	OutcomeSkipped = "skipped"
)

var (
	// Job Metrics
	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_processed_total",
			Help: "Total number of queue jobs processed",
		},
		[]string{"kind", "outcome"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_duration_seconds",
			Help:    "Duration of queue job processing in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"kind"},
	)

	JobsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_enqueued_total",
			Help: "Total number of jobs added to the queue",
		},
		[]string{"kind"},
	)

	// Suggestion Metrics
	SuggestionsGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "suggestions_generated_total",
			Help: "Total number of suggestions persisted",
		},
	)

	SuggestionsCleaned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "suggestions_cleaned_total",
			Help: "Total number of stale suggestions deleted by cleanup",
		},
	)

	// Dispatch Metrics
	DispatchRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_runs_total",
			Help: "Total number of scheduled dispatch runs",
		},
		[]string{"schedule", "outcome"},
	)

	// Queue Metrics
	QueueJobs = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_jobs",
			Help: "Current number of jobs per queue state",
		},
		[]string{"queue", "state"},
	)

	// Text Generation Metrics
	TextGenerationBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "text_generation_breaker_state",
			Help: "Text generation circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)
