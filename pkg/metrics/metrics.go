// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// AdmissionsTotal tracks daily-quota admission decisions.
	AdmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admissions_total",
			Help: "Daily quota admission decisions",
		},
		[]string{"decision", "tier"},
	)

	// CacheOpsTotal tracks cache lookups by outcome.
	CacheOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_ops_total",
			Help: "Cache operations by outcome",
		},
		[]string{"op", "outcome"},
	)

	// JobsEnqueuedTotal tracks chat-turn jobs accepted onto the queue.
	JobsEnqueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jobs_enqueued_total",
			Help: "Chat turn jobs enqueued",
		},
	)

	// JobsProcessedTotal tracks worker job completions by outcome.
	JobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_processed_total",
			Help: "Chat turn jobs processed by workers",
		},
		[]string{"outcome"},
	)

	// JobDuration tracks end-to-end worker processing time.
	JobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "job_duration_seconds",
			Help:    "Worker job processing duration",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
	)

	// GenerationDuration tracks generation backend latency.
	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "generation_duration_seconds",
			Help:    "Generation backend call duration",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"provider", "status"},
	)

	// GenerationTokensTotal tracks tokens exchanged with the backend.
	GenerationTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_tokens_total",
			Help: "Tokens exchanged with the generation backend",
		},
		[]string{"provider", "direction"},
	)

	// WorkersBusy tracks workers currently processing a job.
	WorkersBusy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "workers_busy",
			Help: "Workers currently processing a job",
		},
	)

	// ChatroomsTotal tracks chatrooms created.
	ChatroomsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrooms_total",
			Help: "Total chatrooms created",
		},
	)

	// MessagesTotal tracks persisted messages by author.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages persisted",
		},
		[]string{"author"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordAdmission records a quota admission decision.
func RecordAdmission(allowed bool, tier string) {
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	AdmissionsTotal.WithLabelValues(decision, tier).Inc()
}

// RecordGeneration records metrics for a generation backend call.
func RecordGeneration(provider, status string, duration float64, tokensIn, tokensOut int) {
	GenerationDuration.WithLabelValues(provider, status).Observe(duration)
	GenerationTokensTotal.WithLabelValues(provider, "in").Add(float64(tokensIn))
	GenerationTokensTotal.WithLabelValues(provider, "out").Add(float64(tokensOut))
}
