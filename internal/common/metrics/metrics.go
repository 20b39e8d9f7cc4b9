// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"method", "route", "code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loan_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	ReviewMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_review_mutations_total",
			Help: "Admin review mutations by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	DocumentUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_document_files_total",
			Help: "Document file uploads and removals by outcome",
		},
		[]string{"operation", "outcome"},
	)

	DocumentProgress = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "loan_document_progress_percent",
			Help:    "Computed document progress after each change",
			Buckets: []float64{0, 25, 50, 75, 90, 100},
		},
	)

	DraftCacheFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loan_draft_cache_fallbacks_total",
			Help: "Reads served from the draft cache because the repository failed",
		},
	)
)
