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

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	TemplateMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "template_matches_total",
			Help: "Documents matched against reference templates, by outcome",
		},
		[]string{"status", "low_confidence"},
	)

	TemplateMatchScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "template_match_score",
			Help:    "Score of the best candidate per matched document",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		},
	)

	TemplateCandidatesScored = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "template_candidates_scored",
			Help:    "Number of templates scored per document",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	TemplateStoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "template_store_operations_total",
			Help: "Template repository operations, by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)
)

// Outcome labels an operation result for TemplateStoreOperations.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
