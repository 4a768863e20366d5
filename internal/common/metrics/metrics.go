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
)

// Donor matching.
var (
	RankingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "donor_rankings_total",
			Help: "Rankings produced, by requested blood group and candidate source",
		},
		[]string{"blood_group", "source"},
	)

	RankingCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "donor_ranking_candidates",
			Help:    "Donors fetched per ranking before eligibility filtering",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	RankingReturned = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "donor_ranking_returned",
			Help:    "Matches returned per ranking",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20, 50},
		},
		[]string{"tier"},
	)

	DonorsInCooldown = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "donor_ranking_cooldown_blocked_total",
			Help: "Compatible donors skipped because their last donation is inside the cooldown window",
		},
	)

	SettingsUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_settings_updates_total",
			Help: "Matching settings updates by result",
		},
		[]string{"result"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "donor_cache_lookups_total",
			Help: "Redis cache lookups by entity and outcome",
		},
		[]string{"entity", "outcome"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "donor_notifications_total",
			Help: "SMS notifications to matched donors by result",
		},
		[]string{"result"},
	)

	AvailabilityRefreshed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "donor_availability_restored_total",
			Help: "Donors marked available again after their cooldown elapsed",
		},
	)

	IndexedDonors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "donor_index_documents_total",
			Help: "Donor documents sent to the search index by result",
		},
		[]string{"result"},
	)

	ScheduledRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_runs_total",
			Help: "Scheduled maintenance runs by job and result",
		},
		[]string{"job", "result"},
	)
)
