package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TasksSubmitted counts admitted tasks.
	TasksSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analysis_tasks_submitted_total",
		Help: "Total number of task submissions accepted",
	})

	// TasksCompleted counts tasks that reached the completed state.
	TasksCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analysis_tasks_completed_total",
		Help: "Total number of tasks completed successfully",
	})

	// TasksFailed counts tasks that reached the failed state, by cause.
	TasksFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analysis_tasks_failed_total",
		Help: "Total number of failed tasks by cause",
	}, []string{"cause"}) // cause: missing_payload, corrupt_audio, extraction_failed, artifact_missing, analysis_failed

	// AnalysisDuration tracks how long the analysis function runs.
	AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "analysis_duration_seconds",
		Help:    "Time spent in the analysis function per task",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	// WorkersInFlight tracks currently running worker goroutines.
	WorkersInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "analysis_workers_in_flight",
		Help: "Number of analysis workers currently running",
	})

	// CleanupFailures counts scratch directory removals that errored.
	CleanupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analysis_cleanup_failures_total",
		Help: "Total number of failed scratch cleanup attempts",
	})
)
