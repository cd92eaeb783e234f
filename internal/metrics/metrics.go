package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Correlation metrics
	TasksGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "soclite_correlator_tasks_generated_total",
			Help: "Total number of tasks created by correlation runs",
		},
	)

	EventsLinked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "soclite_correlator_events_linked_total",
			Help: "Total number of events linked to tasks",
		},
	)

	GroupsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "soclite_correlator_groups_skipped_total",
			Help: "Total number of event groups skipped because a task already existed",
		},
	)

	GroupsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "soclite_correlator_groups_failed_total",
			Help: "Total number of event groups whose transaction failed",
		},
	)

	CorrelationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "soclite_correlator_run_duration_seconds",
			Help:    "Duration of correlation runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Job queue metrics
	JobTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soclite_jobs_transitions_total",
			Help: "Total number of job state transitions",
		},
		[]string{"transition"},
	)

	JobProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "soclite_jobs_processing_duration_seconds",
			Help:    "Duration of job processing in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	// Escalation metrics
	EscalationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soclite_escalations_created_total",
			Help: "Total number of escalations created",
		},
		[]string{"source_type"},
	)

	ChannelDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soclite_escalation_channel_deliveries_total",
			Help: "Total number of escalation channel delivery attempts",
		},
		[]string{"channel", "outcome"},
	)
)
