package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReminderRuns counts full reminder-generation passes by result (success|aborted).
	ReminderRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permtrack_reminder_runs_total",
			Help: "Total number of reminder generation passes",
		},
		[]string{"result"},
	)

	// RemindersGenerated counts persisted reminder notifications by deadline type.
	RemindersGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permtrack_reminders_generated_total",
			Help: "Total number of reminder notifications created",
		},
		[]string{"deadline_type"},
	)

	// RemindersSkipped counts candidates dropped during a pass
	// (deduplicated|inactive|no_interval|malformed).
	RemindersSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permtrack_reminders_skipped_total",
			Help: "Total number of reminder candidates skipped",
		},
		[]string{"reason"},
	)

	// CaseFailures counts cases that could not be processed during a pass.
	CaseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "permtrack_case_failures_total",
			Help: "Total number of cases skipped due to errors during reminder generation",
		},
	)

	// ChannelSends counts dispatch attempts by channel and result (sent|transient_error|permanent_error|suppressed).
	ChannelSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permtrack_channel_sends_total",
			Help: "Total number of notification channel dispatch attempts",
		},
		[]string{"channel", "result"},
	)

	// DigestsSent counts weekly digest deliveries by result (success|error).
	DigestsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permtrack_digests_sent_total",
			Help: "Total number of weekly digest emails",
		},
		[]string{"result"},
	)

	// RetentionDeleted counts notifications removed by the retention sweep.
	RetentionDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "permtrack_retention_deleted_total",
			Help: "Total number of notifications removed by the retention sweep",
		},
	)
)
