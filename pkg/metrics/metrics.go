package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actionable_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// TaskMutations counts task mutations by operation (create|update|toggle|delete|bulk) and result.
	TaskMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actionable_task_mutations_total",
			Help: "Total number of task mutations",
		},
		[]string{"operation", "result"},
	)

	// NotificationsScheduled counts scheduled local notifications by kind.
	NotificationsScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actionable_notifications_scheduled_total",
			Help: "Total number of scheduled local notifications",
		},
		[]string{"kind"},
	)

	// RealtimeEvents counts change-feed events broadcast to clients.
	RealtimeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actionable_realtime_events_total",
			Help: "Total number of realtime change events broadcast",
		},
		[]string{"stream", "op"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "actionable_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
