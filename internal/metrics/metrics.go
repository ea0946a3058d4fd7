// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine. Using promauto for
// automatic registration with the default registry.
var (
	// --- Task Metrics ---

	// TasksTotal counts total tasks by status.
	TasksTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "ai_task_scheduler",
			Subsystem: "tasks",
			Name:      "total",
			Help:      "Total number of tasks by status",
		},
		[]string{"status"},
	)

	// ExecutionsTotal counts total executions by status and task type.
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ai_task_scheduler",
			Subsystem: "executions",
			Name:      "total",
			Help:      "Total number of task executions by status",
		},
		[]string{"status", "task_type"},
	)

	// ExecutionDuration tracks execution wall-clock duration.
	ExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ai_task_scheduler",
			Subsystem: "executions",
			Name:      "duration_seconds",
			Help:      "Duration of task executions in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 15), // 0.1s to ~27m
		},
		[]string{"task_type", "status"},
	)

	// TaskQualityScore tracks the distribution of response quality scores
	// (spec.md §4.8.3 — five 0.2-weighted indicators, 0.0 to 1.0).
	TaskQualityScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ai_task_scheduler",
			Subsystem: "executions",
			Name:      "quality_score",
			Help:      "Distribution of assessed response quality scores",
			Buckets:   prometheus.LinearBuckets(0, 0.2, 6), // 0.0, 0.2, ..., 1.0
		},
	)

	// --- Poller Metrics ---

	// SchedulerLag measures delay between scheduled time and actual dispatch.
	SchedulerLag = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ai_task_scheduler",
			Subsystem: "poller",
			Name:      "lag_seconds",
			Help:      "Delay between a task's due time and actual dispatch",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		},
	)

	// SchedulerPolls counts poller tick cycles.
	SchedulerPolls = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ai_task_scheduler",
			Subsystem: "poller",
			Name:      "polls_total",
			Help:      "Total number of poller tick cycles",
		},
	)

	// TasksDispatched counts tasks dispatched to the queue per cycle.
	TasksDispatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ai_task_scheduler",
			Subsystem: "poller",
			Name:      "tasks_dispatched_total",
			Help:      "Total number of tasks dispatched to the queue",
		},
	)

	// StuckTasksRecovered counts tasks reclaimed from a stuck processing state.
	StuckTasksRecovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ai_task_scheduler",
			Subsystem: "poller",
			Name:      "stuck_tasks_recovered_total",
			Help:      "Total number of tasks reset out of a stuck processing state",
		},
	)

	// --- Executor Metrics ---

	// ActiveNodes tracks number of live nodes known to the coordinator.
	ActiveNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ai_task_scheduler",
			Subsystem: "cluster",
			Name:      "active_nodes",
			Help:      "Number of active nodes registered with the coordinator",
		},
	)

	// ExecutorTasksRunning tracks concurrently running tasks on this executor.
	ExecutorTasksRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ai_task_scheduler",
			Subsystem: "executor",
			Name:      "tasks_running",
			Help:      "Number of tasks currently executing on this node",
		},
	)

	// HeartbeatsSent counts liveness heartbeats sent by this node.
	HeartbeatsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ai_task_scheduler",
			Subsystem: "executor",
			Name:      "heartbeats_total",
			Help:      "Total heartbeats sent",
		},
	)

	// --- Queue Metrics ---

	// QueueDepth tracks pending messages in the work queue.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ai_task_scheduler",
			Subsystem: "queue",
			Name:      "pending_messages",
			Help:      "Number of messages pending in the work queue",
		},
	)

	// --- Retry / Notification Metrics ---

	// RetriesTotal counts task execution retries.
	RetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ai_task_scheduler",
			Subsystem: "executions",
			Name:      "retries_total",
			Help:      "Total number of task execution retries scheduled",
		},
	)

	// OrphansReaped counts orphaned executions cleaned up after a node vanished.
	OrphansReaped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ai_task_scheduler",
			Subsystem: "executions",
			Name:      "orphans_reaped_total",
			Help:      "Total number of orphaned executions marked failed",
		},
	)

	// NotificationDeliveryFailures counts per-channel dispatch failures.
	NotificationDeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ai_task_scheduler",
			Subsystem: "notifications",
			Name:      "delivery_failures_total",
			Help:      "Total notification delivery failures by channel",
		},
		[]string{"channel"},
	)

	// AgentBreakerState tracks the Agent-invocation circuit breaker's
	// current state (0=closed, 1=open, 2=half-open) per breaker name.
	AgentBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "ai_task_scheduler",
			Subsystem: "executor",
			Name:      "agent_breaker_state",
			Help:      "Current state of the Agent circuit breaker (0=closed, 1=open, 2=half-open)",
		},
		[]string{"breaker"},
	)

	// AgentBreakerTrips counts transitions into the open state.
	AgentBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ai_task_scheduler",
			Subsystem: "executor",
			Name:      "agent_breaker_trips_total",
			Help:      "Total number of times the Agent circuit breaker tripped open",
		},
		[]string{"breaker"},
	)
)

// RecordExecution records the outcome of a completed execution attempt.
func RecordExecution(taskType, status string) {
	ExecutionsTotal.WithLabelValues(status, taskType).Inc()
}

// RecordExecutionDuration records how long an execution attempt took.
func RecordExecutionDuration(taskType, status string, durationSeconds float64) {
	ExecutionDuration.WithLabelValues(taskType, status).Observe(durationSeconds)
}

// RecordDispatch records a task being handed off from the poller to the queue.
func RecordDispatch(lagSeconds float64) {
	TasksDispatched.Inc()
	SchedulerLag.Observe(lagSeconds)
}
