// internal/server/metrics.go
package server

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/voxctl/voxctl/internal/agent"
)

// Metrics holds the task engine's instrumentation. Wire it into the
// orchestrator with Hooks().
type Metrics struct {
	tasksTotal       *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	recoveriesTotal  *prometheus.CounterVec
	taskDuration     prometheus.Histogram
	taskIterations   prometheus.Histogram
}

// NewMetrics builds and registers the collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		tasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voxctl_tasks_total",
				Help: "Finished tasks by status and error kind.",
			},
			[]string{"status", "error_kind"},
		),
		transitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voxctl_node_transitions_total",
				Help: "State machine transitions by source and destination node.",
			},
			[]string{"from", "to"},
		),
		recoveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voxctl_recoveries_total",
				Help: "Recovery decisions by error kind and operation.",
			},
			[]string{"kind", "op"},
		),
		taskDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "voxctl_task_duration_seconds",
				Help:    "End-to-end task duration.",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
			},
		),
		taskIterations: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "voxctl_task_iterations",
				Help:    "Full observe-act traversals per task.",
				Buckets: []float64{1, 2, 3, 4, 5},
			},
		),
	}
	reg.MustRegister(m.tasksTotal, m.transitionsTotal, m.recoveriesTotal,
		m.taskDuration, m.taskIterations)
	return m
}

// Hooks adapts the metrics to the orchestrator's lifecycle callbacks.
func (m *Metrics) Hooks() agent.Hooks {
	return agent.Hooks{
		OnTransition: func(_ string, from, to agent.Node) {
			m.transitionsTotal.WithLabelValues(string(from), string(to)).Inc()
		},
		OnRecovery: func(_ string, kind agent.ErrorKind, decision agent.Decision) {
			m.recoveriesTotal.WithLabelValues(string(kind), string(decision.Op)).Inc()
		},
		OnTaskDone: func(result agent.TaskResult) {
			m.tasksTotal.WithLabelValues(string(result.Status), string(result.ErrorKind)).Inc()
			m.taskDuration.Observe(result.Duration.Seconds())
			m.taskIterations.Observe(float64(result.Iterations))
		},
	}
}
