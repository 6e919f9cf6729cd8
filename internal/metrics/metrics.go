package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkflowsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "opsflow_workflows_started_total",
		Help: "Workflows instantiated from templates.",
	})

	WorkflowsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opsflow_workflows_finished_total",
		Help: "Workflows that reached a terminal status.",
	}, []string{"status"})

	StepsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opsflow_steps_resolved_total",
		Help: "Workflow steps resolved to DONE or SKIPPED.",
	}, []string{"status"})

	LifecycleEventsRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opsflow_lifecycle_events_relayed_total",
		Help: "Lifecycle events consumed from the event bus by the notifier.",
	}, []string{"type"})
)
