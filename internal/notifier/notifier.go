package notifier

import (
	"context"
	"encoding/json"
	"log/slog"

	"opsflow/internal/core/ports"
	"opsflow/internal/domain"
	"opsflow/internal/metrics"
)

// Notifier consumes lifecycle events from the bus and relays them to logs
// and metrics. External notification and audit systems subscribe to the same
// channel on their own; this is the in-process consumer.
type Notifier struct {
	bus    ports.EventBus
	logger *slog.Logger
}

func New(bus ports.EventBus, logger *slog.Logger) *Notifier {
	return &Notifier{
		bus:    bus,
		logger: logger,
	}
}

// Start begins the listening loop. Call this in main.go as a goroutine.
func (n *Notifier) Start(ctx context.Context) error {
	events, err := n.bus.SubscribeLifecycle(ctx)
	if err != nil {
		return err
	}

	n.logger.Info("notifier started, listening for lifecycle events")

	for {
		select {
		case <-ctx.Done():
			n.logger.Info("notifier shutting down")
			return nil

		case event, ok := <-events:
			if !ok {
				return nil
			}
			n.handle(event)
		}
	}
}

func (n *Notifier) handle(event domain.LifecycleEvent) {
	metrics.LifecycleEventsRelayed.WithLabelValues(string(event.Type)).Inc()

	switch event.Type {
	case domain.EventWorkflowStarted:
		var started domain.WorkflowStartedEvent
		if err := json.Unmarshal(event.Payload, &started); err != nil {
			n.logger.Warn("dropping malformed workflow started event", "error", err)
			return
		}
		n.logger.Info("workflow started",
			"workflow_id", started.WorkflowID,
			"template_id", started.TemplateID,
			"customer_business_id", started.CustomerBusinessID,
			"steps", started.StepCount,
		)

	case domain.EventStepResolved:
		var resolved domain.StepResolvedEvent
		if err := json.Unmarshal(event.Payload, &resolved); err != nil {
			n.logger.Warn("dropping malformed step resolved event", "error", err)
			return
		}
		n.logger.Info("step resolved",
			"workflow_id", resolved.WorkflowID,
			"step_id", resolved.StepID,
			"title", resolved.Title,
			"status", resolved.Status,
		)

	case domain.EventWorkflowFinished:
		var finished domain.WorkflowFinishedEvent
		if err := json.Unmarshal(event.Payload, &finished); err != nil {
			n.logger.Warn("dropping malformed workflow finished event", "error", err)
			return
		}
		n.logger.Info("workflow finished",
			"workflow_id", finished.WorkflowID,
			"status", finished.Status,
		)

	default:
		n.logger.Warn("unknown lifecycle event type", "type", event.Type)
	}
}
