package redis

import (
	"context"
	"encoding/json"

	"opsflow/internal/domain"

	"github.com/redis/go-redis/v9"
)

// EventBus publishes engine lifecycle events to a single Pub/Sub channel.
// Subscribers (the in-process notifier, external audit/notification systems)
// receive every event wrapped in a typed envelope.
type EventBus struct {
	client  *redis.Client
	channel string
}

func NewEventBus(client *redis.Client) *EventBus {
	return &EventBus{
		client:  client,
		channel: "workflow:events:lifecycle",
	}
}

func (b *EventBus) PublishWorkflowStarted(ctx context.Context, event domain.WorkflowStartedEvent) error {
	return b.publish(ctx, domain.EventWorkflowStarted, event)
}

func (b *EventBus) PublishStepResolved(ctx context.Context, event domain.StepResolvedEvent) error {
	return b.publish(ctx, domain.EventStepResolved, event)
}

func (b *EventBus) PublishWorkflowFinished(ctx context.Context, event domain.WorkflowFinishedEvent) error {
	return b.publish(ctx, domain.EventWorkflowFinished, event)
}

func (b *EventBus) publish(ctx context.Context, eventType domain.EventType, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	envelope, err := json.Marshal(domain.LifecycleEvent{
		Type:    eventType,
		Payload: raw,
	})
	if err != nil {
		return err
	}

	return b.client.Publish(ctx, b.channel, envelope).Err()
}

// SubscribeLifecycle opens a continuous stream of lifecycle envelopes.
// Messages that fail to decode are dropped.
func (b *EventBus) SubscribeLifecycle(ctx context.Context) (<-chan domain.LifecycleEvent, error) {
	pubsub := b.client.Subscribe(ctx, b.channel)

	eventChan := make(chan domain.LifecycleEvent)

	go func() {
		defer close(eventChan)
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			default:
				msg, err := pubsub.ReceiveMessage(ctx)
				if err == nil {
					var event domain.LifecycleEvent
					if err := json.Unmarshal([]byte(msg.Payload), &event); err == nil {
						eventChan <- event
					}
				}
			}
		}
	}()

	return eventChan, nil
}
