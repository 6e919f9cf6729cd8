package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventWorkflowStarted  EventType = "workflow.started"
	EventStepResolved     EventType = "step.resolved"
	EventWorkflowFinished EventType = "workflow.finished"
)

// LifecycleEvent is the envelope published to Redis Pub/Sub after a
// successful engine operation. Payload holds one of the event structs below,
// selected by Type.
type LifecycleEvent struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type WorkflowStartedEvent struct {
	WorkflowID         uuid.UUID       `json:"workflow_id"`
	TemplateID         uuid.UUID       `json:"template_id"`
	CustomerBusinessID uuid.UUID       `json:"customer_business_id"`
	StartedAt          time.Time       `json:"started_at"`
	StepCount          int             `json:"step_count"`
	Metadata           json.RawMessage `json:"metadata,omitempty"`
}

// StepResolvedEvent is published when a single step reaches DONE or SKIPPED.
// CompletedBy is nil for skips.
type StepResolvedEvent struct {
	WorkflowID  uuid.UUID  `json:"workflow_id"`
	StepID      uuid.UUID  `json:"step_id"`
	Title       string     `json:"title"`
	SortOrder   int        `json:"sort_order"`
	Status      StepStatus `json:"status"`
	CompletedAt time.Time  `json:"completed_at"`
	CompletedBy *uuid.UUID `json:"completed_by,omitempty"`
}

type WorkflowFinishedEvent struct {
	WorkflowID  uuid.UUID      `json:"workflow_id"`
	Status      WorkflowStatus `json:"status"`
	CompletedAt time.Time      `json:"completed_at"`
}
