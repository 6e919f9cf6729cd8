package domain

import (
	"time"

	"github.com/google/uuid"
)

type StepStatus string

const (
	StepPending StepStatus = "PENDING"
	StepActive  StepStatus = "ACTIVE"
	StepWaiting StepStatus = "WAITING"
	StepDone    StepStatus = "DONE"
	StepSkipped StepStatus = "SKIPPED"
)

// OpenStepStatuses are the non-terminal step states. WAITING is not produced
// by the engine itself but collaborators may set it, so cancellation and the
// exhaustion check treat it like PENDING/ACTIVE.
var OpenStepStatuses = []StepStatus{StepPending, StepActive, StepWaiting}

// WorkflowStep is one unit of work inside a Workflow. Title and SortOrder are
// copied from the step template at creation, so later template edits never
// reach into running workflows. StepTemplateID is kept only to look up
// DaysFromPrevious when the step is activated.
type WorkflowStep struct {
	ID             uuid.UUID  `gorm:"type:uuid;primary_key;"`
	WorkflowID     uuid.UUID  `gorm:"type:uuid;index;not null"`
	StepTemplateID *uuid.UUID `gorm:"type:uuid"`

	Title     string `gorm:"type:varchar(200);not null"`
	SortOrder int    `gorm:"not null;index"`

	AssigneeID uuid.UUID `gorm:"type:uuid;index"`
	DueDate    time.Time

	// State
	Status      StepStatus `gorm:"type:varchar(20);index;default:'PENDING'"`
	CompletedAt *time.Time
	CompletedBy *uuid.UUID `gorm:"type:uuid"`

	Note *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewWorkflowStep(workflowID uuid.UUID, tmpl StepTemplate, assigneeID uuid.UUID, dueDate time.Time) *WorkflowStep {
	templateID := tmpl.ID
	return &WorkflowStep{
		ID:             uuid.New(),
		WorkflowID:     workflowID,
		StepTemplateID: &templateID,
		Title:          tmpl.Title,
		SortOrder:      tmpl.SortOrder,
		AssigneeID:     assigneeID,
		DueDate:        dueDate,
		Status:         StepPending,
		CreatedAt:      time.Now(),
	}
}

func (s *WorkflowStep) IsTerminal() bool {
	return s.Status == StepDone || s.Status == StepSkipped
}
