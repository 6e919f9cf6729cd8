package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type WorkflowStatus string

const (
	WorkflowActive    WorkflowStatus = "ACTIVE"
	WorkflowCompleted WorkflowStatus = "COMPLETED"
	WorkflowCancelled WorkflowStatus = "CANCELLED"
)

// Workflow is one execution of a template against a customer business.
// CompletedAt is non-null exactly when the status is terminal.
type Workflow struct {
	ID                 uuid.UUID `gorm:"type:uuid;primary_key;"`
	TemplateID         uuid.UUID `gorm:"type:uuid;index;not null"`
	CustomerBusinessID uuid.UUID `gorm:"type:uuid;index;not null"`

	// State
	Status      WorkflowStatus `gorm:"type:varchar(20);default:'ACTIVE'"`
	StartedAt   time.Time      `gorm:"not null"`
	CompletedAt *time.Time

	Metadata datatypes.JSON `gorm:"type:jsonb"`

	// Relationships
	Steps []WorkflowStep `gorm:"foreignKey:WorkflowID"`

	// Audit
	CreatedAt time.Time
	UpdatedAt time.Time
}

// --- FACTORY ---
func NewWorkflow(templateID, customerBusinessID uuid.UUID, startedAt time.Time) *Workflow {
	return &Workflow{
		ID:                 uuid.New(),
		TemplateID:         templateID,
		CustomerBusinessID: customerBusinessID,
		Status:             WorkflowActive,
		StartedAt:          startedAt,
		CreatedAt:          time.Now(),
	}
}

// --- METHODS ---
func (w *Workflow) IsFinished() bool {
	return w.Status == WorkflowCompleted || w.Status == WorkflowCancelled
}
