package domain

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowTemplate is an immutable catalog entry configured by admins.
// The engine only ever reads templates; running workflows copy what they
// need at creation time, so editing a template never touches live instances.
type WorkflowTemplate struct {
	ID   uuid.UUID `gorm:"type:uuid;primary_key;"`
	Name string    `gorm:"type:varchar(200);not null"`

	Steps []StepTemplate `gorm:"foreignKey:TemplateID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// StepTemplate is one ordered entry in a template. At most one of
// DaysFromStart and DaysFromPrevious is set; with neither set the step is
// due on the workflow start date.
type StepTemplate struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;"`
	TemplateID  uuid.UUID `gorm:"type:uuid;index;not null"`
	Title       string    `gorm:"type:varchar(200);not null"`
	Description string    `gorm:"type:text"`
	SortOrder   int       `gorm:"not null"`
	IsRequired  bool      `gorm:"default:false"`

	DaysFromStart    *int
	DaysFromPrevious *int

	CreatedAt time.Time
}

func NewWorkflowTemplate(name string) *WorkflowTemplate {
	return &WorkflowTemplate{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: time.Now(),
	}
}
