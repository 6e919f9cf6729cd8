package dto

import "github.com/google/uuid"

type StepTemplateDTO struct {
	Title            string `json:"title" binding:"required"`
	Description      string `json:"description"`
	SortOrder        int    `json:"sort_order" binding:"min=0"`
	IsRequired       bool   `json:"is_required"`
	DaysFromStart    *int   `json:"days_from_start"`
	DaysFromPrevious *int   `json:"days_from_previous"`
}

type CreateTemplateRequest struct {
	Name  string            `json:"name" binding:"required"`
	Steps []StepTemplateDTO `json:"steps" binding:"dive"`
}

type StartWorkflowRequest struct {
	TemplateID         uuid.UUID      `json:"template_id" binding:"required"`
	CustomerBusinessID uuid.UUID      `json:"customer_business_id" binding:"required"`
	AssigneeID         uuid.UUID      `json:"assignee_id" binding:"required"`
	StartDate          string         `json:"start_date" binding:"required,datetime=2006-01-02"`
	Metadata           map[string]any `json:"metadata"`
}

type CompleteStepRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}
