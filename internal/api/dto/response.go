package dto

import (
	"encoding/json"
	"time"

	"opsflow/internal/domain"

	"github.com/google/uuid"
)

type TemplateResponse struct {
	ID    uuid.UUID              `json:"id"`
	Name  string                 `json:"name"`
	Steps []StepTemplateResponse `json:"steps"`
}

type StepTemplateResponse struct {
	ID               uuid.UUID `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	SortOrder        int       `json:"sort_order"`
	IsRequired       bool      `json:"is_required"`
	DaysFromStart    *int      `json:"days_from_start,omitempty"`
	DaysFromPrevious *int      `json:"days_from_previous,omitempty"`
}

type WorkflowResponse struct {
	ID                 uuid.UUID       `json:"id"`
	TemplateID         uuid.UUID       `json:"template_id"`
	CustomerBusinessID uuid.UUID       `json:"customer_business_id"`
	Status             string          `json:"status"`
	StartedAt          time.Time       `json:"started_at"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
	Metadata           json.RawMessage `json:"metadata,omitempty"`
	Steps              []StepResponse  `json:"steps,omitempty"`
}

type StepResponse struct {
	ID          uuid.UUID  `json:"id"`
	WorkflowID  uuid.UUID  `json:"workflow_id"`
	Title       string     `json:"title"`
	SortOrder   int        `json:"sort_order"`
	AssigneeID  uuid.UUID  `json:"assignee_id"`
	DueDate     time.Time  `json:"due_date"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CompletedBy *uuid.UUID `json:"completed_by,omitempty"`
	Note        *string    `json:"note,omitempty"`
}

func FromTemplate(tmpl *domain.WorkflowTemplate) TemplateResponse {
	resp := TemplateResponse{
		ID:    tmpl.ID,
		Name:  tmpl.Name,
		Steps: make([]StepTemplateResponse, 0, len(tmpl.Steps)),
	}
	for _, s := range tmpl.Steps {
		resp.Steps = append(resp.Steps, StepTemplateResponse{
			ID:               s.ID,
			Title:            s.Title,
			Description:      s.Description,
			SortOrder:        s.SortOrder,
			IsRequired:       s.IsRequired,
			DaysFromStart:    s.DaysFromStart,
			DaysFromPrevious: s.DaysFromPrevious,
		})
	}
	return resp
}

func FromWorkflow(workflow *domain.Workflow) WorkflowResponse {
	resp := WorkflowResponse{
		ID:                 workflow.ID,
		TemplateID:         workflow.TemplateID,
		CustomerBusinessID: workflow.CustomerBusinessID,
		Status:             string(workflow.Status),
		StartedAt:          workflow.StartedAt,
		CompletedAt:        workflow.CompletedAt,
		Metadata:           json.RawMessage(workflow.Metadata),
	}
	for _, s := range workflow.Steps {
		step := s
		resp.Steps = append(resp.Steps, FromStep(&step))
	}
	return resp
}

func FromStep(step *domain.WorkflowStep) StepResponse {
	return StepResponse{
		ID:          step.ID,
		WorkflowID:  step.WorkflowID,
		Title:       step.Title,
		SortOrder:   step.SortOrder,
		AssigneeID:  step.AssigneeID,
		DueDate:     step.DueDate,
		Status:      string(step.Status),
		CompletedAt: step.CompletedAt,
		CompletedBy: step.CompletedBy,
		Note:        step.Note,
	}
}
