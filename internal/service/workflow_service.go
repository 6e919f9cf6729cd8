package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"opsflow/internal/api/dto"
	"opsflow/internal/core/ports"
	"opsflow/internal/domain"
	"opsflow/internal/metrics"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type WorkflowService interface {
	CreateTemplate(ctx context.Context, req dto.CreateTemplateRequest) (*domain.WorkflowTemplate, error)
	GetTemplate(ctx context.Context, id uuid.UUID) (*domain.WorkflowTemplate, error)

	StartWorkflow(ctx context.Context, req dto.StartWorkflowRequest) (*domain.Workflow, error)
	GetWorkflow(ctx context.Context, id uuid.UUID) (*domain.Workflow, error)
	ListWorkflows(ctx context.Context, customerBusinessID uuid.UUID) ([]domain.Workflow, error)

	CompleteStep(ctx context.Context, stepID, userID uuid.UUID) (*domain.WorkflowStep, error)
	SkipStep(ctx context.Context, stepID uuid.UUID) (*domain.WorkflowStep, error)
	CancelWorkflow(ctx context.Context, workflowID uuid.UUID) (*domain.Workflow, error)
}

// The Implementation
type workflowService struct {
	templates ports.TemplateRepository
	workflows ports.WorkflowRepository
	bus       ports.EventBus
	clock     ports.Clock
	logger    *slog.Logger
}

// Constructor
func NewWorkflowService(templates ports.TemplateRepository, workflows ports.WorkflowRepository, bus ports.EventBus, clock ports.Clock, logger *slog.Logger) WorkflowService {
	return &workflowService{
		templates: templates,
		workflows: workflows,
		bus:       bus,
		clock:     clock,
		logger:    logger,
	}
}

func (s *workflowService) CreateTemplate(ctx context.Context, req dto.CreateTemplateRequest) (*domain.WorkflowTemplate, error) {
	tmpl := domain.NewWorkflowTemplate(req.Name)

	seenOrders := make(map[int]bool, len(req.Steps))
	for _, stepDto := range req.Steps {
		if seenOrders[stepDto.SortOrder] {
			return nil, &domain.ValidationError{Msg: "duplicate sort_order in template steps"}
		}
		seenOrders[stepDto.SortOrder] = true

		if stepDto.DaysFromStart != nil && stepDto.DaysFromPrevious != nil {
			return nil, &domain.ValidationError{Msg: "a step template can set days_from_start or days_from_previous, not both"}
		}

		tmpl.Steps = append(tmpl.Steps, domain.StepTemplate{
			ID:               uuid.New(),
			TemplateID:       tmpl.ID,
			Title:            stepDto.Title,
			Description:      stepDto.Description,
			SortOrder:        stepDto.SortOrder,
			IsRequired:       stepDto.IsRequired,
			DaysFromStart:    stepDto.DaysFromStart,
			DaysFromPrevious: stepDto.DaysFromPrevious,
		})
	}

	if err := s.templates.Create(ctx, tmpl); err != nil {
		return nil, err
	}

	// Read back with steps in sort order.
	return s.templates.FindByID(ctx, tmpl.ID)
}

func (s *workflowService) GetTemplate(ctx context.Context, id uuid.UUID) (*domain.WorkflowTemplate, error) {
	return s.templates.FindByID(ctx, id)
}

// StartWorkflow instantiates a template: one workflow row plus one step per
// step template, all in one transaction. The first step starts ACTIVE, the
// rest PENDING, each with the scheduler's projected due date.
func (s *workflowService) StartWorkflow(ctx context.Context, req dto.StartWorkflowRequest) (*domain.Workflow, error) {
	tmpl, err := s.templates.FindByID(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}

	if len(tmpl.Steps) == 0 {
		return nil, &domain.InvalidStateError{
			Entity: "workflow template",
			ID:     tmpl.ID,
			Reason: "template has no steps",
		}
	}

	// Binding already checked the format.
	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return nil, &domain.ValidationError{Msg: "start_date must be formatted as YYYY-MM-DD"}
	}

	workflow := domain.NewWorkflow(req.TemplateID, req.CustomerBusinessID, startDate)
	if req.Metadata != nil {
		raw, err := json.Marshal(req.Metadata)
		if err != nil {
			return nil, &domain.ValidationError{Msg: "metadata is not serializable"}
		}
		workflow.Metadata = datatypes.JSON(raw)
	}

	dueDates := ScheduleDueDates(startDate, tmpl.Steps)

	steps := make([]domain.WorkflowStep, 0, len(tmpl.Steps))
	for i, stepTmpl := range tmpl.Steps {
		step := domain.NewWorkflowStep(workflow.ID, stepTmpl, req.AssigneeID, dueDates[i])
		if i == 0 {
			step.Status = domain.StepActive
		}
		steps = append(steps, *step)
	}

	if err := s.workflows.Create(ctx, workflow, steps); err != nil {
		return nil, err
	}

	workflow.Steps = steps

	metrics.WorkflowsStarted.Inc()
	s.publishStarted(ctx, workflow)

	return workflow, nil
}

func (s *workflowService) GetWorkflow(ctx context.Context, id uuid.UUID) (*domain.Workflow, error) {
	return s.workflows.FindByID(ctx, id)
}

func (s *workflowService) ListWorkflows(ctx context.Context, customerBusinessID uuid.UUID) ([]domain.Workflow, error) {
	return s.workflows.ListByCustomerBusiness(ctx, customerBusinessID)
}

// CompleteStep marks the ACTIVE step DONE and advances the workflow. The
// read, the precondition checks, the guarded update, and the activation
// cascade all run inside one transaction, so two concurrent completions of
// the same step cannot both succeed.
func (s *workflowService) CompleteStep(ctx context.Context, stepID, userID uuid.UUID) (*domain.WorkflowStep, error) {
	var (
		resolved *domain.WorkflowStep
		finished *domain.WorkflowFinishedEvent
	)

	err := s.workflows.Transaction(ctx, func(r ports.WorkflowRepository) error {
		step, err := r.FindStepByID(ctx, stepID)
		if err != nil {
			return err
		}

		workflow, err := r.FindByID(ctx, step.WorkflowID)
		if err != nil {
			return err
		}
		if workflow.Status != domain.WorkflowActive {
			return &domain.InvalidStateError{
				Entity:  "workflow",
				ID:      workflow.ID,
				Current: string(workflow.Status),
				Reason:  "steps can only be completed on an active workflow",
			}
		}

		if step.Status != domain.StepActive {
			return &domain.InvalidStateError{
				Entity:  "workflow step",
				ID:      step.ID,
				Current: string(step.Status),
				Reason:  "only the active step can be completed",
			}
		}

		now := s.clock.Now()

		ok, err := r.ResolveStep(ctx, step.ID, domain.StepDone, []domain.StepStatus{domain.StepActive}, now, &userID)
		if err != nil {
			return err
		}
		if !ok {
			// Lost a race inside the same instant: re-read for the status
			// the winner left behind.
			return s.invalidStepState(ctx, r, step.ID, "only the active step can be completed")
		}

		step.Status = domain.StepDone
		step.CompletedAt = &now
		step.CompletedBy = &userID

		finished, err = s.activateNext(ctx, r, workflow.ID, step.SortOrder, now)
		if err != nil {
			return err
		}

		resolved = step

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterResolution(ctx, resolved, finished)

	return resolved, nil
}

// SkipStep resolves any non-terminal step as SKIPPED and runs the same
// activation protocol as completion.
func (s *workflowService) SkipStep(ctx context.Context, stepID uuid.UUID) (*domain.WorkflowStep, error) {
	var (
		resolved *domain.WorkflowStep
		finished *domain.WorkflowFinishedEvent
	)

	err := s.workflows.Transaction(ctx, func(r ports.WorkflowRepository) error {
		step, err := r.FindStepByID(ctx, stepID)
		if err != nil {
			return err
		}

		workflow, err := r.FindByID(ctx, step.WorkflowID)
		if err != nil {
			return err
		}
		if workflow.Status != domain.WorkflowActive {
			return &domain.InvalidStateError{
				Entity:  "workflow",
				ID:      workflow.ID,
				Current: string(workflow.Status),
				Reason:  "steps can only be skipped on an active workflow",
			}
		}

		if step.IsTerminal() {
			return &domain.InvalidStateError{
				Entity:  "workflow step",
				ID:      step.ID,
				Current: string(step.Status),
				Reason:  "step is already resolved",
			}
		}

		now := s.clock.Now()

		ok, err := r.ResolveStep(ctx, step.ID, domain.StepSkipped, domain.OpenStepStatuses, now, nil)
		if err != nil {
			return err
		}
		if !ok {
			return s.invalidStepState(ctx, r, step.ID, "step is already resolved")
		}

		step.Status = domain.StepSkipped
		step.CompletedAt = &now
		step.CompletedBy = nil

		finished, err = s.activateNext(ctx, r, workflow.ID, step.SortOrder, now)
		if err != nil {
			return err
		}

		resolved = step

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterResolution(ctx, resolved, finished)

	return resolved, nil
}

// CancelWorkflow bulk-skips every open step and retires the workflow.
// Already-resolved steps keep their original completedAt.
func (s *workflowService) CancelWorkflow(ctx context.Context, workflowID uuid.UUID) (*domain.Workflow, error) {
	var cancelledAt time.Time

	err := s.workflows.Transaction(ctx, func(r ports.WorkflowRepository) error {
		workflow, err := r.FindByID(ctx, workflowID)
		if err != nil {
			return err
		}
		if workflow.Status != domain.WorkflowActive {
			return &domain.InvalidStateError{
				Entity:  "workflow",
				ID:      workflow.ID,
				Current: string(workflow.Status),
				Reason:  "only an active workflow can be cancelled",
			}
		}

		now := s.clock.Now()

		if _, err := r.SkipOpenSteps(ctx, workflow.ID, now); err != nil {
			return err
		}

		ok, err := r.FinishWorkflow(ctx, workflow.ID, domain.WorkflowCancelled, now)
		if err != nil {
			return err
		}
		if !ok {
			return &domain.InvalidStateError{
				Entity:  "workflow",
				ID:      workflow.ID,
				Current: string(workflow.Status),
				Reason:  "only an active workflow can be cancelled",
			}
		}

		cancelledAt = now

		return nil
	})
	if err != nil {
		return nil, err
	}

	workflow, err := s.workflows.FindByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	metrics.WorkflowsFinished.WithLabelValues(string(domain.WorkflowCancelled)).Inc()
	s.publishFinished(ctx, domain.WorkflowFinishedEvent{
		WorkflowID:  workflow.ID,
		Status:      domain.WorkflowCancelled,
		CompletedAt: cancelledAt,
	})

	return workflow, nil
}

// activateNext is the shared advancement procedure. With the frontier just
// resolved, it promotes the next PENDING step, re-anchoring its due date to
// the actual completion time when the originating template chains off the
// previous step. When nothing is left to promote and no step remains open,
// the workflow is exhausted and completes. This check is the single
// completion authority; no other layer decides workflow completion.
func (s *workflowService) activateNext(ctx context.Context, r ports.WorkflowRepository, workflowID uuid.UUID, afterSortOrder int, completionTime time.Time) (*domain.WorkflowFinishedEvent, error) {
	active, err := r.CountStepsInStatus(ctx, workflowID, domain.StepActive)
	if err != nil {
		return nil, err
	}
	if active > 0 {
		// A step ahead of the resolved one is still active (a later PENDING
		// step was skipped out of turn). Activating another would break the
		// single-active invariant, and the workflow cannot be exhausted.
		return nil, nil
	}

	next, err := r.FindNextPendingStep(ctx, workflowID, afterSortOrder)
	if err != nil {
		return nil, err
	}

	if next != nil {
		var dueDate *time.Time
		if next.StepTemplateID != nil {
			stepTmpl, err := r.FindStepTemplateByID(ctx, *next.StepTemplateID)
			if err != nil && !domain.IsNotFound(err) {
				return nil, err
			}
			if stepTmpl != nil && stepTmpl.DaysFromPrevious != nil {
				due := completionTime.AddDate(0, 0, *stepTmpl.DaysFromPrevious)
				dueDate = &due
			}
		}

		if _, err := r.ActivateStep(ctx, next.ID, dueDate); err != nil {
			return nil, err
		}

		return nil, nil
	}

	open, err := r.CountStepsInStatus(ctx, workflowID, domain.OpenStepStatuses...)
	if err != nil {
		return nil, err
	}
	if open > 0 {
		return nil, nil
	}

	ok, err := r.FinishWorkflow(ctx, workflowID, domain.WorkflowCompleted, completionTime)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	return &domain.WorkflowFinishedEvent{
		WorkflowID:  workflowID,
		Status:      domain.WorkflowCompleted,
		CompletedAt: completionTime,
	}, nil
}

func (s *workflowService) invalidStepState(ctx context.Context, r ports.WorkflowRepository, stepID uuid.UUID, reason string) error {
	current, err := r.FindStepByID(ctx, stepID)
	if err != nil {
		return err
	}
	return &domain.InvalidStateError{
		Entity:  "workflow step",
		ID:      stepID,
		Current: string(current.Status),
		Reason:  reason,
	}
}

// afterResolution records metrics and publishes events once the transaction
// has committed. Publishing never fails the operation.
func (s *workflowService) afterResolution(ctx context.Context, step *domain.WorkflowStep, finished *domain.WorkflowFinishedEvent) {
	metrics.StepsResolved.WithLabelValues(string(step.Status)).Inc()

	event := domain.StepResolvedEvent{
		WorkflowID:  step.WorkflowID,
		StepID:      step.ID,
		Title:       step.Title,
		SortOrder:   step.SortOrder,
		Status:      step.Status,
		CompletedBy: step.CompletedBy,
	}
	if step.CompletedAt != nil {
		event.CompletedAt = *step.CompletedAt
	}
	if err := s.bus.PublishStepResolved(ctx, event); err != nil {
		s.logger.Warn("failed to publish step resolved event", "step_id", step.ID, "error", err)
	}

	if finished != nil {
		metrics.WorkflowsFinished.WithLabelValues(string(finished.Status)).Inc()
		s.publishFinished(ctx, *finished)
	}
}

func (s *workflowService) publishStarted(ctx context.Context, workflow *domain.Workflow) {
	event := domain.WorkflowStartedEvent{
		WorkflowID:         workflow.ID,
		TemplateID:         workflow.TemplateID,
		CustomerBusinessID: workflow.CustomerBusinessID,
		StartedAt:          workflow.StartedAt,
		StepCount:          len(workflow.Steps),
		Metadata:           json.RawMessage(workflow.Metadata),
	}
	if err := s.bus.PublishWorkflowStarted(ctx, event); err != nil {
		s.logger.Warn("failed to publish workflow started event", "workflow_id", workflow.ID, "error", err)
	}
}

func (s *workflowService) publishFinished(ctx context.Context, event domain.WorkflowFinishedEvent) {
	if err := s.bus.PublishWorkflowFinished(ctx, event); err != nil {
		s.logger.Warn("failed to publish workflow finished event", "workflow_id", event.WorkflowID, "error", err)
	}
}
