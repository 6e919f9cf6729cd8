package ports

import (
	"context"
	"time"

	"opsflow/internal/domain"

	"github.com/google/uuid"
)

// Clock supplies the engine's notion of "now" so tests can pin it.
type Clock interface {
	Now() time.Time
}

// TemplateRepository reads and writes the workflow template catalog.
type TemplateRepository interface {
	Create(ctx context.Context, tmpl *domain.WorkflowTemplate) error

	// FindByID loads a template with its step templates ordered by sort order.
	FindByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowTemplate, error)
}

// WorkflowRepository is the transactional store for workflow instances.
// Every engine operation runs its reads, validation, and writes against a
// single transaction obtained via Transaction; the guarded update methods
// return false when the row was no longer in an expected state, which is how
// concurrent transitions lose the race instead of double-applying.
type WorkflowRepository interface {
	// Transaction runs fn against a repository bound to one database
	// transaction. Returning an error rolls everything back.
	Transaction(ctx context.Context, fn func(WorkflowRepository) error) error

	// Create persists a workflow and all of its steps atomically.
	Create(ctx context.Context, workflow *domain.Workflow, steps []domain.WorkflowStep) error

	// FindByID loads a workflow with its steps ordered by sort order.
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Workflow, error)

	ListByCustomerBusiness(ctx context.Context, customerBusinessID uuid.UUID) ([]domain.Workflow, error)

	FindStepByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowStep, error)

	FindStepTemplateByID(ctx context.Context, id uuid.UUID) (*domain.StepTemplate, error)

	// FindNextPendingStep returns the PENDING step with the smallest sort
	// order strictly greater than afterSortOrder, or nil when none remains.
	FindNextPendingStep(ctx context.Context, workflowID uuid.UUID, afterSortOrder int) (*domain.WorkflowStep, error)

	// ResolveStep moves a step to DONE or SKIPPED, but only if its current
	// status is one of from. Returns false when the guard did not match.
	ResolveStep(ctx context.Context, stepID uuid.UUID, to domain.StepStatus, from []domain.StepStatus, completedAt time.Time, completedBy *uuid.UUID) (bool, error)

	// ActivateStep promotes a PENDING step to ACTIVE, optionally rewriting
	// its due date. Returns false when the step was not PENDING anymore.
	ActivateStep(ctx context.Context, stepID uuid.UUID, dueDate *time.Time) (bool, error)

	CountStepsInStatus(ctx context.Context, workflowID uuid.UUID, statuses ...domain.StepStatus) (int64, error)

	// FinishWorkflow moves an ACTIVE workflow to COMPLETED or CANCELLED and
	// stamps completedAt. Returns false when the workflow was not ACTIVE, so
	// a redundant completion trigger is a no-op rather than a second write.
	FinishWorkflow(ctx context.Context, workflowID uuid.UUID, to domain.WorkflowStatus, completedAt time.Time) (bool, error)

	// SkipOpenSteps bulk-resolves every PENDING/ACTIVE/WAITING step of the
	// workflow to SKIPPED with the given timestamp. Terminal steps keep
	// their original completedAt.
	SkipOpenSteps(ctx context.Context, workflowID uuid.UUID, completedAt time.Time) (int64, error)
}

// EventBus publishes lifecycle events after successful engine operations and
// feeds the notifier's subscriber loop.
type EventBus interface {
	PublishWorkflowStarted(ctx context.Context, event domain.WorkflowStartedEvent) error

	PublishStepResolved(ctx context.Context, event domain.StepResolvedEvent) error

	PublishWorkflowFinished(ctx context.Context, event domain.WorkflowFinishedEvent) error

	// SubscribeLifecycle opens a continuous stream of lifecycle envelopes.
	SubscribeLifecycle(ctx context.Context) (<-chan domain.LifecycleEvent, error)
}
