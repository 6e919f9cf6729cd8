package repository

import (
	"context"
	"errors"
	"time"

	"opsflow/internal/core/ports"
	"opsflow/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type workflowRepository struct {
	db *gorm.DB
}

// NewWorkflowRepository creates a new instance of WorkflowRepository
func NewWorkflowRepository(db *gorm.DB) ports.WorkflowRepository {
	return &workflowRepository{db: db}
}

func (r *workflowRepository) Transaction(ctx context.Context, fn func(ports.WorkflowRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&workflowRepository{db: tx})
	})
}

func (r *workflowRepository) Create(ctx context.Context, workflow *domain.Workflow, steps []domain.WorkflowStep) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Steps").Create(workflow).Error; err != nil {
			return err
		}

		if len(steps) > 0 {
			if err := tx.Create(&steps).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

func (r *workflowRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Workflow, error) {
	var workflow domain.Workflow
	err := r.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Where("id = ?", id).
		First(&workflow).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotFoundError{Entity: "workflow", ID: id}
		}
		return nil, err
	}
	return &workflow, nil
}

func (r *workflowRepository) ListByCustomerBusiness(ctx context.Context, customerBusinessID uuid.UUID) ([]domain.Workflow, error) {
	var workflows []domain.Workflow
	err := r.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Where("customer_business_id = ?", customerBusinessID).
		Order("started_at DESC").
		Find(&workflows).Error

	return workflows, err
}

func (r *workflowRepository) FindStepByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowStep, error) {
	var step domain.WorkflowStep
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&step).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotFoundError{Entity: "workflow step", ID: id}
		}
		return nil, err
	}
	return &step, nil
}

func (r *workflowRepository) FindStepTemplateByID(ctx context.Context, id uuid.UUID) (*domain.StepTemplate, error) {
	var tmpl domain.StepTemplate
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&tmpl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotFoundError{Entity: "step template", ID: id}
		}
		return nil, err
	}
	return &tmpl, nil
}

func (r *workflowRepository) FindNextPendingStep(ctx context.Context, workflowID uuid.UUID, afterSortOrder int) (*domain.WorkflowStep, error) {
	var step domain.WorkflowStep
	err := r.db.WithContext(ctx).
		Where("workflow_id = ? AND sort_order > ? AND status = ?",
			workflowID, afterSortOrder, domain.StepPending).
		Order("sort_order ASC").
		First(&step).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &step, nil
}

// ResolveStep is a guarded update: the status check in the WHERE clause makes
// two concurrent resolutions of the same step mutually exclusive. The loser
// sees RowsAffected == 0 and the caller surfaces InvalidState instead of
// writing a second terminal transition.
func (r *workflowRepository) ResolveStep(ctx context.Context, stepID uuid.UUID, to domain.StepStatus, from []domain.StepStatus, completedAt time.Time, completedBy *uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.WorkflowStep{}).
		Where("id = ? AND status IN ?", stepID, from).
		Updates(map[string]interface{}{
			"status":       to,
			"completed_at": completedAt,
			"completed_by": completedBy,
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (r *workflowRepository) ActivateStep(ctx context.Context, stepID uuid.UUID, dueDate *time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status": domain.StepActive,
	}
	if dueDate != nil {
		updates["due_date"] = *dueDate
	}

	result := r.db.WithContext(ctx).
		Model(&domain.WorkflowStep{}).
		Where("id = ? AND status = ?", stepID, domain.StepPending).
		Updates(updates)

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (r *workflowRepository) CountStepsInStatus(ctx context.Context, workflowID uuid.UUID, statuses ...domain.StepStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.WorkflowStep{}).
		Where("workflow_id = ? AND status IN ?", workflowID, statuses).
		Count(&count).Error

	return count, err
}

// FinishWorkflow only fires while the workflow is still ACTIVE, so a second
// completion trigger (or a completion racing a cancellation) is a no-op.
func (r *workflowRepository) FinishWorkflow(ctx context.Context, workflowID uuid.UUID, to domain.WorkflowStatus, completedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Workflow{}).
		Where("id = ? AND status = ?", workflowID, domain.WorkflowActive).
		Updates(map[string]interface{}{
			"status":       to,
			"completed_at": completedAt,
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (r *workflowRepository) SkipOpenSteps(ctx context.Context, workflowID uuid.UUID, completedAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.WorkflowStep{}).
		Where("workflow_id = ? AND status IN ?", workflowID, domain.OpenStepStatuses).
		Updates(map[string]interface{}{
			"status":       domain.StepSkipped,
			"completed_at": completedAt,
		})

	return result.RowsAffected, result.Error
}
