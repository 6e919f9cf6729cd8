package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"opsflow/internal/core/ports"
	"opsflow/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&domain.WorkflowTemplate{},
		&domain.StepTemplate{},
		&domain.Workflow{},
		&domain.WorkflowStep{},
	))

	return db
}

func seedWorkflow(t *testing.T, db *gorm.DB, stepStatuses ...domain.StepStatus) (*domain.Workflow, []domain.WorkflowStep) {
	t.Helper()

	workflow := domain.NewWorkflow(uuid.New(), uuid.New(), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, db.Omit("Steps").Create(workflow).Error)

	steps := make([]domain.WorkflowStep, 0, len(stepStatuses))
	for i, status := range stepStatuses {
		step := domain.WorkflowStep{
			ID:         uuid.New(),
			WorkflowID: workflow.ID,
			Title:      "step",
			SortOrder:  i + 1,
			Status:     status,
			DueDate:    workflow.StartedAt,
		}
		require.NoError(t, db.Create(&step).Error)
		steps = append(steps, step)
	}

	return workflow, steps
}

func TestResolveStep_GuardLosesWhenStatusMoved(t *testing.T) {
	db := newTestDB(t)
	repo := NewWorkflowRepository(db)
	ctx := context.Background()

	_, steps := seedWorkflow(t, db, domain.StepActive)
	now := time.Now().UTC()

	ok, err := repo.ResolveStep(ctx, steps[0].ID, domain.StepDone, []domain.StepStatus{domain.StepActive}, now, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	// The step is no longer ACTIVE; a replay of the same transition must
	// lose the guard instead of rewriting completed_at.
	later := now.Add(time.Hour)
	ok, err = repo.ResolveStep(ctx, steps[0].ID, domain.StepDone, []domain.StepStatus{domain.StepActive}, later, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	reloaded, err := repo.FindStepByID(ctx, steps[0].ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.CompletedAt)
	assert.True(t, now.Equal(*reloaded.CompletedAt))
}

func TestActivateStep_OnlyFromPending(t *testing.T) {
	db := newTestDB(t)
	repo := NewWorkflowRepository(db)
	ctx := context.Background()

	_, steps := seedWorkflow(t, db, domain.StepDone, domain.StepPending)

	ok, err := repo.ActivateStep(ctx, steps[0].ID, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	due := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	ok, err = repo.ActivateStep(ctx, steps[1].ID, &due)
	require.NoError(t, err)
	assert.True(t, ok)

	reloaded, err := repo.FindStepByID(ctx, steps[1].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StepActive, reloaded.Status)
	assert.True(t, due.Equal(reloaded.DueDate))
}

func TestFindNextPendingStep_SkipsResolvedAndHonorsOrder(t *testing.T) {
	db := newTestDB(t)
	repo := NewWorkflowRepository(db)
	ctx := context.Background()

	workflow, steps := seedWorkflow(t, db, domain.StepDone, domain.StepSkipped, domain.StepPending, domain.StepPending)

	next, err := repo.FindNextPendingStep(ctx, workflow.ID, steps[0].SortOrder)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, steps[2].ID, next.ID)

	// Nothing pending after the last step.
	next, err = repo.FindNextPendingStep(ctx, workflow.ID, steps[3].SortOrder)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestFinishWorkflow_SecondTriggerIsNoOp(t *testing.T) {
	db := newTestDB(t)
	repo := NewWorkflowRepository(db)
	ctx := context.Background()

	workflow, _ := seedWorkflow(t, db)
	now := time.Now().UTC()

	ok, err := repo.FinishWorkflow(ctx, workflow.ID, domain.WorkflowCompleted, now)
	require.NoError(t, err)
	assert.True(t, ok)

	// The workflow left ACTIVE; neither a duplicate completion nor a late
	// cancellation may fire.
	ok, err = repo.FinishWorkflow(ctx, workflow.ID, domain.WorkflowCompleted, now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.FinishWorkflow(ctx, workflow.ID, domain.WorkflowCancelled, now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	reloaded, err := repo.FindByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WorkflowCompleted, reloaded.Status)
	require.NotNil(t, reloaded.CompletedAt)
	assert.True(t, now.Equal(*reloaded.CompletedAt))
}

func TestSkipOpenSteps_LeavesTerminalStepsAlone(t *testing.T) {
	db := newTestDB(t)
	repo := NewWorkflowRepository(db)
	ctx := context.Background()

	doneAt := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	workflow, steps := seedWorkflow(t, db, domain.StepDone, domain.StepActive, domain.StepWaiting, domain.StepPending)
	require.NoError(t, db.Model(&domain.WorkflowStep{}).
		Where("id = ?", steps[0].ID).
		Update("completed_at", doneAt).Error)

	cancelledAt := time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC)
	affected, err := repo.SkipOpenSteps(ctx, workflow.ID, cancelledAt)
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)

	open, err := repo.CountStepsInStatus(ctx, workflow.ID, domain.OpenStepStatuses...)
	require.NoError(t, err)
	assert.Zero(t, open)

	first, err := repo.FindStepByID(ctx, steps[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StepDone, first.Status)
	assert.True(t, doneAt.Equal(*first.CompletedAt))
}

func TestTransaction_RollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	repo := NewWorkflowRepository(db)
	ctx := context.Background()

	_, steps := seedWorkflow(t, db, domain.StepActive)

	boom := errors.New("boom")
	err := repo.Transaction(ctx, func(r ports.WorkflowRepository) error {
		ok, err := r.ResolveStep(ctx, steps[0].ID, domain.StepDone, []domain.StepStatus{domain.StepActive}, time.Now().UTC(), nil)
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	require.ErrorIs(t, err, boom)

	// The resolution inside the failed transaction must not be visible.
	reloaded, err := repo.FindStepByID(ctx, steps[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StepActive, reloaded.Status)
	assert.Nil(t, reloaded.CompletedAt)
}
