package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"opsflow/internal/api/dto"
	"opsflow/internal/core/postgres/repository"
	"opsflow/internal/domain"
	"opsflow/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type nopBus struct{}

func (nopBus) PublishWorkflowStarted(context.Context, domain.WorkflowStartedEvent) error {
	return nil
}

func (nopBus) PublishStepResolved(context.Context, domain.StepResolvedEvent) error {
	return nil
}

func (nopBus) PublishWorkflowFinished(context.Context, domain.WorkflowFinishedEvent) error {
	return nil
}

func (nopBus) SubscribeLifecycle(context.Context) (<-chan domain.LifecycleEvent, error) {
	ch := make(chan domain.LifecycleEvent)
	close(ch)
	return ch, nil
}

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.now
}

func setupTestRouter(t *testing.T) (*gin.Engine, *fixedClock) {
	t.Helper()

	gin.SetMode(gin.TestMode)

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

	clock := &fixedClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	svc := service.NewWorkflowService(
		repository.NewTemplateRepository(db),
		repository.NewWorkflowRepository(db),
		nopBus{},
		clock,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	router := gin.New()
	NewWorkflowHandler(svc).Register(router.Group("/api/v1"))

	return router, clock
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if out != nil && rec.Code < 300 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}

	return rec
}

func createTemplate(t *testing.T, router *gin.Engine) dto.TemplateResponse {
	t.Helper()

	var tmpl dto.TemplateResponse
	rec := doJSON(t, router, http.MethodPost, "/api/v1/templates", dto.CreateTemplateRequest{
		Name: "partner onboarding",
		Steps: []dto.StepTemplateDTO{
			{Title: "sign agreement", SortOrder: 1, IsRequired: true},
			{Title: "configure billing", SortOrder: 2, DaysFromPrevious: ptr(3)},
		},
	}, &tmpl)
	require.Equal(t, http.StatusCreated, rec.Code)

	return tmpl
}

func startWorkflow(t *testing.T, router *gin.Engine, templateID uuid.UUID) dto.WorkflowResponse {
	t.Helper()

	var workflow dto.WorkflowResponse
	rec := doJSON(t, router, http.MethodPost, "/api/v1/workflows", dto.StartWorkflowRequest{
		TemplateID:         templateID,
		CustomerBusinessID: uuid.New(),
		AssigneeID:         uuid.New(),
		StartDate:          "2026-01-01",
	}, &workflow)
	require.Equal(t, http.StatusCreated, rec.Code)

	return workflow
}

func ptr(v int) *int {
	return &v
}

func TestStartWorkflow_Endpoint(t *testing.T) {
	router, _ := setupTestRouter(t)
	tmpl := createTemplate(t, router)

	workflow := startWorkflow(t, router, tmpl.ID)

	assert.Equal(t, string(domain.WorkflowActive), workflow.Status)
	require.Len(t, workflow.Steps, 2)
	assert.Equal(t, string(domain.StepActive), workflow.Steps[0].Status)
	assert.Equal(t, string(domain.StepPending), workflow.Steps[1].Status)
}

func TestStartWorkflow_BadDate(t *testing.T) {
	router, _ := setupTestRouter(t)
	tmpl := createTemplate(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/workflows", map[string]any{
		"template_id":          tmpl.ID,
		"customer_business_id": uuid.New(),
		"assignee_id":          uuid.New(),
		"start_date":           "January 1st",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartWorkflow_UnknownTemplate(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/workflows", dto.StartWorkflowRequest{
		TemplateID:         uuid.New(),
		CustomerBusinessID: uuid.New(),
		AssigneeID:         uuid.New(),
		StartDate:          "2026-01-01",
	}, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var problem map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "not_found", problem["type"])
}

func TestCompleteStep_Endpoint(t *testing.T) {
	router, clock := setupTestRouter(t)
	tmpl := createTemplate(t, router)
	workflow := startWorkflow(t, router, tmpl.ID)

	clock.now = time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	var step dto.StepResponse
	rec := doJSON(t, router, http.MethodPost, "/api/v1/steps/"+workflow.Steps[0].ID.String()+"/complete",
		dto.CompleteStepRequest{UserID: uuid.New()}, &step)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(domain.StepDone), step.Status)
	require.NotNil(t, step.CompletedAt)

	// A replayed completion conflicts with the state the first one left.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/steps/"+workflow.Steps[0].ID.String()+"/complete",
		dto.CompleteStepRequest{UserID: uuid.New()}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var problem map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "invalid_state", problem["type"])
}

func TestCompleteStep_BadID(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/steps/not-a-uuid/complete",
		dto.CompleteStepRequest{UserID: uuid.New()}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSkipStep_Endpoint(t *testing.T) {
	router, _ := setupTestRouter(t)
	tmpl := createTemplate(t, router)
	workflow := startWorkflow(t, router, tmpl.ID)

	var step dto.StepResponse
	rec := doJSON(t, router, http.MethodPost, "/api/v1/steps/"+workflow.Steps[0].ID.String()+"/skip", nil, &step)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(domain.StepSkipped), step.Status)
	assert.Nil(t, step.CompletedBy)
}

func TestCancelWorkflow_Endpoint(t *testing.T) {
	router, _ := setupTestRouter(t)
	tmpl := createTemplate(t, router)
	workflow := startWorkflow(t, router, tmpl.ID)

	var cancelled dto.WorkflowResponse
	rec := doJSON(t, router, http.MethodPost, "/api/v1/workflows/"+workflow.ID.String()+"/cancel", nil, &cancelled)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, string(domain.WorkflowCancelled), cancelled.Status)
	require.NotNil(t, cancelled.CompletedAt)
	for _, step := range cancelled.Steps {
		assert.Equal(t, string(domain.StepSkipped), step.Status)
	}

	// Cancelling twice conflicts.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/workflows/"+workflow.ID.String()+"/cancel", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetWorkflow_Endpoint(t *testing.T) {
	router, _ := setupTestRouter(t)
	tmpl := createTemplate(t, router)
	workflow := startWorkflow(t, router, tmpl.ID)

	var fetched dto.WorkflowResponse
	rec := doJSON(t, router, http.MethodGet, "/api/v1/workflows/"+workflow.ID.String(), nil, &fetched)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, workflow.ID, fetched.ID)
	assert.Len(t, fetched.Steps, 2)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/workflows/"+uuid.New().String(), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
