package handler

import (
	"net/http"

	"opsflow/internal/api/dto"
	"opsflow/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type WorkflowHandler struct {
	service service.WorkflowService
}

func NewWorkflowHandler(svc service.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{service: svc}
}

// Register wires all routes onto the given group.
func (h *WorkflowHandler) Register(api *gin.RouterGroup) {
	api.POST("/templates", h.CreateTemplate)
	api.GET("/templates/:id", h.GetTemplate)

	api.POST("/workflows", h.StartWorkflow)
	api.GET("/workflows", h.ListWorkflows)
	api.GET("/workflows/:id", h.GetWorkflow)
	api.POST("/workflows/:id/cancel", h.CancelWorkflow)

	api.POST("/steps/:id/complete", h.CompleteStep)
	api.POST("/steps/:id/skip", h.SkipStep)
}

func (h *WorkflowHandler) CreateTemplate(c *gin.Context) {
	var req dto.CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	tmpl, err := h.service.CreateTemplate(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromTemplate(tmpl))
}

func (h *WorkflowHandler) GetTemplate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	tmpl, err := h.service.GetTemplate(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromTemplate(tmpl))
}

func (h *WorkflowHandler) StartWorkflow(c *gin.Context) {
	var req dto.StartWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	workflow, err := h.service.StartWorkflow(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromWorkflow(workflow))
}

func (h *WorkflowHandler) GetWorkflow(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	workflow, err := h.service.GetWorkflow(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromWorkflow(workflow))
}

func (h *WorkflowHandler) ListWorkflows(c *gin.Context) {
	customerBusinessID, err := uuid.Parse(c.Query("customer_business_id"))
	if err != nil {
		badRequest(c, "customer_business_id must be a valid uuid")
		return
	}

	workflows, err := h.service.ListWorkflows(c.Request.Context(), customerBusinessID)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]dto.WorkflowResponse, 0, len(workflows))
	for i := range workflows {
		resp = append(resp, dto.FromWorkflow(&workflows[i]))
	}

	c.JSON(http.StatusOK, resp)
}

func (h *WorkflowHandler) CompleteStep(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req dto.CompleteStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	step, err := h.service.CompleteStep(c.Request.Context(), id, req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromStep(step))
}

func (h *WorkflowHandler) SkipStep(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	step, err := h.service.SkipStep(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromStep(step))
}

func (h *WorkflowHandler) CancelWorkflow(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	workflow, err := h.service.CancelWorkflow(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromWorkflow(workflow))
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "id must be a valid uuid")
		return uuid.Nil, false
	}
	return id, true
}
