package http

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/workflow-engine/internal/application/service"
)

// HealthReporter reports component health for GET /health
type HealthReporter interface {
	HealthReport(ctx context.Context) (healthy bool, report interface{})
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	workflowService service.WorkflowService
	health          HealthReporter
	logger          Logger
}

// NewHandlers creates a new Handlers instance. health may be nil.
func NewHandlers(workflowService service.WorkflowService, health HealthReporter, logger Logger) *Handlers {
	return &Handlers{
		workflowService: workflowService,
		health:          health,
		logger:          logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Version    string      `json:"version"`
	Components interface{} `json:"components,omitempty"`
}

// Version is reported by the health endpoint
var Version = "1.0.0"

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   Version,
	}
	status := http.StatusOK

	if h.health != nil {
		healthy, report := h.health.HealthReport(c.Request.Context())
		response.Components = report
		if !healthy {
			response.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, response)
}

// CreateDefinition handles POST /workflow-definitions
func (h *Handlers) CreateDefinition(c *gin.Context) {
	var req service.CreateDefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.abortWithBindError(c, err)
		return
	}

	def, err := h.workflowService.CreateDefinition(c.Request.Context(), req)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.Header("Location", "/workflow-definitions/"+def.ID)
	c.JSON(http.StatusCreated, def)
}

// ListDefinitions handles GET /workflow-definitions
func (h *Handlers) ListDefinitions(c *gin.Context) {
	defs, err := h.workflowService.ListDefinitions(c.Request.Context())
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, defs)
}

// GetDefinition handles GET /workflow-definitions/:id
func (h *Handlers) GetDefinition(c *gin.Context) {
	def, err := h.workflowService.GetDefinition(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, def)
}

// DeleteDefinition handles DELETE /workflow-definitions/:id
func (h *Handlers) DeleteDefinition(c *gin.Context) {
	if err := h.workflowService.DeleteDefinition(c.Request.Context(), c.Param("id")); err != nil {
		h.abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// StartInstance handles POST /workflow-definitions/:id/instances
func (h *Handlers) StartInstance(c *gin.Context) {
	inst, err := h.workflowService.StartInstance(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.Header("Location", "/workflow-instances/"+inst.ID)
	c.JSON(http.StatusCreated, inst)
}

// ListDefinitionInstances handles GET /workflow-definitions/:id/instances
func (h *Handlers) ListDefinitionInstances(c *gin.Context) {
	views, err := h.workflowService.ListInstancesByDefinition(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// ListInstances handles GET /workflow-instances
func (h *Handlers) ListInstances(c *gin.Context) {
	views, err := h.workflowService.ListInstances(c.Request.Context())
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// GetInstance handles GET /workflow-instances/:id
func (h *Handlers) GetInstance(c *gin.Context) {
	view, err := h.workflowService.GetInstance(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ExecuteAction handles POST /workflow-instances/:id/actions
func (h *Handlers) ExecuteAction(c *gin.Context) {
	var req service.ExecuteActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.abortWithBindError(c, err)
		return
	}

	inst, err := h.workflowService.ExecuteAction(c.Request.Context(), c.Param("id"), req.ActionID)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, inst)
}

// AvailableActions handles GET /workflow-instances/:id/available-actions
func (h *Handlers) AvailableActions(c *gin.Context) {
	actions, err := h.workflowService.AvailableActions(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, actions)
}

// ExportHistory handles GET /workflow-instances/:id/history.xlsx
func (h *Handlers) ExportHistory(c *gin.Context) {
	id := c.Param("id")

	var buf bytes.Buffer
	if err := h.workflowService.ExportHistory(c.Request.Context(), id, &buf); err != nil {
		h.abortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+id+`-history.xlsx"`)
	c.Data(http.StatusOK, h.workflowService.ExportContentType(), buf.Bytes())
}
