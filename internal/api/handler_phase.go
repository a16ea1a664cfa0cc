package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projecthub/internal/model"
	"projecthub/internal/service"
	"projecthub/internal/workflow"
)

type PhaseHandler struct {
	engine       WorkflowEngine
	projects     ProjectService
	deliverables DeliverableService
	logger       *zap.Logger
}

func NewPhaseHandler(engine WorkflowEngine, projects ProjectService, deliverables DeliverableService, logger *zap.Logger) *PhaseHandler {
	return &PhaseHandler{engine: engine, projects: projects, deliverables: deliverables, logger: logger}
}

// Progress handles POST /phases/:id/status.
func (h *PhaseHandler) Progress(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Status          model.PhaseStatus `json:"status" binding:"required"`
		ActualStartDate *Date             `json:"actual_start_date"`
		ActualEndDate   *Date             `json:"actual_end_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	if !workflow.IsValidPhaseStatus(req.Status) {
		badRequest(c, "unknown phase status")
		return
	}

	phase, err := h.engine.ProgressPhase(c.Request.Context(), workflow.ProgressPhaseRequest{
		PhaseID:         id,
		Target:          req.Status,
		ActingUserID:    actor.UserID,
		ActualStartDate: req.ActualStartDate.Ptr(),
		ActualEndDate:   req.ActualEndDate.Ptr(),
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, phase)
}

// Completion handles GET /phases/:id/completion.
func (h *PhaseHandler) Completion(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	complete, err := h.engine.CheckPhaseCompletion(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"phase_id": id, "complete": complete})
}

// AddStakeholder handles POST /phases/:id/stakeholders.
func (h *PhaseHandler) AddStakeholder(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		UserID int64  `json:"user_id" binding:"required"`
		Role   string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	st := model.Stakeholder{PhaseID: id, UserID: req.UserID, Role: req.Role}
	if err := h.projects.AddStakeholder(c.Request.Context(), actor, st); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

// CreateDeliverable handles POST /phases/:id/deliverables.
func (h *PhaseHandler) CreateDeliverable(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Title       string `json:"title" binding:"required"`
		Description string `json:"description"`
		AssigneeID  *int64 `json:"assignee_id"`
		DueDate     *Date  `json:"due_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	d, err := h.deliverables.Create(c.Request.Context(), actor, service.CreateDeliverableInput{
		PhaseID:     id,
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
		DueDate:     req.DueDate.Ptr(),
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// ListDeliverables handles GET /phases/:id/deliverables.
func (h *PhaseHandler) ListDeliverables(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	items, err := h.deliverables.ListByPhase(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if items == nil {
		items = []model.Deliverable{}
	}
	c.JSON(http.StatusOK, gin.H{"deliverables": items})
}
