package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projecthub/internal/model"
	"projecthub/internal/service"
	"projecthub/internal/workflow"
)

type ProjectHandler struct {
	projects ProjectService
	engine   WorkflowEngine
	logger   *zap.Logger
}

func NewProjectHandler(projects ProjectService, engine WorkflowEngine, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, engine: engine, logger: logger}
}

// Create handles POST /projects.
func (h *ProjectHandler) Create(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req struct {
		TemplateID  int64  `json:"template_id" binding:"required"`
		Title       string `json:"title" binding:"required"`
		Description string `json:"description"`
		StartDate   *Date  `json:"start_date"`
		EndDate     *Date  `json:"end_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	p, err := h.projects.CreateFromTemplate(c.Request.Context(), actor, service.CreateProjectInput{
		TemplateID:  req.TemplateID,
		Title:       req.Title,
		Description: req.Description,
		StartDate:   req.StartDate.Ptr(),
		EndDate:     req.EndDate.Ptr(),
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// List handles GET /projects.
func (h *ProjectHandler) List(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	projects, err := h.projects.List(c.Request.Context(), actor)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if projects == nil {
		projects = []model.Project{}
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// Get handles GET /projects/:id.
func (h *ProjectHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := h.projects.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Delete handles DELETE /projects/:id.
func (h *ProjectHandler) Delete(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.projects.Delete(c.Request.Context(), actor, id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// TransitionStatus handles POST /projects/:id/status.
func (h *ProjectHandler) TransitionStatus(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Status model.ProjectStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	if !workflow.IsValidProjectStatus(req.Status) {
		badRequest(c, "unknown project status")
		return
	}

	p, err := h.engine.TransitionProjectStatus(c.Request.Context(), id, req.Status, actor.UserID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Activity handles GET /projects/:id/activity?limit=.
func (h *ProjectHandler) Activity(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	entries, err := h.engine.GetActivityLog(c.Request.Context(), id, limit)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if entries == nil {
		entries = []model.Activity{}
	}
	c.JSON(http.StatusOK, gin.H{"activities": entries})
}
