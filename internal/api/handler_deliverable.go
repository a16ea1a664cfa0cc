package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projecthub/internal/model"
	"projecthub/internal/service"
)

type DeliverableHandler struct {
	deliverables DeliverableService
	generation   GenerationService
	logger       *zap.Logger
}

func NewDeliverableHandler(deliverables DeliverableService, generation GenerationService, logger *zap.Logger) *DeliverableHandler {
	return &DeliverableHandler{deliverables: deliverables, generation: generation, logger: logger}
}

// Get handles GET /deliverables/:id.
func (h *DeliverableHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	d, err := h.deliverables.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// Update handles PATCH /deliverables/:id.
func (h *DeliverableHandler) Update(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Status     *model.DeliverableStatus `json:"status"`
		AssigneeID *int64                   `json:"assignee_id"`
		DueDate    *Date                    `json:"due_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	if req.Status == nil && req.AssigneeID == nil && req.DueDate.Ptr() == nil {
		badRequest(c, "nothing to update")
		return
	}

	d, err := h.deliverables.Update(c.Request.Context(), actor, id, service.UpdateDeliverableInput{
		Status:     req.Status,
		AssigneeID: req.AssigneeID,
		DueDate:    req.DueDate.Ptr(),
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// Generate handles POST /deliverables/:id/generate.
func (h *DeliverableHandler) Generate(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Instructions string `json:"instructions"`
	}
	// body 可以为空
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request")
			return
		}
	}

	d, err := h.generation.Generate(c.Request.Context(), actor, id, req.Instructions)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}
