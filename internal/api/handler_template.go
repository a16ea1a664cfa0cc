package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projecthub/internal/model"
)

type TemplateHandler struct {
	templates TemplateService
	logger    *zap.Logger
}

func NewTemplateHandler(templates TemplateService, logger *zap.Logger) *TemplateHandler {
	return &TemplateHandler{templates: templates, logger: logger}
}

// Create handles POST /templates.
func (h *TemplateHandler) Create(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var t model.Template
	if err := c.ShouldBindJSON(&t); err != nil {
		badRequest(c, "invalid request")
		return
	}
	if err := h.templates.Create(c.Request.Context(), actor, &t); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *TemplateHandler) List(c *gin.Context) {
	items, err := h.templates.List(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if items == nil {
		items = []model.Template{}
	}
	c.JSON(http.StatusOK, gin.H{"templates": items})
}

func (h *TemplateHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	t, err := h.templates.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, t)
}
