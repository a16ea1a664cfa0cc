package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projecthub/internal/model"
)

type NotificationHandler struct {
	notifications NotificationService
	logger        *zap.Logger
}

func NewNotificationHandler(notifications NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, logger: logger}
}

// List handles GET /notifications?unread=true&limit=.
func (h *NotificationHandler) List(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	unread, _ := strconv.ParseBool(c.DefaultQuery("unread", "false"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	items, err := h.notifications.List(c.Request.Context(), actor.UserID, unread, limit)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if items == nil {
		items = []model.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

// MarkRead handles POST /notifications/:id/read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.notifications.MarkRead(c.Request.Context(), actor.UserID, id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "is_read": true})
}
