package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projecthub/pkg/outbox"
)

type OutboxReplayer interface {
	ReplayEvent(ctx context.Context, eventID int64) error
	ListFailed(ctx context.Context, limit int) ([]*outbox.Event, error)
	ReplayFailedEvents(ctx context.Context, limit int) (int, error)
}

type AdminHandler struct {
	replay OutboxReplayer
	logger *zap.Logger
}

func NewAdminHandler(replay OutboxReplayer, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{replay: replay, logger: logger}
}

// ListFailed handles GET /admin/outbox/failed?limit=.
func (h *AdminHandler) ListFailed(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	events, err := h.replay.ListFailed(c.Request.Context(), limit)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	out := make([]gin.H, 0, len(events))
	for _, e := range events {
		out = append(out, gin.H{
			"id":          e.ID,
			"routing_key": e.RoutingKey,
			"retry_count": e.RetryCount,
			"last_error":  e.LastError,
			"created_at":  e.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}

// ReplayOutboxEvent handles POST /admin/outbox/:id/replay.
func (h *AdminHandler) ReplayOutboxEvent(c *gin.Context) {
	eventID, ok := pathID(c, "id")
	if !ok {
		return
	}

	err := h.replay.ReplayEvent(c.Request.Context(), eventID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "replayed", "event_id": eventID})
	case errors.Is(err, outbox.ErrEventNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, outbox.ErrNotReplayable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Failed to replay event", zap.Int64("event_id", eventID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to replay event"})
	}
}

// ReplayFailedEvents handles POST /admin/outbox/replay-failed?limit=100.
func (h *AdminHandler) ReplayFailedEvents(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}

	n, err := h.replay.ReplayFailedEvents(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to replay failed events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to replay failed events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "completed", "success_count": n, "limit": limit})
}
