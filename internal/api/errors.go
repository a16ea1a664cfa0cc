package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projecthub/internal/service"
	"projecthub/internal/workflow"
	"projecthub/pkg/rbac"
	"projecthub/pkg/trace"
)

// writeError maps domain errors onto HTTP responses. Anything unrecognised
// is logged and reported as a 500 without details.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	var (
		invalid *workflow.InvalidTransitionError
		denied  *rbac.PermissionDeniedError
	)
	switch {
	case errors.As(err, &invalid):
		c.JSON(http.StatusConflict, gin.H{
			"error": err.Error(),
			"from":  invalid.From,
			"to":    invalid.To,
		})
	case errors.Is(err, workflow.ErrConcurrentConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "retryable": true})
	case errors.Is(err, workflow.ErrNotFound), errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &denied), errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrEmailExists), errors.Is(err, service.ErrProjectNotDeletable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrAgentRejected):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrAgentUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "document generation is temporarily unavailable"})
	default:
		logger.Error("Unhandled request error",
			zap.String("path", c.FullPath()),
			zap.String(trace.TraceIDKey, trace.FromContext(c.Request.Context())),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
	_ = c.Error(err)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
