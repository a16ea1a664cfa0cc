package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"projecthub/pkg/otel"
	"projecthub/pkg/rbac"
)

type Handlers struct {
	Auth          *AuthHandler
	Projects      *ProjectHandler
	Phases        *PhaseHandler
	Deliverables  *DeliverableHandler
	Templates     *TemplateHandler
	Notifications *NotificationHandler
	Admin         *AdminHandler
}

type Router struct {
	Engine *gin.Engine
}

// NewRouter wires every route. ready is the readiness probe, usually a db
// ping.
func NewRouter(h Handlers, jwtSecret string, ready func(ctx context.Context) error, logger *zap.Logger) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), otel.GinMiddleware(), RequestLogger(logger))

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := ready(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	r.POST("/register", h.Auth.Register)
	r.POST("/login", h.Auth.Login)

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(jwtSecret))
	{
		auth.GET("/me", h.Auth.Me)

		auth.POST("/templates", RequirePermission(rbac.PermissionManageTemplate), h.Templates.Create)
		auth.GET("/templates", h.Templates.List)
		auth.GET("/templates/:id", h.Templates.Get)

		auth.POST("/projects", RequirePermission(rbac.PermissionCreateProject), h.Projects.Create)
		auth.GET("/projects", h.Projects.List)
		auth.GET("/projects/:id", h.Projects.Get)
		auth.DELETE("/projects/:id", RequirePermission(rbac.PermissionCreateProject), h.Projects.Delete)
		auth.POST("/projects/:id/status", RequirePermission(rbac.PermissionTransitionProject), h.Projects.TransitionStatus)
		auth.GET("/projects/:id/activity", RequirePermission(rbac.PermissionReadActivity), h.Projects.Activity)

		auth.POST("/phases/:id/status", RequirePermission(rbac.PermissionProgressPhase), h.Phases.Progress)
		auth.GET("/phases/:id/completion", h.Phases.Completion)
		auth.POST("/phases/:id/stakeholders", RequirePermission(rbac.PermissionProgressPhase), h.Phases.AddStakeholder)
		auth.POST("/phases/:id/deliverables", RequirePermission(rbac.PermissionProgressPhase), h.Phases.CreateDeliverable)
		auth.GET("/phases/:id/deliverables", h.Phases.ListDeliverables)

		auth.GET("/deliverables/:id", h.Deliverables.Get)
		auth.PATCH("/deliverables/:id", RequirePermission(rbac.PermissionUpdateDeliverable), h.Deliverables.Update)
		auth.POST("/deliverables/:id/generate", RequirePermission(rbac.PermissionGenerateDocument), h.Deliverables.Generate)

		auth.GET("/notifications", h.Notifications.List)
		auth.POST("/notifications/:id/read", h.Notifications.MarkRead)

		admin := auth.Group("/admin", RequirePermission(rbac.PermissionManageUsers))
		admin.POST("/users", h.Auth.CreateUser)
		admin.GET("/outbox/failed", h.Admin.ListFailed)
		admin.POST("/outbox/:id/replay", h.Admin.ReplayOutboxEvent)
		admin.POST("/outbox/replay-failed", h.Admin.ReplayFailedEvents)
	}

	return &Router{Engine: r}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}
