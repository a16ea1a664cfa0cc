package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"projecthub/internal/model"
	"projecthub/internal/service"
	"projecthub/internal/workflow"
)

// The handlers depend on these narrow views of the services.

type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput) (*model.User, error)
	CreateUser(ctx context.Context, actor service.Actor, in service.RegisterInput, role string) (*model.User, error)
	Login(ctx context.Context, email, password string) (string, *model.User, error)
	Me(ctx context.Context, userID int64) (*model.User, error)
}

type ProjectService interface {
	CreateFromTemplate(ctx context.Context, actor service.Actor, in service.CreateProjectInput) (*model.Project, error)
	List(ctx context.Context, actor service.Actor) ([]model.Project, error)
	Get(ctx context.Context, id int64) (*model.Project, error)
	Delete(ctx context.Context, actor service.Actor, id int64) error
	AddStakeholder(ctx context.Context, actor service.Actor, st model.Stakeholder) error
}

type TemplateService interface {
	Create(ctx context.Context, actor service.Actor, t *model.Template) error
	List(ctx context.Context) ([]model.Template, error)
	Get(ctx context.Context, id int64) (*model.Template, error)
}

// WorkflowEngine is implemented by *workflow.Engine.
type WorkflowEngine interface {
	TransitionProjectStatus(ctx context.Context, projectID int64, target model.ProjectStatus, actingUserID int64) (*model.Project, error)
	ProgressPhase(ctx context.Context, req workflow.ProgressPhaseRequest) (*model.Phase, error)
	CheckPhaseCompletion(ctx context.Context, phaseID int64) (bool, error)
	GetActivityLog(ctx context.Context, projectID int64, limit int) ([]model.Activity, error)
}

type DeliverableService interface {
	Create(ctx context.Context, actor service.Actor, in service.CreateDeliverableInput) (*model.Deliverable, error)
	ListByPhase(ctx context.Context, phaseID int64) ([]model.Deliverable, error)
	Get(ctx context.Context, id int64) (*model.Deliverable, error)
	Update(ctx context.Context, actor service.Actor, id int64, in service.UpdateDeliverableInput) (*model.Deliverable, error)
}

type GenerationService interface {
	Generate(ctx context.Context, actor service.Actor, deliverableID int64, instructions string) (*model.Deliverable, error)
}

type NotificationService interface {
	List(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]model.Notification, error)
	MarkRead(ctx context.Context, userID, id int64) error
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

func mustActor(c *gin.Context) (service.Actor, bool) {
	actor, ok := actorFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
	}
	return actor, ok
}

// Date accepts either a calendar date ("2026-03-01") or an RFC 3339
// timestamp.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// Ptr returns nil for a missing or empty date.
func (d *Date) Ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}
