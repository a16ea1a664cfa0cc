package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"projecthub/internal/model"
	"projecthub/pkg/metrics"
	"projecthub/pkg/otel"
	"projecthub/pkg/trace"
)

const (
	DefaultDeadlineWindow = 72 * time.Hour

	defaultActivityLimit = 50
	maxActivityLimit     = 500
)

// Engine validates and executes project and phase status transitions and
// runs their cascades. Cascades are at most two calls deep: a phase
// completion may complete the project, whose cascade never calls back into
// phase progression.
type Engine struct {
	projects     ProjectStore
	phases       PhaseStore
	deliverables DeliverableStore
	activities   ActivityStore
	notifier     Notifier

	gate           ReminderGate
	deadlineWindow time.Duration
	now            func() time.Time
	logger         *zap.Logger
}

type Option func(*Engine)

// WithReminderGate enables deadline reminder suppression.
func WithReminderGate(g ReminderGate) Option {
	return func(e *Engine) { e.gate = g }
}

func WithDeadlineWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.deadlineWindow = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(stores Stores, notifier Notifier, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		projects:       stores.Projects,
		phases:         stores.Phases,
		deliverables:   stores.Deliverables,
		activities:     stores.Activities,
		notifier:       notifier,
		deadlineWindow: DefaultDeadlineWindow,
		now:            time.Now,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TransitionProjectStatus moves a project along a registry edge.
func (e *Engine) TransitionProjectStatus(ctx context.Context, projectID int64, target model.ProjectStatus, actingUserID int64) (*model.Project, error) {
	ctx, span := otel.StartSpan(ctx, "workflow.TransitionProjectStatus", oteltrace.WithAttributes(
		attribute.Int64("project.id", projectID),
		attribute.String("project.target_status", string(target)),
	))
	defer span.End()

	project, err := e.transitionProject(ctx, projectID, target, actingUserID)
	metrics.IncrementTransition("project", string(target), resultLabel(err))
	otel.EndWithError(span, err)
	return project, err
}

func (e *Engine) transitionProject(ctx context.Context, projectID int64, target model.ProjectStatus, actingUserID int64) (*model.Project, error) {
	current, err := e.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, lookupError(err, "project", projectID)
	}

	if !IsLegalProjectTransition(current.Status, target) {
		return nil, &InvalidTransitionError{Entity: "project", From: string(current.Status), To: string(target)}
	}

	updated, err := e.projects.UpdateProjectStatus(ctx, projectID, current.Status, target)
	if err != nil {
		return nil, updateError(err, "project", projectID, string(current.Status))
	}

	e.log(ctx).Info("Project status changed",
		zap.Int64("project_id", projectID),
		zap.String("from", string(current.Status)),
		zap.String("to", string(target)),
		zap.Int64("acting_user_id", actingUserID),
	)

	e.recordActivity(ctx, projectID, actingUserID, model.ActivityProjectStatus,
		fmt.Sprintf("Project status changed from %s to %s", current.Status, target),
		map[string]any{"from": current.Status, "to": target},
	)

	e.projectCascade(ctx, updated, actingUserID)
	return updated, nil
}

// ProgressPhaseRequest carries a phase transition. ActualStartDate and
// ActualEndDate replace the automatic timestamp when the phase enters
// in_progress or completed for the first time.
type ProgressPhaseRequest struct {
	PhaseID         int64
	Target          model.PhaseStatus
	ActingUserID    int64
	ActualStartDate *time.Time
	ActualEndDate   *time.Time
}

// ProgressPhase moves a phase along a registry edge.
func (e *Engine) ProgressPhase(ctx context.Context, req ProgressPhaseRequest) (*model.Phase, error) {
	ctx, span := otel.StartSpan(ctx, "workflow.ProgressPhase", oteltrace.WithAttributes(
		attribute.Int64("phase.id", req.PhaseID),
		attribute.String("phase.target_status", string(req.Target)),
	))
	defer span.End()

	phase, err := e.progressPhase(ctx, req)
	metrics.IncrementTransition("phase", string(req.Target), resultLabel(err))
	otel.EndWithError(span, err)
	return phase, err
}

func (e *Engine) progressPhase(ctx context.Context, req ProgressPhaseRequest) (*model.Phase, error) {
	current, err := e.phases.GetPhase(ctx, req.PhaseID)
	if err != nil {
		return nil, lookupError(err, "phase", req.PhaseID)
	}

	if !IsLegalPhaseTransition(current.Status, req.Target) {
		return nil, &InvalidTransitionError{Entity: "phase", From: string(current.Status), To: string(req.Target)}
	}

	update := PhaseStatusUpdate{ID: req.PhaseID, From: current.Status, To: req.Target}
	now := e.now()
	switch req.Target {
	case model.PhaseInProgress:
		update.ActualStartDate = orNow(req.ActualStartDate, now)
	case model.PhaseCompleted:
		update.ActualEndDate = orNow(req.ActualEndDate, now)
	}

	updated, err := e.phases.UpdatePhaseStatus(ctx, update)
	if err != nil {
		return nil, updateError(err, "phase", req.PhaseID, string(current.Status))
	}

	e.log(ctx).Info("Phase status changed",
		zap.Int64("phase_id", req.PhaseID),
		zap.Int64("project_id", updated.ProjectID),
		zap.String("from", string(current.Status)),
		zap.String("to", string(req.Target)),
	)

	e.recordActivity(ctx, updated.ProjectID, req.ActingUserID, model.ActivityPhaseStatus,
		fmt.Sprintf("Phase %q changed from %s to %s", updated.Name, current.Status, req.Target),
		map[string]any{"phase_id": updated.ID, "from": current.Status, "to": req.Target},
	)

	e.phaseCascade(ctx, updated, req.ActingUserID)
	return updated, nil
}

// AutoProgressToNextPhase starts the phase after currentOrder if it is
// pending. It returns (nil, nil) when there is nothing to start.
func (e *Engine) AutoProgressToNextPhase(ctx context.Context, projectID int64, currentOrder int, actingUserID int64) (*model.Phase, error) {
	next, err := e.phases.GetPhaseByOrder(ctx, projectID, currentOrder+1)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load phase %d of project %d: %w", currentOrder+1, projectID, err)
	}
	if next.Status != model.PhasePending {
		return nil, nil
	}

	started, err := e.phases.UpdatePhaseStatus(ctx, PhaseStatusUpdate{
		ID:              next.ID,
		From:            model.PhasePending,
		To:              model.PhaseInProgress,
		ActualStartDate: ptr(e.now()),
	})
	if err != nil {
		return nil, updateError(err, "phase", next.ID, string(model.PhasePending))
	}
	metrics.IncrementCascade("auto_progress", "ok")

	e.log(ctx).Info("Next phase started automatically",
		zap.Int64("project_id", projectID),
		zap.Int64("phase_id", started.ID),
		zap.Int("phase_order", started.PhaseOrder),
	)

	e.notifyPhaseStakeholders(ctx, started, Notification{
		Title:            "Phase started",
		Message:          fmt.Sprintf("Phase %q has started.", started.Name),
		Type:             model.NotificationPhaseStarted,
		RelatedProjectID: ptr(projectID),
	})

	e.recordActivity(ctx, projectID, actingUserID, model.ActivityPhaseStarted,
		fmt.Sprintf("Phase %q started automatically", started.Name),
		map[string]any{"phase_id": started.ID, "phase_order": started.PhaseOrder, "auto": true},
	)
	return started, nil
}

// CheckPhaseCompletion is true when the phase has deliverables and every one
// of them is approved.
func (e *Engine) CheckPhaseCompletion(ctx context.Context, phaseID int64) (bool, error) {
	total, approved, err := e.deliverables.CountByPhase(ctx, phaseID)
	if err != nil {
		return false, fmt.Errorf("failed to count deliverables of phase %d: %w", phaseID, err)
	}
	return total > 0 && approved == total, nil
}

// LogActivity appends an audit record. Unlike the writes made during a
// transition, its error is returned.
func (e *Engine) LogActivity(ctx context.Context, projectID, userID int64, activityType, description string, metadata map[string]any) error {
	a := &model.Activity{
		ProjectID:   projectID,
		UserID:      userRef(userID),
		Type:        activityType,
		Description: description,
		Metadata:    metadata,
	}
	if err := e.activities.InsertActivity(ctx, a); err != nil {
		return fmt.Errorf("failed to log activity for project %d: %w", projectID, err)
	}
	return nil
}

// GetActivityLog returns a project's activity, newest first.
func (e *Engine) GetActivityLog(ctx context.Context, projectID int64, limit int) ([]model.Activity, error) {
	switch {
	case limit <= 0:
		limit = defaultActivityLimit
	case limit > maxActivityLimit:
		limit = maxActivityLimit
	}
	activities, err := e.activities.ListActivities(ctx, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity for project %d: %w", projectID, err)
	}
	return activities, nil
}

// recordActivity is the in-transition variant of LogActivity: the status
// change is already committed, so failures are logged and counted only.
func (e *Engine) recordActivity(ctx context.Context, projectID, userID int64, activityType, description string, metadata map[string]any) {
	if err := e.LogActivity(ctx, projectID, userID, activityType, description, metadata); err != nil {
		metrics.IncrementActivityLogFailure()
		e.log(ctx).Warn("Dropping activity entry",
			zap.Int64("project_id", projectID),
			zap.String("type", activityType),
			zap.Error(err),
		)
	}
}

// notify hands n to the sink; failures never reach the caller.
func (e *Engine) notify(ctx context.Context, n Notification) bool {
	if err := e.notifier.Notify(ctx, n); err != nil {
		metrics.IncrementNotification("sink", "failed")
		e.log(ctx).Warn("Notification failed",
			zap.Int64("user_id", n.UserID),
			zap.String("type", n.Type),
			zap.Error(err),
		)
		return false
	}
	metrics.IncrementNotification("sink", "ok")
	return true
}

func (e *Engine) log(ctx context.Context) *zap.Logger {
	if id := trace.FromContext(ctx); id != "" {
		return e.logger.With(zap.String(trace.TraceIDKey, id))
	}
	return e.logger
}

func orNow(t *time.Time, now time.Time) *time.Time {
	if t != nil {
		return t
	}
	return &now
}

func ptr[T any](v T) *T { return &v }

// userRef maps the zero id (system actions) to NULL.
func userRef(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}
