package workflow

import (
	"context"
	"time"

	"projecthub/internal/model"
)

// Stores report a missing row with pgx.ErrNoRows. The conditional updates
// also return pgx.ErrNoRows when the row no longer holds the expected status.

type ProjectStore interface {
	GetProject(ctx context.Context, id int64) (*model.Project, error)
	// UpdateProjectStatus writes to only if the row still holds from.
	UpdateProjectStatus(ctx context.Context, id int64, from, to model.ProjectStatus) (*model.Project, error)
}

// PhaseStatusUpdate is a conditional phase write. Actual dates are only
// filled in when the column is still NULL.
type PhaseStatusUpdate struct {
	ID              int64
	From            model.PhaseStatus
	To              model.PhaseStatus
	ActualStartDate *time.Time
	ActualEndDate   *time.Time
}

type PhaseStore interface {
	GetPhase(ctx context.Context, id int64) (*model.Phase, error)
	GetPhaseByOrder(ctx context.Context, projectID int64, order int) (*model.Phase, error)
	ListPhases(ctx context.Context, projectID int64) ([]model.Phase, error)
	UpdatePhaseStatus(ctx context.Context, u PhaseStatusUpdate) (*model.Phase, error)
	ListStakeholderIDs(ctx context.Context, phaseID int64) ([]int64, error)
	ListProjectStakeholderIDs(ctx context.Context, projectID int64) ([]int64, error)
	// ListPhasesDueBetween returns in_progress phases whose planned end date
	// falls in [from, to].
	ListPhasesDueBetween(ctx context.Context, from, to time.Time) ([]model.PhaseDue, error)
}

type DeliverableStore interface {
	CountByPhase(ctx context.Context, phaseID int64) (total, approved int, err error)
	// ListDeliverablesDueBetween returns deliverables that are neither
	// approved nor rejected and are due in [from, to].
	ListDeliverablesDueBetween(ctx context.Context, from, to time.Time) ([]model.DeliverableDue, error)
}

type ActivityStore interface {
	InsertActivity(ctx context.Context, a *model.Activity) error
	ListActivities(ctx context.Context, projectID int64, limit int) ([]model.Activity, error)
}

// Notification is what the engine hands to the sink.
type Notification struct {
	UserID           int64
	Title            string
	Message          string
	Type             string
	RelatedProjectID *int64
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// ReminderGate suppresses repeat deadline reminders. *util.Deduper
// satisfies it.
type ReminderGate interface {
	AcquireOnce(ctx context.Context, scope, key string) bool
	Release(ctx context.Context, scope, key string)
}

// Stores groups the persistence dependencies of the engine.
type Stores struct {
	Projects     ProjectStore
	Phases       PhaseStore
	Deliverables DeliverableStore
	Activities   ActivityStore
}
