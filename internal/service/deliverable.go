package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"projecthub/internal/model"
	"projecthub/internal/repository"
	"projecthub/internal/workflow"
	"projecthub/pkg/rbac"
)

type DeliverableStore interface {
	Insert(ctx context.Context, d *model.Deliverable) error
	GetDeliverable(ctx context.Context, id int64) (*model.Deliverable, error)
	ListByPhase(ctx context.Context, phaseID int64) ([]model.Deliverable, error)
	Update(ctx context.Context, id int64, u repository.DeliverableUpdate) (*model.Deliverable, error)
	SaveContent(ctx context.Context, id int64, content string) (*model.Deliverable, error)
}

type PhaseReader interface {
	GetPhase(ctx context.Context, id int64) (*model.Phase, error)
}

// Workflow is the part of *workflow.Engine the services drive.
type Workflow interface {
	CheckPhaseCompletion(ctx context.Context, phaseID int64) (bool, error)
	ProgressPhase(ctx context.Context, req workflow.ProgressPhaseRequest) (*model.Phase, error)
	LogActivity(ctx context.Context, projectID, userID int64, activityType, description string, metadata map[string]any) error
}

type DeliverableService struct {
	deliverables DeliverableStore
	phases       PhaseReader
	workflow     Workflow
	logger       *zap.Logger
}

func NewDeliverableService(deliverables DeliverableStore, phases PhaseReader, wf Workflow, logger *zap.Logger) *DeliverableService {
	return &DeliverableService{
		deliverables: deliverables,
		phases:       phases,
		workflow:     wf,
		logger:       logger,
	}
}

type CreateDeliverableInput struct {
	PhaseID     int64
	Title       string
	Description string
	AssigneeID  *int64
	DueDate     *time.Time
}

func (s *DeliverableService) Create(ctx context.Context, actor Actor, in CreateDeliverableInput) (*model.Deliverable, error) {
	if err := rbac.CheckPermission(actor.UserID, actor.Role, rbac.PermissionProgressPhase); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	phase, err := s.phases.GetPhase(ctx, in.PhaseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("phase %d: %w", in.PhaseID, ErrNotFound)
		}
		return nil, err
	}
	if phase.Status == model.PhaseCompleted {
		return nil, fmt.Errorf("%w: phase %d is already completed", ErrInvalidInput, phase.ID)
	}

	d := &model.Deliverable{
		PhaseID:     phase.ID,
		Title:       in.Title,
		Description: in.Description,
		Status:      model.DeliverablePending,
		AssigneeID:  in.AssigneeID,
		DueDate:     in.DueDate,
	}
	if err := s.deliverables.Insert(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *DeliverableService) ListByPhase(ctx context.Context, phaseID int64) ([]model.Deliverable, error) {
	return s.deliverables.ListByPhase(ctx, phaseID)
}

func (s *DeliverableService) Get(ctx context.Context, id int64) (*model.Deliverable, error) {
	d, err := s.deliverables.GetDeliverable(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("deliverable %d: %w", id, ErrNotFound)
	}
	return d, err
}

type UpdateDeliverableInput struct {
	Status     *model.DeliverableStatus
	AssigneeID *int64
	DueDate    *time.Time
}

// Update applies a partial change. Approving or rejecting needs the review
// permission. An approval that closes the last open deliverable of an
// in-progress phase completes the phase, which runs the phase cascade.
func (s *DeliverableService) Update(ctx context.Context, actor Actor, id int64, in UpdateDeliverableInput) (*model.Deliverable, error) {
	perm := rbac.PermissionUpdateDeliverable
	if in.Status != nil {
		if !in.Status.IsValid() {
			return nil, fmt.Errorf("%w: unknown deliverable status %q", ErrInvalidInput, *in.Status)
		}
		if in.Status.IsClosed() {
			perm = rbac.PermissionReviewDeliverable
		}
	}
	if err := rbac.CheckPermission(actor.UserID, actor.Role, perm); err != nil {
		return nil, err
	}

	before, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	d, err := s.deliverables.Update(ctx, id, repository.DeliverableUpdate{
		Status:     in.Status,
		AssigneeID: in.AssigneeID,
		DueDate:    in.DueDate,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("deliverable %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	if in.Status == nil || before.Status == d.Status {
		return d, nil
	}

	phase, err := s.phases.GetPhase(ctx, d.PhaseID)
	if err != nil {
		s.logger.Warn("Deliverable updated but its phase could not be loaded",
			zap.Int64("deliverable_id", d.ID),
			zap.Int64("phase_id", d.PhaseID),
			zap.Error(err),
		)
		return d, nil
	}

	if err := s.workflow.LogActivity(ctx, phase.ProjectID, actor.UserID, model.ActivityDeliverableStatus,
		fmt.Sprintf("Deliverable %q moved from %s to %s", d.Title, before.Status, d.Status),
		map[string]any{
			"deliverable_id": d.ID,
			"from":           string(before.Status),
			"to":             string(d.Status),
		},
	); err != nil {
		s.logger.Warn("Failed to record deliverable activity", zap.Int64("deliverable_id", d.ID), zap.Error(err))
	}

	if d.Status == model.DeliverableApproved && phase.Status == model.PhaseInProgress {
		s.completePhaseIfDone(ctx, actor, phase)
	}
	return d, nil
}

// completePhaseIfDone runs after the deliverable write has committed, so its
// failures are logged rather than returned.
func (s *DeliverableService) completePhaseIfDone(ctx context.Context, actor Actor, phase *model.Phase) {
	done, err := s.workflow.CheckPhaseCompletion(ctx, phase.ID)
	if err != nil {
		s.logger.Error("Failed to check phase completion", zap.Int64("phase_id", phase.ID), zap.Error(err))
		return
	}
	if !done {
		return
	}

	_, err = s.workflow.ProgressPhase(ctx, workflow.ProgressPhaseRequest{
		PhaseID:      phase.ID,
		Target:       model.PhaseCompleted,
		ActingUserID: actor.UserID,
	})
	switch {
	case err == nil:
		s.logger.Info("Phase completed by final approval",
			zap.Int64("phase_id", phase.ID),
			zap.Int64("project_id", phase.ProjectID),
		)
	case errors.Is(err, workflow.ErrConcurrentConflict), errors.Is(err, workflow.ErrInvalidTransition):
		// another approval got there first
		s.logger.Info("Phase already moved on", zap.Int64("phase_id", phase.ID), zap.Error(err))
	default:
		s.logger.Error("Failed to complete phase", zap.Int64("phase_id", phase.ID), zap.Error(err))
	}
}
