package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"projecthub/internal/model"
	"projecthub/pkg/metrics"
)

// projectCascade runs after a committed project transition.
func (e *Engine) projectCascade(ctx context.Context, project *model.Project, actingUserID int64) {
	switch project.Status {
	case model.ProjectActive:
		e.startFirstPhase(ctx, project.ID, actingUserID)
		e.notify(ctx, Notification{
			UserID:           project.PMID,
			Title:            "Project activated",
			Message:          fmt.Sprintf("Project %q is now active.", project.Title),
			Type:             model.NotificationProjectActivated,
			RelatedProjectID: ptr(project.ID),
		})
	case model.ProjectCompleted:
		ids, err := e.phases.ListProjectStakeholderIDs(ctx, project.ID)
		if err != nil {
			metrics.IncrementCascade("notify_stakeholders", "failed")
			e.log(ctx).Warn("Failed to load project stakeholders",
				zap.Int64("project_id", project.ID),
				zap.Error(err),
			)
			return
		}
		for _, userID := range distinct(ids) {
			e.notify(ctx, Notification{
				UserID:           userID,
				Title:            "Project completed",
				Message:          fmt.Sprintf("Project %q has been completed.", project.Title),
				Type:             model.NotificationProjectCompleted,
				RelatedProjectID: ptr(project.ID),
			})
		}
	}
}

// startFirstPhase writes phase 1 straight to in_progress. It does not go
// through ProgressPhase so the phase cascade does not fire.
func (e *Engine) startFirstPhase(ctx context.Context, projectID, actingUserID int64) {
	first, err := e.phases.GetPhaseByOrder(ctx, projectID, 1)
	if errors.Is(err, pgx.ErrNoRows) {
		return
	}
	if err != nil {
		metrics.IncrementCascade("start_first_phase", "failed")
		e.log(ctx).Warn("Failed to load first phase", zap.Int64("project_id", projectID), zap.Error(err))
		return
	}
	if first.Status != model.PhasePending {
		return
	}

	started, err := e.phases.UpdatePhaseStatus(ctx, PhaseStatusUpdate{
		ID:              first.ID,
		From:            model.PhasePending,
		To:              model.PhaseInProgress,
		ActualStartDate: ptr(e.now()),
	})
	if err != nil {
		metrics.IncrementCascade("start_first_phase", "failed")
		e.log(ctx).Warn("Failed to start first phase",
			zap.Int64("project_id", projectID),
			zap.Int64("phase_id", first.ID),
			zap.Error(updateError(err, "phase", first.ID, string(model.PhasePending))),
		)
		return
	}
	metrics.IncrementCascade("start_first_phase", "ok")

	e.recordActivity(ctx, projectID, actingUserID, model.ActivityPhaseStarted,
		fmt.Sprintf("Phase %q started with the project", started.Name),
		map[string]any{"phase_id": started.ID, "phase_order": started.PhaseOrder},
	)
}

// phaseCascade runs after a committed phase transition.
func (e *Engine) phaseCascade(ctx context.Context, phase *model.Phase, actingUserID int64) {
	switch phase.Status {
	case model.PhaseCompleted:
		if _, err := e.AutoProgressToNextPhase(ctx, phase.ProjectID, phase.PhaseOrder, actingUserID); err != nil {
			metrics.IncrementCascade("auto_progress", "failed")
			e.log(ctx).Warn("Failed to start next phase",
				zap.Int64("project_id", phase.ProjectID),
				zap.Int("phase_order", phase.PhaseOrder),
				zap.Error(err),
			)
		}
		e.completeProjectIfDone(ctx, phase.ProjectID, actingUserID)
	case model.PhaseInProgress:
		e.notifyPhaseStakeholders(ctx, phase, Notification{
			Title:            "Phase started",
			Message:          fmt.Sprintf("Phase %q has started.", phase.Name),
			Type:             model.NotificationPhaseStarted,
			RelatedProjectID: ptr(phase.ProjectID),
		})
	}
}

// completeProjectIfDone is the only automatic path to a completed project.
// A refusal (for example the project is on hold) leaves the phase
// transition standing.
func (e *Engine) completeProjectIfDone(ctx context.Context, projectID, actingUserID int64) {
	phases, err := e.phases.ListPhases(ctx, projectID)
	if err != nil {
		metrics.IncrementCascade("auto_complete", "failed")
		e.log(ctx).Warn("Failed to list phases", zap.Int64("project_id", projectID), zap.Error(err))
		return
	}
	if len(phases) == 0 {
		return
	}
	for _, p := range phases {
		if p.Status != model.PhaseCompleted {
			return
		}
	}

	if _, err := e.TransitionProjectStatus(ctx, projectID, model.ProjectCompleted, actingUserID); err != nil {
		metrics.IncrementCascade("auto_complete", "refused")
		e.log(ctx).Warn("Project not auto-completed",
			zap.Int64("project_id", projectID),
			zap.Error(err),
		)
		return
	}
	metrics.IncrementCascade("auto_complete", "ok")
}

// notifyPhaseStakeholders sends template to every stakeholder of phase,
// one call each, continuing past failures.
func (e *Engine) notifyPhaseStakeholders(ctx context.Context, phase *model.Phase, template Notification) {
	ids, err := e.phases.ListStakeholderIDs(ctx, phase.ID)
	if err != nil {
		metrics.IncrementCascade("notify_stakeholders", "failed")
		e.log(ctx).Warn("Failed to load phase stakeholders",
			zap.Int64("phase_id", phase.ID),
			zap.Error(err),
		)
		return
	}
	for _, userID := range distinct(ids) {
		n := template
		n.UserID = userID
		e.notify(ctx, n)
	}
}

// distinct keeps the first occurrence of each id.
func distinct(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
