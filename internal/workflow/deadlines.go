package workflow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"projecthub/internal/model"
	"projecthub/pkg/metrics"
	"projecthub/pkg/otel"
)

const reminderScope = "deadline_reminder"

// CheckDeadlines notifies PMs of in-progress phases and assignees of open
// deliverables that are due within the deadline window. A failed query is
// returned after the other query has still been swept; failed notifications
// are only logged.
func (e *Engine) CheckDeadlines(ctx context.Context) error {
	ctx, span := otel.StartSpan(ctx, "workflow.CheckDeadlines")
	defer span.End()

	now := e.now()
	until := now.Add(e.deadlineWindow)
	day := now.UTC().Format(time.DateOnly)

	var errs error

	phases, err := e.phases.ListPhasesDueBetween(ctx, now, until)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("failed to list phases due: %w", err))
	}
	for _, p := range phases {
		e.remind(ctx, "phase", p.ID, day, Notification{
			UserID:           p.PMID,
			Title:            "Phase deadline approaching",
			Message:          fmt.Sprintf("Phase %q of project %q is due %s.", p.Name, p.ProjectTitle, formatDue(p.EndDate)),
			Type:             model.NotificationPhaseDeadline,
			RelatedProjectID: ptr(p.ProjectID),
		})
	}

	deliverables, err := e.deliverables.ListDeliverablesDueBetween(ctx, now, until)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("failed to list deliverables due: %w", err))
	}
	for _, d := range deliverables {
		if d.AssigneeID == nil {
			continue
		}
		e.remind(ctx, "deliverable", d.ID, day, Notification{
			UserID:           *d.AssigneeID,
			Title:            "Deliverable due soon",
			Message:          fmt.Sprintf("Deliverable %q is due %s.", d.Title, formatDue(d.DueDate)),
			Type:             model.NotificationDeliverableDue,
			RelatedProjectID: ptr(d.ProjectID),
		})
	}

	e.log(ctx).Info("Deadline sweep finished",
		zap.Int("phases_due", len(phases)),
		zap.Int("deliverables_due", len(deliverables)),
		zap.Error(errs),
	)
	otel.EndWithError(span, errs)
	return errs
}

func (e *Engine) remind(ctx context.Context, kind string, id int64, day string, n Notification) {
	key := fmt.Sprintf("%s:%d:%s", kind, id, day)
	if e.gate != nil && !e.gate.AcquireOnce(ctx, reminderScope, key) {
		metrics.IncrementDeadlineReminder(kind, "suppressed")
		return
	}

	if !e.notify(ctx, n) {
		metrics.IncrementDeadlineReminder(kind, "failed")
		// 释放去重标记，下一轮重新提醒
		if e.gate != nil {
			e.gate.Release(ctx, reminderScope, key)
		}
		return
	}
	metrics.IncrementDeadlineReminder(kind, "sent")
}

func formatDue(t *time.Time) string {
	if t == nil {
		return "soon"
	}
	return "on " + t.Format("2006-01-02 15:04 MST")
}
