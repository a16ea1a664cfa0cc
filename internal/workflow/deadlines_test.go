package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projecthub/internal/model"
)

func at(d time.Duration) *time.Time {
	t := testNow.Add(d)
	return &t
}

func seedDeadlines(f *fixture) {
	f.store.addProject(model.Project{ID: 1, Title: "Launch", Status: model.ProjectActive, PMID: pmID})
	f.store.addProject(model.Project{ID: 2, Title: "Other", Status: model.ProjectActive, PMID: 101})

	// due in 2 days: reminded
	f.store.addPhase(model.Phase{ID: 10, ProjectID: 1, PhaseOrder: 1, Name: "Design", Status: model.PhaseInProgress, EndDate: at(48 * time.Hour)})
	// due in 5 days: outside the window
	f.store.addPhase(model.Phase{ID: 11, ProjectID: 2, PhaseOrder: 1, Status: model.PhaseInProgress, EndDate: at(120 * time.Hour)})
	// due soon but pending
	f.store.addPhase(model.Phase{ID: 12, ProjectID: 1, PhaseOrder: 2, Status: model.PhasePending, EndDate: at(time.Hour)})
	// already overdue
	f.store.addPhase(model.Phase{ID: 13, ProjectID: 2, PhaseOrder: 2, Status: model.PhaseInProgress, EndDate: at(-time.Hour)})

	f.store.addDeliverable(model.Deliverable{ID: 1, PhaseID: 10, Title: "Spec", Status: model.DeliverableInProgress, AssigneeID: ptr(int64(301)), DueDate: at(24 * time.Hour)})
	f.store.addDeliverable(model.Deliverable{ID: 2, PhaseID: 10, Title: "Unassigned", Status: model.DeliverablePending, DueDate: at(24 * time.Hour)})
	f.store.addDeliverable(model.Deliverable{ID: 3, PhaseID: 10, Title: "Done", Status: model.DeliverableApproved, AssigneeID: ptr(int64(302)), DueDate: at(24 * time.Hour)})
	f.store.addDeliverable(model.Deliverable{ID: 4, PhaseID: 11, Title: "Review", Status: model.DeliverableReview, AssigneeID: ptr(int64(303)), DueDate: at(71 * time.Hour)})
	f.store.addDeliverable(model.Deliverable{ID: 5, PhaseID: 11, Title: "Later", Status: model.DeliverablePending, AssigneeID: ptr(int64(304)), DueDate: at(96 * time.Hour)})
}

func TestCheckDeadlines_NotifiesWithinWindow(t *testing.T) {
	f := newFixture()
	seedDeadlines(f)

	require.NoError(t, f.engine.CheckDeadlines(context.Background()))

	assert.Equal(t, []int64{pmID}, f.notifier.recipients(model.NotificationPhaseDeadline))
	assert.Equal(t, []int64{301, 303}, f.notifier.recipients(model.NotificationDeliverableDue))

	for _, n := range f.notifier.sent {
		require.NotNil(t, n.RelatedProjectID)
	}
	assert.Contains(t, f.notifier.sent[0].Message, "Design")
}

func TestCheckDeadlines_WithoutGateRenotifies(t *testing.T) {
	f := newFixture()
	seedDeadlines(f)

	require.NoError(t, f.engine.CheckDeadlines(context.Background()))
	require.NoError(t, f.engine.CheckDeadlines(context.Background()))

	assert.Equal(t, []int64{pmID, pmID}, f.notifier.recipients(model.NotificationPhaseDeadline))
}

func TestCheckDeadlines_GateSuppressesRepeats(t *testing.T) {
	gate := &memGate{}
	f := newFixture(WithReminderGate(gate))
	seedDeadlines(f)

	require.NoError(t, f.engine.CheckDeadlines(context.Background()))
	require.NoError(t, f.engine.CheckDeadlines(context.Background()))

	assert.Equal(t, []int64{pmID}, f.notifier.recipients(model.NotificationPhaseDeadline))
	assert.Equal(t, []int64{301, 303}, f.notifier.recipients(model.NotificationDeliverableDue))
}

func TestCheckDeadlines_FailedReminderIsRetriedNextSweep(t *testing.T) {
	gate := &memGate{}
	f := newFixture(WithReminderGate(gate))
	seedDeadlines(f)
	f.notifier.failOn[301] = true

	require.NoError(t, f.engine.CheckDeadlines(context.Background()))
	assert.Equal(t, []int64{303}, f.notifier.recipients(model.NotificationDeliverableDue))

	f.notifier.failOn[301] = false
	require.NoError(t, f.engine.CheckDeadlines(context.Background()))
	assert.Equal(t, []int64{303, 301}, f.notifier.recipients(model.NotificationDeliverableDue))
}

func TestCheckDeadlines_CustomWindow(t *testing.T) {
	f := newFixture(WithDeadlineWindow(7 * 24 * time.Hour))
	seedDeadlines(f)

	require.NoError(t, f.engine.CheckDeadlines(context.Background()))

	assert.ElementsMatch(t, []int64{pmID, 101}, f.notifier.recipients(model.NotificationPhaseDeadline))
	assert.Equal(t, []int64{301, 303, 304}, f.notifier.recipients(model.NotificationDeliverableDue))
}

func TestCheckDeadlines_QueryFailureStillSweepsTheRest(t *testing.T) {
	f := newFixture()
	seedDeadlines(f)
	f.store.phasesDueErr = errors.New("phases query failed")

	err := f.engine.CheckDeadlines(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "phases query failed")
	assert.Empty(t, f.notifier.recipients(model.NotificationPhaseDeadline))
	assert.Equal(t, []int64{301, 303}, f.notifier.recipients(model.NotificationDeliverableDue))
}
