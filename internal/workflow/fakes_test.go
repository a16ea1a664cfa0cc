package workflow

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"projecthub/internal/model"
)

// memStore is an in-memory implementation of every store port. Its
// conditional updates behave like the SQL ones: no matching row means
// pgx.ErrNoRows.
type memStore struct {
	mu sync.Mutex

	projects     map[int64]*model.Project
	phases       map[int64]*model.Phase
	deliverables map[int64]*model.Deliverable
	stakeholders map[int64][]int64
	activities   []model.Activity

	writes    int
	lastLimit int

	// onGetProject runs outside the lock before a project is read.
	onGetProject       func()
	activityErr        error
	phasesDueErr       error
	stakeholderErr     error
	deliverablesDueErr error
}

func newMemStore() *memStore {
	return &memStore{
		projects:     map[int64]*model.Project{},
		phases:       map[int64]*model.Phase{},
		deliverables: map[int64]*model.Deliverable{},
		stakeholders: map[int64][]int64{},
	}
}

func (s *memStore) stores() Stores {
	return Stores{Projects: s, Phases: s, Deliverables: s, Activities: s}
}

func (s *memStore) addProject(p model.Project) {
	s.projects[p.ID] = &p
}

func (s *memStore) addPhase(p model.Phase, stakeholders ...int64) {
	s.phases[p.ID] = &p
	s.stakeholders[p.ID] = stakeholders
}

func (s *memStore) addDeliverable(d model.Deliverable) {
	s.deliverables[d.ID] = &d
}

func (s *memStore) project(id int64) model.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.projects[id]
}

func (s *memStore) phase(id int64) model.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.phases[id]
}

func (s *memStore) activityTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.activities))
	for _, a := range s.activities {
		out = append(out, a.Type)
	}
	return out
}

func (s *memStore) GetProject(_ context.Context, id int64) (*model.Project, error) {
	if s.onGetProject != nil {
		s.onGetProject()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) UpdateProjectStatus(_ context.Context, id int64, from, to model.ProjectStatus) (*model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok || p.Status != from {
		return nil, pgx.ErrNoRows
	}
	p.Status = to
	s.writes++
	cp := *p
	return &cp, nil
}

func (s *memStore) GetPhase(_ context.Context, id int64) (*model.Phase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.phases[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) GetPhaseByOrder(_ context.Context, projectID int64, order int) (*model.Phase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.phases {
		if p.ProjectID == projectID && p.PhaseOrder == order {
			cp := *p
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *memStore) ListPhases(_ context.Context, projectID int64) ([]model.Phase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Phase
	for _, p := range s.phases {
		if p.ProjectID == projectID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PhaseOrder < out[j].PhaseOrder })
	return out, nil
}

func (s *memStore) UpdatePhaseStatus(_ context.Context, u PhaseStatusUpdate) (*model.Phase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.phases[u.ID]
	if !ok || p.Status != u.From {
		return nil, pgx.ErrNoRows
	}
	p.Status = u.To
	// COALESCE(actual_*, $n)
	if p.ActualStartDate == nil && u.ActualStartDate != nil {
		p.ActualStartDate = u.ActualStartDate
	}
	if p.ActualEndDate == nil && u.ActualEndDate != nil {
		p.ActualEndDate = u.ActualEndDate
	}
	s.writes++
	cp := *p
	return &cp, nil
}

func (s *memStore) ListStakeholderIDs(_ context.Context, phaseID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stakeholderErr != nil {
		return nil, s.stakeholderErr
	}
	return slices.Clone(s.stakeholders[phaseID]), nil
}

// ListProjectStakeholderIDs deliberately returns duplicates so the engine's
// own de-duplication is exercised.
func (s *memStore) ListProjectStakeholderIDs(_ context.Context, projectID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stakeholderErr != nil {
		return nil, s.stakeholderErr
	}
	ids := make([]int64, 0)
	phaseIDs := make([]int64, 0)
	for id, p := range s.phases {
		if p.ProjectID == projectID {
			phaseIDs = append(phaseIDs, id)
		}
	}
	slices.Sort(phaseIDs)
	for _, id := range phaseIDs {
		ids = append(ids, s.stakeholders[id]...)
	}
	return ids, nil
}

func (s *memStore) ListPhasesDueBetween(_ context.Context, from, to time.Time) ([]model.PhaseDue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phasesDueErr != nil {
		return nil, s.phasesDueErr
	}
	var out []model.PhaseDue
	for _, p := range s.phases {
		if p.Status != model.PhaseInProgress || p.EndDate == nil || !within(*p.EndDate, from, to) {
			continue
		}
		proj := s.projects[p.ProjectID]
		out = append(out, model.PhaseDue{Phase: *p, PMID: proj.PMID, ProjectTitle: proj.Title})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) CountByPhase(_ context.Context, phaseID int64) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total, approved := 0, 0
	for _, d := range s.deliverables {
		if d.PhaseID != phaseID {
			continue
		}
		total++
		if d.Status == model.DeliverableApproved {
			approved++
		}
	}
	return total, approved, nil
}

func (s *memStore) ListDeliverablesDueBetween(_ context.Context, from, to time.Time) ([]model.DeliverableDue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deliverablesDueErr != nil {
		return nil, s.deliverablesDueErr
	}
	var out []model.DeliverableDue
	for _, d := range s.deliverables {
		if d.Status.IsClosed() || d.DueDate == nil || !within(*d.DueDate, from, to) {
			continue
		}
		out = append(out, model.DeliverableDue{Deliverable: *d, ProjectID: s.phases[d.PhaseID].ProjectID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) InsertActivity(_ context.Context, a *model.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activityErr != nil {
		return s.activityErr
	}
	a.ID = int64(len(s.activities) + 1)
	s.activities = append(s.activities, *a)
	return nil
}

func (s *memStore) ListActivities(_ context.Context, projectID int64, limit int) ([]model.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLimit = limit
	var out []model.Activity
	for i := len(s.activities) - 1; i >= 0 && len(out) < limit; i-- {
		if s.activities[i].ProjectID == projectID {
			out = append(out, s.activities[i])
		}
	}
	return out, nil
}

func within(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}

// recordingNotifier captures notifications and can fail for chosen users.
type recordingNotifier struct {
	mu     sync.Mutex
	sent   []Notification
	failOn map[int64]bool
}

var errSinkDown = errors.New("sink unavailable")

func (n *recordingNotifier) Notify(_ context.Context, msg Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failOn[msg.UserID] {
		return errSinkDown
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) recipients(kind string) []int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []int64
	for _, m := range n.sent {
		if m.Type == kind {
			out = append(out, m.UserID)
		}
	}
	return out
}

// memGate is an in-memory ReminderGate.
type memGate struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (g *memGate) AcquireOnce(_ context.Context, scope, key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.keys == nil {
		g.keys = map[string]bool{}
	}
	k := scope + ":" + key
	if g.keys[k] {
		return false
	}
	g.keys[k] = true
	return true
}

func (g *memGate) Release(_ context.Context, scope, key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.keys, scope+":"+key)
}
