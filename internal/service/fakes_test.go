package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"projecthub/internal/model"
	"projecthub/internal/repository"
	"projecthub/internal/workflow"
	"projecthub/pkg/outbox"
)

func inlineTx(ctx context.Context, fn func(tx pgx.Tx) error) error { return fn(nil) }

type memUsers struct {
	mu    sync.Mutex
	next  int64
	byID  map[int64]*model.User
	email map[string]int64
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[int64]*model.User{}, email: map[string]int64{}}
}

func (m *memUsers) CreateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	u.ID = m.next
	u.CreatedAt = time.Now()
	cp := *u
	m.byID[u.ID] = &cp
	m.email[u.Email] = u.ID
	return nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.email[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *memUsers) FindByID(_ context.Context, id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

// memDB backs projects, phases, deliverables, templates and activities.
type memDB struct {
	nextID       int64
	projects     map[int64]*model.Project
	phases       map[int64]*model.Phase
	deliverables map[int64]*model.Deliverable
	templates    map[int64]*model.Template
	stakeholders []model.Stakeholder
	activities   []model.Activity
}

func newMemDB() *memDB {
	return &memDB{
		nextID:       100,
		projects:     map[int64]*model.Project{},
		phases:       map[int64]*model.Phase{},
		deliverables: map[int64]*model.Deliverable{},
		templates:    map[int64]*model.Template{},
	}
}

func (m *memDB) id() int64 { m.nextID++; return m.nextID }

type memProjects struct{ *memDB }

func (m memProjects) InsertTx(_ context.Context, _ pgx.Tx, p *model.Project) error {
	p.ID = m.id()
	cp := *p
	m.projects[p.ID] = &cp
	return nil
}

func (m memProjects) GetProject(_ context.Context, id int64) (*model.Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (m memProjects) ListForUser(_ context.Context, userID int64) ([]model.Project, error) {
	var out []model.Project
	for _, p := range m.projects {
		if p.PMID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m memProjects) ListAll(_ context.Context) ([]model.Project, error) {
	var out []model.Project
	for _, p := range m.projects {
		out = append(out, *p)
	}
	return out, nil
}

func (m memProjects) DeleteIfStatus(_ context.Context, id int64, statuses ...model.ProjectStatus) error {
	p, ok := m.projects[id]
	if !ok {
		return pgx.ErrNoRows
	}
	for _, s := range statuses {
		if p.Status == s {
			delete(m.projects, id)
			return nil
		}
	}
	return pgx.ErrNoRows
}

type memPhases struct{ *memDB }

func (m memPhases) InsertTx(_ context.Context, _ pgx.Tx, p *model.Phase) error {
	p.ID = m.id()
	cp := *p
	m.phases[p.ID] = &cp
	return nil
}

func (m memPhases) GetPhase(_ context.Context, id int64) (*model.Phase, error) {
	p, ok := m.phases[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (m memPhases) ListPhases(_ context.Context, projectID int64) ([]model.Phase, error) {
	var out []model.Phase
	for _, p := range m.phases {
		if p.ProjectID == projectID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PhaseOrder < out[j].PhaseOrder })
	return out, nil
}

func (m memPhases) AddStakeholder(_ context.Context, s model.Stakeholder) error {
	m.stakeholders = append(m.stakeholders, s)
	return nil
}

type memDeliverables struct{ *memDB }

func (m memDeliverables) InsertTx(_ context.Context, _ pgx.Tx, d *model.Deliverable) error {
	return m.Insert(context.Background(), d)
}

func (m memDeliverables) Insert(_ context.Context, d *model.Deliverable) error {
	d.ID = m.id()
	cp := *d
	m.deliverables[d.ID] = &cp
	return nil
}

func (m memDeliverables) GetDeliverable(_ context.Context, id int64) (*model.Deliverable, error) {
	d, ok := m.deliverables[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *d
	return &cp, nil
}

func (m memDeliverables) ListByPhase(_ context.Context, phaseID int64) ([]model.Deliverable, error) {
	var out []model.Deliverable
	for _, d := range m.deliverables {
		if d.PhaseID == phaseID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memDeliverables) Update(_ context.Context, id int64, u repository.DeliverableUpdate) (*model.Deliverable, error) {
	d, ok := m.deliverables[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if u.Status != nil {
		d.Status = *u.Status
	}
	if u.AssigneeID != nil {
		d.AssigneeID = u.AssigneeID
	}
	if u.DueDate != nil {
		d.DueDate = u.DueDate
	}
	cp := *d
	return &cp, nil
}

func (m memDeliverables) SaveContent(_ context.Context, id int64, content string) (*model.Deliverable, error) {
	d, ok := m.deliverables[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	d.Content = content
	if d.Status == model.DeliverablePending {
		d.Status = model.DeliverableInProgress
	}
	cp := *d
	return &cp, nil
}

type memTemplates struct{ *memDB }

func (m memTemplates) Create(_ context.Context, t *model.Template) error {
	t.ID = m.id()
	cp := *t
	m.templates[t.ID] = &cp
	return nil
}

func (m memTemplates) List(_ context.Context) ([]model.Template, error) {
	var out []model.Template
	for _, t := range m.templates {
		out = append(out, *t)
	}
	return out, nil
}

func (m memTemplates) Get(_ context.Context, id int64) (*model.Template, error) {
	t, ok := m.templates[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

type memActivities struct{ *memDB }

func (m memActivities) InsertActivityTx(_ context.Context, _ pgx.Tx, a *model.Activity) error {
	a.ID = m.id()
	m.activities = append(m.activities, *a)
	return nil
}

// fakeWorkflow records the engine calls the services make.
type fakeWorkflow struct {
	db          *memDB
	complete    bool
	progressErr error
	progressed  []workflow.ProgressPhaseRequest
	activities  []string
}

func (f *fakeWorkflow) CheckPhaseCompletion(_ context.Context, phaseID int64) (bool, error) {
	return f.complete, nil
}

func (f *fakeWorkflow) ProgressPhase(_ context.Context, req workflow.ProgressPhaseRequest) (*model.Phase, error) {
	f.progressed = append(f.progressed, req)
	if f.progressErr != nil {
		return nil, f.progressErr
	}
	p := f.db.phases[req.PhaseID]
	p.Status = req.Target
	cp := *p
	return &cp, nil
}

func (f *fakeWorkflow) LogActivity(_ context.Context, projectID, userID int64, activityType, description string, metadata map[string]any) error {
	f.activities = append(f.activities, activityType)
	return nil
}

type recordingNotifier struct {
	sent []workflow.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, msg workflow.Notification) error {
	n.sent = append(n.sent, msg)
	return nil
}

type memNotifications struct {
	rows []model.Notification
}

func (m *memNotifications) InsertTx(_ context.Context, _ pgx.Tx, n *model.Notification) error {
	n.ID = int64(len(m.rows) + 1)
	n.CreatedAt = time.Now()
	m.rows = append(m.rows, *n)
	return nil
}

func (m *memNotifications) ListForUser(_ context.Context, userID int64, unreadOnly bool, limit int) ([]model.Notification, error) {
	var out []model.Notification
	for _, n := range m.rows {
		if n.UserID == userID && (!unreadOnly || !n.IsRead) {
			out = append(out, n)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memNotifications) MarkRead(_ context.Context, id, userID int64) error {
	for i := range m.rows {
		if m.rows[i].ID == id && m.rows[i].UserID == userID {
			m.rows[i].IsRead = true
			return nil
		}
	}
	return pgx.ErrNoRows
}

type memOutbox struct {
	events []*outbox.Event
	err    error
}

func (m *memOutbox) InsertEvent(_ context.Context, _ pgx.Tx, e *outbox.Event) error {
	if m.err != nil {
		return m.err
	}
	e.ID = int64(len(m.events) + 1)
	m.events = append(m.events, e)
	return nil
}

type stubAgent struct {
	prompts []string
	content string
	err     error
}

func (a *stubAgent) Generate(_ context.Context, req GenerateRequest) (string, error) {
	a.prompts = append(a.prompts, req.Prompt)
	return a.content, a.err
}

func contains(s, sub string) bool { return strings.Contains(s, sub) }
