package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"projecthub/internal/model"
	"projecthub/pkg/rbac"
)

var (
	pm     = Actor{UserID: 7, Role: rbac.RolePM}
	member = Actor{UserID: 8, Role: rbac.RoleMember}
	admin  = Actor{UserID: 1, Role: rbac.RoleAdmin}
)

func newProjectService(db *memDB) *ProjectService {
	return NewProjectService(inlineTx, memProjects{db}, memPhases{db}, memDeliverables{db},
		memTemplates{db}, memActivities{db}, zap.NewNop())
}

func seedTemplate(db *memDB) *model.Template {
	t := &model.Template{
		Name: "Website",
		Phases: []model.TemplatePhase{
			{Name: "Discovery", PhaseOrder: 1, DurationDays: 5, Deliverables: []model.TemplateDeliverable{
				{Title: "Brief"}, {Title: "Sitemap"},
			}},
			{Name: "Build", PhaseOrder: 2, DurationDays: 10, Deliverables: []model.TemplateDeliverable{
				{Title: "Release notes"},
			}},
		},
	}
	_ = memTemplates{db}.Create(context.Background(), t)
	return t
}

func TestCreateFromTemplate(t *testing.T) {
	db := newMemDB()
	tpl := seedTemplate(db)
	svc := newProjectService(db)
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	p, err := svc.CreateFromTemplate(context.Background(), pm, CreateProjectInput{
		TemplateID: tpl.ID,
		Title:      "Acme site",
		StartDate:  &start,
	})
	require.NoError(t, err)

	assert.Equal(t, model.ProjectDraft, p.Status)
	assert.Equal(t, pm.UserID, p.PMID)
	require.Len(t, p.Phases, 2)

	first, second := p.Phases[0], p.Phases[1]
	assert.Equal(t, 1, first.PhaseOrder)
	assert.Equal(t, model.PhasePending, first.Status)
	assert.Equal(t, start, *first.StartDate)
	assert.Equal(t, start.AddDate(0, 0, 5), *first.EndDate)
	assert.Equal(t, *first.EndDate, *second.StartDate)
	assert.Equal(t, start.AddDate(0, 0, 15), *second.EndDate)

	firstDeliverables, _ := memDeliverables{db}.ListByPhase(context.Background(), first.ID)
	require.Len(t, firstDeliverables, 2)
	assert.Equal(t, model.DeliverablePending, firstDeliverables[0].Status)
	assert.Equal(t, *first.EndDate, *firstDeliverables[0].DueDate)

	require.Len(t, db.activities, 1)
	assert.Equal(t, model.ActivityProjectCreated, db.activities[0].Type)
}

func TestCreateFromTemplate_Rejections(t *testing.T) {
	db := newMemDB()
	tpl := seedTemplate(db)
	svc := newProjectService(db)
	ctx := context.Background()

	_, err := svc.CreateFromTemplate(ctx, member, CreateProjectInput{TemplateID: tpl.ID, Title: "x"})
	var denied *rbac.PermissionDeniedError
	assert.ErrorAs(t, err, &denied)

	_, err = svc.CreateFromTemplate(ctx, pm, CreateProjectInput{TemplateID: tpl.ID, Title: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.CreateFromTemplate(ctx, pm, CreateProjectInput{TemplateID: 9999, Title: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Empty(t, db.projects)
}

func TestPlanSchedule_NoStartDate(t *testing.T) {
	out := planSchedule([]model.TemplatePhase{{DurationDays: 3}}, nil)
	require.Len(t, out, 1)
	assert.Nil(t, out[0].start)
	assert.Nil(t, out[0].end)
}

func TestDelete(t *testing.T) {
	db := newMemDB()
	svc := newProjectService(db)
	ctx := context.Background()
	db.projects[1] = &model.Project{ID: 1, Status: model.ProjectDraft, PMID: pm.UserID}
	db.projects[2] = &model.Project{ID: 2, Status: model.ProjectActive, PMID: pm.UserID}
	db.projects[3] = &model.Project{ID: 3, Status: model.ProjectCancelled, PMID: 99}

	assert.ErrorIs(t, svc.Delete(ctx, pm, 2), ErrProjectNotDeletable)
	assert.ErrorIs(t, svc.Delete(ctx, pm, 3), ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, pm, 404), ErrNotFound)

	require.NoError(t, svc.Delete(ctx, pm, 1))
	require.NoError(t, svc.Delete(ctx, admin, 3))
	assert.Len(t, db.projects, 1)
}

func TestGetAndList(t *testing.T) {
	db := newMemDB()
	svc := newProjectService(db)
	ctx := context.Background()
	db.projects[1] = &model.Project{ID: 1, PMID: pm.UserID}
	db.projects[2] = &model.Project{ID: 2, PMID: 99}
	db.phases[10] = &model.Phase{ID: 10, ProjectID: 1, PhaseOrder: 2}
	db.phases[11] = &model.Phase{ID: 11, ProjectID: 1, PhaseOrder: 1}

	p, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	require.Len(t, p.Phases, 2)
	assert.Equal(t, int64(11), p.Phases[0].ID)

	_, err = svc.Get(ctx, 3)
	assert.ErrorIs(t, err, ErrNotFound)

	mine, _ := svc.List(ctx, pm)
	assert.Len(t, mine, 1)
	all, _ := svc.List(ctx, admin)
	assert.Len(t, all, 2)
}

func TestAddStakeholder(t *testing.T) {
	db := newMemDB()
	svc := newProjectService(db)
	ctx := context.Background()
	db.phases[10] = &model.Phase{ID: 10, ProjectID: 1}

	require.NoError(t, svc.AddStakeholder(ctx, pm, model.Stakeholder{PhaseID: 10, UserID: 8}))
	require.Len(t, db.stakeholders, 1)
	assert.Equal(t, "member", db.stakeholders[0].Role)

	assert.ErrorIs(t, svc.AddStakeholder(ctx, pm, model.Stakeholder{PhaseID: 11, UserID: 8}), ErrNotFound)
	assert.ErrorIs(t, svc.AddStakeholder(ctx, pm, model.Stakeholder{PhaseID: 10}), ErrInvalidInput)
}

func TestTemplateService_Create(t *testing.T) {
	db := newMemDB()
	svc := NewTemplateService(memTemplates{db}, zap.NewNop())
	ctx := context.Background()

	tpl := &model.Template{Name: "Std", Phases: []model.TemplatePhase{{Name: "A"}, {Name: "B"}}}
	require.NoError(t, svc.Create(ctx, pm, tpl))
	assert.Equal(t, 1, tpl.Phases[0].PhaseOrder)
	assert.Equal(t, 2, tpl.Phases[1].PhaseOrder)
	assert.Equal(t, pm.UserID, tpl.CreatedBy)

	gap := &model.Template{Name: "Gap", Phases: []model.TemplatePhase{{Name: "A", PhaseOrder: 1}, {Name: "B", PhaseOrder: 3}}}
	assert.ErrorIs(t, svc.Create(ctx, pm, gap), ErrInvalidInput)

	dup := &model.Template{Name: "Dup", Phases: []model.TemplatePhase{{Name: "A", PhaseOrder: 1}, {Name: "B", PhaseOrder: 1}}}
	assert.ErrorIs(t, svc.Create(ctx, pm, dup), ErrInvalidInput)

	assert.ErrorIs(t, svc.Create(ctx, pm, &model.Template{Name: "Empty"}), ErrInvalidInput)

	var denied *rbac.PermissionDeniedError
	assert.ErrorAs(t, svc.Create(ctx, member, &model.Template{Name: "x", Phases: []model.TemplatePhase{{Name: "A"}}}), &denied)

	_, err := svc.Get(ctx, 12345)
	assert.ErrorIs(t, err, ErrNotFound)
}
