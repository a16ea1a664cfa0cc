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
	"projecthub/pkg/rbac"
)

type ProjectStore interface {
	InsertTx(ctx context.Context, tx pgx.Tx, p *model.Project) error
	GetProject(ctx context.Context, id int64) (*model.Project, error)
	ListForUser(ctx context.Context, userID int64) ([]model.Project, error)
	ListAll(ctx context.Context) ([]model.Project, error)
	DeleteIfStatus(ctx context.Context, id int64, statuses ...model.ProjectStatus) error
}

type PhaseStore interface {
	InsertTx(ctx context.Context, tx pgx.Tx, p *model.Phase) error
	GetPhase(ctx context.Context, id int64) (*model.Phase, error)
	ListPhases(ctx context.Context, projectID int64) ([]model.Phase, error)
	AddStakeholder(ctx context.Context, s model.Stakeholder) error
}

type TemplateReader interface {
	Get(ctx context.Context, id int64) (*model.Template, error)
}

type DeliverableInserter interface {
	InsertTx(ctx context.Context, tx pgx.Tx, d *model.Deliverable) error
}

type ActivityInserter interface {
	InsertActivityTx(ctx context.Context, tx pgx.Tx, a *model.Activity) error
}

type ProjectService struct {
	tx           TxRunner
	projects     ProjectStore
	phases       PhaseStore
	deliverables DeliverableInserter
	templates    TemplateReader
	activities   ActivityInserter
	now          func() time.Time
	logger       *zap.Logger
}

func NewProjectService(
	tx TxRunner,
	projects ProjectStore,
	phases PhaseStore,
	deliverables DeliverableInserter,
	templates TemplateReader,
	activities ActivityInserter,
	logger *zap.Logger,
) *ProjectService {
	return &ProjectService{
		tx:           tx,
		projects:     projects,
		phases:       phases,
		deliverables: deliverables,
		templates:    templates,
		activities:   activities,
		now:          time.Now,
		logger:       logger,
	}
}

type CreateProjectInput struct {
	TemplateID  int64
	Title       string
	Description string
	StartDate   *time.Time
	EndDate     *time.Time
}

// CreateFromTemplate instantiates a draft project owned by the caller. The
// project, its phases, their deliverables and the project_created activity
// entry are written in one transaction.
func (s *ProjectService) CreateFromTemplate(ctx context.Context, actor Actor, in CreateProjectInput) (*model.Project, error) {
	if err := rbac.CheckPermission(actor.UserID, actor.Role, rbac.PermissionCreateProject); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return nil, fmt.Errorf("%w: end_date precedes start_date", ErrInvalidInput)
	}

	tpl, err := s.templates.Get(ctx, in.TemplateID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("template %d: %w", in.TemplateID, ErrNotFound)
		}
		return nil, err
	}
	if len(tpl.Phases) == 0 {
		return nil, fmt.Errorf("%w: template %d has no phases", ErrInvalidInput, tpl.ID)
	}

	project := &model.Project{
		Title:       in.Title,
		Description: in.Description,
		Status:      model.ProjectDraft,
		PMID:        actor.UserID,
		TemplateID:  &tpl.ID,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
	}

	err = s.tx(ctx, func(tx pgx.Tx) error {
		if err := s.projects.InsertTx(ctx, tx, project); err != nil {
			return fmt.Errorf("insert project: %w", err)
		}

		schedule := planSchedule(tpl.Phases, in.StartDate)
		for i, tp := range tpl.Phases {
			phase := &model.Phase{
				ProjectID:   project.ID,
				Name:        tp.Name,
				Description: tp.Description,
				PhaseOrder:  tp.PhaseOrder,
				Status:      model.PhasePending,
				StartDate:   schedule[i].start,
				EndDate:     schedule[i].end,
			}
			if err := s.phases.InsertTx(ctx, tx, phase); err != nil {
				return fmt.Errorf("insert phase %d: %w", tp.PhaseOrder, err)
			}

			for _, td := range tp.Deliverables {
				d := &model.Deliverable{
					PhaseID:     phase.ID,
					Title:       td.Title,
					Description: td.Description,
					Status:      model.DeliverablePending,
					DueDate:     phase.EndDate,
				}
				if err := s.deliverables.InsertTx(ctx, tx, d); err != nil {
					return fmt.Errorf("insert deliverable: %w", err)
				}
			}
			project.Phases = append(project.Phases, *phase)
		}

		return s.activities.InsertActivityTx(ctx, tx, &model.Activity{
			ProjectID:   project.ID,
			UserID:      &actor.UserID,
			Type:        model.ActivityProjectCreated,
			Description: fmt.Sprintf("Project %q created from template %q", project.Title, tpl.Name),
			Metadata: map[string]any{
				"template_id": tpl.ID,
				"phases":      len(tpl.Phases),
			},
		})
	})
	if err != nil {
		s.logger.Error("Failed to create project from template",
			zap.Int64("template_id", in.TemplateID),
			zap.Int64("pm_id", actor.UserID),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("Project created",
		zap.Int64("project_id", project.ID),
		zap.Int64("template_id", tpl.ID),
		zap.Int("phases", len(project.Phases)),
	)
	return project, nil
}

type plannedDates struct {
	start, end *time.Time
}

// planSchedule lays phases end to end from start using each template
// phase's duration. Without a start date no planned dates are set.
func planSchedule(phases []model.TemplatePhase, start *time.Time) []plannedDates {
	out := make([]plannedDates, len(phases))
	if start == nil {
		return out
	}
	cursor := *start
	for i, p := range phases {
		begin := cursor
		days := p.DurationDays
		if days < 0 {
			days = 0
		}
		end := begin.AddDate(0, 0, days)
		out[i] = plannedDates{start: &begin, end: &end}
		cursor = end
	}
	return out
}

// List returns every project for admins and the caller's own projects
// (as PM or stakeholder) for everyone else.
func (s *ProjectService) List(ctx context.Context, actor Actor) ([]model.Project, error) {
	if actor.Role == rbac.RoleAdmin {
		return s.projects.ListAll(ctx)
	}
	return s.projects.ListForUser(ctx, actor.UserID)
}

// Get loads a project with its phases in order.
func (s *ProjectService) Get(ctx context.Context, id int64) (*model.Project, error) {
	p, err := s.projects.GetProject(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("project %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	phases, err := s.phases.ListPhases(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Phases = phases
	return p, nil
}

// Delete removes a draft or cancelled project. Only its PM or an admin may
// delete it.
func (s *ProjectService) Delete(ctx context.Context, actor Actor, id int64) error {
	p, err := s.projects.GetProject(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("project %d: %w", id, ErrNotFound)
		}
		return err
	}
	if actor.Role != rbac.RoleAdmin && p.PMID != actor.UserID {
		return ErrForbidden
	}

	err = s.projects.DeleteIfStatus(ctx, id, model.ProjectDraft, model.ProjectCancelled)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrProjectNotDeletable
	}
	if err != nil {
		return err
	}

	s.logger.Info("Project deleted", zap.Int64("project_id", id), zap.Int64("user_id", actor.UserID))
	return nil
}

// AddStakeholder attaches a user to a phase.
func (s *ProjectService) AddStakeholder(ctx context.Context, actor Actor, st model.Stakeholder) error {
	if err := rbac.CheckPermission(actor.UserID, actor.Role, rbac.PermissionProgressPhase); err != nil {
		return err
	}
	if st.UserID <= 0 {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(st.Role) == "" {
		st.Role = "member"
	}
	if _, err := s.phases.GetPhase(ctx, st.PhaseID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("phase %d: %w", st.PhaseID, ErrNotFound)
		}
		return err
	}
	return s.phases.AddStakeholder(ctx, st)
}
