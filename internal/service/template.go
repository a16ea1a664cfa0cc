package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"projecthub/internal/model"
	"projecthub/pkg/rbac"
)

type TemplateStore interface {
	Create(ctx context.Context, t *model.Template) error
	List(ctx context.Context) ([]model.Template, error)
	Get(ctx context.Context, id int64) (*model.Template, error)
}

type TemplateService struct {
	templates TemplateStore
	logger    *zap.Logger
}

func NewTemplateService(templates TemplateStore, logger *zap.Logger) *TemplateService {
	return &TemplateService{templates: templates, logger: logger}
}

// Create validates and stores a template. Phases without an explicit order
// are numbered by position; explicit orders must be unique.
func (s *TemplateService) Create(ctx context.Context, actor Actor, t *model.Template) error {
	if err := rbac.CheckPermission(actor.UserID, actor.Role, rbac.PermissionManageTemplate); err != nil {
		return err
	}
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if len(t.Phases) == 0 {
		return fmt.Errorf("%w: a template needs at least one phase", ErrInvalidInput)
	}

	seen := make(map[int]bool, len(t.Phases))
	for i := range t.Phases {
		p := &t.Phases[i]
		if p.PhaseOrder == 0 {
			p.PhaseOrder = i + 1
		}
		if p.PhaseOrder < 1 {
			return fmt.Errorf("%w: phase_order must be positive", ErrInvalidInput)
		}
		if seen[p.PhaseOrder] {
			return fmt.Errorf("%w: duplicate phase_order %d", ErrInvalidInput, p.PhaseOrder)
		}
		seen[p.PhaseOrder] = true
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("%w: phase %d has no name", ErrInvalidInput, p.PhaseOrder)
		}
		if p.DurationDays < 0 {
			return fmt.Errorf("%w: phase %d has a negative duration", ErrInvalidInput, p.PhaseOrder)
		}
	}

	// phases advance by order+1, so the orders must be 1..n
	for order := 1; order <= len(t.Phases); order++ {
		if !seen[order] {
			return fmt.Errorf("%w: phase_order must run from 1 to %d without gaps", ErrInvalidInput, len(t.Phases))
		}
	}

	t.CreatedBy = actor.UserID
	return s.templates.Create(ctx, t)
}

func (s *TemplateService) List(ctx context.Context) ([]model.Template, error) {
	return s.templates.List(ctx)
}

func (s *TemplateService) Get(ctx context.Context, id int64) (*model.Template, error) {
	t, err := s.templates.Get(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("template %d: %w", id, ErrNotFound)
	}
	return t, err
}
