package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"projecthub/internal/model"
	"projecthub/pkg/db"
)

type TemplateRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTemplateRepository(db *pgxpool.Pool, logger *zap.Logger) *TemplateRepository {
	return &TemplateRepository{db: db, logger: logger}
}

// Create writes the template with its phases and deliverables in one
// transaction and fills in every generated id.
func (r *TemplateRepository) Create(ctx context.Context, t *model.Template) error {
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
            INSERT INTO templates (name, description, created_by)
            VALUES ($1, $2, $3)
            RETURNING id, created_at
        `, t.Name, t.Description, t.CreatedBy).Scan(&t.ID, &t.CreatedAt); err != nil {
			return err
		}

		for i := range t.Phases {
			p := &t.Phases[i]
			p.TemplateID = t.ID
			if err := tx.QueryRow(ctx, `
                INSERT INTO template_phases (template_id, name, description, phase_order, duration_days)
                VALUES ($1, $2, $3, $4, $5)
                RETURNING id
            `, t.ID, p.Name, p.Description, p.PhaseOrder, p.DurationDays).Scan(&p.ID); err != nil {
				return err
			}

			for j := range p.Deliverables {
				d := &p.Deliverables[j]
				d.TemplatePhaseID = p.ID
				if err := tx.QueryRow(ctx, `
                    INSERT INTO template_deliverables (template_phase_id, title, description)
                    VALUES ($1, $2, $3)
                    RETURNING id
                `, p.ID, d.Title, d.Description).Scan(&d.ID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to create template", zap.String("name", t.Name), zap.Error(err))
		return err
	}

	r.logger.Info("Template created", zap.Int64("id", t.ID), zap.Int("phases", len(t.Phases)))
	return nil
}

// List returns templates without their phases.
func (r *TemplateRepository) List(ctx context.Context) ([]model.Template, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, name, description, COALESCE(created_by, 0), created_at
        FROM templates
        ORDER BY name
    `)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.Row) (*model.Template, error) {
		var t model.Template
		if err := row.Scan(&t.ID, &t.Name, &t.Description, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, err
		}
		return &t, nil
	})
}

// Get loads a template with phases ordered by phase_order and their
// deliverables. pgx.ErrNoRows if absent.
func (r *TemplateRepository) Get(ctx context.Context, id int64) (*model.Template, error) {
	var t model.Template
	err := r.db.QueryRow(ctx, `
        SELECT id, name, description, COALESCE(created_by, 0), created_at
        FROM templates WHERE id = $1
    `, id).Scan(&t.ID, &t.Name, &t.Description, &t.CreatedBy, &t.CreatedAt)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.logger.Error("Failed to find template", zap.Int64("id", id), zap.Error(err))
		}
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
        SELECT tp.id, tp.name, tp.description, tp.phase_order, tp.duration_days,
               td.id, td.title, td.description
        FROM template_phases tp
        LEFT JOIN template_deliverables td ON td.template_phase_id = tp.id
        WHERE tp.template_id = $1
        ORDER BY tp.phase_order, td.id
    `, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	t.Phases = []model.TemplatePhase{}
	for rows.Next() {
		var (
			p         model.TemplatePhase
			delivID   *int64
			delivName *string
			delivDesc *string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.PhaseOrder, &p.DurationDays,
			&delivID, &delivName, &delivDesc); err != nil {
			return nil, err
		}

		if n := len(t.Phases); n == 0 || t.Phases[n-1].ID != p.ID {
			p.TemplateID = id
			p.Deliverables = []model.TemplateDeliverable{}
			t.Phases = append(t.Phases, p)
		}
		if delivID != nil {
			last := &t.Phases[len(t.Phases)-1]
			last.Deliverables = append(last.Deliverables, model.TemplateDeliverable{
				ID:              *delivID,
				TemplatePhaseID: last.ID,
				Title:           *delivName,
				Description:     *delivDesc,
			})
		}
	}
	return &t, rows.Err()
}
