package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"projecthub/internal/model"
	"projecthub/internal/workflow"
)

const phaseColumns = `id, project_id, name, description, phase_order, status, start_date, end_date,
        actual_start_date, actual_end_date, created_at, updated_at`

type PhaseRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPhaseRepository(db *pgxpool.Pool, logger *zap.Logger) *PhaseRepository {
	return &PhaseRepository{db: db, logger: logger}
}

func scanPhase(row pgx.Row) (*model.Phase, error) {
	var p model.Phase
	err := row.Scan(
		&p.ID,
		&p.ProjectID,
		&p.Name,
		&p.Description,
		&p.PhaseOrder,
		&p.Status,
		&p.StartDate,
		&p.EndDate,
		&p.ActualStartDate,
		&p.ActualEndDate,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PhaseRepository) InsertTx(ctx context.Context, tx pgx.Tx, p *model.Phase) error {
	query := `
        INSERT INTO phases (project_id, name, description, phase_order, status, start_date, end_date)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at, updated_at
    `
	err := tx.QueryRow(ctx, query,
		p.ProjectID,
		p.Name,
		p.Description,
		p.PhaseOrder,
		p.Status,
		p.StartDate,
		p.EndDate,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert phase",
			zap.Int64("project_id", p.ProjectID),
			zap.Int("phase_order", p.PhaseOrder),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (r *PhaseRepository) GetPhase(ctx context.Context, id int64) (*model.Phase, error) {
	return r.getOne(ctx, `SELECT `+phaseColumns+` FROM phases WHERE id = $1`, id)
}

func (r *PhaseRepository) GetPhaseByOrder(ctx context.Context, projectID int64, order int) (*model.Phase, error) {
	return r.getOne(ctx, `SELECT `+phaseColumns+` FROM phases WHERE project_id = $1 AND phase_order = $2`, projectID, order)
}

func (r *PhaseRepository) getOne(ctx context.Context, query string, args ...any) (*model.Phase, error) {
	p, err := scanPhase(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.logger.Error("Failed to find phase", zap.Any("args", args), zap.Error(err))
		}
		return nil, err
	}
	return p, nil
}

func (r *PhaseRepository) ListPhases(ctx context.Context, projectID int64) ([]model.Phase, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+phaseColumns+` FROM phases WHERE project_id = $1 ORDER BY phase_order`, projectID)
	if err != nil {
		r.logger.Error("Failed to list phases", zap.Int64("project_id", projectID), zap.Error(err))
		return nil, err
	}
	return collect(rows, scanPhase)
}

// UpdatePhaseStatus is the conditional phase write. Actual dates are
// COALESCEd so a value, once set, is never replaced.
func (r *PhaseRepository) UpdatePhaseStatus(ctx context.Context, u workflow.PhaseStatusUpdate) (*model.Phase, error) {
	query := `
        UPDATE phases
        SET status = $3,
            actual_start_date = COALESCE(actual_start_date, $4),
            actual_end_date = COALESCE(actual_end_date, $5),
            updated_at = NOW()
        WHERE id = $1 AND status = $2
        RETURNING ` + phaseColumns

	p, err := scanPhase(r.db.QueryRow(ctx, query, u.ID, u.From, u.To, u.ActualStartDate, u.ActualEndDate))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Warn("Phase status update matched no row",
				zap.Int64("id", u.ID),
				zap.String("expected", string(u.From)),
				zap.String("target", string(u.To)),
			)
		} else {
			r.logger.Error("Failed to update phase status", zap.Int64("id", u.ID), zap.Error(err))
		}
		return nil, err
	}
	return p, nil
}

func (r *PhaseRepository) AddStakeholder(ctx context.Context, s model.Stakeholder) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO phase_stakeholders (phase_id, user_id, role)
        VALUES ($1, $2, $3)
        ON CONFLICT (phase_id, user_id) DO UPDATE SET role = EXCLUDED.role
    `, s.PhaseID, s.UserID, s.Role)
	if err != nil {
		r.logger.Error("Failed to add stakeholder",
			zap.Int64("phase_id", s.PhaseID),
			zap.Int64("user_id", s.UserID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (r *PhaseRepository) ListStakeholderIDs(ctx context.Context, phaseID int64) ([]int64, error) {
	return r.ids(ctx, `SELECT user_id FROM phase_stakeholders WHERE phase_id = $1 ORDER BY user_id`, phaseID)
}

func (r *PhaseRepository) ListProjectStakeholderIDs(ctx context.Context, projectID int64) ([]int64, error) {
	return r.ids(ctx, `
        SELECT DISTINCT s.user_id
        FROM phase_stakeholders s
        JOIN phases ph ON ph.id = s.phase_id
        WHERE ph.project_id = $1
        ORDER BY s.user_id
    `, projectID)
}

func (r *PhaseRepository) ids(ctx context.Context, query string, arg int64) ([]int64, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		r.logger.Error("Failed to list stakeholders", zap.Int64("id", arg), zap.Error(err))
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (r *PhaseRepository) ListPhasesDueBetween(ctx context.Context, from, to time.Time) ([]model.PhaseDue, error) {
	query := `
        SELECT ph.id, ph.project_id, ph.name, ph.description, ph.phase_order, ph.status,
               ph.start_date, ph.end_date, ph.actual_start_date, ph.actual_end_date,
               ph.created_at, ph.updated_at, p.pm_id, p.title
        FROM phases ph
        JOIN projects p ON p.id = ph.project_id
        WHERE ph.status = 'in_progress'
          AND ph.end_date BETWEEN $1 AND $2
        ORDER BY ph.end_date
    `
	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		r.logger.Error("Failed to list phases due", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	out := []model.PhaseDue{}
	for rows.Next() {
		var d model.PhaseDue
		p := &d.Phase
		if err := rows.Scan(
			&p.ID, &p.ProjectID, &p.Name, &p.Description, &p.PhaseOrder, &p.Status,
			&p.StartDate, &p.EndDate, &p.ActualStartDate, &p.ActualEndDate,
			&p.CreatedAt, &p.UpdatedAt, &d.PMID, &d.ProjectTitle,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
