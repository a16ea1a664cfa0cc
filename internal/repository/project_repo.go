package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"projecthub/internal/model"
)

const projectColumns = `id, title, description, status, pm_id, template_id, start_date, end_date, created_at, updated_at`

type ProjectRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewProjectRepository(db *pgxpool.Pool, logger *zap.Logger) *ProjectRepository {
	return &ProjectRepository{
		db:     db,
		logger: logger,
	}
}

func scanProject(row pgx.Row) (*model.Project, error) {
	var p model.Project
	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Description,
		&p.Status,
		&p.PMID,
		&p.TemplateID,
		&p.StartDate,
		&p.EndDate,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// InsertTx creates the project row inside tx.
func (r *ProjectRepository) InsertTx(ctx context.Context, tx pgx.Tx, p *model.Project) error {
	r.logger.Debug("Inserting project",
		zap.Int64("pm_id", p.PMID),
		zap.String("title", p.Title),
	)

	query := `
        INSERT INTO projects (title, description, status, pm_id, template_id, start_date, end_date)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at, updated_at
    `
	err := tx.QueryRow(ctx, query,
		p.Title,
		p.Description,
		p.Status,
		p.PMID,
		p.TemplateID,
		p.StartDate,
		p.EndDate,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert project", zap.Error(err))
		return err
	}

	r.logger.Info("Project inserted successfully",
		zap.Int64("id", p.ID),
		zap.Int64("pm_id", p.PMID),
	)
	return nil
}

// GetProject returns pgx.ErrNoRows when the project does not exist.
func (r *ProjectRepository) GetProject(ctx context.Context, id int64) (*model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	p, err := scanProject(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.logger.Error("Failed to find project", zap.Int64("id", id), zap.Error(err))
		}
		return nil, err
	}
	return p, nil
}

// UpdateProjectStatus is the conditional write behind every project
// transition: it only matches while the row still holds from.
func (r *ProjectRepository) UpdateProjectStatus(ctx context.Context, id int64, from, to model.ProjectStatus) (*model.Project, error) {
	query := `
        UPDATE projects
        SET status = $3, updated_at = NOW()
        WHERE id = $1 AND status = $2
        RETURNING ` + projectColumns

	p, err := scanProject(r.db.QueryRow(ctx, query, id, from, to))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Warn("Project status update matched no row",
				zap.Int64("id", id),
				zap.String("expected", string(from)),
				zap.String("target", string(to)),
			)
		} else {
			r.logger.Error("Failed to update project status", zap.Int64("id", id), zap.Error(err))
		}
		return nil, err
	}
	return p, nil
}

// ListForUser returns projects the user manages or is a stakeholder on.
func (r *ProjectRepository) ListForUser(ctx context.Context, userID int64) ([]model.Project, error) {
	query := `
        SELECT ` + projectColumns + `
        FROM projects p
        WHERE p.pm_id = $1
           OR EXISTS (
                SELECT 1 FROM phases ph
                JOIN phase_stakeholders s ON s.phase_id = ph.id
                WHERE ph.project_id = p.id AND s.user_id = $1
           )
        ORDER BY p.updated_at DESC
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to list projects", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}
	return collect(rows, scanProject)
}

// ListAll is used for admins.
func (r *ProjectRepository) ListAll(ctx context.Context) ([]model.Project, error) {
	rows, err := r.db.Query(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanProject)
}

// DeleteIfStatus removes the project only while it holds one of statuses.
// It returns pgx.ErrNoRows when nothing was deleted.
func (r *ProjectRepository) DeleteIfStatus(ctx context.Context, id int64, statuses ...model.ProjectStatus) error {
	allowed := make([]string, len(statuses))
	for i, s := range statuses {
		allowed[i] = string(s)
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM projects WHERE id = $1 AND status = ANY($2)`, id, allowed)
	if err != nil {
		r.logger.Error("Failed to delete project", zap.Int64("id", id), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	r.logger.Info("Project deleted", zap.Int64("id", id))
	return nil
}
