package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"projecthub/internal/model"
)

const deliverableColumns = `id, phase_id, title, description, status, assignee_id, due_date, content, created_at, updated_at`

type DeliverableRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewDeliverableRepository(db *pgxpool.Pool, logger *zap.Logger) *DeliverableRepository {
	return &DeliverableRepository{db: db, logger: logger}
}

func scanDeliverable(row pgx.Row) (*model.Deliverable, error) {
	var d model.Deliverable
	err := row.Scan(
		&d.ID,
		&d.PhaseID,
		&d.Title,
		&d.Description,
		&d.Status,
		&d.AssigneeID,
		&d.DueDate,
		&d.Content,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Insert creates a deliverable. q may be the pool or an open transaction.
func (r *DeliverableRepository) insert(ctx context.Context, q querier, d *model.Deliverable) error {
	query := `
        INSERT INTO deliverables (phase_id, title, description, status, assignee_id, due_date)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at, updated_at
    `
	err := q.QueryRow(ctx, query,
		d.PhaseID,
		d.Title,
		d.Description,
		d.Status,
		d.AssigneeID,
		d.DueDate,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert deliverable", zap.Int64("phase_id", d.PhaseID), zap.Error(err))
		return err
	}
	return nil
}

func (r *DeliverableRepository) Insert(ctx context.Context, d *model.Deliverable) error {
	return r.insert(ctx, r.db, d)
}

func (r *DeliverableRepository) InsertTx(ctx context.Context, tx pgx.Tx, d *model.Deliverable) error {
	return r.insert(ctx, tx, d)
}

func (r *DeliverableRepository) GetDeliverable(ctx context.Context, id int64) (*model.Deliverable, error) {
	d, err := scanDeliverable(r.db.QueryRow(ctx, `SELECT `+deliverableColumns+` FROM deliverables WHERE id = $1`, id))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.logger.Error("Failed to find deliverable", zap.Int64("id", id), zap.Error(err))
		}
		return nil, err
	}
	return d, nil
}

func (r *DeliverableRepository) ListByPhase(ctx context.Context, phaseID int64) ([]model.Deliverable, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+deliverableColumns+` FROM deliverables WHERE phase_id = $1 ORDER BY id`, phaseID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanDeliverable)
}

// DeliverableUpdate holds the optional fields of a PATCH. Nil means unchanged.
type DeliverableUpdate struct {
	Status     *model.DeliverableStatus
	AssigneeID *int64
	DueDate    *time.Time
}

func (r *DeliverableRepository) Update(ctx context.Context, id int64, u DeliverableUpdate) (*model.Deliverable, error) {
	query := `
        UPDATE deliverables
        SET status = COALESCE($2, status),
            assignee_id = COALESCE($3, assignee_id),
            due_date = COALESCE($4, due_date),
            updated_at = NOW()
        WHERE id = $1
        RETURNING ` + deliverableColumns

	d, err := scanDeliverable(r.db.QueryRow(ctx, query, id, u.Status, u.AssigneeID, u.DueDate))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.logger.Error("Failed to update deliverable", zap.Int64("id", id), zap.Error(err))
		}
		return nil, err
	}

	r.logger.Info("Deliverable updated", zap.Int64("id", id), zap.String("status", string(d.Status)))
	return d, nil
}

// SaveContent stores generated content and moves a pending deliverable to
// in_progress in the same statement.
func (r *DeliverableRepository) SaveContent(ctx context.Context, id int64, content string) (*model.Deliverable, error) {
	query := `
        UPDATE deliverables
        SET content = $2,
            status = CASE WHEN status = 'pending' THEN 'in_progress' ELSE status END,
            updated_at = NOW()
        WHERE id = $1
        RETURNING ` + deliverableColumns

	d, err := scanDeliverable(r.db.QueryRow(ctx, query, id, content))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.logger.Error("Failed to save deliverable content", zap.Int64("id", id), zap.Error(err))
		}
		return nil, err
	}
	return d, nil
}

func (r *DeliverableRepository) CountByPhase(ctx context.Context, phaseID int64) (int, int, error) {
	var total, approved int
	err := r.db.QueryRow(ctx, `
        SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'approved')
        FROM deliverables
        WHERE phase_id = $1
    `, phaseID).Scan(&total, &approved)
	if err != nil {
		r.logger.Error("Failed to count deliverables", zap.Int64("phase_id", phaseID), zap.Error(err))
		return 0, 0, err
	}
	return total, approved, nil
}

func (r *DeliverableRepository) ListDeliverablesDueBetween(ctx context.Context, from, to time.Time) ([]model.DeliverableDue, error) {
	query := `
        SELECT d.id, d.phase_id, d.title, d.description, d.status, d.assignee_id, d.due_date,
               d.content, d.created_at, d.updated_at, ph.project_id
        FROM deliverables d
        JOIN phases ph ON ph.id = d.phase_id
        WHERE d.status NOT IN ('approved', 'rejected')
          AND d.due_date BETWEEN $1 AND $2
        ORDER BY d.due_date
    `
	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		r.logger.Error("Failed to list deliverables due", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	out := []model.DeliverableDue{}
	for rows.Next() {
		var due model.DeliverableDue
		d := &due.Deliverable
		if err := rows.Scan(
			&d.ID, &d.PhaseID, &d.Title, &d.Description, &d.Status, &d.AssigneeID, &d.DueDate,
			&d.Content, &d.CreatedAt, &d.UpdatedAt, &due.ProjectID,
		); err != nil {
			return nil, err
		}
		out = append(out, due)
	}
	return out, rows.Err()
}
