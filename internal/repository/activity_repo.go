package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"projecthub/internal/model"
)

type ActivityRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewActivityRepository(db *pgxpool.Pool, logger *zap.Logger) *ActivityRepository {
	return &ActivityRepository{db: db, logger: logger}
}

func (r *ActivityRepository) insert(ctx context.Context, q querier, a *model.Activity) error {
	query := `
        INSERT INTO activity_log (project_id, user_id, type, description, metadata)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at
    `
	err := q.QueryRow(ctx, query, a.ProjectID, a.UserID, a.Type, a.Description, a.Metadata).
		Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert activity",
			zap.Int64("project_id", a.ProjectID),
			zap.String("type", a.Type),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (r *ActivityRepository) InsertActivity(ctx context.Context, a *model.Activity) error {
	return r.insert(ctx, r.db, a)
}

func (r *ActivityRepository) InsertActivityTx(ctx context.Context, tx pgx.Tx, a *model.Activity) error {
	return r.insert(ctx, tx, a)
}

// ListActivities returns newest first.
func (r *ActivityRepository) ListActivities(ctx context.Context, projectID int64, limit int) ([]model.Activity, error) {
	query := `
        SELECT id, project_id, user_id, type, description, metadata, created_at
        FROM activity_log
        WHERE project_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2
    `
	rows, err := r.db.Query(ctx, query, projectID, limit)
	if err != nil {
		r.logger.Error("Failed to list activity", zap.Int64("project_id", projectID), zap.Error(err))
		return nil, err
	}
	return collect(rows, func(row pgx.Row) (*model.Activity, error) {
		var a model.Activity
		if err := row.Scan(&a.ID, &a.ProjectID, &a.UserID, &a.Type, &a.Description, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, err
		}
		return &a, nil
	})
}
