package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"projecthub/internal/model"
)

type NotificationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewNotificationRepository(db *pgxpool.Pool, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{db: db, logger: logger}
}

// InsertTx must run in the same transaction as the outbox event.
func (r *NotificationRepository) InsertTx(ctx context.Context, tx pgx.Tx, n *model.Notification) error {
	query := `
        INSERT INTO notifications (user_id, title, message, type, related_project_id)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at
    `
	err := tx.QueryRow(ctx, query, n.UserID, n.Title, n.Message, n.Type, n.RelatedProjectID).
		Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert notification",
			zap.Int64("user_id", n.UserID),
			zap.String("type", n.Type),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (r *NotificationRepository) ListForUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]model.Notification, error) {
	query := `
        SELECT id, user_id, title, message, type, related_project_id, is_read, created_at
        FROM notifications
        WHERE user_id = $1 AND ($2 = FALSE OR is_read = FALSE)
        ORDER BY created_at DESC, id DESC
        LIMIT $3
    `
	rows, err := r.db.Query(ctx, query, userID, unreadOnly, limit)
	if err != nil {
		r.logger.Error("Failed to list notifications", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}
	return collect(rows, func(row pgx.Row) (*model.Notification, error) {
		var n model.Notification
		if err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.RelatedProjectID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		return &n, nil
	})
}

// MarkRead returns pgx.ErrNoRows if the notification is not the user's.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// GetByID is used by the worker to confirm a notification still exists
// before delivering it.
func (r *NotificationRepository) GetByID(ctx context.Context, id int64) (*model.Notification, error) {
	var n model.Notification
	err := r.db.QueryRow(ctx, `
        SELECT id, user_id, title, message, type, related_project_id, is_read, created_at
        FROM notifications WHERE id = $1
    `, id).Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.RelatedProjectID, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
