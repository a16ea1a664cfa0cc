package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	mqcontracts "projecthub/contracts/mq"
	"projecthub/internal/model"
	"projecthub/internal/workflow"
	"projecthub/pkg/metrics"
	"projecthub/pkg/outbox"
	"projecthub/pkg/trace"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

type NotificationStore interface {
	InsertTx(ctx context.Context, tx pgx.Tx, n *model.Notification) error
	ListForUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]model.Notification, error)
	MarkRead(ctx context.Context, id, userID int64) error
}

// NotificationService is the engine's notification sink. Delivery happens
// in the worker once the outbox event is published.
type NotificationService struct {
	tx       TxRunner
	store    NotificationStore
	outbox   outbox.Inserter
	channels []string
	logger   *zap.Logger
}

var _ workflow.Notifier = (*NotificationService)(nil)

func NewNotificationService(tx TxRunner, store NotificationStore, outboxRepo outbox.Inserter, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		tx:       tx,
		store:    store,
		outbox:   outboxRepo,
		channels: []string{mqcontracts.ChannelInApp, mqcontracts.ChannelEmail},
		logger:   logger,
	}
}

// Notify stores the notification and stages a notification.created event in
// the same transaction.
func (s *NotificationService) Notify(ctx context.Context, n workflow.Notification) error {
	ctx, traceID := trace.Ensure(ctx)
	row := &model.Notification{
		UserID:           n.UserID,
		Title:            n.Title,
		Message:          n.Message,
		Type:             n.Type,
		RelatedProjectID: n.RelatedProjectID,
	}

	err := s.tx(ctx, func(tx pgx.Tx) error {
		if err := s.store.InsertTx(ctx, tx, row); err != nil {
			return err
		}
		payload := mqcontracts.NotificationCreatedPayload{
			EventID:          uuid.NewString(),
			TraceID:          traceID,
			NotificationID:   row.ID,
			UserID:           row.UserID,
			Title:            row.Title,
			Message:          row.Message,
			Type:             row.Type,
			RelatedProjectID: row.RelatedProjectID,
			Channels:         s.channels,
			CreatedAt:        row.CreatedAt,
		}
		_, err := outbox.Enqueue(ctx, tx, s.outbox, "notification", row.ID, mqcontracts.RoutingKeyNotificationCreated, payload)
		return err
	})
	if err != nil {
		metrics.IncrementNotification("sink", "failed")
		return fmt.Errorf("notify user %d: %w", n.UserID, err)
	}

	metrics.IncrementNotification("sink", "ok")
	s.logger.Debug("Notification staged",
		zap.Int64("notification_id", row.ID),
		zap.Int64("user_id", row.UserID),
		zap.String("type", row.Type),
		zap.String(trace.TraceIDKey, traceID),
	)
	return nil
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}
	return s.store.ListForUser(ctx, userID, unreadOnly, limit)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id int64) error {
	err := s.store.MarkRead(ctx, id, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("notification %d: %w", id, ErrNotFound)
	}
	return err
}
