package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	mqcontracts "projecthub/contracts/mq"
	"projecthub/internal/model"
	"projecthub/pkg/metrics"
	"projecthub/pkg/mq"
	"projecthub/pkg/trace"
	"projecthub/pkg/util"
)

const (
	handlerName = "notification_created"
	maxRetries  = 5
)

type NotificationLoader interface {
	GetByID(ctx context.Context, id int64) (*model.Notification, error)
}

type Sender interface {
	Send(ctx context.Context, channel string, n *model.Notification) error
}

type Deduper interface {
	AcquireOnce(ctx context.Context, scope, key string) bool
	Release(ctx context.Context, scope, key string)
}

type RetryCounter interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

// NotificationCreatedHandler delivers notification.created events.
type NotificationCreatedHandler struct {
	notifications NotificationLoader
	sender        Sender
	deduper       Deduper
	retryCounter  RetryCounter
	logger        *zap.Logger
}

func NewNotificationCreatedHandler(
	notifications NotificationLoader,
	sender Sender,
	deduper Deduper,
	retryCounter RetryCounter,
	logger *zap.Logger,
) *NotificationCreatedHandler {
	return &NotificationCreatedHandler{
		notifications: notifications,
		sender:        sender,
		deduper:       deduper,
		retryCounter:  retryCounter,
		logger:        logger,
	}
}

// Handle is idempotent per event_id. It returns nil to ack, a plain error to
// requeue and an mq.Permanent error to dead-letter.
func (h *NotificationCreatedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mqcontracts.NotificationCreatedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal notification.created payload (non-retryable, sending to DLQ)",
			zap.Error(err),
			zap.String("raw_payload", string(raw)),
		)
		return mq.Permanent(fmt.Errorf("json_unmarshal_error: %w", err))
	}
	if p.EventID == "" || p.NotificationID <= 0 {
		return mq.Permanent(errors.New("notification.created without event_id or notification_id"))
	}
	if p.TraceID != "" && trace.FromContext(ctx) == "" {
		ctx = trace.WithContext(ctx, p.TraceID)
	}

	log := h.logger.With(
		zap.String("event_id", p.EventID),
		zap.Int64("notification_id", p.NotificationID),
		zap.String(trace.TraceIDKey, trace.FromContext(ctx)),
	)

	if !h.deduper.AcquireOnce(ctx, handlerName, p.EventID) {
		metrics.IncrementNotification("deliver", "duplicate")
		return nil
	}

	n, err := h.notifications.GetByID(ctx, p.NotificationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// 通知已被删除，无需投递
			log.Warn("Notification no longer exists, dropping event")
			return nil
		}
		return h.fail(ctx, log, p.EventID, err)
	}

	channels := p.Channels
	if len(channels) == 0 {
		channels = []string{mqcontracts.ChannelInApp}
	}
	for _, ch := range channels {
		if err := h.sender.Send(ctx, ch, n); err != nil {
			log.Error("Failed to deliver notification", zap.String("channel", ch), zap.Error(err))
			return h.fail(ctx, log, p.EventID, err)
		}
	}

	if err := h.retryCounter.Reset(ctx, util.FormatRetryKey(handlerName, p.EventID)); err != nil {
		log.Debug("Failed to reset retry counter", zap.Error(err))
	}
	metrics.IncrementNotification("deliver", "ok")
	log.Info("Notification delivered", zap.Strings("channels", channels))
	return nil
}

// fail releases the dedup marker so a redelivery is processed, then decides
// between requeue and DLQ.
func (h *NotificationCreatedHandler) fail(ctx context.Context, log *zap.Logger, eventID string, err error) error {
	h.deduper.Release(ctx, handlerName, eventID)
	metrics.IncrementNotification("deliver", "failed")

	retryable, errType := util.IsRetryableError(err)
	if !retryable {
		log.Error("Non-retryable delivery failure, sending to DLQ", zap.String("error_type", errType), zap.Error(err))
		return mq.Permanent(err)
	}

	count, cerr := h.retryCounter.IncrementAndGet(ctx, util.FormatRetryKey(handlerName, eventID))
	if cerr != nil {
		// 计数失败时仍然重试
		log.Warn("Failed to increment retry counter", zap.Error(cerr))
		return err
	}
	if !util.ShouldRetry(count, maxRetries, retryable) {
		log.Error("Retries exhausted, sending to DLQ",
			zap.Int64("retry_count", count),
			zap.String("error_type", errType),
			zap.Error(err),
		)
		return mq.Permanent(fmt.Errorf("retries exhausted after %d attempts: %w", count, err))
	}

	log.Warn("Retryable delivery failure, requeueing",
		zap.Int64("retry_count", count),
		zap.String("error_type", errType),
		zap.Error(err),
	)
	return err
}
