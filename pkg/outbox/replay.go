package outbox

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ReplayStore is the part of Repository replay needs.
type ReplayStore interface {
	GetEventByID(ctx context.Context, eventID int64) (*Event, error)
	GetFailedEvents(ctx context.Context, limit int) ([]*Event, error)
	ResetToPending(ctx context.Context, eventID int64) error
}

// ReplayService puts parked events back in the dispatcher's queue.
type ReplayService struct {
	store  ReplayStore
	logger *zap.Logger
}

func NewReplayService(store ReplayStore, logger *zap.Logger) *ReplayService {
	return &ReplayService{store: store, logger: logger}
}

// ReplayEvent resets a failed event to pending. Sent or pending events are
// refused with ErrNotReplayable.
func (s *ReplayService) ReplayEvent(ctx context.Context, eventID int64) error {
	event, err := s.store.GetEventByID(ctx, eventID)
	if err != nil {
		return err
	}
	if event.Status != StatusFailed {
		return fmt.Errorf("%w: event %d is %s", ErrNotReplayable, eventID, event.Status)
	}
	if err := s.store.ResetToPending(ctx, eventID); err != nil {
		return err
	}
	s.logger.Info("Outbox event queued for replay",
		zap.Int64("event_id", eventID),
		zap.String("routing_key", event.RoutingKey),
	)
	return nil
}

// ListFailed 列出失败事件
func (s *ReplayService) ListFailed(ctx context.Context, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.GetFailedEvents(ctx, limit)
}

// ReplayFailedEvents 重放所有失败的事件，单个失败不影响其他事件
func (s *ReplayService) ReplayFailedEvents(ctx context.Context, limit int) (int, error) {
	events, err := s.ListFailed(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to get failed events: %w", err)
	}

	replayed := 0
	for _, event := range events {
		if err := s.store.ResetToPending(ctx, event.ID); err != nil {
			s.logger.Warn("Failed to replay event",
				zap.Int64("event_id", event.ID),
				zap.Error(err),
			)
			continue
		}
		replayed++
	}
	return replayed, nil
}
