package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	mqcontracts "projecthub/contracts/mq"
	"projecthub/internal/model"
)

// NotificationSender delivers a stored notification over one channel.
// In-app delivery is the row itself; email is handed to the mail relay,
// which is only logged here.
type NotificationSender struct {
	users  UserStore
	logger *zap.Logger
}

func NewNotificationSender(users UserStore, logger *zap.Logger) *NotificationSender {
	return &NotificationSender{users: users, logger: logger}
}

func (s *NotificationSender) Send(ctx context.Context, channel string, n *model.Notification) error {
	switch channel {
	case mqcontracts.ChannelInApp:
		return s.sendInApp(ctx, n)
	case mqcontracts.ChannelEmail:
		return s.sendEmail(ctx, n)
	default:
		return fmt.Errorf("unsupported channel: %s", channel)
	}
}

func (s *NotificationSender) sendInApp(_ context.Context, n *model.Notification) error {
	s.logger.Info("In-app notification available",
		zap.Int64("notification_id", n.ID),
		zap.Int64("user_id", n.UserID),
		zap.String("type", n.Type),
	)
	return nil
}

func (s *NotificationSender) sendEmail(ctx context.Context, n *model.Notification) error {
	u, err := s.users.FindByID(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("load recipient %d: %w", n.UserID, err)
	}
	s.logger.Info("Sending email notification",
		zap.Int64("notification_id", n.ID),
		zap.String("to", u.Email),
		zap.String("subject", n.Title),
	)
	return nil
}
