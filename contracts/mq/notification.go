package mq

import "time"

// Routing keys on the "events" exchange.
const (
	RoutingKeyNotificationCreated = "notification.created"
)

// Delivery channels a notification may go out on.
const (
	ChannelInApp = "IN_APP"
	ChannelEmail = "EMAIL"
)

// NotificationCreatedPayload is staged in the outbox together with the
// notifications row. EventID is the consumer's dedup key.
type NotificationCreatedPayload struct {
	EventID          string    `json:"event_id"`
	TraceID          string    `json:"trace_id,omitempty"`
	NotificationID   int64     `json:"notification_id"`
	UserID           int64     `json:"user_id"`
	Title            string    `json:"title"`
	Message          string    `json:"message"`
	Type             string    `json:"type"`
	RelatedProjectID *int64    `json:"related_project_id,omitempty"`
	Channels         []string  `json:"channels"`
	CreatedAt        time.Time `json:"created_at"`
}
