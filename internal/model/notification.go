package model

import "time"

// Notification types written by the workflow engine.
const (
	NotificationProjectActivated  = "project_activated"
	NotificationProjectCompleted  = "project_completed"
	NotificationPhaseStarted      = "phase_started"
	NotificationPhaseDeadline     = "phase_deadline"
	NotificationDeliverableDue    = "deliverable_deadline"
	NotificationDocumentGenerated = "document_generated"
)

type Notification struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"user_id"`
	Title            string    `json:"title"`
	Message          string    `json:"message"`
	Type             string    `json:"type"`
	RelatedProjectID *int64    `json:"related_project_id,omitempty"`
	IsRead           bool      `json:"is_read"`
	CreatedAt        time.Time `json:"created_at"`
}
