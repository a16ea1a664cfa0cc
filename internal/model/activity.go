package model

import "time"

// Activity types.
const (
	ActivityProjectCreated    = "project_created"
	ActivityProjectStatus     = "project_status_changed"
	ActivityPhaseStatus       = "phase_status_changed"
	ActivityPhaseStarted      = "phase_started"
	ActivityDeliverableStatus = "deliverable_status_changed"
	ActivityDocumentGenerated = "document_generated"
)

type Activity struct {
	ID          int64          `json:"id"`
	ProjectID   int64          `json:"project_id"`
	UserID      *int64         `json:"user_id,omitempty"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
