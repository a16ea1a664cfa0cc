package model

import "time"

type DeliverableStatus string

const (
	DeliverablePending    DeliverableStatus = "pending"
	DeliverableInProgress DeliverableStatus = "in_progress"
	DeliverableReview     DeliverableStatus = "review"
	DeliverableApproved   DeliverableStatus = "approved"
	DeliverableRejected   DeliverableStatus = "rejected"
)

// IsValid reports whether s is a known deliverable status.
func (s DeliverableStatus) IsValid() bool {
	switch s {
	case DeliverablePending, DeliverableInProgress, DeliverableReview, DeliverableApproved, DeliverableRejected:
		return true
	}
	return false
}

// IsClosed is true once a deliverable no longer needs deadline reminders.
func (s DeliverableStatus) IsClosed() bool {
	return s == DeliverableApproved || s == DeliverableRejected
}

type Deliverable struct {
	ID          int64             `json:"id"`
	PhaseID     int64             `json:"phase_id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Status      DeliverableStatus `json:"status"`
	AssigneeID  *int64            `json:"assignee_id,omitempty"`
	DueDate     *time.Time        `json:"due_date,omitempty"`
	Content     string            `json:"content,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// DeliverableDue is a deliverable row joined with what the deadline sweep
// needs to address its reminder.
type DeliverableDue struct {
	Deliverable
	ProjectID int64 `json:"project_id"`
}

// PhaseDue is an in-progress phase joined with its project's PM.
type PhaseDue struct {
	Phase
	PMID         int64  `json:"pm_id"`
	ProjectTitle string `json:"project_title"`
}
