package model

import "time"

type PhaseStatus string

const (
	PhasePending    PhaseStatus = "pending"
	PhaseInProgress PhaseStatus = "in_progress"
	PhaseBlocked    PhaseStatus = "blocked"
	PhaseCompleted  PhaseStatus = "completed"
)

type Phase struct {
	ID              int64       `json:"id"`
	ProjectID       int64       `json:"project_id"`
	Name            string      `json:"name"`
	Description     string      `json:"description"`
	PhaseOrder      int         `json:"phase_order"`
	Status          PhaseStatus `json:"status"`
	StartDate       *time.Time  `json:"start_date,omitempty"`
	EndDate         *time.Time  `json:"end_date,omitempty"`
	ActualStartDate *time.Time  `json:"actual_start_date,omitempty"`
	ActualEndDate   *time.Time  `json:"actual_end_date,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Stakeholder links a user to a phase with a free-form role ("reviewer", "owner" ...).
type Stakeholder struct {
	PhaseID int64  `json:"phase_id"`
	UserID  int64  `json:"user_id"`
	Role    string `json:"role"`
}
