package model

import "time"

type Template struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	CreatedBy   int64           `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	Phases      []TemplatePhase `json:"phases"`
}

type TemplatePhase struct {
	ID           int64                 `json:"id"`
	TemplateID   int64                 `json:"template_id"`
	Name         string                `json:"name"`
	Description  string                `json:"description"`
	PhaseOrder   int                   `json:"phase_order"`
	DurationDays int                   `json:"duration_days"`
	Deliverables []TemplateDeliverable `json:"deliverables"`
}

type TemplateDeliverable struct {
	ID              int64  `json:"id"`
	TemplatePhaseID int64  `json:"template_phase_id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
}
