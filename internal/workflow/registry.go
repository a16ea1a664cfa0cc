package workflow

import (
	"slices"

	"projecthub/internal/model"
)

// Edge tables are built once and never handed out; accessors return copies.
var projectEdges = map[model.ProjectStatus][]model.ProjectStatus{
	model.ProjectDraft:     {model.ProjectActive, model.ProjectCancelled},
	model.ProjectActive:    {model.ProjectOnHold, model.ProjectCompleted, model.ProjectCancelled},
	model.ProjectOnHold:    {model.ProjectActive, model.ProjectCancelled},
	model.ProjectCompleted: {},
	model.ProjectCancelled: {},
}

var phaseEdges = map[model.PhaseStatus][]model.PhaseStatus{
	model.PhasePending:    {model.PhaseInProgress},
	model.PhaseInProgress: {model.PhaseCompleted, model.PhaseBlocked},
	model.PhaseBlocked:    {model.PhaseInProgress},
	model.PhaseCompleted:  {},
}

func IsLegalProjectTransition(from, to model.ProjectStatus) bool {
	return slices.Contains(projectEdges[from], to)
}

func IsLegalPhaseTransition(from, to model.PhaseStatus) bool {
	return slices.Contains(phaseEdges[from], to)
}

// NextProjectStatuses lists the statuses reachable from s in one step.
func NextProjectStatuses(s model.ProjectStatus) []model.ProjectStatus {
	return slices.Clone(projectEdges[s])
}

// NextPhaseStatuses lists the statuses reachable from s in one step.
func NextPhaseStatuses(s model.PhaseStatus) []model.PhaseStatus {
	return slices.Clone(phaseEdges[s])
}

func IsValidProjectStatus(s model.ProjectStatus) bool {
	_, ok := projectEdges[s]
	return ok
}

func IsValidPhaseStatus(s model.PhaseStatus) bool {
	_, ok := phaseEdges[s]
	return ok
}
