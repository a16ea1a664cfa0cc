package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"projecthub/internal/model"
	"projecthub/internal/workflow"
	"projecthub/pkg/metrics"
	"projecthub/pkg/rbac"
)

const maxInstructionsLength = 4000

type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

type ProjectReader interface {
	GetProject(ctx context.Context, id int64) (*model.Project, error)
}

// GenerationService drafts deliverable documents with the AI agent.
type GenerationService struct {
	deliverables DeliverableStore
	phases       PhaseReader
	projects     ProjectReader
	agent        Generator
	workflow     Workflow
	notifier     workflow.Notifier
	logger       *zap.Logger
}

func NewGenerationService(
	deliverables DeliverableStore,
	phases PhaseReader,
	projects ProjectReader,
	agent Generator,
	wf Workflow,
	notifier workflow.Notifier,
	logger *zap.Logger,
) *GenerationService {
	return &GenerationService{
		deliverables: deliverables,
		phases:       phases,
		projects:     projects,
		agent:        agent,
		workflow:     wf,
		notifier:     notifier,
		logger:       logger,
	}
}

// Generate builds a prompt from the deliverable's project and phase, stores
// the agent's answer as the deliverable content and records the activity.
func (s *GenerationService) Generate(ctx context.Context, actor Actor, deliverableID int64, instructions string) (*model.Deliverable, error) {
	if err := rbac.CheckPermission(actor.UserID, actor.Role, rbac.PermissionGenerateDocument); err != nil {
		return nil, err
	}
	if len(instructions) > maxInstructionsLength {
		return nil, fmt.Errorf("%w: instructions exceed %d characters", ErrInvalidInput, maxInstructionsLength)
	}

	d, phase, project, err := s.load(ctx, deliverableID)
	if err != nil {
		return nil, err
	}
	if d.Status.IsClosed() {
		return nil, fmt.Errorf("%w: deliverable %d is %s", ErrInvalidInput, d.ID, d.Status)
	}

	content, err := s.agent.Generate(ctx, GenerateRequest{
		DeliverableID: d.ID,
		Prompt:        BuildPrompt(project, phase, d, instructions),
	})
	if err != nil {
		metrics.IncrementDocumentGeneration("failed")
		return nil, err
	}

	updated, err := s.deliverables.SaveContent(ctx, d.ID, content)
	if err != nil {
		metrics.IncrementDocumentGeneration("failed")
		return nil, err
	}
	metrics.IncrementDocumentGeneration("ok")

	if err := s.workflow.LogActivity(ctx, project.ID, actor.UserID, model.ActivityDocumentGenerated,
		fmt.Sprintf("Document generated for %q", d.Title),
		map[string]any{"deliverable_id": d.ID, "length": len(content)},
	); err != nil {
		s.logger.Warn("Failed to record generation activity", zap.Int64("deliverable_id", d.ID), zap.Error(err))
	}

	if d.AssigneeID != nil && *d.AssigneeID != actor.UserID {
		if err := s.notifier.Notify(ctx, workflow.Notification{
			UserID:           *d.AssigneeID,
			Title:            "Document drafted",
			Message:          fmt.Sprintf("A draft for %q is ready for review.", d.Title),
			Type:             model.NotificationDocumentGenerated,
			RelatedProjectID: &project.ID,
		}); err != nil {
			s.logger.Warn("Failed to notify assignee", zap.Int64("deliverable_id", d.ID), zap.Error(err))
		}
	}

	s.logger.Info("Document generated",
		zap.Int64("deliverable_id", d.ID),
		zap.Int64("project_id", project.ID),
		zap.Int("length", len(content)),
	)
	return updated, nil
}

func (s *GenerationService) load(ctx context.Context, deliverableID int64) (*model.Deliverable, *model.Phase, *model.Project, error) {
	notFound := func(err error, what string, id int64) error {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
		}
		return err
	}

	d, err := s.deliverables.GetDeliverable(ctx, deliverableID)
	if err != nil {
		return nil, nil, nil, notFound(err, "deliverable", deliverableID)
	}
	phase, err := s.phases.GetPhase(ctx, d.PhaseID)
	if err != nil {
		return nil, nil, nil, notFound(err, "phase", d.PhaseID)
	}
	project, err := s.projects.GetProject(ctx, phase.ProjectID)
	if err != nil {
		return nil, nil, nil, notFound(err, "project", phase.ProjectID)
	}
	return d, phase, project, nil
}

// BuildPrompt assembles the generation prompt.
func BuildPrompt(project *model.Project, phase *model.Phase, d *model.Deliverable, instructions string) string {
	var b strings.Builder
	b.WriteString("You are drafting a project deliverable document.\n\n")
	fmt.Fprintf(&b, "Project: %s\n", project.Title)
	if project.Description != "" {
		fmt.Fprintf(&b, "Project description: %s\n", project.Description)
	}
	fmt.Fprintf(&b, "Phase %d: %s\n", phase.PhaseOrder, phase.Name)
	if phase.Description != "" {
		fmt.Fprintf(&b, "Phase description: %s\n", phase.Description)
	}
	fmt.Fprintf(&b, "Deliverable: %s\n", d.Title)
	if d.Description != "" {
		fmt.Fprintf(&b, "Deliverable description: %s\n", d.Description)
	}
	if d.DueDate != nil {
		fmt.Fprintf(&b, "Due: %s\n", d.DueDate.Format("2006-01-02"))
	}
	if existing := strings.TrimSpace(d.Content); existing != "" {
		b.WriteString("\nCurrent draft (revise it rather than starting over):\n")
		b.WriteString(existing)
		b.WriteString("\n")
	}
	if instructions = strings.TrimSpace(instructions); instructions != "" {
		b.WriteString("\nAdditional instructions:\n")
		b.WriteString(instructions)
		b.WriteString("\n")
	}
	b.WriteString("\nReturn the document body in Markdown.")
	return b.String()
}
