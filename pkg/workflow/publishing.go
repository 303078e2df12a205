package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/eventbus"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/persistence"
)

// Workflow publishing validation errors.
var (
	ErrNoStartNode        = errors.New("workflow has no start node")
	ErrMultipleStartNodes = errors.New("workflow has more than one start node")
	ErrDanglingEdge       = errors.New("edge references a missing node")
	ErrDuplicateNodeID    = errors.New("duplicate node id")
	ErrArchivedWorkflow   = errors.New("cannot publish an archived workflow")
)

// PublishingService handles workflow lifecycle transitions. Published
// versions are immutable; edits go through a new draft version.
type PublishingService struct {
	workflows persistence.WorkflowRepository
	publisher eventbus.EventPublisher
	validate  *validator.Validate
}

func NewPublishingService(workflows persistence.WorkflowRepository, publisher eventbus.EventPublisher) *PublishingService {
	return &PublishingService{
		workflows: workflows,
		publisher: publisher,
		validate:  validator.New(),
	}
}

// Publish validates the definition, bumps its version and snapshots the
// publication metadata.
func (s *PublishingService) Publish(ctx context.Context, workflowID, publishedBy string) (*models.WorkflowDefinition, error) {
	definition, err := s.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}

	if err := s.ValidateForPublishing(definition); err != nil {
		return nil, fmt.Errorf("workflow validation failed: %w", err)
	}

	now := time.Now().UTC()
	definition.Status = models.WorkflowStatusPublished
	definition.Version++
	definition.PublishedAt = &now
	definition.PublishedBy = publishedBy
	definition.UpdatedAt = now

	if err := s.workflows.Save(ctx, definition); err != nil {
		return nil, fmt.Errorf("failed to save published workflow: %w", err)
	}

	return definition, nil
}

// Unpublish reverts a published workflow to draft.
func (s *PublishingService) Unpublish(ctx context.Context, workflowID string) (*models.WorkflowDefinition, error) {
	definition, err := s.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}

	if definition.Status != models.WorkflowStatusPublished {
		return nil, fmt.Errorf("workflow %s is not published", workflowID)
	}

	definition.Status = models.WorkflowStatusDraft
	definition.PublishedAt = nil
	definition.PublishedBy = ""
	definition.UpdatedAt = time.Now().UTC()

	if err := s.workflows.Save(ctx, definition); err != nil {
		return nil, fmt.Errorf("failed to save workflow after unpublishing: %w", err)
	}

	return definition, nil
}

// NewDraftVersion clones a published workflow into a fresh editable draft
// sharing the same group id.
func (s *PublishingService) NewDraftVersion(ctx context.Context, workflowID string) (*models.WorkflowDefinition, error) {
	definition, err := s.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}

	draft := *definition
	draft.ID = uuid.New().String()
	draft.Status = models.WorkflowStatusDraft
	draft.PublishedAt = nil
	draft.PublishedBy = ""
	draft.CreatedAt = time.Now().UTC()
	draft.UpdatedAt = draft.CreatedAt

	if draft.GroupID == "" {
		draft.GroupID = definition.ID
	}

	if err := s.workflows.Save(ctx, &draft); err != nil {
		return nil, fmt.Errorf("failed to save draft version: %w", err)
	}

	return &draft, nil
}

// ValidateForPublishing checks the structural invariants published
// workflows must satisfy.
func (s *PublishingService) ValidateForPublishing(definition *models.WorkflowDefinition) error {
	if definition.Status == models.WorkflowStatusArchived {
		return ErrArchivedWorkflow
	}

	if err := s.validate.Struct(definition); err != nil {
		return fmt.Errorf("invalid workflow definition: %w", err)
	}

	switch starts := len(definition.StartNodes()); {
	case starts == 0:
		return ErrNoStartNode
	case starts > 1:
		return ErrMultipleStartNodes
	}

	seen := make(map[string]bool, len(definition.Nodes))

	for _, node := range definition.Nodes {
		if seen[node.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateNodeID, node.ID)
		}

		seen[node.ID] = true
	}

	for _, edge := range definition.Edges {
		if !seen[edge.Source] || !seen[edge.Target] {
			return fmt.Errorf("%w: edge %s (%s -> %s)", ErrDanglingEdge, edge.ID, edge.Source, edge.Target)
		}
	}

	return nil
}
