package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/persistence"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/workflow"
)

// ErrWorkflowNotFound is returned when a workflow is not found.
var ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

// Workflow manages workflow definitions and their lifecycle.
type Workflow struct {
	persistence persistence.Persistence
	publishing  *workflow.PublishingService
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(p persistence.Persistence, publishing *workflow.PublishingService) *Workflow {
	return &Workflow{
		persistence: p,
		publishing:  publishing,
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	if err := w.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Create stores a new draft workflow.
func (w *Workflow) Create(ctx context.Context, definition *models.WorkflowDefinition) (*models.WorkflowDefinition, error) {
	if definition == nil {
		return nil, ErrWorkflowNil
	}

	if definition.Name == "" {
		return nil, ErrWorkflowNameRequired
	}

	now := time.Now().UTC()
	definition.ID = uuid.New().String()
	definition.Status = models.WorkflowStatusDraft
	definition.Version = 0
	definition.CreatedAt = now
	definition.UpdatedAt = now

	if definition.GroupID == "" {
		definition.GroupID = definition.ID
	}

	if err := w.persistence.WorkflowRepository().Save(ctx, definition); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	return definition, nil
}

// Get loads a workflow by id.
func (w *Workflow) Get(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	return w.persistence.WorkflowRepository().GetByID(ctx, id)
}

// List returns all workflows, newest first.
func (w *Workflow) List(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	workflows, err := w.persistence.WorkflowRepository().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return workflows, nil
}

// Update replaces a draft workflow's definition. Published versions are
// immutable; edit them through a new draft version.
func (w *Workflow) Update(ctx context.Context, definition *models.WorkflowDefinition) (*models.WorkflowDefinition, error) {
	if definition == nil {
		return nil, ErrWorkflowNil
	}

	existing, err := w.persistence.WorkflowRepository().GetByID(ctx, definition.ID)
	if err != nil {
		return nil, err
	}

	if existing.Status == models.WorkflowStatusPublished {
		return nil, ErrCannotModifyPublished
	}

	definition.GroupID = existing.GroupID
	definition.Status = existing.Status
	definition.Version = existing.Version
	definition.CreatedAt = existing.CreatedAt
	definition.UpdatedAt = time.Now().UTC()

	if err := w.persistence.WorkflowRepository().Save(ctx, definition); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	return definition, nil
}

// Delete removes a workflow. Published workflows must be unpublished first.
func (w *Workflow) Delete(ctx context.Context, id string) error {
	existing, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return err
	}

	if existing.Status == models.WorkflowStatusPublished {
		return ErrCannotDeletePublished
	}

	return w.persistence.WorkflowRepository().Delete(ctx, id)
}

// Publish validates and publishes a workflow.
func (w *Workflow) Publish(ctx context.Context, id, publishedBy string) (*models.WorkflowDefinition, error) {
	return w.publishing.Publish(ctx, id, publishedBy)
}

// Unpublish reverts a workflow to draft.
func (w *Workflow) Unpublish(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	return w.publishing.Unpublish(ctx, id)
}

// NewDraftVersion clones a workflow into a fresh editable draft.
func (w *Workflow) NewDraftVersion(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	return w.publishing.NewDraftVersion(ctx, id)
}
