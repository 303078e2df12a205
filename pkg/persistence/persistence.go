// Package persistence provides the data storage abstraction for workflow
// definitions, executions, human tasks and decision tables.
package persistence

import (
	"context"
	"time"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
)

// WorkflowRepository stores workflow definitions.
type WorkflowRepository interface {
	Save(ctx context.Context, workflow *models.WorkflowDefinition) error
	GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	GetAll(ctx context.Context) ([]*models.WorkflowDefinition, error)
	Delete(ctx context.Context, id string) error
}

// ExecutionRepository stores workflow executions. Save is an upsert; the
// store serializes concurrent updates to the same execution id.
type ExecutionRepository interface {
	Save(ctx context.Context, execution *models.WorkflowExecution) error
	GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error)
	GetByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error)
	GetByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.WorkflowExecution, error)
}

// TaskRepository stores human tasks.
type TaskRepository interface {
	Save(ctx context.Context, task *models.HumanTask) error
	GetByID(ctx context.Context, id string) (*models.HumanTask, error)
	GetByExecution(ctx context.Context, executionID string) ([]*models.HumanTask, error)
	GetOpenDueBefore(ctx context.Context, deadline time.Time) ([]*models.HumanTask, error)
}

// DecisionTableRepository stores decision tables, addressable by id and by a
// human-readable slug.
type DecisionTableRepository interface {
	Save(ctx context.Context, table *models.DecisionTable) error
	GetByID(ctx context.Context, id string) (*models.DecisionTable, error)
	GetBySlug(ctx context.Context, slug string) (*models.DecisionTable, error)
	GetAll(ctx context.Context) ([]*models.DecisionTable, error)
	Delete(ctx context.Context, id string) error
}

// Persistence aggregates the repositories behind one backing store.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	TaskRepository() TaskRepository
	DecisionTableRepository() DecisionTableRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
