package services

import (
	"context"
	"fmt"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/persistence"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/workflow"
)

// ErrExecutionNotFound is returned when an execution is not found.
var ErrExecutionNotFound = persistence.ErrExecutionNotFound

// Execution orchestrates workflow runs.
type Execution struct {
	persistence persistence.Persistence
	engine      *workflow.Engine
}

// NewExecution creates a new execution service.
func NewExecution(p persistence.Persistence, engine *workflow.Engine) *Execution {
	return &Execution{
		persistence: p,
		engine:      engine,
	}
}

// Start runs a workflow with the given trigger context.
func (s *Execution) Start(ctx context.Context, workflowID string, triggerType models.TriggerType, triggeredBy string, input map[string]any) (*models.WorkflowExecution, error) {
	if workflowID == "" {
		return nil, fmt.Errorf("%w: workflow id is required", ErrInvalidRequest)
	}

	if triggerType == "" {
		triggerType = models.TriggerTypeManual
	}

	return s.engine.Start(ctx, workflowID, triggerType, triggeredBy, input)
}

// Get loads an execution by id.
func (s *Execution) Get(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	return s.persistence.ExecutionRepository().GetByID(ctx, id)
}

// ListByWorkflow returns all executions of one workflow.
func (s *Execution) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	return s.persistence.ExecutionRepository().GetByWorkflow(ctx, workflowID)
}

// ListByStatus returns all executions in the given status.
func (s *Execution) ListByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.WorkflowExecution, error) {
	return s.persistence.ExecutionRepository().GetByStatus(ctx, status)
}

// Resume continues a waiting execution at the given node.
func (s *Execution) Resume(ctx context.Context, executionID, nodeID string, resumeData map[string]any) (*models.WorkflowExecution, error) {
	execution, err := s.persistence.ExecutionRepository().GetByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if execution.Status != models.ExecutionStatusWaiting && execution.Status != models.ExecutionStatusPaused {
		return nil, fmt.Errorf("%w: execution %s is %s", ErrExecutionNotResumable, executionID, execution.Status)
	}

	return s.engine.Resume(ctx, executionID, nodeID, resumeData)
}

// Pause holds a waiting execution out of the resume sweeps until an
// explicit resume. Only waiting executions can be paused.
func (s *Execution) Pause(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	execution, err := s.persistence.ExecutionRepository().GetByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if execution.Status != models.ExecutionStatusWaiting {
		return nil, fmt.Errorf("%w: execution %s is %s", ErrExecutionNotPausable, executionID, execution.Status)
	}

	execution.Status = models.ExecutionStatusPaused

	if err := s.persistence.ExecutionRepository().Save(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to save execution: %w", err)
	}

	return execution, nil
}

// Cancel aborts a running or waiting execution and closes its open tasks.
func (s *Execution) Cancel(ctx context.Context, executionID, cancelledBy string) (*models.WorkflowExecution, error) {
	execution, err := s.engine.Cancel(ctx, executionID, cancelledBy)
	if err != nil {
		return nil, err
	}

	tasks, err := s.persistence.TaskRepository().GetByExecution(ctx, executionID)
	if err != nil {
		return execution, fmt.Errorf("failed to list tasks for cancelled execution: %w", err)
	}

	for _, task := range tasks {
		if !task.IsOpen() {
			continue
		}

		task.Transition(models.TaskStatusCancelled, cancelledBy)

		if err := s.persistence.TaskRepository().Save(ctx, task); err != nil {
			return execution, fmt.Errorf("failed to cancel task %s: %w", task.ID, err)
		}
	}

	return execution, nil
}

// ResumeDue re-dispatches waiting executions whose delay has elapsed. The
// scheduler calls this on a fixed interval.
func (s *Execution) ResumeDue(ctx context.Context) (int, error) {
	waiting, err := s.persistence.ExecutionRepository().GetByStatus(ctx, models.ExecutionStatusWaiting)
	if err != nil {
		return 0, fmt.Errorf("failed to list waiting executions: %w", err)
	}

	resumed := 0

	for _, execution := range waiting {
		if execution.WaitUntil == nil || !execution.WaitUntil.Before(nowUTC()) {
			continue
		}

		definition, err := s.persistence.WorkflowRepository().GetByID(ctx, execution.WorkflowID)
		if err != nil {
			continue
		}

		// Resume each parked delay node that has come due.
		for _, nodeID := range execution.CurrentNodes {
			node, ok := definition.NodeByID(nodeID)
			if !ok || node.Type != models.NodeTypeDelay {
				continue
			}

			if _, err := s.engine.Resume(ctx, execution.ID, nodeID, nil); err == nil {
				resumed++
			}

			break
		}
	}

	return resumed, nil
}
