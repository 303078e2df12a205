package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/eventbus"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/events"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/persistence"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/workflow"
)

// ErrTaskNotFound is returned when a task is not found.
var ErrTaskNotFound = persistence.ErrTaskNotFound

// Task manages human tasks: claiming, completing and cancelling them.
// Completing a task resumes the owning execution.
type Task struct {
	persistence persistence.Persistence
	engine      *workflow.Engine
	publisher   eventbus.EventPublisher
}

// NewTask creates a new task service.
func NewTask(p persistence.Persistence, engine *workflow.Engine, publisher eventbus.EventPublisher) *Task {
	return &Task{
		persistence: p,
		engine:      engine,
		publisher:   publisher,
	}
}

// CreateTask persists a task raised by a node executor and announces it.
// Implements the task creator port.
func (s *Task) CreateTask(ctx context.Context, task *models.HumanTask) error {
	if err := s.persistence.TaskRepository().Save(ctx, task); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	s.publish(ctx, task.ID, events.TaskCreated{
		BaseEvent:   events.NewBaseEvent(events.TaskCreatedEvent, task.WorkflowID),
		TaskID:      task.ID,
		ExecutionID: task.ExecutionID,
		NodeID:      task.NodeID,
		TaskType:    task.Type,
		Assignees:   task.Assignees,
	})

	return nil
}

// Get loads a task by id.
func (s *Task) Get(ctx context.Context, id string) (*models.HumanTask, error) {
	return s.persistence.TaskRepository().GetByID(ctx, id)
}

// ListByExecution returns all tasks raised by one execution.
func (s *Task) ListByExecution(ctx context.Context, executionID string) ([]*models.HumanTask, error) {
	return s.persistence.TaskRepository().GetByExecution(ctx, executionID)
}

// Claim assigns an open task to an actor. A task claimed by someone else
// cannot be claimed again until released.
func (s *Task) Claim(ctx context.Context, taskID, actor string) (*models.HumanTask, error) {
	task, err := s.persistence.TaskRepository().GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if !task.IsOpen() {
		return nil, fmt.Errorf("%w: task %s is %s", ErrTaskNotOpen, taskID, task.Status)
	}

	if task.Status == models.TaskStatusClaimed && task.ClaimedBy != actor {
		return nil, fmt.Errorf("%w: claimed by %s", ErrTaskClaimedByOther, task.ClaimedBy)
	}

	if len(task.Assignees) > 0 && !slices.Contains(task.Assignees, actor) {
		return nil, fmt.Errorf("%w: %s is not an assignee", ErrTaskTransitionRejected, actor)
	}

	task.ClaimedBy = actor
	task.Transition(models.TaskStatusClaimed, actor)

	if err := s.persistence.TaskRepository().Save(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to save claimed task: %w", err)
	}

	s.publish(ctx, task.ID, events.TaskClaimed{
		BaseEvent: events.NewBaseEvent(events.TaskClaimedEvent, task.WorkflowID),
		TaskID:    task.ID,
		ClaimedBy: actor,
	})

	return task, nil
}

// Complete records the outcome and response of a task and resumes the
// owning execution past the originating node.
func (s *Task) Complete(ctx context.Context, taskID, actor, outcome string, response map[string]any) (*models.HumanTask, error) {
	task, err := s.persistence.TaskRepository().GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if !task.IsOpen() {
		return nil, fmt.Errorf("%w: task %s is %s", ErrTaskNotOpen, taskID, task.Status)
	}

	if task.Status == models.TaskStatusClaimed && task.ClaimedBy != actor {
		return nil, fmt.Errorf("%w: claimed by %s", ErrTaskClaimedByOther, task.ClaimedBy)
	}

	now := time.Now().UTC()
	task.Outcome = outcome
	task.Response = response
	task.CompletedAt = &now
	task.Transition(models.TaskStatusCompleted, actor)

	if err := s.persistence.TaskRepository().Save(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to save completed task: %w", err)
	}

	s.publish(ctx, task.ID, events.TaskCompleted{
		BaseEvent:   events.NewBaseEvent(events.TaskCompletedEvent, task.WorkflowID),
		TaskID:      task.ID,
		ExecutionID: task.ExecutionID,
		NodeID:      task.NodeID,
		Outcome:     outcome,
		Response:    response,
		CompletedBy: actor,
	})

	resumeData := map[string]any{
		fmt.Sprintf("_task_%s_outcome", task.NodeID): outcome,
	}

	for k, v := range response {
		resumeData[k] = v
	}

	execution, err := s.engine.Resume(ctx, task.ExecutionID, task.NodeID, resumeData)
	if err != nil {
		return task, fmt.Errorf("task completed but resume failed: %w", err)
	}

	execution.Metrics.TasksCompleted++

	if err := s.persistence.ExecutionRepository().Save(ctx, execution); err != nil {
		return task, fmt.Errorf("failed to save execution metrics: %w", err)
	}

	return task, nil
}

// Cancel closes a task without resuming the execution.
func (s *Task) Cancel(ctx context.Context, taskID, actor string) (*models.HumanTask, error) {
	task, err := s.persistence.TaskRepository().GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if !task.IsOpen() {
		return nil, fmt.Errorf("%w: task %s is %s", ErrTaskNotOpen, taskID, task.Status)
	}

	task.Transition(models.TaskStatusCancelled, actor)

	if err := s.persistence.TaskRepository().Save(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to save cancelled task: %w", err)
	}

	s.publish(ctx, task.ID, events.TaskCancelled{
		BaseEvent:   events.NewBaseEvent(events.TaskCancelledEvent, task.WorkflowID),
		TaskID:      task.ID,
		CancelledBy: actor,
	})

	return task, nil
}

// ListOverdue returns open tasks whose due date has passed.
func (s *Task) ListOverdue(ctx context.Context) ([]*models.HumanTask, error) {
	return s.persistence.TaskRepository().GetOpenDueBefore(ctx, nowUTC())
}

func (s *Task) publish(ctx context.Context, key string, event events.Event) {
	if s.publisher == nil {
		return
	}

	_ = s.publisher.Publish(ctx, key, event)
}
