package models

import "time"

// TaskStatus is the lifecycle state of a human task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusClaimed   TaskStatus = "claimed"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// TaskType distinguishes the node kinds that create tasks.
type TaskType string

const (
	TaskTypeApproval TaskType = "approval"
	TaskTypeForm     TaskType = "form"
	TaskTypeGeneric  TaskType = "task"
)

// TaskTransition is one entry of a task's append-only history.
type TaskTransition struct {
	From      TaskStatus `json:"from"`
	To        TaskStatus `json:"to"`
	Actor     string     `json:"actor,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// HumanTask is a unit of work requiring an external actor's decision before
// its execution can proceed past the originating node. Completing a task is
// the sole external trigger that resumes the execution.
type HumanTask struct {
	ID          string           `json:"id"`
	ExecutionID string           `json:"execution_id" validate:"required"`
	WorkflowID  string           `json:"workflow_id"`
	NodeID      string           `json:"node_id"      validate:"required"`
	Type        TaskType         `json:"type"`
	Title       string           `json:"title"`
	Assignees   []string         `json:"assignees,omitempty"`
	ClaimedBy   string           `json:"claimed_by,omitempty"`
	Status      TaskStatus       `json:"status"`
	DueDate     *time.Time       `json:"due_date,omitempty"`
	FormPayload map[string]any   `json:"form_payload,omitempty"`
	Response    map[string]any   `json:"response,omitempty"`
	Outcome     string           `json:"outcome,omitempty"`
	History     []TaskTransition `json:"history,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// Transition moves the task to a new status and appends to its history.
func (t *HumanTask) Transition(to TaskStatus, actor string) {
	t.History = append(t.History, TaskTransition{
		From:      t.Status,
		To:        to,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
	})
	t.Status = to
}

// IsOpen reports whether the task still blocks its execution.
func (t *HumanTask) IsOpen() bool {
	return t.Status == TaskStatusPending || t.Status == TaskStatusClaimed
}
