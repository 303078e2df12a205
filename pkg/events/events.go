// Package events defines event types and structures for workflow lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
)

type EventType string

// Kafka topics.
const ExecutionTopic = "flowforge.workflow.executions" // Execution lifecycle events
const TaskTopic = "flowforge.tasks"                    // Human task events
const DecisionTopic = "flowforge.decisions"            // Decision evaluation events

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Execution lifecycle events.
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionWaitingEvent   EventType = "execution.waiting"
	ExecutionResumedEvent   EventType = "execution.resumed"
	ExecutionCancelledEvent EventType = "execution.cancelled"

	// Node events.
	NodeCompletedEvent EventType = "node.completed"
	NodeFailedEvent    EventType = "node.failed"

	// Human task events.
	TaskCreatedEvent   EventType = "task.created"
	TaskClaimedEvent   EventType = "task.claimed"
	TaskCompletedEvent EventType = "task.completed"
	TaskCancelledEvent EventType = "task.cancelled"

	// Decision table events.
	TableEvaluatedEvent EventType = "decision.evaluated"
	TablePublishedEvent EventType = "decision.published"
)

// Event is anything the bus can carry.
type Event interface {
	GetType() EventType
}

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent creates the shared envelope for an event.
func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string             `json:"execution_id"`
	TriggerType models.TriggerType `json:"trigger_type"`
	TriggeredBy string             `json:"triggered_by,omitempty"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	Output      map[string]any `json:"output,omitempty"`
	DurationMs  int64          `json:"duration_ms"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id,omitempty"`
	Code        string `json:"code,omitempty"`
	Error       string `json:"error"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionWaiting struct {
	BaseEvent

	ExecutionID  string   `json:"execution_id"`
	WaitingNodes []string `json:"waiting_nodes"`
	TaskIDs      []string `json:"task_ids,omitempty"`
}

func (e ExecutionWaiting) GetType() EventType {
	return ExecutionWaitingEvent
}

type ExecutionResumed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id"`
	TaskID      string `json:"task_id,omitempty"`
}

func (e ExecutionResumed) GetType() EventType {
	return ExecutionResumedEvent
}

type ExecutionCancelled struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	CancelledBy string `json:"cancelled_by,omitempty"`
}

func (e ExecutionCancelled) GetType() EventType {
	return ExecutionCancelledEvent
}

type NodeCompleted struct {
	BaseEvent

	ExecutionID string          `json:"execution_id"`
	NodeID      string          `json:"node_id"`
	NodeType    models.NodeType `json:"node_type"`
	Output      map[string]any  `json:"output,omitempty"`
	DurationMs  int64           `json:"duration_ms"`
}

func (e NodeCompleted) GetType() EventType {
	return NodeCompletedEvent
}

type NodeFailed struct {
	BaseEvent

	ExecutionID string          `json:"execution_id"`
	NodeID      string          `json:"node_id"`
	NodeType    models.NodeType `json:"node_type"`
	Error       string          `json:"error"`
}

func (e NodeFailed) GetType() EventType {
	return NodeFailedEvent
}

type TaskCreated struct {
	BaseEvent

	TaskID      string          `json:"task_id"`
	ExecutionID string          `json:"execution_id"`
	NodeID      string          `json:"node_id"`
	TaskType    models.TaskType `json:"task_type"`
	Assignees   []string        `json:"assignees,omitempty"`
}

func (e TaskCreated) GetType() EventType {
	return TaskCreatedEvent
}

type TaskClaimed struct {
	BaseEvent

	TaskID    string `json:"task_id"`
	ClaimedBy string `json:"claimed_by"`
}

func (e TaskClaimed) GetType() EventType {
	return TaskClaimedEvent
}

type TaskCompleted struct {
	BaseEvent

	TaskID      string         `json:"task_id"`
	ExecutionID string         `json:"execution_id"`
	NodeID      string         `json:"node_id"`
	Outcome     string         `json:"outcome,omitempty"`
	Response    map[string]any `json:"response,omitempty"`
	CompletedBy string         `json:"completed_by,omitempty"`
}

func (e TaskCompleted) GetType() EventType {
	return TaskCompletedEvent
}

type TaskCancelled struct {
	BaseEvent

	TaskID      string `json:"task_id"`
	CancelledBy string `json:"cancelled_by,omitempty"`
}

func (e TaskCancelled) GetType() EventType {
	return TaskCancelledEvent
}

type TableEvaluated struct {
	BaseEvent

	TableID      string   `json:"table_id"`
	TableVersion int      `json:"table_version"`
	Success      bool     `json:"success"`
	MatchedRules []string `json:"matched_rules,omitempty"`
	Source       string   `json:"source,omitempty"`
	DurationMs   int64    `json:"duration_ms"`
}

func (e TableEvaluated) GetType() EventType {
	return TableEvaluatedEvent
}

type TablePublished struct {
	BaseEvent

	TableID     string `json:"table_id"`
	Version     int    `json:"version"`
	PublishedBy string `json:"published_by,omitempty"`
}

func (e TablePublished) GetType() EventType {
	return TablePublishedEvent
}
