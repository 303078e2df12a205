package models

import (
	"log/slog"
	"time"
)

// ExecutionStatus is the lifecycle state of a single run.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusWaiting   ExecutionStatus = "waiting"
	ExecutionStatusPaused    ExecutionStatus = "paused"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// IsTerminal reports whether the status allows no further transitions.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed || s == ExecutionStatusCancelled
}

// ExecutionError is the structured failure surfaced to callers. Never a raw
// stack trace.
type ExecutionError struct {
	NodeID  string `json:"node_id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Stable error codes for structural failures.
const (
	ErrCodeNoStartNode       = "NO_START_NODE"
	ErrCodeNodeFailed        = "NODE_FAILED"
	ErrCodeMissingTable      = "MISSING_DECISION_TABLE"
	ErrCodeDefinitionInvalid = "DEFINITION_INVALID"
)

// ExecutionLog is one structured log line recorded on the execution itself.
type ExecutionLog struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	NodeID    string    `json:"node_id,omitempty"`
	Message   string    `json:"message"`
}

// ExecutionMetrics accumulates counters over the life of an execution.
type ExecutionMetrics struct {
	NodesExecuted  int   `json:"nodes_executed"`
	TasksCreated   int   `json:"tasks_created"`
	TasksCompleted int   `json:"tasks_completed"`
	DurationMs     int64 `json:"duration_ms,omitempty"`
}

// WorkflowExecution is one run of a definition. The engine is the only
// writer; everything else reads it or hands it back for resumption.
type WorkflowExecution struct {
	ID             string           `json:"id"`
	WorkflowID     string           `json:"workflow_id"`
	Version        int              `json:"version"`
	Status         ExecutionStatus  `json:"status"`
	Variables      map[string]any   `json:"variables"`
	CurrentNodes   []string         `json:"current_nodes"`
	CompletedNodes []string         `json:"completed_nodes"`
	Logs           []ExecutionLog   `json:"logs,omitempty"`
	Metrics        ExecutionMetrics `json:"metrics"`
	Error          *ExecutionError  `json:"error,omitempty"`
	Output         map[string]any   `json:"output,omitempty"`
	TriggeredBy    string           `json:"triggered_by,omitempty"`
	TriggerType    TriggerType      `json:"trigger_type"`
	ParentID       string           `json:"parent_id,omitempty"`  // Set for subworkflow runs
	WaitUntil      *time.Time       `json:"wait_until,omitempty"` // Set when parked on a delay
	CreatedAt      time.Time        `json:"created_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
}

// HasCompleted reports whether a node id is already in CompletedNodes.
func (e *WorkflowExecution) HasCompleted(nodeID string) bool {
	for _, id := range e.CompletedNodes {
		if id == nodeID {
			return true
		}
	}

	return false
}

// MarkCompleted appends a node to CompletedNodes exactly once and removes it
// from the frontier.
func (e *WorkflowExecution) MarkCompleted(nodeID string) {
	if !e.HasCompleted(nodeID) {
		e.CompletedNodes = append(e.CompletedNodes, nodeID)
	}

	e.RemoveFromFrontier(nodeID)
}

// RemoveFromFrontier drops a node id from CurrentNodes.
func (e *WorkflowExecution) RemoveFromFrontier(nodeID string) {
	next := e.CurrentNodes[:0]

	for _, id := range e.CurrentNodes {
		if id != nodeID {
			next = append(next, id)
		}
	}

	e.CurrentNodes = next
}

// AddToFrontier appends a node id to CurrentNodes unless it is already
// present or already completed.
func (e *WorkflowExecution) AddToFrontier(nodeID string) {
	if e.HasCompleted(nodeID) {
		return
	}

	for _, id := range e.CurrentNodes {
		if id == nodeID {
			return
		}
	}

	e.CurrentNodes = append(e.CurrentNodes, nodeID)
}

// AppendLog records a structured log entry on the execution.
func (e *WorkflowExecution) AppendLog(level, nodeID, message string) {
	e.Logs = append(e.Logs, ExecutionLog{
		Timestamp: time.Now().UTC(),
		Level:     level,
		NodeID:    nodeID,
		Message:   message,
	})
}

// MergeVariables merges output into the variable context, later writes win.
func (e *WorkflowExecution) MergeVariables(output map[string]any) {
	if len(output) == 0 {
		return
	}

	if e.Variables == nil {
		e.Variables = make(map[string]any, len(output))
	}

	for k, v := range output {
		e.Variables[k] = v
	}
}

// ExecutionContext is the view of a running execution handed to node
// executors. It lives exactly as long as one traversal and is never shared
// across executions.
type ExecutionContext struct {
	Execution  *WorkflowExecution
	Definition *WorkflowDefinition
	Logger     *slog.Logger
	ResumeData map[string]any // Non-nil only on the resume path
}
