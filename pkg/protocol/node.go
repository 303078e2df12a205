// Package protocol defines the contracts between the workflow engine and
// the node executors it dispatches.
package protocol

import (
	"context"
	"net/http"
	"time"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
)

// NodeStatus is the outcome status a node executor reports.
type NodeStatus string

const (
	NodeStatusCompleted NodeStatus = "completed"
	NodeStatusFailed    NodeStatus = "failed"
	NodeStatusWaiting   NodeStatus = "waiting"
	NodeStatusSkipped   NodeStatus = "skipped"
)

// Result is what a node executor hands back to the engine. Completed
// results carry the output variables to merge; waiting results name the
// task (or resume time) the execution is parked on; branching executors
// pre-select their successors through NextNodes. NextSelected marks the
// selection as authoritative, so an empty NextNodes means "no successors"
// rather than "fall back to the outgoing edges".
type Result struct {
	Status        NodeStatus
	Output        map[string]any
	NextNodes     []string
	NextSelected  bool
	Err           error
	WaitForTaskID string
	ResumeAt      *time.Time
}

// Completed builds a successful result with the given output variables.
func Completed(output map[string]any) Result {
	return Result{Status: NodeStatusCompleted, Output: output}
}

// CompletedWithNext builds a successful result that pre-selects successor
// nodes. The selection is authoritative even when empty.
func CompletedWithNext(output map[string]any, nextNodes ...string) Result {
	return Result{Status: NodeStatusCompleted, Output: output, NextNodes: nextNodes, NextSelected: true}
}

// Failed builds a failed result.
func Failed(err error) Result {
	return Result{Status: NodeStatusFailed, Err: err}
}

// WaitingForTask builds a waiting result parked on a human task.
func WaitingForTask(taskID string) Result {
	return Result{Status: NodeStatusWaiting, WaitForTaskID: taskID}
}

// NodeExecutor executes a single node within a running execution. The
// executor reads variables through the execution context and must not
// mutate them directly; outputs flow back through the result.
type NodeExecutor interface {
	Execute(ctx context.Context, ectx *models.ExecutionContext, node *models.Node) Result
}

// NodeFactory creates executors for one node type and describes the config
// shape it accepts.
type NodeFactory interface {
	// Type returns the node type this factory builds executors for.
	Type() models.NodeType

	// Schema returns a JSON schema document for the node config.
	Schema() map[string]any

	// Create builds an executor from the shared dependencies.
	Create(deps Dependencies) (NodeExecutor, error)
}

// TaskCreator persists human tasks raised by approval and form nodes.
type TaskCreator interface {
	CreateTask(ctx context.Context, task *models.HumanTask) error
}

// DecisionEvaluator evaluates a stored decision table against an input bag.
type DecisionEvaluator interface {
	EvaluateTable(ctx context.Context, tableRef string, inputs map[string]any, source string) (*models.EvaluationResult, error)
}

// SubworkflowRunner starts a nested execution and blocks until it reaches a
// terminal state, returning its output variables.
type SubworkflowRunner interface {
	RunSubworkflow(ctx context.Context, workflowID string, inputs map[string]any, parentExecutionID string) (map[string]any, error)
}

// Dependencies carries the collaborators node executors may need. Factories
// pick what they use; unused fields stay nil.
type Dependencies struct {
	TaskCreator       TaskCreator
	DecisionEvaluator DecisionEvaluator
	SubworkflowRunner SubworkflowRunner
	HTTPClient        *http.Client
}
