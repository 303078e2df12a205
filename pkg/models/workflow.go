// Package models defines the core domain models for node-based process automation.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow definition.
type WorkflowStatus string

const (
	WorkflowStatusDraft     WorkflowStatus = "draft"     // Editable, executable only via manual/test triggers
	WorkflowStatusPublished WorkflowStatus = "published" // Immutable snapshot, executable
	WorkflowStatusArchived  WorkflowStatus = "archived"  // Historical, not executable
)

// NodeType identifies the executor a node dispatches to.
type NodeType string

const (
	NodeTypeStart        NodeType = "start"
	NodeTypeEnd          NodeType = "end"
	NodeTypeTask         NodeType = "task"
	NodeTypeLog          NodeType = "log"
	NodeTypeSetVariable  NodeType = "setVariable"
	NodeTypeHTTPRequest  NodeType = "httpRequest"
	NodeTypeDecision     NodeType = "decision"
	NodeTypeBusinessRule NodeType = "businessRule"
	NodeTypeSwitch       NodeType = "switch"
	NodeTypeLoop         NodeType = "loop"
	NodeTypeDelay        NodeType = "delay"
	NodeTypeParallel     NodeType = "parallel"
	NodeTypeJoin         NodeType = "join"
	NodeTypeApproval     NodeType = "approval"
	NodeTypeForm         NodeType = "form"
	NodeTypeSubworkflow  NodeType = "subworkflow"
)

// ErrorPolicy controls what the engine does when a node fails.
type ErrorPolicy string

const (
	ErrorPolicyStop     ErrorPolicy = "stop"     // Fail the whole execution (default)
	ErrorPolicyContinue ErrorPolicy = "continue" // Advance past the node with a warning
	ErrorPolicyGoto     ErrorPolicy = "goto"     // Jump to ErrorTargetNodeID
)

// Node is one step of a workflow definition.
type Node struct {
	ID                string         `json:"id"                             validate:"required"`
	Type              NodeType       `json:"type"                           validate:"required"`
	Name              string         `json:"name"`
	PositionX         int            `json:"position_x"`
	PositionY         int            `json:"position_y"`
	Config            map[string]any `json:"config,omitempty"`
	Condition         string         `json:"condition,omitempty"` // Guard expression, skipped when false
	Disabled          bool           `json:"disabled,omitempty"`
	OnError           ErrorPolicy    `json:"on_error,omitempty"`
	ErrorTargetNodeID string         `json:"error_target_node_id,omitempty"`
}

// Edge is a directed, optionally conditioned transition between two nodes.
// Higher priority edges are evaluated first.
type Edge struct {
	ID        string `json:"id"        validate:"required"`
	Source    string `json:"source"    validate:"required"`
	Target    string `json:"target"    validate:"required"`
	Condition string `json:"condition,omitempty"`
	Label     string `json:"label,omitempty"`
	Priority  int    `json:"priority,omitempty"`
}

// TriggerType classifies how an execution was started. Manual and test
// triggers may run draft definitions and auto-complete human tasks.
type TriggerType string

const (
	TriggerTypeManual   TriggerType = "manual"
	TriggerTypeTest     TriggerType = "test"
	TriggerTypeWebhook  TriggerType = "webhook"
	TriggerTypeSchedule TriggerType = "schedule"
	TriggerTypeEvent    TriggerType = "event"
)

// Trigger declares how a workflow may be started.
type Trigger struct {
	ID     string         `json:"id"`
	Type   TriggerType    `json:"type"`
	Config map[string]any `json:"config,omitempty"`
}

// VariableDefinition declares a workflow variable and its default.
type VariableDefinition struct {
	Name         string `json:"name" validate:"required"`
	Type         string `json:"type,omitempty"`
	DefaultValue any    `json:"default_value,omitempty"`
	Required     bool   `json:"required,omitempty"`
}

// WorkflowSettings carries execution policy for the whole definition.
type WorkflowSettings struct {
	TimeoutSeconds int         `json:"timeout_seconds,omitempty"`
	MaxRetries     int         `json:"max_retries,omitempty"`
	MaxConcurrency int         `json:"max_concurrency,omitempty"`
	DefaultOnError ErrorPolicy `json:"default_on_error,omitempty"`
	LogLevel       string      `json:"log_level,omitempty"`
}

// WorkflowDefinition is a versioned graph of typed nodes. Published versions
// are immutable snapshots; drafts may be edited freely.
type WorkflowDefinition struct {
	ID          string               `json:"id"`
	GroupID     string               `json:"group_id"` // Stable ID linking all versions
	Name        string               `json:"name"        validate:"required,min=3"`
	Description string               `json:"description"`
	Status      WorkflowStatus       `json:"status"      validate:"required"`
	Version     int                  `json:"version"`
	Nodes       []*Node              `json:"nodes"`
	Edges       []*Edge              `json:"edges"`
	Triggers    []*Trigger           `json:"triggers,omitempty"`
	Variables   []VariableDefinition `json:"variables,omitempty"`
	Settings    WorkflowSettings     `json:"settings"`
	Owner       string               `json:"owner,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
	PublishedAt *time.Time           `json:"published_at,omitempty"`
	PublishedBy string               `json:"published_by,omitempty"`
	DeletedAt   *time.Time           `json:"deleted_at,omitempty"`
}

// NodeByID resolves a node in the definition.
func (w *WorkflowDefinition) NodeByID(id string) (*Node, bool) {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node, true
		}
	}

	return nil, false
}

// StartNodes returns all nodes of type start.
func (w *WorkflowDefinition) StartNodes() []*Node {
	var starts []*Node

	for _, node := range w.Nodes {
		if node.Type == NodeTypeStart {
			starts = append(starts, node)
		}
	}

	return starts
}

// OutgoingEdges returns the edges leaving a node, highest priority first.
// Edges with equal priority keep their declaration order.
func (w *WorkflowDefinition) OutgoingEdges(nodeID string) []*Edge {
	var out []*Edge

	for _, edge := range w.Edges {
		if edge.Source == nodeID {
			out = append(out, edge)
		}
	}

	// Stable insertion sort keeps declaration order for equal priorities.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Priority > out[j-1].Priority; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}

	return out
}

// IncomingEdges returns the edges arriving at a node in declaration order.
func (w *WorkflowDefinition) IncomingEdges(nodeID string) []*Edge {
	var in []*Edge

	for _, edge := range w.Edges {
		if edge.Target == nodeID {
			in = append(in, edge)
		}
	}

	return in
}

// IsExecutable reports whether the definition may be run under the given
// trigger type. Drafts are only runnable manually or under test.
func (w *WorkflowDefinition) IsExecutable(triggerType TriggerType) bool {
	if w.Status == WorkflowStatusPublished {
		return true
	}

	return triggerType == TriggerTypeManual || triggerType == TriggerTypeTest
}
