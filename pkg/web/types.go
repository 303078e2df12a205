// Package web provides the REST API over workflows, executions, human
// tasks and decision tables.
package web

import "github.com/Nirvasoft/FlowForge-sub003/pkg/models"

// CreateWorkflowRequest is the body for creating a new draft workflow.
type CreateWorkflowRequest struct {
	Name        string                      `json:"name"        validate:"required,min=3"`
	Description string                      `json:"description"`
	Nodes       []*models.Node              `json:"nodes"`
	Edges       []*models.Edge              `json:"edges"`
	Triggers    []*models.Trigger           `json:"triggers,omitempty"`
	Variables   []models.VariableDefinition `json:"variables,omitempty"`
	Settings    models.WorkflowSettings     `json:"settings"`
	Owner       string                      `json:"owner,omitempty"`
}

// UpdateWorkflowRequest is the body for replacing a draft workflow's
// definition. Lifecycle fields are managed by the server.
type UpdateWorkflowRequest struct {
	Name        string                      `json:"name"        validate:"required,min=3"`
	Description string                      `json:"description"`
	Nodes       []*models.Node              `json:"nodes"`
	Edges       []*models.Edge              `json:"edges"`
	Triggers    []*models.Trigger           `json:"triggers,omitempty"`
	Variables   []models.VariableDefinition `json:"variables,omitempty"`
	Settings    models.WorkflowSettings     `json:"settings"`
}

// PublishRequest names who is publishing.
type PublishRequest struct {
	PublishedBy string `json:"published_by"`
}

// StartExecutionRequest is the body for starting a workflow run.
type StartExecutionRequest struct {
	TriggerType models.TriggerType `json:"trigger_type"`
	TriggeredBy string             `json:"triggered_by"`
	Input       map[string]any     `json:"input,omitempty"`
}

// ResumeExecutionRequest continues a waiting execution at a node.
type ResumeExecutionRequest struct {
	NodeID string         `json:"node_id" validate:"required"`
	Data   map[string]any `json:"data,omitempty"`
}

// CancelExecutionRequest aborts an execution.
type CancelExecutionRequest struct {
	CancelledBy string `json:"cancelled_by"`
}

// ClaimTaskRequest assigns a task to an actor.
type ClaimTaskRequest struct {
	Actor string `json:"actor" validate:"required"`
}

// CompleteTaskRequest records a task outcome.
type CompleteTaskRequest struct {
	Actor    string         `json:"actor"   validate:"required"`
	Outcome  string         `json:"outcome" validate:"required"`
	Response map[string]any `json:"response,omitempty"`
}

// CreateTableRequest is the body for creating a draft decision table.
type CreateTableRequest struct {
	Name        string                  `json:"name"       validate:"required,min=3"`
	Slug        string                  `json:"slug,omitempty"`
	Description string                  `json:"description,omitempty"`
	Inputs      []models.DecisionInput  `json:"inputs"`
	Outputs     []models.DecisionOutput `json:"outputs"`
	Rules       []*models.DecisionRule  `json:"rules"`
	HitPolicy   models.HitPolicy        `json:"hit_policy" validate:"required"`
	Settings    models.TableSettings    `json:"settings"`
}

// EvaluateRequest runs a table against an input bag.
type EvaluateRequest struct {
	Inputs map[string]any `json:"inputs"`
	Source string         `json:"source,omitempty"`
}
