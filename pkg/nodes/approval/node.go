// Package approval implements the approval node, which raises a human task
// and parks the execution until someone records an outcome.
package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/expr"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) Type() models.NodeType {
	return models.NodeTypeApproval
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{
				"type":        "string",
				"description": "Task title. Values prefixed with '=' are evaluated as expressions.",
			},
			"assignees": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"due_in_hours": map[string]any{"type": "number"},
			"default_outcome": map[string]any{
				"type":        "string",
				"default":     "approved",
				"description": "Outcome recorded when interactive runs auto-complete the task",
			},
		},
	}
}

func (f *Factory) Create(deps protocol.Dependencies) (protocol.NodeExecutor, error) {
	return &Node{tasks: deps.TaskCreator}, nil
}

type Config struct {
	Title          string   `json:"title,omitempty"`
	Assignees      []string `json:"assignees,omitempty"`
	DueInHours     float64  `json:"due_in_hours,omitempty"`
	DefaultOutcome string   `json:"default_outcome,omitempty"`
}

type Node struct {
	tasks protocol.TaskCreator
}

func (n *Node) Execute(ctx context.Context, ectx *models.ExecutionContext, node *models.Node) protocol.Result {
	var config Config
	if err := protocol.DecodeConfig(node.Config, &config); err != nil {
		return protocol.Failed(err)
	}

	if config.DefaultOutcome == "" {
		config.DefaultOutcome = "approved"
	}

	// Interactive runs never block on human input: the task is considered
	// approved immediately.
	triggerType := ectx.Execution.TriggerType
	if triggerType == models.TriggerTypeManual || triggerType == models.TriggerTypeTest {
		ectx.Logger.Debug("Auto-completing approval for interactive run", "node_id", node.ID)

		return protocol.Completed(map[string]any{
			outcomeVariable(node.ID): config.DefaultOutcome,
		})
	}

	task := buildTask(ectx, node, config)

	if n.tasks == nil {
		return protocol.Failed(fmt.Errorf("approval node %s requires a task store", node.ID))
	}

	if err := n.tasks.CreateTask(ctx, task); err != nil {
		return protocol.Failed(fmt.Errorf("failed to create approval task: %w", err))
	}

	ectx.Execution.Metrics.TasksCreated++
	ectx.Logger.Info("Approval task created", "node_id", node.ID, "task_id", task.ID)

	return protocol.WaitingForTask(task.ID)
}

// outcomeVariable is the variable the engine stores a task outcome under
// when the execution resumes.
func outcomeVariable(nodeID string) string {
	return fmt.Sprintf("_task_%s_outcome", nodeID)
}

func buildTask(ectx *models.ExecutionContext, node *models.Node, config Config) *models.HumanTask {
	title := config.Title
	if title == "" {
		title = node.Name
	}

	if evaluated, err := interpolate(title, ectx.Execution.Variables); err == nil {
		title = evaluated
	}

	task := &models.HumanTask{
		ID:          uuid.New().String(),
		ExecutionID: ectx.Execution.ID,
		WorkflowID:  ectx.Execution.WorkflowID,
		NodeID:      node.ID,
		Type:        models.TaskTypeApproval,
		Title:       title,
		Assignees:   config.Assignees,
		Status:      models.TaskStatusPending,
		CreatedAt:   time.Now().UTC(),
	}

	if config.DueInHours > 0 {
		due := time.Now().UTC().Add(time.Duration(config.DueInHours * float64(time.Hour)))
		task.DueDate = &due
	}

	return task
}

func interpolate(value string, variables map[string]any) (string, error) {
	if len(value) == 0 || value[0] != '=' {
		return value, nil
	}

	evaluated, err := expr.Eval(value[1:], expr.NewEnv(variables))
	if err != nil {
		return "", err
	}

	return expr.Stringify(evaluated), nil
}
