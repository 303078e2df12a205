// Package form implements the form node, which raises a human task carrying
// a form definition and parks the execution until the form is submitted.
package form

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) Type() models.NodeType {
	return models.NodeTypeForm
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{"type": "string"},
			"fields": map[string]any{
				"type":        "array",
				"description": "Form field definitions shown to the assignee",
			},
			"assignees": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"due_in_hours": map[string]any{"type": "number"},
			"response_variable": map[string]any{
				"type":    "string",
				"default": "formData",
			},
		},
		"required": []string{"fields"},
	}
}

func (f *Factory) Create(deps protocol.Dependencies) (protocol.NodeExecutor, error) {
	return &Node{tasks: deps.TaskCreator}, nil
}

type Config struct {
	Title            string   `json:"title,omitempty"`
	Fields           []any    `json:"fields"`
	Assignees        []string `json:"assignees,omitempty"`
	DueInHours       float64  `json:"due_in_hours,omitempty"`
	ResponseVariable string   `json:"response_variable,omitempty"`
}

type Node struct {
	tasks protocol.TaskCreator
}

func (n *Node) Execute(ctx context.Context, ectx *models.ExecutionContext, node *models.Node) protocol.Result {
	var config Config
	if err := protocol.DecodeConfig(node.Config, &config); err != nil {
		return protocol.Failed(err)
	}

	// Interactive runs complete the form immediately with an empty
	// submission.
	triggerType := ectx.Execution.TriggerType
	if triggerType == models.TriggerTypeManual || triggerType == models.TriggerTypeTest {
		ectx.Logger.Debug("Auto-completing form for interactive run", "node_id", node.ID)

		return protocol.Completed(map[string]any{
			fmt.Sprintf("_task_%s_outcome", node.ID): "submitted",
		})
	}

	if n.tasks == nil {
		return protocol.Failed(fmt.Errorf("form node %s requires a task store", node.ID))
	}

	title := config.Title
	if title == "" {
		title = node.Name
	}

	task := &models.HumanTask{
		ID:          uuid.New().String(),
		ExecutionID: ectx.Execution.ID,
		WorkflowID:  ectx.Execution.WorkflowID,
		NodeID:      node.ID,
		Type:        models.TaskTypeForm,
		Title:       title,
		Assignees:   config.Assignees,
		Status:      models.TaskStatusPending,
		FormPayload: map[string]any{"fields": config.Fields},
		CreatedAt:   time.Now().UTC(),
	}

	if config.DueInHours > 0 {
		due := time.Now().UTC().Add(time.Duration(config.DueInHours * float64(time.Hour)))
		task.DueDate = &due
	}

	if err := n.tasks.CreateTask(ctx, task); err != nil {
		return protocol.Failed(fmt.Errorf("failed to create form task: %w", err))
	}

	ectx.Execution.Metrics.TasksCreated++
	ectx.Logger.Info("Form task created", "node_id", node.ID, "task_id", task.ID)

	return protocol.WaitingForTask(task.ID)
}
