// Package task implements the generic task node. With assignees it becomes
// a human work item; without, it completes as a plain activity marker.
package task

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
	return models.NodeTypeTask
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{"type": "string"},
			"assignees": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"due_in_hours": map[string]any{"type": "number"},
		},
	}
}

func (f *Factory) Create(deps protocol.Dependencies) (protocol.NodeExecutor, error) {
	return &Node{tasks: deps.TaskCreator}, nil
}

type Config struct {
	Title      string   `json:"title,omitempty"`
	Assignees  []string `json:"assignees,omitempty"`
	DueInHours float64  `json:"due_in_hours,omitempty"`
}

type Node struct {
	tasks protocol.TaskCreator
}

func (n *Node) Execute(ctx context.Context, ectx *models.ExecutionContext, node *models.Node) protocol.Result {
	var config Config
	if err := protocol.DecodeConfig(node.Config, &config); err != nil {
		return protocol.Failed(err)
	}

	triggerType := ectx.Execution.TriggerType
	interactive := triggerType == models.TriggerTypeManual || triggerType == models.TriggerTypeTest

	if len(config.Assignees) == 0 || interactive {
		return protocol.Completed(nil)
	}

	if n.tasks == nil {
		return protocol.Failed(fmt.Errorf("task node %s requires a task store", node.ID))
	}

	title := config.Title
	if title == "" {
		title = node.Name
	}

	humanTask := &models.HumanTask{
		ID:          uuid.New().String(),
		ExecutionID: ectx.Execution.ID,
		WorkflowID:  ectx.Execution.WorkflowID,
		NodeID:      node.ID,
		Type:        models.TaskTypeGeneric,
		Title:       title,
		Assignees:   config.Assignees,
		Status:      models.TaskStatusPending,
		CreatedAt:   time.Now().UTC(),
	}

	if config.DueInHours > 0 {
		due := time.Now().UTC().Add(time.Duration(config.DueInHours * float64(time.Hour)))
		humanTask.DueDate = &due
	}

	if err := n.tasks.CreateTask(ctx, humanTask); err != nil {
		return protocol.Failed(fmt.Errorf("failed to create task: %w", err))
	}

	ectx.Execution.Metrics.TasksCreated++

	return protocol.WaitingForTask(humanTask.ID)
}
