// Package subworkflow implements the subworkflow node, which runs another
// workflow to completion and folds its output into the parent variables.
package subworkflow

import (
	"context"
	"fmt"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/expr"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) Type() models.NodeType {
	return models.NodeTypeSubworkflow
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"workflow_id": map[string]any{"type": "string"},
			"input_mapping": map[string]any{
				"type":        "object",
				"description": "Child variable name to parent variable path (dot notation)",
			},
			"output_variable": map[string]any{
				"type":    "string",
				"default": "subworkflow",
			},
		},
		"required": []string{"workflow_id"},
	}
}

func (f *Factory) Create(deps protocol.Dependencies) (protocol.NodeExecutor, error) {
	return &Node{runner: deps.SubworkflowRunner}, nil
}

type Config struct {
	WorkflowID     string            `json:"workflow_id"`
	InputMapping   map[string]string `json:"input_mapping,omitempty"`
	OutputVariable string            `json:"output_variable,omitempty"`
}

type Node struct {
	runner protocol.SubworkflowRunner
}

func (n *Node) Execute(ctx context.Context, ectx *models.ExecutionContext, node *models.Node) protocol.Result {
	var config Config
	if err := protocol.DecodeConfig(node.Config, &config); err != nil {
		return protocol.Failed(err)
	}

	if config.WorkflowID == "" {
		return protocol.Failed(fmt.Errorf("subworkflow node %s is missing a workflow_id", node.ID))
	}

	if config.WorkflowID == ectx.Execution.WorkflowID {
		return protocol.Failed(fmt.Errorf("subworkflow node %s cannot call its own workflow", node.ID))
	}

	if n.runner == nil {
		return protocol.Failed(fmt.Errorf("subworkflow node %s requires a workflow runner", node.ID))
	}

	inputs := map[string]any{}

	for name, path := range config.InputMapping {
		value, err := expr.ResolvePath(path, ectx.Execution.Variables)
		if err != nil {
			return protocol.Failed(fmt.Errorf("failed to resolve subworkflow input %q: %w", name, err))
		}

		inputs[name] = value
	}

	output, err := n.runner.RunSubworkflow(ctx, config.WorkflowID, inputs, ectx.Execution.ID)
	if err != nil {
		return protocol.Failed(fmt.Errorf("subworkflow failed: %w", err))
	}

	outputVar := config.OutputVariable
	if outputVar == "" {
		outputVar = "subworkflow"
	}

	return protocol.Completed(map[string]any{outputVar: output})
}
