// Package end implements the terminal node of a workflow. Its optional
// output mapping selects which variables become the execution output.
package end

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
	return models.NodeTypeEnd
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"output": map[string]any{
				"type":        "object",
				"description": "Execution output fields, each mapped from a variable path",
			},
		},
	}
}

func (*Factory) Create(_ protocol.Dependencies) (protocol.NodeExecutor, error) {
	return &Node{}, nil
}

type Config struct {
	Output map[string]string `json:"output,omitempty"`
}

type Node struct{}

func (n *Node) Execute(_ context.Context, ectx *models.ExecutionContext, node *models.Node) protocol.Result {
	var config Config
	if err := protocol.DecodeConfig(node.Config, &config); err != nil {
		return protocol.Failed(err)
	}

	if len(config.Output) == 0 {
		return protocol.Completed(nil)
	}

	output := make(map[string]any, len(config.Output))

	for field, path := range config.Output {
		value, err := expr.ResolvePath(path, ectx.Execution.Variables)
		if err != nil {
			return protocol.Failed(fmt.Errorf("failed to resolve output field %q: %w", field, err))
		}

		output[field] = value
	}

	ectx.Execution.Output = output

	return protocol.Completed(nil)
}
