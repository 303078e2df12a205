// Package setvariable implements the setVariable node, which assigns one or
// more variables from literal values or expressions.
package setvariable

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
	return models.NodeTypeSetVariable
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"assignments": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":       map[string]any{"type": "string"},
						"value":      map[string]any{"description": "Literal value"},
						"expression": map[string]any{"type": "string"},
					},
					"required": []string{"name"},
				},
			},
		},
		"required": []string{"assignments"},
	}
}

func (*Factory) Create(_ protocol.Dependencies) (protocol.NodeExecutor, error) {
	return &Node{}, nil
}

type Assignment struct {
	Name       string `json:"name"`
	Value      any    `json:"value,omitempty"`
	Expression string `json:"expression,omitempty"`
}

type Config struct {
	Assignments []Assignment `json:"assignments"`
}

type Node struct{}

// Execute applies assignments in order. Later assignments see the values
// produced by earlier ones.
func (n *Node) Execute(_ context.Context, ectx *models.ExecutionContext, node *models.Node) protocol.Result {
	var config Config
	if err := protocol.DecodeConfig(node.Config, &config); err != nil {
		return protocol.Failed(err)
	}

	scope := make(map[string]any, len(ectx.Execution.Variables))
	for k, v := range ectx.Execution.Variables {
		scope[k] = v
	}

	output := make(map[string]any, len(config.Assignments))

	for _, assignment := range config.Assignments {
		if assignment.Name == "" {
			return protocol.Failed(fmt.Errorf("assignment is missing a variable name"))
		}

		value := assignment.Value

		if assignment.Expression != "" {
			evaluated, err := expr.Eval(assignment.Expression, expr.NewEnv(scope))
			if err != nil {
				return protocol.Failed(fmt.Errorf("failed to evaluate assignment %q: %w", assignment.Name, err))
			}

			value = evaluated
		}

		scope[assignment.Name] = value
		output[assignment.Name] = value
	}

	return protocol.Completed(output)
}
