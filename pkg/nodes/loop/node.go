// Package loop implements the loop node, which evaluates an expression for
// each item of a collection and accumulates the results.
package loop

import (
	"context"
	"fmt"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/expr"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/protocol"
)

const defaultMaxIterations = 1000

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) Type() models.NodeType {
	return models.NodeTypeLoop
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"items": map[string]any{
				"type":        "string",
				"description": "Expression producing the collection to iterate",
			},
			"item_variable": map[string]any{
				"type":    "string",
				"default": "item",
			},
			"index_variable": map[string]any{
				"type":    "string",
				"default": "index",
			},
			"expression": map[string]any{
				"type":        "string",
				"description": "Expression evaluated per item",
			},
			"output_variable": map[string]any{
				"type":    "string",
				"default": "results",
			},
			"max_iterations": map[string]any{
				"type":    "number",
				"default": defaultMaxIterations,
			},
		},
		"required": []string{"items", "expression"},
	}
}

func (*Factory) Create(_ protocol.Dependencies) (protocol.NodeExecutor, error) {
	return &Node{}, nil
}

type Config struct {
	Items          string  `json:"items"`
	ItemVariable   string  `json:"item_variable,omitempty"`
	IndexVariable  string  `json:"index_variable,omitempty"`
	Expression     string  `json:"expression"`
	OutputVariable string  `json:"output_variable,omitempty"`
	MaxIterations  float64 `json:"max_iterations,omitempty"`
}

type Node struct{}

func (n *Node) Execute(ctx context.Context, ectx *models.ExecutionContext, node *models.Node) protocol.Result {
	var config Config
	if err := protocol.DecodeConfig(node.Config, &config); err != nil {
		return protocol.Failed(err)
	}

	if config.Items == "" || config.Expression == "" {
		return protocol.Failed(fmt.Errorf("loop node %s requires items and expression", node.ID))
	}

	if config.ItemVariable == "" {
		config.ItemVariable = "item"
	}

	if config.IndexVariable == "" {
		config.IndexVariable = "index"
	}

	if config.OutputVariable == "" {
		config.OutputVariable = "results"
	}

	maxIterations := int(config.MaxIterations)
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	collection, err := expr.Eval(config.Items, expr.NewEnv(ectx.Execution.Variables))
	if err != nil {
		return protocol.Failed(fmt.Errorf("failed to evaluate loop items: %w", err))
	}

	items, ok := collection.([]any)
	if !ok {
		return protocol.Failed(fmt.Errorf("loop items must be a list, got %T", collection))
	}

	if len(items) > maxIterations {
		return protocol.Failed(fmt.Errorf("loop exceeds max iterations (%d > %d)", len(items), maxIterations))
	}

	results := make([]any, 0, len(items))

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return protocol.Failed(err)
		}

		scope := make(map[string]any, len(ectx.Execution.Variables)+2)
		for k, v := range ectx.Execution.Variables {
			scope[k] = v
		}

		scope[config.ItemVariable] = item
		scope[config.IndexVariable] = i

		value, err := expr.Eval(config.Expression, expr.NewEnv(scope))
		if err != nil {
			return protocol.Failed(fmt.Errorf("loop iteration %d failed: %w", i, err))
		}

		results = append(results, value)
	}

	return protocol.Completed(map[string]any{
		config.OutputVariable: results,
	})
}
