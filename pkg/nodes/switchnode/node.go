// Package switchnode implements the switch node, which routes along the
// edge whose label equals the evaluated switch value.
package switchnode

import (
	"context"
	"fmt"
	"strings"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/expr"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) Type() models.NodeType {
	return models.NodeTypeSwitch
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":        "string",
				"description": "Expression producing the value to match against edge labels",
			},
		},
		"required": []string{"expression"},
	}
}

func (*Factory) Create(_ protocol.Dependencies) (protocol.NodeExecutor, error) {
	return &Node{}, nil
}

type Config struct {
	Expression string `json:"expression"`
}

type Node struct{}

func (n *Node) Execute(_ context.Context, ectx *models.ExecutionContext, node *models.Node) protocol.Result {
	var config Config
	if err := protocol.DecodeConfig(node.Config, &config); err != nil {
		return protocol.Failed(err)
	}

	if config.Expression == "" {
		return protocol.Failed(fmt.Errorf("switch node %s is missing an expression", node.ID))
	}

	value, err := expr.Eval(config.Expression, expr.NewEnv(ectx.Execution.Variables))
	if err != nil {
		return protocol.Failed(fmt.Errorf("failed to evaluate switch expression: %w", err))
	}

	label := expr.Stringify(value)
	edges := ectx.Definition.OutgoingEdges(node.ID)

	var next []string

	for _, edge := range edges {
		if strings.EqualFold(edge.Label, label) {
			next = append(next, edge.Target)
		}
	}

	// No case matched: take the default edge if one exists.
	if len(next) == 0 {
		for _, edge := range edges {
			if edge.Label == "" || strings.EqualFold(edge.Label, "default") {
				next = append(next, edge.Target)
			}
		}
	}

	return protocol.CompletedWithNext(map[string]any{
		fmt.Sprintf("_switch_%s", node.ID): value,
	}, next...)
}
