// Package parallel implements the parallel node, which fans the execution
// out along every outgoing edge regardless of conditions.
package parallel

import (
	"context"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) Type() models.NodeType {
	return models.NodeTypeParallel
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (*Factory) Create(_ protocol.Dependencies) (protocol.NodeExecutor, error) {
	return &Node{}, nil
}

type Node struct{}

func (n *Node) Execute(_ context.Context, ectx *models.ExecutionContext, node *models.Node) protocol.Result {
	edges := ectx.Definition.OutgoingEdges(node.ID)

	next := make([]string, 0, len(edges))
	for _, edge := range edges {
		next = append(next, edge.Target)
	}

	ectx.Logger.Debug("Fanning out", "node_id", node.ID, "branches", len(next))

	return protocol.CompletedWithNext(nil, next...)
}
