// Package start implements the entry node of a workflow.
package start

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
	return models.NodeTypeStart
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

// Node completes immediately. Trigger payload merging happens before the
// traversal starts, so there is nothing to do here.
type Node struct{}

func (n *Node) Execute(_ context.Context, ectx *models.ExecutionContext, node *models.Node) protocol.Result {
	ectx.Logger.Debug("Workflow started", "node_id", node.ID)

	return protocol.Completed(nil)
}
