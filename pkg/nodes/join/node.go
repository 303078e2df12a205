// Package join implements the join node, which holds the execution until
// every incoming branch has completed.
package join

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
	return models.NodeTypeJoin
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

// Execute completes only once every source of an incoming edge is in the
// completed set. Until then it reports waiting and the engine re-dispatches
// it when another branch finishes.
func (n *Node) Execute(_ context.Context, ectx *models.ExecutionContext, node *models.Node) protocol.Result {
	for _, edge := range ectx.Definition.IncomingEdges(node.ID) {
		if !ectx.Execution.HasCompleted(edge.Source) {
			ectx.Logger.Debug("Join still waiting on branch",
				"node_id", node.ID, "pending_source", edge.Source)

			return protocol.Result{Status: protocol.NodeStatusWaiting}
		}
	}

	return protocol.Completed(nil)
}
