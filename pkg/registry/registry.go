// Package registry maps node types to their executor factories.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/protocol"
)

type Registry struct {
	logger        *slog.Logger
	nodeFactories map[models.NodeType]protocol.NodeFactory
	deps          protocol.Dependencies
}

func NewRegistry(logger *slog.Logger, deps protocol.Dependencies) *Registry {
	return &Registry{
		logger:        logger,
		nodeFactories: make(map[models.NodeType]protocol.NodeFactory),
		deps:          deps,
	}
}

func (r *Registry) RegisterNode(factory protocol.NodeFactory) {
	r.nodeFactories[factory.Type()] = factory
}

// CreateExecutor builds an executor for the node type. Unknown types get a
// passthrough executor so a workflow authored against a newer node palette
// still runs end to end.
func (r *Registry) CreateExecutor(nodeType models.NodeType) (protocol.NodeExecutor, error) {
	factory, ok := r.nodeFactories[nodeType]
	if !ok {
		r.logger.Warn("No executor registered for node type, using passthrough", "node_type", nodeType)

		return &passthroughExecutor{}, nil
	}

	executor, err := factory.Create(r.deps)
	if err != nil {
		return nil, fmt.Errorf("failed to create executor for node type '%s': %w", nodeType, err)
	}

	return executor, nil
}

// ValidateNodeConfig checks a node's config against the factory schema.
// Types without a registered factory or schema pass trivially.
func (r *Registry) ValidateNodeConfig(nodeType models.NodeType, config map[string]any) error {
	factory, ok := r.nodeFactories[nodeType]
	if !ok {
		return nil
	}

	schema := factory.Schema()
	if schema == nil {
		return nil
	}

	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("failed to marshal schema for node type '%s': %w", nodeType, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewGoLoader(config),
	)
	if err != nil {
		return fmt.Errorf("failed to validate config for node type '%s': %w", nodeType, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("invalid config for node type '%s': %s", nodeType, strings.Join(details, "; "))
	}

	return nil
}

// NodeSchemas returns the config schema of every registered node type,
// keyed by type. Used by the API to serve the node palette.
func (r *Registry) NodeSchemas() map[string]map[string]any {
	schemas := make(map[string]map[string]any, len(r.nodeFactories))
	for nodeType, factory := range r.nodeFactories {
		schemas[string(nodeType)] = factory.Schema()
	}

	return schemas
}

// AvailableNodeTypes returns all registered node types.
func (r *Registry) AvailableNodeTypes() []models.NodeType {
	types := make([]models.NodeType, 0, len(r.nodeFactories))
	for nodeType := range r.nodeFactories {
		types = append(types, nodeType)
	}

	return types
}

// passthroughExecutor completes immediately, recording the node type it
// stood in for.
type passthroughExecutor struct{}

func (e *passthroughExecutor) Execute(_ context.Context, _ *models.ExecutionContext, node *models.Node) protocol.Result {
	return protocol.Completed(map[string]any{
		"_passthrough": string(node.Type),
	})
}
