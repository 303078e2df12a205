// Package businessrule implements the businessRule node, which maps
// workflow variables into a decision table, evaluates it and folds the
// outputs back into the variable bag.
package businessrule

import (
	"context"
	"fmt"
	"strings"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/decision"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/expr"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) Type() models.NodeType {
	return models.NodeTypeBusinessRule
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"table_id": map[string]any{"type": "string"},
			"input_mapping": map[string]any{
				"type":        "object",
				"description": "Table input name to variable path (dot notation)",
			},
			"output_variable": map[string]any{
				"type":        "string",
				"description": "Variable to store the full output bag under; outputs are also spread top-level",
			},
			"fail_on_no_match": map[string]any{"type": "boolean"},
			"branch_field": map[string]any{
				"type":        "string",
				"description": "Output field whose value selects the outgoing edge label",
			},
		},
		"required": []string{"table_id"},
	}
}

func (f *Factory) Create(deps protocol.Dependencies) (protocol.NodeExecutor, error) {
	return &Node{evaluator: deps.DecisionEvaluator}, nil
}

type Config struct {
	TableID       string            `json:"table_id"`
	InputMapping  map[string]string `json:"input_mapping,omitempty"`
	OutputVar     string            `json:"output_variable,omitempty"`
	FailOnNoMatch bool              `json:"fail_on_no_match,omitempty"`
	BranchField   string            `json:"branch_field,omitempty"`
}

type Node struct {
	evaluator protocol.DecisionEvaluator
}

func (n *Node) Execute(ctx context.Context, ectx *models.ExecutionContext, node *models.Node) protocol.Result {
	var config Config
	if err := protocol.DecodeConfig(node.Config, &config); err != nil {
		return protocol.Failed(err)
	}

	if config.TableID == "" {
		return protocol.Failed(fmt.Errorf("businessRule node %s is missing a table_id", node.ID))
	}

	if n.evaluator == nil {
		return protocol.Failed(fmt.Errorf("businessRule node %s requires a table evaluator", node.ID))
	}

	inputs, err := n.buildInputs(config, ectx.Execution.Variables)
	if err != nil {
		return protocol.Failed(err)
	}

	source := fmt.Sprintf("workflow:%s:%s", ectx.Execution.WorkflowID, node.ID)

	result, err := n.evaluator.EvaluateTable(ctx, config.TableID, inputs, source)
	if err != nil {
		return protocol.Failed(fmt.Errorf("Decision table evaluation failed: %w", err))
	}

	// Zero matches is the node's own concern, not a generic evaluation
	// failure: without the flag the node completes silently with whatever
	// defaults the table declared.
	noMatch := result.HasErrorType(decision.ErrTypeNoMatch) ||
		(result.Success && len(result.MatchedRules) == 0)

	if noMatch && config.FailOnNoMatch {
		return protocol.Failed(fmt.Errorf("No rules matched for table %s", config.TableID))
	}

	if !result.Success && !noMatch {
		return protocol.Failed(fmt.Errorf("Decision table evaluation failed: %s", firstErrorMessage(result)))
	}

	output := make(map[string]any, len(result.Outputs)+1)

	// Outputs land both under the output variable and spread at the top
	// level, so downstream conditions can reference either form.
	for name, value := range result.Outputs {
		output[name] = value
	}

	outputVar := config.OutputVar
	if outputVar == "" {
		outputVar = "decisionResult"
	}

	output[outputVar] = result.Outputs

	ectx.Logger.Debug("Business rule evaluated",
		"node_id", node.ID, "table_id", config.TableID, "matched_rules", result.MatchedRules)

	if config.BranchField != "" {
		branch := expr.Stringify(result.Outputs[config.BranchField])

		return protocol.CompletedWithNext(output, routeByLabel(ectx.Definition, node.ID, branch)...)
	}

	return protocol.Completed(output)
}

// buildInputs resolves the input mapping against the variable bag. Without
// a mapping the variables are passed through as-is.
func (n *Node) buildInputs(config Config, variables map[string]any) (map[string]any, error) {
	if len(config.InputMapping) == 0 {
		return variables, nil
	}

	inputs := make(map[string]any, len(config.InputMapping))

	for inputName, path := range config.InputMapping {
		value, err := expr.ResolvePath(path, variables)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve input %q from %q: %w", inputName, path, err)
		}

		inputs[inputName] = value
	}

	return inputs, nil
}

func firstErrorMessage(result *models.EvaluationResult) string {
	if len(result.Errors) == 0 {
		return "evaluation unsuccessful"
	}

	return result.Errors[0].Message
}

func routeByLabel(definition *models.WorkflowDefinition, nodeID, label string) []string {
	edges := definition.OutgoingEdges(nodeID)

	var next []string

	for _, edge := range edges {
		if strings.EqualFold(edge.Label, label) {
			next = append(next, edge.Target)
		}
	}

	if len(next) > 0 {
		return next
	}

	for _, edge := range edges {
		if edge.Label == "" || strings.EqualFold(edge.Label, "default") {
			next = append(next, edge.Target)
		}
	}

	return next
}
