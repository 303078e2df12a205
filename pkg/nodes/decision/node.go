// Package decisionnode implements the decision node, which routes along the
// true or false branch of a boolean outcome. The outcome comes from an
// inline expression or from a decision table's branch field.
package decisionnode

import (
	"context"
	"fmt"
	"sort"
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
	return models.NodeTypeDecision
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":        "string",
				"description": "Boolean expression; routes to the true/false labeled edge",
			},
			"table_id": map[string]any{
				"type":        "string",
				"description": "Decision table to evaluate instead of an expression",
			},
			"branch_field": map[string]any{
				"type":        "string",
				"description": "Boolean output field that decides the branch; defaults to the first boolean-typed output",
			},
			"true_label": map[string]any{
				"type":        "string",
				"description": "Extra edge label counted as the true branch",
			},
			"input_mapping": map[string]any{
				"type":        "object",
				"description": "Table input name to variable path (dot notation)",
			},
			"output_variable": map[string]any{
				"type":        "string",
				"description": "Variable to store the full output bag under; outputs are also spread top-level",
			},
			"fail_on_no_match": map[string]any{"type": "boolean"},
		},
	}
}

func (f *Factory) Create(deps protocol.Dependencies) (protocol.NodeExecutor, error) {
	return &Node{evaluator: deps.DecisionEvaluator}, nil
}

type Config struct {
	Expression    string            `json:"expression,omitempty"`
	TableID       string            `json:"table_id,omitempty"`
	BranchField   string            `json:"branch_field,omitempty"`
	TrueLabel     string            `json:"true_label,omitempty"`
	InputMapping  map[string]string `json:"input_mapping,omitempty"`
	OutputVar     string            `json:"output_variable,omitempty"`
	FailOnNoMatch bool              `json:"fail_on_no_match,omitempty"`
}

type Node struct {
	evaluator protocol.DecisionEvaluator
}

func (n *Node) Execute(ctx context.Context, ectx *models.ExecutionContext, node *models.Node) protocol.Result {
	var config Config
	if err := protocol.DecodeConfig(node.Config, &config); err != nil {
		return protocol.Failed(err)
	}

	switch {
	case config.TableID != "":
		return n.executeTable(ctx, ectx, node, config)
	case config.Expression != "":
		return n.executeExpression(ectx, node, config)
	default:
		return protocol.Failed(fmt.Errorf("decision node %s has neither an expression nor a table", node.ID))
	}
}

func (n *Node) executeExpression(ectx *models.ExecutionContext, node *models.Node, config Config) protocol.Result {
	outcome, err := expr.EvalBool(config.Expression, expr.NewEnv(ectx.Execution.Variables))
	if err != nil {
		return protocol.Failed(fmt.Errorf("failed to evaluate decision expression: %w", err))
	}

	next := routeByBool(ectx.Definition, node.ID, outcome, config.TrueLabel)

	return protocol.CompletedWithNext(map[string]any{
		fmt.Sprintf("_decision_%s", node.ID): outcome,
	}, next...)
}

func (n *Node) executeTable(ctx context.Context, ectx *models.ExecutionContext, node *models.Node, config Config) protocol.Result {
	if n.evaluator == nil {
		return protocol.Failed(fmt.Errorf("decision node %s requires a table evaluator", node.ID))
	}

	inputs, err := buildInputs(config.InputMapping, ectx.Execution.Variables)
	if err != nil {
		return protocol.Failed(err)
	}

	source := fmt.Sprintf("workflow:%s:%s", ectx.Execution.WorkflowID, node.ID)

	result, err := n.evaluator.EvaluateTable(ctx, config.TableID, inputs, source)
	if err != nil {
		return protocol.Failed(fmt.Errorf("Decision table evaluation failed: %w", err))
	}

	noMatch := result.HasErrorType(decision.ErrTypeNoMatch) ||
		(result.Success && len(result.MatchedRules) == 0)

	if noMatch && config.FailOnNoMatch {
		return protocol.Failed(fmt.Errorf("No rules matched for table %s", config.TableID))
	}

	if !result.Success && !noMatch {
		return protocol.Failed(fmt.Errorf("Decision table evaluation failed: %s", firstErrorMessage(result)))
	}

	output := make(map[string]any, len(result.Outputs)+2)

	for name, value := range result.Outputs {
		output[name] = value
	}

	outputVar := config.OutputVar
	if outputVar == "" {
		outputVar = "decisionResult"
	}

	output[outputVar] = result.Outputs

	field, value, ok := branchValue(config.BranchField, result.Outputs)
	if !ok {
		// Nothing to branch on; the outgoing edges route normally.
		return protocol.Completed(output)
	}

	outcome := expr.Truthy(value)
	output[fmt.Sprintf("_decision_%s", node.ID)] = outcome

	ectx.Logger.Debug("Decision table branched",
		"node_id", node.ID, "table_id", config.TableID, "branch_field", field, "outcome", outcome)

	next := routeByBool(ectx.Definition, node.ID, outcome, config.TrueLabel)

	return protocol.CompletedWithNext(output, next...)
}

// branchValue resolves the output the branch decision reads: the configured
// field, or the first boolean-typed output when none is configured. Keys are
// scanned in sorted order to keep the implicit choice deterministic.
func branchValue(field string, outputs map[string]any) (string, any, bool) {
	if field != "" {
		value, ok := outputs[field]

		return field, value, ok
	}

	keys := make([]string, 0, len(outputs))
	for key := range outputs {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		if _, isBool := outputs[key].(bool); isBool {
			return key, outputs[key], true
		}
	}

	return "", nil, false
}

func buildInputs(mapping map[string]string, variables map[string]any) (map[string]any, error) {
	if len(mapping) == 0 {
		return variables, nil
	}

	inputs := make(map[string]any, len(mapping))

	for inputName, path := range mapping {
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

// routeByBool picks the edges labeled for the outcome. Unlabeled graphs fall
// back positionally: the first outgoing edge is the true branch, the second
// the false branch.
func routeByBool(definition *models.WorkflowDefinition, nodeID string, outcome bool, trueLabel string) []string {
	edges := definition.OutgoingEdges(nodeID)

	labels := []string{"false", "no"}
	if outcome {
		labels = []string{"true", "yes"}

		if trueLabel != "" {
			labels = append(labels, trueLabel)
		}
	}

	var next []string

	for _, edge := range edges {
		for _, label := range labels {
			if strings.EqualFold(edge.Label, label) {
				next = append(next, edge.Target)
			}
		}
	}

	if len(next) > 0 {
		return next
	}

	if outcome {
		if len(edges) > 0 {
			return []string{edges[0].Target}
		}

		return nil
	}

	if len(edges) > 1 {
		return []string{edges[1].Target}
	}

	return nil
}
