// Package delay implements the delay node. Short delays sleep inline;
// longer ones park the execution with a resume time for the scheduler to
// sweep. Manual and test runs skip the wait entirely.
package delay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/expr"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/protocol"
)

// inlineThreshold is the longest delay served by sleeping in the worker.
const inlineThreshold = 5 * time.Second

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) Type() models.NodeType {
	return models.NodeTypeDelay
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"duration_seconds": map[string]any{
				"type":        []string{"number", "string"},
				"description": "Seconds to wait, or an '='-prefixed expression yielding seconds",
			},
			"until": map[string]any{
				"type":        "string",
				"format":      "date-time",
				"description": "Absolute resume time; takes precedence over duration_seconds",
			},
		},
	}
}

func (*Factory) Create(_ protocol.Dependencies) (protocol.NodeExecutor, error) {
	return &Node{}, nil
}

type Config struct {
	DurationSeconds any    `json:"duration_seconds,omitempty"`
	Until           string `json:"until,omitempty"`
}

type Node struct{}

func (n *Node) Execute(ctx context.Context, ectx *models.ExecutionContext, node *models.Node) protocol.Result {
	var config Config
	if err := protocol.DecodeConfig(node.Config, &config); err != nil {
		return protocol.Failed(err)
	}

	resumeAt, err := resolveResumeTime(config, ectx.Execution.Variables)
	if err != nil {
		return protocol.Failed(err)
	}

	// Interactive runs never block on delays.
	triggerType := ectx.Execution.TriggerType
	if triggerType == models.TriggerTypeManual || triggerType == models.TriggerTypeTest {
		ectx.Logger.Debug("Skipping delay for interactive run", "node_id", node.ID)

		return protocol.Completed(nil)
	}

	wait := time.Until(resumeAt)
	if wait <= 0 {
		return protocol.Completed(nil)
	}

	if wait <= inlineThreshold {
		select {
		case <-time.After(wait):
			return protocol.Completed(nil)
		case <-ctx.Done():
			return protocol.Failed(ctx.Err())
		}
	}

	return protocol.Result{Status: protocol.NodeStatusWaiting, ResumeAt: &resumeAt}
}

func resolveResumeTime(config Config, variables map[string]any) (time.Time, error) {
	if config.Until != "" {
		until, err := time.Parse(time.RFC3339, config.Until)
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to parse delay until time: %w", err)
		}

		return until, nil
	}

	seconds, err := resolveSeconds(config.DurationSeconds, variables)
	if err != nil {
		return time.Time{}, err
	}

	return time.Now().Add(time.Duration(seconds * float64(time.Second))), nil
}

// resolveSeconds accepts a fixed number or an '='-prefixed expression, the
// same convention other nodes use for computed config values.
func resolveSeconds(duration any, variables map[string]any) (float64, error) {
	switch v := duration.(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		if !strings.HasPrefix(v, "=") {
			return 0, fmt.Errorf("delay duration %q is not a number or an '=' expression", v)
		}

		evaluated, err := expr.Eval(strings.TrimPrefix(v, "="), expr.NewEnv(variables))
		if err != nil {
			return 0, fmt.Errorf("failed to evaluate delay duration: %w", err)
		}

		seconds, ok := expr.Numeric(evaluated)
		if !ok {
			return 0, fmt.Errorf("delay duration expression returned %T, want a number", evaluated)
		}

		return seconds, nil
	default:
		return 0, fmt.Errorf("delay duration has unsupported type %T", duration)
	}
}
