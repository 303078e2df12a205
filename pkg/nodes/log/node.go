// Package lognode implements the log node, which writes an interpolated
// message to the execution log.
package lognode

import (
	"context"
	"log/slog"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/expr"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) Type() models.NodeType {
	return models.NodeTypeLog
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "Message to log. An expression; quote literals.",
			},
			"level": map[string]any{
				"type":    "string",
				"default": "info",
				"enum":    []string{"debug", "info", "warn", "error"},
			},
		},
		"required": []string{"message"},
	}
}

func (*Factory) Create(_ protocol.Dependencies) (protocol.NodeExecutor, error) {
	return &Node{}, nil
}

type Config struct {
	Message string `json:"message"`
	Level   string `json:"level,omitempty"`
}

type Node struct{}

func (n *Node) Execute(ctx context.Context, ectx *models.ExecutionContext, node *models.Node) protocol.Result {
	var config Config
	if err := protocol.DecodeConfig(node.Config, &config); err != nil {
		return protocol.Failed(err)
	}

	if config.Level == "" {
		config.Level = "info"
	}

	message := config.Message

	if evaluated, err := expr.Eval(config.Message, expr.NewEnv(ectx.Execution.Variables)); err == nil && evaluated != nil {
		message = expr.Stringify(evaluated)
	}

	level := slog.LevelInfo

	switch config.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	ectx.Logger.Log(ctx, level, message, "node_id", node.ID)
	ectx.Execution.AppendLog(config.Level, node.ID, message)

	return protocol.Completed(nil)
}
