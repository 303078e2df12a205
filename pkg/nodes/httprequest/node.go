// Package httprequest implements the httpRequest node, which calls an
// external HTTP endpoint and exposes the response as variables.
package httprequest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/expr"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/protocol"
)

const (
	defaultTimeout   = 30 * time.Second
	maxResponseBytes = 10 << 20
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) Type() models.NodeType {
	return models.NodeTypeHTTPRequest
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Request URL. Values prefixed with '=' are evaluated as expressions.",
			},
			"method": map[string]any{
				"type":    "string",
				"default": "GET",
				"enum":    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD"},
			},
			"headers": map[string]any{"type": "object"},
			"body":    map[string]any{"description": "Request body, JSON-encoded when not a string"},
			"timeout_seconds": map[string]any{
				"type":    "number",
				"default": 30,
			},
			"output_variable": map[string]any{
				"type":    "string",
				"default": "response",
			},
		},
		"required": []string{"url"},
	}
}

func (f *Factory) Create(deps protocol.Dependencies) (protocol.NodeExecutor, error) {
	client := deps.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	return &Node{client: client}, nil
}

type Config struct {
	URL            string            `json:"url"`
	Method         string            `json:"method,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
	Body           any               `json:"body,omitempty"`
	TimeoutSeconds float64           `json:"timeout_seconds,omitempty"`
	OutputVariable string            `json:"output_variable,omitempty"`
}

type Node struct {
	client *http.Client
}

func (n *Node) Execute(ctx context.Context, ectx *models.ExecutionContext, node *models.Node) protocol.Result {
	var config Config
	if err := protocol.DecodeConfig(node.Config, &config); err != nil {
		return protocol.Failed(err)
	}

	if config.URL == "" {
		return protocol.Failed(fmt.Errorf("httpRequest node %s is missing a url", node.ID))
	}

	if config.Method == "" {
		config.Method = http.MethodGet
	}

	if config.OutputVariable == "" {
		config.OutputVariable = "response"
	}

	env := expr.NewEnv(ectx.Execution.Variables)

	url, err := interpolate(config.URL, env)
	if err != nil {
		return protocol.Failed(fmt.Errorf("failed to evaluate url: %w", err))
	}

	var body io.Reader

	if config.Body != nil {
		payload, err := encodeBody(config.Body, env)
		if err != nil {
			return protocol.Failed(err)
		}

		body = bytes.NewReader(payload)
	}

	if config.TimeoutSeconds > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, time.Duration(config.TimeoutSeconds*float64(time.Second)))
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, config.Method, url, body)
	if err != nil {
		return protocol.Failed(fmt.Errorf("failed to build request: %w", err))
	}

	if config.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	for name, value := range config.Headers {
		resolved, err := interpolate(value, env)
		if err != nil {
			return protocol.Failed(fmt.Errorf("failed to evaluate header %q: %w", name, err))
		}

		req.Header.Set(name, resolved)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return protocol.Failed(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return protocol.Failed(fmt.Errorf("failed to read response body: %w", err))
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		decoded = string(raw)
	}

	ectx.Logger.Debug("HTTP request completed",
		"node_id", node.ID, "method", config.Method, "url", url, "status", resp.StatusCode)

	return protocol.Completed(map[string]any{
		config.OutputVariable: map[string]any{
			"status":  resp.StatusCode,
			"headers": flattenHeaders(resp.Header),
			"body":    decoded,
		},
	})
}

// interpolate evaluates values prefixed with '=' as expressions and passes
// everything else through as a literal.
func interpolate(value string, env *expr.Env) (string, error) {
	if !strings.HasPrefix(value, "=") {
		return value, nil
	}

	evaluated, err := expr.Eval(strings.TrimPrefix(value, "="), env)
	if err != nil {
		return "", err
	}

	return expr.Stringify(evaluated), nil
}

func encodeBody(body any, env *expr.Env) ([]byte, error) {
	if text, ok := body.(string); ok {
		resolved, err := interpolate(text, env)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate body: %w", err)
		}

		return []byte(resolved), nil
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode body: %w", err)
	}

	return payload, nil
}

func flattenHeaders(headers http.Header) map[string]string {
	flat := make(map[string]string, len(headers))
	for name := range headers {
		flat[name] = headers.Get(name)
	}

	return flat
}
