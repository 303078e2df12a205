package decision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/expr"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
)

// Evaluation error types. These travel in EvaluationResult.Errors, never as
// thrown Go errors.
const (
	ErrTypeMissingInput    = "missing_required_input"
	ErrTypeTypeMismatch    = "type_mismatch"
	ErrTypeMultipleMatches = "multiple_matches"
	ErrTypeAnyConflict     = "any_conflict"
	ErrTypeNoMatch         = "no_match"
)

// ruleMatch pairs a matched rule with its computed output bundle.
type ruleMatch struct {
	rule    *models.DecisionRule
	outputs map[string]any
}

// Engine evaluates decision tables. It holds no per-evaluation state; one
// engine serves any number of concurrent callers.
type Engine struct {
	logger  *slog.Logger
	evalLog *EvalLog
	cache   ResultCache
}

// Option configures an Engine.
type Option func(*Engine)

// WithEvalLog attaches a bounded evaluation log sink.
func WithEvalLog(evalLog *EvalLog) Option {
	return func(e *Engine) { e.evalLog = evalLog }
}

// WithCache attaches a result cache consulted for tables with the cache
// setting enabled.
func WithCache(cache ResultCache) Option {
	return func(e *Engine) { e.cache = cache }
}

// NewEngine creates a decision evaluation engine.
func NewEngine(logger *slog.Logger, opts ...Option) *Engine {
	engine := &Engine{logger: logger}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

// Evaluate runs the table against the supplied inputs and applies its hit
// policy. Evaluation problems are reported inside the result; the returned
// error is reserved for infrastructure failures.
func (e *Engine) Evaluate(ctx context.Context, table *models.DecisionTable, inputs map[string]any, source string) (*models.EvaluationResult, error) {
	started := time.Now()

	result := &models.EvaluationResult{
		TableID:      table.ID,
		TableVersion: table.Version,
		EvaluatedAt:  started.UTC(),
		Source:       source,
	}

	if e.cache != nil && table.Settings.Cache {
		if cached, ok := e.cache.Get(ctx, table, inputs); ok {
			cached.Cached = true
			cached.Source = source

			return cached, nil
		}
	}

	// (a) input validation
	if table.Settings.ValidateInputs {
		problems := validateInputs(table, inputs)

		if len(problems) > 0 {
			if table.Settings.StrictMode {
				result.Errors = problems
				result.Success = false
				result.DurationMs = time.Since(started).Milliseconds()
				e.record(table, inputs, result)

				return result, nil
			}

			result.Warnings = problems
		}
	}

	// (b) + (c) match enabled rules in rule order
	matches, err := e.matchRules(table, inputs)
	if err != nil {
		return nil, err
	}

	for _, m := range matches {
		result.MatchedRules = append(result.MatchedRules, m.rule.ID)
	}

	// (e) hit policy resolution
	applyHitPolicy(table, matches, result)

	result.DurationMs = time.Since(started).Milliseconds()

	if result.Success && e.cache != nil && table.Settings.Cache {
		e.cache.Put(ctx, table, inputs, result)
	}

	e.record(table, inputs, result)

	return result, nil
}

func (e *Engine) record(table *models.DecisionTable, inputs map[string]any, result *models.EvaluationResult) {
	if e.evalLog == nil || !table.Settings.LogEvaluations {
		return
	}

	e.evalLog.Append(EvalLogEntry{
		TableID:      table.ID,
		TableVersion: table.Version,
		Inputs:       inputs,
		Outputs:      result.Outputs,
		OutputList:   result.OutputList,
		MatchedRules: result.MatchedRules,
		Success:      result.Success,
		DurationMs:   result.DurationMs,
		Source:       result.Source,
		Timestamp:    result.EvaluatedAt,
	})
}

// validateInputs checks the supplied values against the declared inputs.
func validateInputs(table *models.DecisionTable, inputs map[string]any) []models.EvaluationError {
	var problems []models.EvaluationError

	for _, declared := range table.Inputs {
		value, supplied := inputs[declared.Name]

		if !supplied || value == nil {
			if declared.Required {
				problems = append(problems, models.EvaluationError{
					Type:    ErrTypeMissingInput,
					Input:   declared.Name,
					Message: fmt.Sprintf("required input %q is missing", declared.Name),
				})
			}

			continue
		}

		if !typeMatches(declared.Type, value) {
			problems = append(problems, models.EvaluationError{
				Type:    ErrTypeTypeMismatch,
				Input:   declared.Name,
				Message: fmt.Sprintf("input %q expected type %s, got %T", declared.Name, declared.Type, value),
			})
		}
	}

	return problems
}

// matchRules filters to enabled rules in order and computes the output
// bundle for every rule whose constrained inputs all accept their values.
func (e *Engine) matchRules(table *models.DecisionTable, inputs map[string]any) ([]ruleMatch, error) {
	var matches []ruleMatch

	for _, rule := range table.Rules {
		if rule == nil || !rule.Enabled {
			continue
		}

		matched := true

		for inputID, cond := range rule.Conditions {
			declared, ok := table.InputByID(inputID)
			if !ok {
				// Condition against an undeclared input cannot match.
				matched = false

				break
			}

			ok, err := matchCondition(cond, inputs[declared.Name], inputs)
			if err != nil {
				return nil, fmt.Errorf("rule %s, input %s: %w", rule.ID, declared.Name, err)
			}

			if !ok {
				matched = false

				break
			}
		}

		if !matched {
			continue
		}

		outputs, err := computeOutputs(table, rule, inputs)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}

		matches = append(matches, ruleMatch{rule: rule, outputs: outputs})
	}

	return matches, nil
}

// computeOutputs builds the bundle for one matched rule. Literal values are
// used as-is; expressions evaluate against the full input bag.
func computeOutputs(table *models.DecisionTable, rule *models.DecisionRule, inputs map[string]any) (map[string]any, error) {
	bundle := make(map[string]any, len(table.Outputs))

	for _, declared := range table.Outputs {
		cell, ok := rule.Outputs[declared.ID]
		if !ok {
			if declared.DefaultValue != nil {
				bundle[declared.Name] = declared.DefaultValue
			}

			continue
		}

		if cell.Expression != "" {
			value, err := expr.Eval(cell.Expression, expr.NewEnv(inputs))
			if err != nil {
				return nil, fmt.Errorf("output %s: %w", declared.Name, err)
			}

			bundle[declared.Name] = value

			continue
		}

		bundle[declared.Name] = cell.Value
	}

	return bundle, nil
}
