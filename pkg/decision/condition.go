// Package decision implements decision-table evaluation with DMN-style hit
// policies.
package decision

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/expr"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
)

// matchCondition reports whether one condition cell accepts the input value.
// The inputs bag is available to expression conditions alongside the raw
// value.
func matchCondition(cond models.ConditionExpression, value any, inputs map[string]any) (bool, error) {
	switch cond.Operator {
	case models.OpAny:
		return true, nil

	case models.OpEquals:
		return expr.Equal(value, cond.Value), nil

	case models.OpNotEquals:
		return !expr.Equal(value, cond.Value), nil

	case models.OpLessThan, models.OpLessThanOrEqual, models.OpGreaterThan, models.OpGreaterThanOrEqual:
		return matchOrdered(cond.Operator, value, cond.Value)

	case models.OpBetween:
		atLeast, err := matchOrdered(models.OpGreaterThanOrEqual, value, cond.Min)
		if err != nil {
			return false, err
		}

		atMost, err := matchOrdered(models.OpLessThanOrEqual, value, cond.Max)
		if err != nil {
			return false, err
		}

		return atLeast && atMost, nil

	case models.OpIn:
		return valueIn(value, cond.Values), nil

	case models.OpNotIn:
		return !valueIn(value, cond.Values), nil

	case models.OpContains:
		return strings.Contains(expr.Stringify(value), expr.Stringify(cond.Value)), nil

	case models.OpStartsWith:
		return strings.HasPrefix(expr.Stringify(value), expr.Stringify(cond.Value)), nil

	case models.OpEndsWith:
		return strings.HasSuffix(expr.Stringify(value), expr.Stringify(cond.Value)), nil

	case models.OpMatches:
		pattern, ok := cond.Value.(string)
		if !ok {
			return false, fmt.Errorf("matches operator requires a string pattern, got %T", cond.Value)
		}

		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}

		return re.MatchString(expr.Stringify(value)), nil

	case models.OpIsNull:
		return value == nil, nil

	case models.OpIsNotNull:
		return value != nil, nil

	case models.OpExpression:
		env := expr.NewEnv(map[string]any{"value": value}).WithNamespace("inputs", inputs)

		return expr.EvalBool(cond.Expression, env)
	}

	return false, fmt.Errorf("unknown condition operator %q", cond.Operator)
}

func matchOrdered(op models.ConditionOperator, left, right any) (bool, error) {
	lf, lok := expr.Numeric(left)
	rf, rok := expr.Numeric(right)

	if lok && rok {
		switch op {
		case models.OpLessThan:
			return lf < rf, nil
		case models.OpLessThanOrEqual:
			return lf <= rf, nil
		case models.OpGreaterThan:
			return lf > rf, nil
		case models.OpGreaterThanOrEqual:
			return lf >= rf, nil
		}
	}

	ls, lsok := left.(string)
	rs, rsok := right.(string)

	if lsok && rsok {
		switch op {
		case models.OpLessThan:
			return ls < rs, nil
		case models.OpLessThanOrEqual:
			return ls <= rs, nil
		case models.OpGreaterThan:
			return ls > rs, nil
		case models.OpGreaterThanOrEqual:
			return ls >= rs, nil
		}
	}

	return false, fmt.Errorf("cannot order %T against %T", left, right)
}

func valueIn(value any, set []any) bool {
	for _, candidate := range set {
		if expr.Equal(value, candidate) {
			return true
		}
	}

	return false
}

// typeMatches checks a supplied value against a declared input type. The
// "any" type (or no declaration) accepts everything.
func typeMatches(declared string, value any) bool {
	if declared == "" || declared == "any" || value == nil {
		return true
	}

	switch declared {
	case "string", "date":
		_, ok := value.(string)

		return ok
	case "number":
		_, ok := expr.Numeric(value)

		return ok
	case "boolean":
		_, ok := value.(bool)

		return ok
	}

	return true
}
