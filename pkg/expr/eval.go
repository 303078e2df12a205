package expr

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Env is the layered variable context expressions resolve against. Vars is
// consulted first; Namespaces second, by namespace name (dataset, user,
// system and so on).
type Env struct {
	Vars       map[string]any
	Namespaces map[string]map[string]any
}

// NewEnv wraps a flat variable map.
func NewEnv(vars map[string]any) *Env {
	return &Env{Vars: vars}
}

// WithNamespace attaches a named secondary lookup layer.
func (e *Env) WithNamespace(name string, values map[string]any) *Env {
	if e.Namespaces == nil {
		e.Namespaces = make(map[string]map[string]any)
	}

	e.Namespaces[name] = values

	return e
}

func (e *Env) lookup(name string) (any, bool) {
	if e.Vars != nil {
		if v, ok := e.Vars[name]; ok {
			return v, true
		}
	}

	if ns, ok := e.Namespaces[name]; ok {
		return ns, true
	}

	return nil, false
}

// Eval parses and evaluates source against env in one call.
func Eval(src string, env *Env) (any, error) {
	node, err := Parse(src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse expression %q: %w", src, err)
	}

	return Evaluate(node, env)
}

// EvalBool evaluates source and reduces the result to its truthiness.
func EvalBool(src string, env *Env) (bool, error) {
	v, err := Eval(src, env)
	if err != nil {
		return false, err
	}

	return Truthy(v), nil
}

// ResolvePath evaluates a dot-path like "order.total" against a variable
// map. Used for input mappings.
func ResolvePath(path string, vars map[string]any) (any, error) {
	return Eval(path, NewEnv(vars))
}

// Evaluate walks a parsed tree against env.
func Evaluate(node Node, env *Env) (any, error) {
	switch n := node.(type) {
	case literalNode:
		return n.value, nil

	case identNode:
		v, ok := env.lookup(n.name)
		if !ok {
			// Unknown identifiers resolve to null so conditions over
			// optional variables stay writable.
			return nil, nil
		}

		return v, nil

	case unaryNode:
		operand, err := Evaluate(n.operand, env)
		if err != nil {
			return nil, err
		}

		switch n.op {
		case "-":
			f, ok := Numeric(operand)
			if !ok {
				return nil, fmt.Errorf("cannot negate %T", operand)
			}

			return -f, nil
		case "!":
			return !Truthy(operand), nil
		}

		return nil, fmt.Errorf("unknown unary operator %q", n.op)

	case binaryNode:
		return evalBinary(n, env)

	case ternaryNode:
		cond, err := Evaluate(n.cond, env)
		if err != nil {
			return nil, err
		}

		if Truthy(cond) {
			return Evaluate(n.then, env)
		}

		return Evaluate(n.otherwise, env)

	case memberNode:
		object, err := Evaluate(n.object, env)
		if err != nil {
			return nil, err
		}

		return member(object, n.name)

	case indexNode:
		object, err := Evaluate(n.object, env)
		if err != nil {
			return nil, err
		}

		idx, err := Evaluate(n.index, env)
		if err != nil {
			return nil, err
		}

		return index(object, idx)

	case callNode:
		args := make([]any, len(n.args))

		for i, argNode := range n.args {
			arg, err := Evaluate(argNode, env)
			if err != nil {
				return nil, err
			}

			args[i] = arg
		}

		return call(n.name, args)

	case arrayNode:
		elems := make([]any, len(n.elems))

		for i, elemNode := range n.elems {
			elem, err := Evaluate(elemNode, env)
			if err != nil {
				return nil, err
			}

			elems[i] = elem
		}

		return elems, nil

	case objectNode:
		obj := make(map[string]any, len(n.keys))

		for i, key := range n.keys {
			value, err := Evaluate(n.values[i], env)
			if err != nil {
				return nil, err
			}

			obj[key] = value
		}

		return obj, nil
	}

	return nil, fmt.Errorf("unknown node type %T", node)
}

func evalBinary(n binaryNode, env *Env) (any, error) {
	// Logical operators short-circuit.
	if n.op == "&&" || n.op == "||" {
		left, err := Evaluate(n.left, env)
		if err != nil {
			return nil, err
		}

		if n.op == "&&" && !Truthy(left) {
			return false, nil
		}

		if n.op == "||" && Truthy(left) {
			return true, nil
		}

		right, err := Evaluate(n.right, env)
		if err != nil {
			return nil, err
		}

		return Truthy(right), nil
	}

	left, err := Evaluate(n.left, env)
	if err != nil {
		return nil, err
	}

	right, err := Evaluate(n.right, env)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "==":
		return Equal(left, right), nil
	case "!=":
		return !Equal(left, right), nil
	case "<", "<=", ">", ">=":
		return compare(n.op, left, right)
	case "+":
		// String concat when either side is a string.
		if ls, ok := left.(string); ok {
			return ls + Stringify(right), nil
		}

		if rs, ok := right.(string); ok {
			return Stringify(left) + rs, nil
		}

		return arithmetic(n.op, left, right)
	case "-", "*", "/", "%":
		return arithmetic(n.op, left, right)
	}

	return nil, fmt.Errorf("unknown operator %q", n.op)
}

func compare(op string, left, right any) (any, error) {
	lf, lok := Numeric(left)
	rf, rok := Numeric(right)

	if lok && rok {
		switch op {
		case "<":
			return lf < rf, nil
		case "<=":
			return lf <= rf, nil
		case ">":
			return lf > rf, nil
		case ">=":
			return lf >= rf, nil
		}
	}

	ls, lsok := left.(string)
	rs, rsok := right.(string)

	if lsok && rsok {
		switch op {
		case "<":
			return ls < rs, nil
		case "<=":
			return ls <= rs, nil
		case ">":
			return ls > rs, nil
		case ">=":
			return ls >= rs, nil
		}
	}

	return nil, fmt.Errorf("cannot compare %T and %T", left, right)
}

func arithmetic(op string, left, right any) (any, error) {
	lf, lok := Numeric(left)
	rf, rok := Numeric(right)

	if !lok || !rok {
		return nil, fmt.Errorf("cannot apply %q to %T and %T", op, left, right)
	}

	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}

		return lf / rf, nil
	case "%":
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}

		return math.Mod(lf, rf), nil
	}

	return nil, fmt.Errorf("unknown arithmetic operator %q", op)
}

func member(object any, name string) (any, error) {
	switch o := object.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return o[name], nil
	case map[string]map[string]any:
		return o[name], nil
	}

	return nil, fmt.Errorf("cannot access member %q of %T", name, object)
}

func index(object, idx any) (any, error) {
	switch o := object.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		key, ok := idx.(string)
		if !ok {
			return nil, fmt.Errorf("map index must be a string, got %T", idx)
		}

		return o[key], nil
	case []any:
		f, ok := Numeric(idx)
		if !ok {
			return nil, fmt.Errorf("array index must be a number, got %T", idx)
		}

		i := int(f)
		if i < 0 || i >= len(o) {
			return nil, nil
		}

		return o[i], nil
	case string:
		f, ok := Numeric(idx)
		if !ok {
			return nil, fmt.Errorf("string index must be a number, got %T", idx)
		}

		i := int(f)
		if i < 0 || i >= len(o) {
			return nil, nil
		}

		return string(o[i]), nil
	}

	return nil, fmt.Errorf("cannot index %T", object)
}

// Truthy reduces a value to a boolean the way guard conditions expect:
// booleans as-is, numbers by non-zero, strings by non-empty ("false" is
// false), nil false, collections by non-empty.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		if t == "" {
			return false
		}

		if b, err := strconv.ParseBool(t); err == nil {
			return b
		}

		return true
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}

	if f, ok := Numeric(v); ok {
		return f != 0
	}

	return true
}

// Numeric coerces the usual JSON-decoded numeric types to float64.
func Numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}

	return 0, false
}

// Equal compares values with numeric coercion; everything else is deep
// equality.
func Equal(left, right any) bool {
	lf, lok := Numeric(left)
	rf, rok := Numeric(right)

	if lok && rok {
		return lf == rf
	}

	return reflect.DeepEqual(left, right)
}

// Stringify renders a value the way string concatenation expects.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}

	return fmt.Sprintf("%v", v)
}

func parseNumber(text string) any {
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return float64(0)
	}

	return f
}

func call(name string, args []any) (any, error) {
	fn, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("unknown function %q", name)
	}

	return fn(args)
}

var builtins = map[string]func([]any) (any, error){
	"len": func(args []any) (any, error) {
		if err := arity("len", args, 1); err != nil {
			return nil, err
		}

		switch v := args[0].(type) {
		case string:
			return float64(len(v)), nil
		case []any:
			return float64(len(v)), nil
		case map[string]any:
			return float64(len(v)), nil
		case nil:
			return float64(0), nil
		}

		return nil, fmt.Errorf("len: unsupported type %T", args[0])
	},
	"upper": stringFn("upper", strings.ToUpper),
	"lower": stringFn("lower", strings.ToLower),
	"trim":  stringFn("trim", strings.TrimSpace),
	"contains": func(args []any) (any, error) {
		if err := arity("contains", args, 2); err != nil {
			return nil, err
		}

		if list, ok := args[0].([]any); ok {
			for _, item := range list {
				if Equal(item, args[1]) {
					return true, nil
				}
			}

			return false, nil
		}

		return strings.Contains(Stringify(args[0]), Stringify(args[1])), nil
	},
	"startsWith": func(args []any) (any, error) {
		if err := arity("startsWith", args, 2); err != nil {
			return nil, err
		}

		return strings.HasPrefix(Stringify(args[0]), Stringify(args[1])), nil
	},
	"endsWith": func(args []any) (any, error) {
		if err := arity("endsWith", args, 2); err != nil {
			return nil, err
		}

		return strings.HasSuffix(Stringify(args[0]), Stringify(args[1])), nil
	},
	"abs":   numberFn("abs", math.Abs),
	"round": numberFn("round", math.Round),
	"floor": numberFn("floor", math.Floor),
	"ceil":  numberFn("ceil", math.Ceil),
	"min": func(args []any) (any, error) {
		return fold("min", args, math.Min)
	},
	"max": func(args []any) (any, error) {
		return fold("max", args, math.Max)
	},
	"string": func(args []any) (any, error) {
		if err := arity("string", args, 1); err != nil {
			return nil, err
		}

		return Stringify(args[0]), nil
	},
	"number": func(args []any) (any, error) {
		if err := arity("number", args, 1); err != nil {
			return nil, err
		}

		if f, ok := Numeric(args[0]); ok {
			return f, nil
		}

		if s, ok := args[0].(string); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("number: cannot parse %q", s)
			}

			return f, nil
		}

		return nil, fmt.Errorf("number: unsupported type %T", args[0])
	},
	"coalesce": func(args []any) (any, error) {
		for _, arg := range args {
			if arg != nil {
				return arg, nil
			}
		}

		return nil, nil
	},
}

func arity(name string, args []any, want int) error {
	if len(args) != want {
		return fmt.Errorf("%s: expected %d argument(s), got %d", name, want, len(args))
	}

	return nil
}

func stringFn(name string, fn func(string) string) func([]any) (any, error) {
	return func(args []any) (any, error) {
		if err := arity(name, args, 1); err != nil {
			return nil, err
		}

		return fn(Stringify(args[0])), nil
	}
}

func numberFn(name string, fn func(float64) float64) func([]any) (any, error) {
	return func(args []any) (any, error) {
		if err := arity(name, args, 1); err != nil {
			return nil, err
		}

		f, ok := Numeric(args[0])
		if !ok {
			return nil, fmt.Errorf("%s: expected a number, got %T", name, args[0])
		}

		return fn(f), nil
	}
}

func fold(name string, args []any, fn func(float64, float64) float64) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%s: expected at least one argument", name)
	}

	acc, ok := Numeric(args[0])
	if !ok {
		return nil, fmt.Errorf("%s: expected numbers", name)
	}

	for _, arg := range args[1:] {
		f, ok := Numeric(arg)
		if !ok {
			return nil, fmt.Errorf("%s: expected numbers", name)
		}

		acc = fn(acc, f)
	}

	return acc, nil
}
