package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEval_Literals(t *testing.T) {
	tests := []struct {
		src  string
		want any
	}{
		{"42", float64(42)},
		{"3.14", 3.14},
		{"'hello'", "hello"},
		{`"world"`, "world"},
		{"true", true},
		{"false", false},
		{"null", nil},
	}

	for _, tt := range tests {
		got, err := Eval(tt.src, NewEnv(nil))
		require.NoError(t, err, tt.src)
		assert.Equal(t, tt.want, got, tt.src)
	}
}

func TestEval_Arithmetic(t *testing.T) {
	tests := []struct {
		src  string
		want any
	}{
		{"1 + 2 * 3", float64(7)},
		{"(1 + 2) * 3", float64(9)},
		{"10 / 4", 2.5},
		{"10 % 3", float64(1)},
		{"-5 + 2", float64(-3)},
		{"'a' + 'b'", "ab"},
		{"'total: ' + 5", "total: 5"},
	}

	for _, tt := range tests {
		got, err := Eval(tt.src, NewEnv(nil))
		require.NoError(t, err, tt.src)
		assert.Equal(t, tt.want, got, tt.src)
	}
}

func TestEval_DivisionByZero(t *testing.T) {
	_, err := Eval("1 / 0", NewEnv(nil))
	assert.Error(t, err)
}

func TestEval_ComparisonAndLogic(t *testing.T) {
	env := NewEnv(map[string]any{"amount": float64(500), "status": "active"})

	tests := []struct {
		src  string
		want any
	}{
		{"amount > 100", true},
		{"amount <= 500", true},
		{"amount == 500", true},
		{"status == 'active'", true},
		{"status != 'active'", false},
		{"amount > 100 && status == 'active'", true},
		{"amount > 1000 || status == 'active'", true},
		{"!(amount > 1000)", true},
		{"'apple' < 'banana'", true},
	}

	for _, tt := range tests {
		got, err := Eval(tt.src, env)
		require.NoError(t, err, tt.src)
		assert.Equal(t, tt.want, got, tt.src)
	}
}

func TestEval_IntCoercion(t *testing.T) {
	env := NewEnv(map[string]any{"count": 3})

	got, err := Eval("count == 3", env)
	require.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestEval_MemberAndIndexAccess(t *testing.T) {
	env := NewEnv(map[string]any{
		"order": map[string]any{
			"total": float64(500),
			"items": []any{"widget", "gadget"},
		},
	})

	tests := []struct {
		src  string
		want any
	}{
		{"order.total", float64(500)},
		{"order.items[0]", "widget"},
		{"order.items[1]", "gadget"},
		{"order['total']", float64(500)},
		{"order.missing", nil},
		{"order.items[9]", nil},
	}

	for _, tt := range tests {
		got, err := Eval(tt.src, env)
		require.NoError(t, err, tt.src)
		assert.Equal(t, tt.want, got, tt.src)
	}
}

func TestEval_Ternary(t *testing.T) {
	env := NewEnv(map[string]any{"amount": float64(50)})

	got, err := Eval("amount > 100 ? 'high' : 'low'", env)
	require.NoError(t, err)
	assert.Equal(t, "low", got)
}

func TestEval_ArrayAndObjectLiterals(t *testing.T) {
	got, err := Eval("[1, 2, 3]", NewEnv(nil))
	require.NoError(t, err)
	assert.Equal(t, []any{float64(1), float64(2), float64(3)}, got)

	got, err = Eval("{approved: true, tier: 'gold'}", NewEnv(nil))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"approved": true, "tier": "gold"}, got)
}

func TestEval_Functions(t *testing.T) {
	env := NewEnv(map[string]any{"name": "flowforge", "values": []any{float64(1), float64(2)}})

	tests := []struct {
		src  string
		want any
	}{
		{"len(name)", float64(9)},
		{"len(values)", float64(2)},
		{"upper(name)", "FLOWFORGE"},
		{"contains(name, 'forge')", true},
		{"contains(values, 2)", true},
		{"startsWith(name, 'flow')", true},
		{"endsWith(name, 'forge')", true},
		{"min(3, 1, 2)", float64(1)},
		{"max(3, 1, 2)", float64(3)},
		{"round(2.5)", float64(3)},
		{"number('42')", float64(42)},
		{"coalesce(null, 'fallback')", "fallback"},
	}

	for _, tt := range tests {
		got, err := Eval(tt.src, env)
		require.NoError(t, err, tt.src)
		assert.Equal(t, tt.want, got, tt.src)
	}
}

func TestEval_UnknownFunction(t *testing.T) {
	_, err := Eval("explode()", NewEnv(nil))
	assert.Error(t, err)
}

func TestEval_LayeredNamespaces(t *testing.T) {
	env := NewEnv(map[string]any{"amount": float64(10)}).
		WithNamespace("user", map[string]any{"role": "manager"}).
		WithNamespace("system", map[string]any{"region": "eu"})

	got, err := Eval("user.role", env)
	require.NoError(t, err)
	assert.Equal(t, "manager", got)

	// Locals shadow namespaces of the same name.
	env2 := NewEnv(map[string]any{"user": "override"}).
		WithNamespace("user", map[string]any{"role": "manager"})

	got, err = Eval("user", env2)
	require.NoError(t, err)
	assert.Equal(t, "override", got)
}

func TestEval_UnknownIdentifierIsNull(t *testing.T) {
	got, err := Eval("missing", NewEnv(nil))
	require.NoError(t, err)
	assert.Nil(t, got)

	b, err := EvalBool("missing == null", NewEnv(nil))
	require.NoError(t, err)
	assert.True(t, b)
}

func TestTruthy(t *testing.T) {
	assert.True(t, Truthy(true))
	assert.True(t, Truthy(float64(1)))
	assert.True(t, Truthy("yes"))
	assert.True(t, Truthy("true"))
	assert.False(t, Truthy(false))
	assert.False(t, Truthy(float64(0)))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy("false"))
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy([]any{}))
	assert.True(t, Truthy([]any{1}))
}

func TestResolvePath(t *testing.T) {
	vars := map[string]any{"order": map[string]any{"total": float64(500)}}

	got, err := ResolvePath("order.total", vars)
	require.NoError(t, err)
	assert.Equal(t, float64(500), got)
}

func TestParse_Errors(t *testing.T) {
	for _, src := range []string{"1 +", "(1 + 2", "'unterminated", "a.", "foo(1,", "@bad"} {
		_, err := Parse(src)
		assert.Error(t, err, src)
	}
}
