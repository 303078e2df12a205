package models

import "time"

// HitPolicy resolves multiple matching decision rules into one result.
type HitPolicy string

const (
	HitPolicyUnique      HitPolicy = "UNIQUE"
	HitPolicyFirst       HitPolicy = "FIRST"
	HitPolicyPriority    HitPolicy = "PRIORITY"
	HitPolicyAny         HitPolicy = "ANY"
	HitPolicyCollect     HitPolicy = "COLLECT"
	HitPolicyRuleOrder   HitPolicy = "RULE_ORDER"
	HitPolicyOutputOrder HitPolicy = "OUTPUT_ORDER"
)

// ReturnsList reports whether the policy yields a list of output bundles
// rather than a single bundle.
func (p HitPolicy) ReturnsList() bool {
	return p == HitPolicyCollect || p == HitPolicyRuleOrder || p == HitPolicyOutputOrder
}

// TableStatus is the lifecycle state of a decision table.
type TableStatus string

const (
	TableStatusDraft     TableStatus = "draft"
	TableStatusPublished TableStatus = "published"
	TableStatusArchived  TableStatus = "archived"
)

// ConditionOperator tags the closed variant set of rule conditions.
type ConditionOperator string

const (
	OpAny                ConditionOperator = "any"
	OpEquals             ConditionOperator = "equals"
	OpNotEquals          ConditionOperator = "notEquals"
	OpLessThan           ConditionOperator = "lessThan"
	OpLessThanOrEqual    ConditionOperator = "lessThanOrEqual"
	OpGreaterThan        ConditionOperator = "greaterThan"
	OpGreaterThanOrEqual ConditionOperator = "greaterThanOrEqual"
	OpBetween            ConditionOperator = "between"
	OpIn                 ConditionOperator = "in"
	OpNotIn              ConditionOperator = "notIn"
	OpContains           ConditionOperator = "contains"
	OpStartsWith         ConditionOperator = "startsWith"
	OpEndsWith           ConditionOperator = "endsWith"
	OpMatches            ConditionOperator = "matches"
	OpIsNull             ConditionOperator = "isNull"
	OpIsNotNull          ConditionOperator = "isNotNull"
	OpExpression         ConditionOperator = "expression"
)

// ConditionExpression is one rule cell: an operator plus whichever operands
// that operator needs. Absence of a condition for an input means "always
// matches".
type ConditionExpression struct {
	Operator   ConditionOperator `json:"operator"              validate:"required"`
	Value      any               `json:"value,omitempty"`
	Min        any               `json:"min,omitempty"`        // between
	Max        any               `json:"max,omitempty"`        // between
	Values     []any             `json:"values,omitempty"`     // in / notIn
	Expression string            `json:"expression,omitempty"` // expression operator
}

// DecisionInput declares one input column of a table.
type DecisionInput struct {
	ID            string `json:"id"            validate:"required"`
	Name          string `json:"name"          validate:"required"`
	Type          string `json:"type"` // string | number | boolean | date | any
	Required      bool   `json:"required,omitempty"`
	AllowedValues []any  `json:"allowed_values,omitempty"`
}

// DecisionOutput declares one output column of a table.
type DecisionOutput struct {
	ID            string `json:"id"            validate:"required"`
	Name          string `json:"name"          validate:"required"`
	Type          string `json:"type"`
	DefaultValue  any    `json:"default_value,omitempty"`
	Priority      int    `json:"priority,omitempty"`
	AllowedValues []any  `json:"allowed_values,omitempty"` // Also the preference order for OUTPUT_ORDER
}

// RuleOutput is one output cell: either a literal value or an expression
// evaluated against the full input bag.
type RuleOutput struct {
	Value      any    `json:"value,omitempty"`
	Expression string `json:"expression,omitempty"`
}

// DecisionRule is one ordered row of a table. Order is semantically
// significant for FIRST, PRIORITY, COLLECT and RULE_ORDER hit policies.
type DecisionRule struct {
	ID         string                         `json:"id"`
	Conditions map[string]ConditionExpression `json:"conditions,omitempty"` // Keyed by input id
	Outputs    map[string]RuleOutput          `json:"outputs"`              // Keyed by output id
	Priority   int                            `json:"priority,omitempty"`
	Enabled    bool                           `json:"enabled"`
	Note       string                         `json:"note,omitempty"`
}

// TableSettings carries evaluation-time behavior switches.
type TableSettings struct {
	ValidateInputs bool `json:"validate_inputs"`
	StrictMode     bool `json:"strict_mode"`
	Cache          bool `json:"cache"`
	LogEvaluations bool `json:"log_evaluations"`
}

// DecisionTable is an ordered rule set with a single hit policy. Published
// tables must have at least one input, output and rule, and no duplicate
// input/output names; this is enforced at publish time.
type DecisionTable struct {
	ID          string           `json:"id"`
	Slug        string           `json:"slug,omitempty"`
	Name        string           `json:"name"        validate:"required,min=3"`
	Description string           `json:"description,omitempty"`
	Inputs      []DecisionInput  `json:"inputs"`
	Outputs     []DecisionOutput `json:"outputs"`
	Rules       []*DecisionRule  `json:"rules"`
	HitPolicy   HitPolicy        `json:"hit_policy"  validate:"required"`
	Settings    TableSettings    `json:"settings"`
	Version     int              `json:"version"`
	Status      TableStatus      `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	PublishedAt *time.Time       `json:"published_at,omitempty"`
	PublishedBy string           `json:"published_by,omitempty"`
}

// InputByID resolves a declared input.
func (t *DecisionTable) InputByID(id string) (*DecisionInput, bool) {
	for i := range t.Inputs {
		if t.Inputs[i].ID == id {
			return &t.Inputs[i], true
		}
	}

	return nil, false
}

// OutputByID resolves a declared output.
func (t *DecisionTable) OutputByID(id string) (*DecisionOutput, bool) {
	for i := range t.Outputs {
		if t.Outputs[i].ID == id {
			return &t.Outputs[i], true
		}
	}

	return nil, false
}

// DefaultOutputs returns the bundle of declared output defaults, or nil if
// no output declares one.
func (t *DecisionTable) DefaultOutputs() map[string]any {
	var defaults map[string]any

	for _, out := range t.Outputs {
		if out.DefaultValue != nil {
			if defaults == nil {
				defaults = make(map[string]any)
			}

			defaults[out.Name] = out.DefaultValue
		}
	}

	return defaults
}

// EvaluationError is a typed, non-thrown evaluation problem. Callers must
// inspect Success/Errors rather than rely on returned Go errors.
type EvaluationError struct {
	Type    string `json:"type"` // missing_required_input | type_mismatch | multiple_matches | any_conflict | no_match
	Input   string `json:"input,omitempty"`
	Message string `json:"message"`
}

// EvaluationResult is the outcome of evaluating a table against one input
// bag. For list hit policies OutputList is set; otherwise Outputs is.
type EvaluationResult struct {
	TableID      string            `json:"table_id"`
	TableVersion int               `json:"table_version"`
	Success      bool              `json:"success"`
	Outputs      map[string]any    `json:"outputs,omitempty"`
	OutputList   []map[string]any  `json:"output_list,omitempty"`
	MatchedRules []string          `json:"matched_rules,omitempty"`
	Errors       []EvaluationError `json:"errors,omitempty"`
	Warnings     []EvaluationError `json:"warnings,omitempty"`
	DurationMs   int64             `json:"duration_ms"`
	EvaluatedAt  time.Time         `json:"evaluated_at"`
	Source       string            `json:"source,omitempty"`
	Cached       bool              `json:"cached,omitempty"`
}

// HasErrorType reports whether any error of the given type was recorded.
func (r *EvaluationResult) HasErrorType(errType string) bool {
	for _, e := range r.Errors {
		if e.Type == errType {
			return true
		}
	}

	return false
}
