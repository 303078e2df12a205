package decision

import (
	"fmt"
	"sort"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/expr"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
)

// applyHitPolicy resolves the ordered match list into the result according
// to the table's hit policy.
func applyHitPolicy(table *models.DecisionTable, matches []ruleMatch, result *models.EvaluationResult) {
	if len(matches) == 0 {
		if defaults := table.DefaultOutputs(); defaults != nil {
			if table.HitPolicy.ReturnsList() {
				result.OutputList = []map[string]any{defaults}
			} else {
				result.Outputs = defaults
			}

			result.Success = true

			return
		}

		result.Errors = append(result.Errors, models.EvaluationError{
			Type:    ErrTypeNoMatch,
			Message: "no rules matched the supplied inputs",
		})
		result.Outputs = map[string]any{}
		result.Success = false

		return
	}

	switch table.HitPolicy {
	case models.HitPolicyUnique:
		result.Outputs = matches[0].outputs
		result.Success = len(matches) == 1

		if len(matches) > 1 {
			result.Errors = append(result.Errors, models.EvaluationError{
				Type:    ErrTypeMultipleMatches,
				Message: fmt.Sprintf("UNIQUE hit policy violated: %d rules matched", len(matches)),
			})
		}

	case models.HitPolicyFirst:
		result.Outputs = matches[0].outputs
		result.Success = true

	case models.HitPolicyPriority:
		best := matches[0]

		for _, m := range matches[1:] {
			if m.rule.Priority > best.rule.Priority {
				best = m
			}
		}

		result.Outputs = best.outputs
		result.Success = true

	case models.HitPolicyAny:
		result.Outputs = matches[0].outputs
		result.Success = true

		for _, m := range matches[1:] {
			if !bundlesEqual(matches[0].outputs, m.outputs) {
				result.Errors = append(result.Errors, models.EvaluationError{
					Type:    ErrTypeAnyConflict,
					Message: "ANY hit policy violated: matched rules produced different outputs",
				})
				result.Success = false

				break
			}
		}

	case models.HitPolicyCollect, models.HitPolicyRuleOrder:
		result.OutputList = collectBundles(matches)
		result.Success = true

	case models.HitPolicyOutputOrder:
		bundles := collectBundles(matches)
		sortByOutputOrder(table, bundles)
		result.OutputList = bundles
		result.Success = true

	default:
		// Unknown policies behave like FIRST rather than failing the run.
		result.Outputs = matches[0].outputs
		result.Success = true
	}
}

func collectBundles(matches []ruleMatch) []map[string]any {
	bundles := make([]map[string]any, len(matches))

	for i, m := range matches {
		bundles[i] = m.outputs
	}

	return bundles
}

// sortByOutputOrder orders bundles by each output's declared allowed-value
// index, most-preferred (lowest index) first. Outputs are consulted in their
// declaration order; undeclared values sort last.
func sortByOutputOrder(table *models.DecisionTable, bundles []map[string]any) {
	rank := func(bundle map[string]any) []int {
		ranks := make([]int, len(table.Outputs))

		for i, out := range table.Outputs {
			ranks[i] = len(out.AllowedValues)

			for idx, allowed := range out.AllowedValues {
				if expr.Equal(bundle[out.Name], allowed) {
					ranks[i] = idx

					break
				}
			}
		}

		return ranks
	}

	sort.SliceStable(bundles, func(i, j int) bool {
		ri, rj := rank(bundles[i]), rank(bundles[j])

		for k := range ri {
			if ri[k] != rj[k] {
				return ri[k] < rj[k]
			}
		}

		return false
	})
}

// bundlesEqual is deep value equality with numeric coercion per key.
func bundlesEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}

	for k, av := range a {
		bv, ok := b[k]
		if !ok || !expr.Equal(av, bv) {
			return false
		}
	}

	return true
}
