package formula

import (
	"github.com/ehr/formula-engine/internal/expression"
)

// EvaluateRequest carries a formula and the data to evaluate it against.
// Constants and org unit group counts default to the tenant metadata.
type EvaluateRequest struct {
	Formula            string                        `json:"formula"`
	Values             map[string]float64            `json:"values"`
	Constants          map[string]float64            `json:"constants,omitempty"`
	OrgUnitGroupCounts map[string]int                `json:"org_unit_group_counts,omitempty"`
	Days               *int                          `json:"days,omitempty"`
	Policy             expression.MissingValuePolicy `json:"missing_value_policy"`
	Samples            map[string][]float64          `json:"samples,omitempty"`
}

func (r EvaluateRequest) input() expression.Input {
	return expression.Input{
		Values:             r.Values,
		Constants:          r.Constants,
		OrgUnitGroupCounts: r.OrgUnitGroupCounts,
		Days:               r.Days,
		Policy:             r.Policy,
		Samples:            r.Samples,
	}
}

type EvaluateResponse struct {
	Formula  string            `json:"formula"`
	Value    expression.Result `json:"value"`
	HasValue bool              `json:"has_value"`
}

type Suggestion struct {
	Class expression.ObjectClass `json:"class"`
	UID   string                 `json:"uid"`
	Name  string                 `json:"name"`
}

type ValidateResponse struct {
	Formula    string                       `json:"formula"`
	Valid      bool                         `json:"valid"`
	Outcome    expression.ValidationOutcome `json:"outcome"`
	Reference  string                       `json:"reference,omitempty"`
	Message    string                       `json:"message"`
	Suggestion *Suggestion                  `json:"suggestion,omitempty"`
}

type DescribeResponse struct {
	Formula     string `json:"formula"`
	Description string `json:"description"`
}

// ItemsResponse lists what a caller must fetch before evaluating a formula.
type ItemsResponse struct {
	DimensionalItems   []string `json:"dimensional_items"`
	Constants          []string `json:"constants"`
	OrgUnitGroups      []string `json:"org_unit_groups"`
	AggregateArguments []string `json:"aggregate_arguments"`
}

type NamedFormula struct {
	Name    string `json:"name"`
	Formula string `json:"formula"`
}

type FormulaRequest struct {
	Formula string `json:"formula"`
}

type ReportRequest struct {
	Title    string         `json:"title"`
	Formulas []NamedFormula `json:"formulas"`
}
