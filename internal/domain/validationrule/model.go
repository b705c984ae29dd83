package validationrule

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/formula-engine/internal/expression"
)

type Operator string

const (
	OpEqual          Operator = "=="
	OpNotEqual       Operator = "!="
	OpGreater        Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpLess           Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpCompulsoryPair Operator = "compulsory_pair"
	OpExclusivePair  Operator = "exclusive_pair"
)

func (o Operator) Valid() bool {
	switch o {
	case OpEqual, OpNotEqual, OpGreater, OpGreaterOrEqual, OpLess, OpLessOrEqual,
		OpCompulsoryPair, OpExclusivePair:
		return true
	}
	return false
}

// Pair reports whether the operator only looks at which sides have values.
func (o Operator) Pair() bool {
	return o == OpCompulsoryPair || o == OpExclusivePair
}

// Rule maps to the validation_rule table.
type Rule struct {
	ID          uuid.UUID                     `db:"id" json:"id"`
	Name        string                        `db:"name" json:"name"`
	Description string                        `db:"description" json:"description,omitempty"`
	Left        string                        `db:"left_expression" json:"left"`
	LeftPolicy  expression.MissingValuePolicy `db:"left_policy" json:"left_policy"`
	Operator    Operator                      `db:"operator" json:"operator"`
	Right       string                        `db:"right_expression" json:"right"`
	RightPolicy expression.MissingValuePolicy `db:"right_policy" json:"right_policy"`
	CreatedAt   time.Time                     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time                     `db:"updated_at" json:"updated_at"`
}

func (r *Rule) check() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(r.Left) == "" || strings.TrimSpace(r.Right) == "" {
		return fmt.Errorf("left and right expressions are required")
	}
	if !r.Operator.Valid() {
		return fmt.Errorf("unknown operator %q", r.Operator)
	}
	return nil
}

type DataRequest struct {
	Period string             `json:"period,omitempty"`
	Values map[string]float64 `json:"values"`
	Days   *int               `json:"days,omitempty"`
}

// Result is the outcome of one rule for one set of data. Evaluated is false
// when a comparison was skipped because a side had no value.
type Result struct {
	RuleID    uuid.UUID         `json:"rule_id"`
	Name      string            `json:"name"`
	Period    string            `json:"period,omitempty"`
	Left      expression.Result `json:"left_side"`
	Operator  Operator          `json:"operator"`
	Right     expression.Result `json:"right_side"`
	Evaluated bool              `json:"evaluated"`
	Violated  bool              `json:"violated"`
}

// Check evaluates both sides under their own policies and applies the
// operator.
func Check(r *Rule, eval expression.Evaluator, in expression.Input) (*Result, error) {
	left, err := side(eval, r.Left, r.LeftPolicy, in)
	if err != nil {
		return nil, fmt.Errorf("left side of %s: %w", r.Name, err)
	}
	right, err := side(eval, r.Right, r.RightPolicy, in)
	if err != nil {
		return nil, fmt.Errorf("right side of %s: %w", r.Name, err)
	}

	res := &Result{RuleID: r.ID, Name: r.Name, Left: left, Operator: r.Operator, Right: right}
	switch r.Operator {
	case OpCompulsoryPair:
		res.Evaluated = true
		res.Violated = left.HasValue() != right.HasValue()
	case OpExclusivePair:
		res.Evaluated = true
		res.Violated = left.HasValue() && right.HasValue()
	default:
		l, lok := left.Float()
		rv, rok := right.Float()
		if !lok || !rok {
			return res, nil
		}
		res.Evaluated = true
		res.Violated = !compare(l, r.Operator, rv)
	}
	return res, nil
}

func side(eval expression.Evaluator, formula string, policy expression.MissingValuePolicy, in expression.Input) (expression.Result, error) {
	in.Policy = policy
	return eval.Evaluate(formula, in)
}

func compare(l float64, op Operator, r float64) bool {
	switch op {
	case OpEqual:
		return l == r
	case OpNotEqual:
		return l != r
	case OpGreater:
		return l > r
	case OpGreaterOrEqual:
		return l >= r
	case OpLess:
		return l < r
	case OpLessOrEqual:
		return l <= r
	}
	return false
}
