package expression

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ehr/formula-engine/internal/expression/mathexpr"
)

// Evaluator computes the result of a formula against an Input. Both
// implementations are stateless and safe for concurrent use.
type Evaluator interface {
	Evaluate(formula string, in Input) (Result, error)
}

// Strategy names accepted by NewEvaluator.
const (
	StrategySubstitution = "substitution"
	StrategyTree         = "tree"
)

// NewEvaluator returns the evaluator for a strategy name.
func NewEvaluator(strategy string) (Evaluator, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case StrategySubstitution, "":
		return NewSubstitutionEvaluator(), nil
	case StrategyTree:
		return NewTreeEvaluator(), nil
	}
	return nil, fmt.Errorf("unknown evaluator strategy %q", strategy)
}

// SubstitutionEvaluator rewrites the formula into a literal expression and
// hands it to the math evaluator.
type SubstitutionEvaluator struct {
	math *mathexpr.Evaluator
}

func NewSubstitutionEvaluator() *SubstitutionEvaluator {
	return &SubstitutionEvaluator{math: mathexpr.New()}
}

func (e *SubstitutionEvaluator) Evaluate(formula string, in Input) (Result, error) {
	if strings.TrimSpace(formula) == "" {
		return NoValue(), nil
	}

	literal, err := Substitute(formula, in)
	if errors.Is(err, ErrNoValue) {
		return NoValue(), nil
	}
	if err != nil {
		return NoValue(), err
	}

	out, err := e.math.Evaluate(literal)
	if errors.Is(err, ErrNoValue) {
		return NoValue(), nil
	}
	if err != nil {
		return NoValue(), err
	}
	return resultOf(out)
}

func resultOf(v interface{}) (Result, error) {
	switch x := v.(type) {
	case float64:
		return NumberResult(x), nil
	case bool:
		return BoolResult(x), nil
	}
	return NoValue(), fmt.Errorf("unexpected result type %T", v)
}
