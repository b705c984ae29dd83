package expression

import (
	"errors"
	"math"
	"testing"
)

type evalFixture struct {
	name    string
	formula string
	in      Input
	want    Result
}

func evalFixtures() []evalFixture {
	values := map[string]float64{"deA.comboX": 50, "deB": 200, "a": 10, "b": 5, "zero": 0}
	samples := map[string][]float64{
		"#{a}":     {1, 2, 3, 4},
		"#{b} * 2": {2, 4, 4, 4, 5, 5, 7, 9},
	}
	return []evalFixture{
		{"end to end", "#{deA.comboX} / #{deB} * 100", Input{Values: values}, NumberResult(25)},
		{"any missing", "#{a} + #{missing}", Input{Values: values, Policy: SkipIfAnyValueMissing}, NoValue()},
		{"all missing with one present", "#{a} + #{missing}", Input{Values: values, Policy: SkipIfAllValuesMissing}, NumberResult(10)},
		{"never skip", "#{a} + #{missing}", Input{Values: values, Policy: NeverSkip}, NumberResult(10)},
		{"all missing", "#{x} + #{y}", Input{Values: values, Policy: SkipIfAllValuesMissing}, NoValue()},
		{"present zero", "#{zero} * 3", Input{Values: values, Policy: SkipIfAnyValueMissing}, NumberResult(0)},
		{"isNull exemption", "IF(isNull(#{m}), 0, #{m}) + #{m}", Input{Values: values, Policy: SkipIfAllValuesMissing}, NumberResult(0)},
		{"isNotNull guard", "isNotNull(#{b}) && #{b} > 3", Input{Values: values}, BoolResult(true)},
		{"constants and groups", "C{c} * OUG{g} + [days]", Input{
			Constants:          map[string]float64{"c": 2.5},
			OrgUnitGroupCounts: map[string]int{"g": 4},
			Days:               Days(31),
		}, NumberResult(41)},
		{"round", "round(#{a} / 3, 2)", Input{Values: values}, NumberResult(3.33)},
		{"unary and power", "-#{b} ^ 2", Input{Values: values}, NumberResult(-25)},
		{"comparison", "#{a} > 3 || #{b} < 1", Input{Values: values}, BoolResult(true)},
		{"division by zero", "#{a} / #{zero}", Input{Values: values}, NoValue()},
		{"percentile", "PERCENTILE(50, #{a})", Input{Samples: samples}, NumberResult(2.5)},
		{"stddev", "ROUND(STDDEV(#{b} * 2), 4)", Input{Samples: samples}, NumberResult(2.1381)},
		{"missing samples skip", "SUM(#{x})", Input{Samples: samples, Policy: SkipIfAnyValueMissing}, NoValue()},
		{"missing samples zero", "SUM(#{x}) + 1", Input{Samples: samples}, NumberResult(1)},
		{"aggregate without samples", "MAX(#{a}, #{b}) - MIN(#{a}, #{b})", Input{Values: values}, NumberResult(5)},
		{"empty formula", "", Input{}, NoValue()},
	}
}

func TestEvaluators_AgreeOnFixtures(t *testing.T) {
	for _, strategy := range []string{StrategySubstitution, StrategyTree} {
		ev, err := NewEvaluator(strategy)
		if err != nil {
			t.Fatalf("NewEvaluator(%q): %v", strategy, err)
		}
		for _, fx := range evalFixtures() {
			got, err := ev.Evaluate(fx.formula, fx.in)
			if err != nil {
				t.Errorf("%s/%s: unexpected error: %v", strategy, fx.name, err)
				continue
			}
			if !sameResult(got, fx.want) {
				t.Errorf("%s/%s: expected %s, got %s", strategy, fx.name, fx.want, got)
			}
		}
	}
}

func sameResult(a, b Result) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ResultNumber:
		return math.Abs(a.Number-b.Number) < 1e-9
	case ResultBool:
		return a.Bool == b.Bool
	}
	return true
}

func TestNewEvaluator_UnknownStrategy(t *testing.T) {
	if _, err := NewEvaluator("quantum"); err == nil {
		t.Error("expected error for unknown strategy")
	}
	ev, err := NewEvaluator("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := ev.(*SubstitutionEvaluator); !ok {
		t.Errorf("expected substitution evaluator by default, got %T", ev)
	}
}

// The strategies deliberately differ where the tree evaluator can do
// better than rewriting text. These cases pin the differences down.

func TestEvaluators_ShortCircuitDiffers(t *testing.T) {
	in := Input{Values: map[string]float64{}, Policy: SkipIfAnyValueMissing}
	formula := "false && #{a} > 0"

	sub, err := NewSubstitutionEvaluator().Evaluate(formula, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.HasValue() {
		t.Errorf("substitution counts every reference, expected no value, got %s", sub)
	}

	tree, err := NewTreeEvaluator().Evaluate(formula, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tree.IsBool() || tree.Bool {
		t.Errorf("tree short-circuits, expected false, got %s", tree)
	}
}

func TestEvaluators_UnknownConstantDiffers(t *testing.T) {
	sub, err := NewSubstitutionEvaluator().Evaluate("C{gone} + 1", Input{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sub.IsNumber() || sub.Number != 1 {
		t.Errorf("substitution defaults unknown constants to 0, got %s", sub)
	}

	_, err = NewTreeEvaluator().Evaluate("C{gone} + 1", Input{})
	var ure *UnknownReferenceError
	if !errors.As(err, &ure) {
		t.Errorf("tree expected UnknownReferenceError, got %v", err)
	}
}

func TestSubstitutionEvaluator_SyntaxError(t *testing.T) {
	if _, err := NewSubstitutionEvaluator().Evaluate("#{a} +", Input{}); err == nil {
		t.Error("expected error for a dangling operator")
	}
}
