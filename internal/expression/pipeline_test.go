package expression

import (
	"errors"
	"testing"
)

func mustSubstitute(t *testing.T, formula string, in Input) string {
	t.Helper()
	out, err := Substitute(formula, in)
	if err != nil {
		t.Fatalf("Substitute(%q) unexpected error: %v", formula, err)
	}
	return out
}

func TestSubstitute_EndToEnd(t *testing.T) {
	in := Input{
		Values: map[string]float64{"deA.comboX": 50, "deB": 200},
		Policy: NeverSkip,
	}
	formula := "#{deA.comboX} / #{deB} * 100"
	if got := mustSubstitute(t, formula, in); got != "50 / 200 * 100" {
		t.Fatalf("expected literal expression 50 / 200 * 100, got %q", got)
	}

	res, err := NewSubstitutionEvaluator().Evaluate(formula, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsNumber() || res.Number != 25 {
		t.Errorf("expected 25, got %s", res)
	}
}

// ============================================================================
// Missing-value policy
// ============================================================================

func TestDimensionalItemPass_OneMissing(t *testing.T) {
	values := map[string]float64{"a": 3}

	if _, err := DimensionalItemPass(values, SkipIfAnyValueMissing)("#{a} + #{b}"); !errors.Is(err, ErrNoValue) {
		t.Errorf("SkipIfAnyValueMissing: expected ErrNoValue, got %v", err)
	}
	for _, p := range []MissingValuePolicy{SkipIfAllValuesMissing, NeverSkip} {
		out, err := DimensionalItemPass(values, p)("#{a} + #{b}")
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", p, err)
		}
		if out != "3 + 0" {
			t.Errorf("%s: expected 3 + 0, got %q", p, out)
		}
	}
}

func TestDimensionalItemPass_AllMissing(t *testing.T) {
	if _, err := DimensionalItemPass(nil, SkipIfAllValuesMissing)("#{a} + #{b}"); !errors.Is(err, ErrNoValue) {
		t.Errorf("expected ErrNoValue, got %v", err)
	}
	out, err := DimensionalItemPass(nil, NeverSkip)("#{a} + #{b}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "0 + 0" {
		t.Errorf("expected 0 + 0, got %q", out)
	}
}

func TestDimensionalItemPass_PresentZeroIsNotMissing(t *testing.T) {
	out, err := DimensionalItemPass(map[string]float64{"a": 0}, SkipIfAnyValueMissing)("#{a} * 2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "0 * 2" {
		t.Errorf("expected 0 * 2, got %q", out)
	}
}

func TestDimensionalItemPass_NoReferences(t *testing.T) {
	out, err := DimensionalItemPass(nil, SkipIfAllValuesMissing)("1 + 2")
	if err != nil {
		t.Fatalf("formula without items must not be skipped: %v", err)
	}
	if out != "1 + 2" {
		t.Errorf("expected formula unchanged, got %q", out)
	}
}

func TestDimensionalItemPass_Formatting(t *testing.T) {
	values := map[string]float64{"neg": -2, "big": 1e16, "frac": 0.125}
	out, err := DimensionalItemPass(values, NeverSkip)("#{neg} - #{big} + #{frac}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "(-2) - 10000000000000000.0 + 0.125" {
		t.Errorf("unexpected formatting %q", out)
	}
}

// ============================================================================
// isNull pass
// ============================================================================

func TestIsNullPass_Exemption(t *testing.T) {
	in := Input{Values: map[string]float64{}, Policy: SkipIfAllValuesMissing}
	out, err := Substitute("isNull(#{deA}) + #{deA}", in)
	if err != nil {
		t.Fatalf("isNull must not disqualify the formula: %v", err)
	}
	if out != "true + 0" {
		t.Errorf("expected true + 0, got %q", out)
	}
}

func TestIsNullPass_PresentValueKeepsOtherOccurrences(t *testing.T) {
	in := Input{Values: map[string]float64{"deA": 7}}
	if got := mustSubstitute(t, "IF(isNull(#{deA}), 0, #{deA})", in); got != "IF(false, 0, 7)" {
		t.Errorf("expected IF(false, 0, 7), got %q", got)
	}
}

func TestIsNullPass_IsNotNull(t *testing.T) {
	pass := IsNullPass(map[string]float64{"a": 1})
	out, err := pass("ISNOTNULL(#{a}) && isNotNull(#{b})")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "true && false" {
		t.Errorf("expected true && false, got %q", out)
	}
}

func TestIsNullPass_OnlyZeroesTheTestedText(t *testing.T) {
	out, err := IsNullPass(nil)("isNull(#{a.coc}) + #{a.coc} + #{a}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "true + 0 + #{a}" {
		t.Errorf("expected true + 0 + #{a}, got %q", out)
	}
}

func TestIsNullPass_RequiresReference(t *testing.T) {
	for _, formula := range []string{"isNull(1)", "isNull(C{c})", "isNull(#{a} + 1)", "isNull(#{a}"} {
		_, err := IsNullPass(nil)(formula)
		var se *StructureError
		if !errors.As(err, &se) {
			t.Errorf("%s: expected StructureError, got %v", formula, err)
		}
	}
}

// ============================================================================
// Aggregate pass
// ============================================================================

func TestAggregatePass_WithoutSamples(t *testing.T) {
	out, err := AggregatePass(nil, NeverSkip)("stddev(#{a}) + Sum((#{b}))")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "STDDEV(#{a}) + SUM((#{b}))" {
		t.Errorf("expected heads uppercased and arguments verbatim, got %q", out)
	}
}

func TestAggregatePass_NestedArgument(t *testing.T) {
	samples := map[string][]float64{"(#{a}+#{b})*2": {1, 2, 3}}
	out, err := AggregatePass(samples, NeverSkip)("STDDEV((#{a}+#{b})*2) / 2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "STDDEV([1, 2, 3]) / 2" {
		t.Errorf("expected full argument replaced, got %q", out)
	}
}

func TestAggregatePass_ArgumentIsTrimmed(t *testing.T) {
	samples := map[string][]float64{"#{a}": {4}}
	out, err := AggregatePass(samples, NeverSkip)("avg(  #{a} )")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "AVG([4])" {
		t.Errorf("expected AVG([4]), got %q", out)
	}
}

func TestAggregatePass_MissingSamples(t *testing.T) {
	if _, err := AggregatePass(map[string][]float64{}, SkipIfAnyValueMissing)("SUM(#{x})"); !errors.Is(err, ErrNoValue) {
		t.Errorf("expected ErrNoValue, got %v", err)
	}
	out, err := AggregatePass(map[string][]float64{}, SkipIfAllValuesMissing)("SUM(#{x}) + 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "SUM(0) + 1" {
		t.Errorf("expected SUM(0) + 1, got %q", out)
	}
}

func TestAggregatePass_TwoArgumentRule(t *testing.T) {
	samples := map[string][]float64{
		"#{a}":         {1, 2},
		"SUM(#{b}, 1)": {9},
	}
	out, err := AggregatePass(samples, NeverSkip)("percentile(90, #{a}) + rank_high(#{c}, SUM(#{b}, 1))")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "PERCENTILE(90, [1, 2]) + RANK_HIGH(#{c}, [9])"
	if out != want {
		t.Errorf("expected %q, got %q", want, out)
	}
}

func TestAggregatePass_SkipsFalseTriggers(t *testing.T) {
	out, err := AggregatePass(nil, NeverSkip)("#{MAXIMUM} + SUMMARY")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "#{MAXIMUM} + SUMMARY" {
		t.Errorf("expected formula unchanged, got %q", out)
	}
}

func TestAggregatePass_Unterminated(t *testing.T) {
	_, err := AggregatePass(nil, NeverSkip)("SUM((#{a})")
	var se *StructureError
	if !errors.As(err, &se) {
		t.Fatalf("expected StructureError, got %v", err)
	}
	if se.Pos != 0 {
		t.Errorf("expected position 0, got %d", se.Pos)
	}
}

// ============================================================================
// Remaining passes
// ============================================================================

func TestCaseNormalizationPass(t *testing.T) {
	out, _ := CaseNormalizationPass()("round(#{a}, 1) + Abs(2) + if (true, 1, 0)")
	if out != "ROUND(#{a}, 1) + ABS(2) + IF (true, 1, 0)" {
		t.Errorf("unexpected normalization %q", out)
	}
}

func TestConstantOrgUnitGroupAndDaysPasses(t *testing.T) {
	in := Input{
		Constants:          map[string]float64{"c": 2.5},
		OrgUnitGroupCounts: map[string]int{"g": 4},
		Days:               Days(31),
	}
	if got := mustSubstitute(t, "C{c} * OUG{g} / [days]", in); got != "2.5 * 4 / 31" {
		t.Errorf("expected 2.5 * 4 / 31, got %q", got)
	}
	if got := mustSubstitute(t, "C{x} * OUG{y} / [days]", Input{Policy: SkipIfAnyValueMissing}); got != "0 * 0 / 0" {
		t.Errorf("expected unknown entries to become 0 regardless of policy, got %q", got)
	}
}

func TestSubstitute_MalformedReference(t *testing.T) {
	_, err := Substitute("#{a} + A{prg}", Input{})
	var mre *MalformedReferenceError
	if !errors.As(err, &mre) {
		t.Fatalf("expected MalformedReferenceError, got %v", err)
	}
}

func TestPipeline_StopsAtFirstError(t *testing.T) {
	called := false
	p := Pipeline{
		func(string) (string, error) { return "", ErrNoValue },
		func(s string) (string, error) {
			called = true
			return s, nil
		},
	}
	if _, err := p.Apply("x"); !errors.Is(err, ErrNoValue) {
		t.Errorf("expected ErrNoValue, got %v", err)
	}
	if called {
		t.Error("later pass should not run after an error")
	}
}
