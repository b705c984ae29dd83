package indicator

import (
	"testing"

	"github.com/google/uuid"

	"github.com/ehr/formula-engine/internal/expression"
)

func intPtr(n int) *int { return &n }

func TestIndicatorCheck(t *testing.T) {
	ind := &Indicator{Name: "ANC coverage", Numerator: "#{deA}", Denominator: "#{deB}"}
	if err := ind.check(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ind.Factor != 1 {
		t.Errorf("expected factor to default to 1, got %v", ind.Factor)
	}

	bad := []*Indicator{
		{Numerator: "#{deA}", Denominator: "#{deB}"},
		{Name: "x", Numerator: " ", Denominator: "#{deB}"},
		{Name: "x", Numerator: "#{deA}", Denominator: "#{deB}", Decimals: intPtr(11)},
	}
	for i, b := range bad {
		if err := b.check(); err == nil {
			t.Errorf("case %d: expected an error", i)
		}
	}
}

func TestCompute(t *testing.T) {
	ind := &Indicator{ID: uuid.New(), Name: "ANC", Numerator: "#{deA}", Denominator: "#{deB}", Factor: 100}
	e, err := Compute(ind, expression.NewTreeEvaluator(), expression.Input{Values: map[string]float64{"deA": 50, "deB": 200}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Value == nil || *e.Value != 25 {
		t.Fatalf("expected 25, got %v", e.Value)
	}
	if e.Ratio == nil || e.Ratio.Multiplier.String() != "100" {
		t.Errorf("expected the ratio to carry the factor, got %+v", e.Ratio)
	}
}

func TestCompute_Decimals(t *testing.T) {
	ind := &Indicator{Name: "third", Numerator: "1", Denominator: "3", Factor: 100, Decimals: intPtr(1)}
	e, err := Compute(ind, expression.NewTreeEvaluator(), expression.Input{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Value == nil || *e.Value != 33.3 {
		t.Errorf("expected 33.3, got %v", e.Value)
	}
}

func TestCompute_Annualized(t *testing.T) {
	ind := &Indicator{Name: "rate", Numerator: "#{deA}", Denominator: "#{deB}", Factor: 100, Annualized: true, Decimals: intPtr(2)}
	in := expression.Input{Values: map[string]float64{"deA": 73, "deB": 100}, Days: expression.Days(30)}
	e, err := Compute(ind, expression.NewTreeEvaluator(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Value == nil || *e.Value != 888.17 {
		t.Errorf("expected 888.17, got %v", e.Value)
	}

	in.Days = nil
	e, err = Compute(ind, expression.NewTreeEvaluator(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Value != nil {
		t.Errorf("expected no value without a day count, got %v", *e.Value)
	}
}

func TestCompute_NoData(t *testing.T) {
	ind := &Indicator{Name: "ANC", Numerator: "#{deA}", Denominator: "#{deB}", Factor: 1}
	e, err := Compute(ind, expression.NewTreeEvaluator(), expression.Input{Values: map[string]float64{"deB": 4}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Numerator.HasValue() {
		t.Error("expected the numerator to be skipped when all its values are missing")
	}
	if e.Value != nil {
		t.Errorf("expected no value, got %v", *e.Value)
	}

	row := e.Row()
	if row.NumValue != nil || row.DenValue == nil || *row.DenValue != 4 {
		t.Errorf("unexpected row %+v", row)
	}
	if row.Numerator != "#{deA}" || row.Factor != 1 {
		t.Errorf("expected the definition on the row, got %+v", row)
	}
}

func TestCompute_ZeroDenominator(t *testing.T) {
	ind := &Indicator{Name: "ANC", Numerator: "#{deA}", Denominator: "#{deB}", Factor: 1}
	e, err := Compute(ind, expression.NewTreeEvaluator(), expression.Input{Values: map[string]float64{"deA": 1, "deB": 0}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Value != nil || e.Ratio != nil {
		t.Error("expected no value for a zero denominator")
	}
}

func TestCompute_BadFormula(t *testing.T) {
	ind := &Indicator{Name: "broken", Numerator: "(#{deA}", Denominator: "1", Factor: 1}
	if _, err := Compute(ind, expression.NewTreeEvaluator(), expression.Input{}); err == nil {
		t.Error("expected an error for a malformed numerator")
	}
}
