package expression

import (
	"testing"
)

func TestRatio_DeferredDivision(t *testing.T) {
	r, ok := NewRatio(NumberResult(10), NumberResult(4), 100, false, 0)
	if !ok {
		t.Fatal("expected a ratio")
	}
	if r.Divisor.String() != "1" {
		t.Errorf("expected divisor 1, got %s", r.Divisor)
	}
	if got := r.Value(); got != 250 {
		t.Errorf("expected 250, got %v", got)
	}
	if got := r.Decimal().String(); got != "250" {
		t.Errorf("expected exact 250, got %s", got)
	}
}

func TestRatio_ZeroDenominator(t *testing.T) {
	if _, ok := NewRatio(NumberResult(10), NumberResult(0), 100, false, 0); ok {
		t.Error("expected no value for a zero denominator")
	}
}

func TestRatio_MissingSide(t *testing.T) {
	if _, ok := NewRatio(NoValue(), NumberResult(3), 1, false, 0); ok {
		t.Error("expected no value for a missing numerator")
	}
	if _, ok := NewRatio(NumberResult(3), NoValue(), 1, false, 0); ok {
		t.Error("expected no value for a missing denominator")
	}
}

func TestRatio_Annualized(t *testing.T) {
	r, ok := NewRatio(NumberResult(73), NumberResult(100), 100, true, 30)
	if !ok {
		t.Fatal("expected a ratio")
	}
	if r.Multiplier.String() != "36500" {
		t.Errorf("expected multiplier 36500, got %s", r.Multiplier)
	}
	if r.Divisor.String() != "30" {
		t.Errorf("expected divisor 30, got %s", r.Divisor)
	}
	// 73/100 * 36500/30 = 888.1666...
	if got := r.Round(2).String(); got != "888.17" {
		t.Errorf("expected 888.17, got %s", got)
	}

	if _, ok := NewRatio(NumberResult(1), NumberResult(1), 1, true, 0); ok {
		t.Error("expected no value for an annualised ratio without days")
	}
}

func TestRatio_BooleanSides(t *testing.T) {
	r, ok := NewRatio(BoolResult(true), NumberResult(2), 1, false, 0)
	if !ok {
		t.Fatal("expected a ratio")
	}
	if r.Value() != 0.5 {
		t.Errorf("expected 0.5, got %v", r.Value())
	}
}
