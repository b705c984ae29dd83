package expression

import (
	"errors"
	"reflect"
	"testing"
)

func TestDimensionalItemKeys(t *testing.T) {
	keys, err := DimensionalItemKeys("#{a} + #{a.*} + #{a.coc} + C{c} + D{p.de} + #{a} + [days] + R{ds.EXPECTED_REPORTS}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"a", "a.coc", "p.de", "ds.EXPECTED_REPORTS"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("expected %v, got %v", want, keys)
	}
}

func TestConstantAndOrgUnitGroupIDs(t *testing.T) {
	formula := "C{k1} * OUG{g1} + C{k2} - C{k1} / OUG{g1}"
	consts, err := ConstantIDs(formula)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(consts, []string{"k1", "k2"}) {
		t.Errorf("unexpected constants %v", consts)
	}
	groups, err := OrgUnitGroupIDs(formula)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(groups, []string{"g1"}) {
		t.Errorf("unexpected groups %v", groups)
	}
}

func TestItemKeys_Malformed(t *testing.T) {
	if _, err := DimensionalItemKeys("#{a} + A{p}"); err == nil {
		t.Error("expected malformed reference error")
	}
}

func TestAggregateArguments(t *testing.T) {
	args, err := AggregateArguments("avg(#{a}) + PERCENTILE(90, ( #{b}+#{c} )) + STDDEV(SUM(#{d})) + Avg( #{a} )")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"#{a}", "( #{b}+#{c} )", "SUM(#{d})"}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("expected %v, got %v", want, args)
	}
}

func TestAggregateArguments_Unterminated(t *testing.T) {
	_, err := AggregateArguments("MAX(#{a}")
	var se *StructureError
	if !errors.As(err, &se) {
		t.Errorf("expected StructureError, got %v", err)
	}
}
