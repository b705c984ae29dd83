package expression

import (
	"errors"
	"testing"
)

func mustReferences(t *testing.T, formula string) []Reference {
	t.Helper()
	refs, err := References(formula)
	if err != nil {
		t.Fatalf("References(%q) unexpected error: %v", formula, err)
	}
	return refs
}

func TestReferences_AllKinds(t *testing.T) {
	formula := "#{de1} + #{de2.coc} + #{de3.*} + #{de4.coc.aoc} + C{con} + OUG{grp} + " +
		"D{prg.de5} + A{prg.atr} + I{pind} + N{ind} + R{ds.REPORTING_RATE} * [days]"
	refs := mustReferences(t, formula)

	want := []struct {
		kind Kind
		key  string
	}{
		{KindDataElement, "de1"},
		{KindDataElementOperand, "de2.coc"},
		{KindDataElement, "de3"},
		{KindDataElementOperand, "de4.coc.aoc"},
		{KindConstant, "con"},
		{KindOrgUnitGroup, "grp"},
		{KindProgramDataElement, "prg.de5"},
		{KindProgramAttribute, "prg.atr"},
		{KindProgramIndicator, "pind"},
		{KindIndicator, "ind"},
		{KindReportingRate, "ds.REPORTING_RATE"},
		{KindDays, DaysSigil},
	}
	if len(refs) != len(want) {
		t.Fatalf("expected %d references, got %d", len(want), len(refs))
	}
	for i, w := range want {
		if refs[i].Kind != w.kind {
			t.Errorf("ref %d: expected kind %s, got %s", i, w.kind, refs[i].Kind)
		}
		if refs[i].Key() != w.key {
			t.Errorf("ref %d: expected key %q, got %q", i, w.key, refs[i].Key())
		}
		if formula[refs[i].Start:refs[i].End] != refs[i].Text {
			t.Errorf("ref %d: span %d:%d does not cover %q", i, refs[i].Start, refs[i].End, refs[i].Text)
		}
	}
}

func TestReferences_TotalVersusDisaggregation(t *testing.T) {
	refs := mustReferences(t, "#{a} + #{a.*} + #{a.coc}")
	if !refs[0].IsTotal() || refs[0].Wildcard() {
		t.Error("#{a} should be a total without wildcard")
	}
	if !refs[1].IsTotal() || !refs[1].Wildcard() {
		t.Error("#{a.*} should be a wildcard total")
	}
	if refs[2].IsTotal() {
		t.Error("#{a.coc} should not be a total")
	}
	if refs[0].Key() != refs[1].Key() {
		t.Errorf("total forms should share a key, got %q and %q", refs[0].Key(), refs[1].Key())
	}
}

func TestReferences_Malformed(t *testing.T) {
	cases := map[string]string{
		"A{prg}":          "A{prg}",
		"D{a.b.c}":        "D{a.b.c}",
		"C{a.b}":          "C{a.b}",
		"#{a.b.c.d}":      "#{a.b.c.d}",
		"#{}":             "#{}",
		"1 + R{ds.BOGUS}": "R{ds.BOGUS}",
		"#{a} + OUG{x y}": "OUG{x y}",
		"#{de..coc}":      "#{de..coc}",
	}
	for formula, span := range cases {
		_, err := References(formula)
		var mre *MalformedReferenceError
		if !errors.As(err, &mre) {
			t.Errorf("%s: expected MalformedReferenceError, got %v", formula, err)
			continue
		}
		if mre.Text != span {
			t.Errorf("%s: expected span %q, got %q", formula, span, mre.Text)
		}
		if formula[mre.Start:mre.End] != span {
			t.Errorf("%s: offsets %d:%d do not match span", formula, mre.Start, mre.End)
		}
	}
}

func TestReferenceScanner_LazyAndRestartable(t *testing.T) {
	s := NewReferenceScanner("#{a} + #{b} + #{c}")
	if !s.Scan() || s.Reference().Key() != "a" {
		t.Fatal("expected first reference a")
	}
	if !s.Scan() || s.Reference().Key() != "b" {
		t.Fatal("expected second reference b")
	}

	s.Reset()
	var keys []string
	for s.Scan() {
		keys = append(keys, s.Reference().Key())
	}
	if err := s.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 3 || keys[0] != "a" || keys[2] != "c" {
		t.Errorf("expected [a b c] after reset, got %v", keys)
	}
}

func TestReferenceScanner_NoReferences(t *testing.T) {
	s := NewReferenceScanner("1 + 2 * SUM(3)")
	if s.Scan() {
		t.Errorf("unexpected reference %q", s.Reference().Text)
	}
	if s.Err() != nil {
		t.Errorf("unexpected error: %v", s.Err())
	}
}

func TestParseReference(t *testing.T) {
	ref, err := ParseReference("  #{de.coc} ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.Key() != "de.coc" {
		t.Errorf("expected key de.coc, got %q", ref.Key())
	}

	for _, bad := range []string{"#{a} + 1", "1", "(#{a})"} {
		if _, err := ParseReference(bad); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}
