package reporting

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

var generated = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func sampleChecks() []FormulaCheck {
	return []FormulaCheck{
		{Name: "ANC coverage", Formula: "#{deA} / #{deB} * 100", Outcome: "VALID", Description: "ANC 1st visit / Live births * 100"},
		{Name: "Broken", Formula: "#{deA} || C{nope}", Outcome: "CONSTANT_NOT_FOUND", Message: "constant not found: C{nope}"},
	}
}

func TestValidationMarkdown(t *testing.T) {
	md := ValidationMarkdown("District checks", generated, sampleChecks())

	if !strings.HasPrefix(md, "# District checks\n") {
		t.Errorf("expected a title heading, got %q", md)
	}
	if !strings.Contains(md, "1 of 2 formulas are valid") {
		t.Errorf("expected a summary line, got %q", md)
	}
	if !strings.Contains(md, "`#{deA} \\|\\| C{nope}`") {
		t.Errorf("expected pipes in the formula to be escaped, got %q", md)
	}
}

func TestValidationMarkdown_Empty(t *testing.T) {
	md := ValidationMarkdown("Nothing", generated, nil)
	if strings.Contains(md, "|") {
		t.Errorf("expected no table, got %q", md)
	}
}

func TestValidationHTML(t *testing.T) {
	html, err := ValidationHTML("District checks", generated, sampleChecks())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := string(html)
	for _, want := range []string{"<h1>District checks</h1>", "<table>", "<code>#{deA} / #{deB} * 100</code>", "CONSTANT_NOT_FOUND"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %s", want, out)
		}
	}
	if strings.Count(out, "<tr>") != 3 {
		t.Errorf("expected header plus two rows, got %s", out)
	}
}

func TestRenderHTML_EscapesNames(t *testing.T) {
	checks := []FormulaCheck{{Name: "<script>x</script>", Formula: "1", Outcome: "VALID"}}
	html, err := ValidationHTML("t", generated, checks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(string(html), "<script>") {
		t.Errorf("expected markup in names to be escaped, got %s", html)
	}
}

func TestWriteIndicatorWorkbook(t *testing.T) {
	num, den, val := 50.0, 200.0, 25.0
	rows := []IndicatorRow{
		{Name: "ANC coverage", Numerator: "#{deA}", Denominator: "#{deB}", Factor: 100, NumValue: &num, DenValue: &den, Value: &val},
		{Name: "No data", Numerator: "#{deC}", Denominator: "1", Factor: 1},
	}

	var buf bytes.Buffer
	if err := WriteIndicatorWorkbook(&buf, "202601", rows); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	cell := func(addr string) string {
		t.Helper()
		v, err := f.GetCellValue(indicatorSheet, addr)
		if err != nil {
			t.Fatalf("read %s: %v", addr, err)
		}
		return v
	}

	if cell("B1") != "202601" {
		t.Errorf("expected period in B1, got %q", cell("B1"))
	}
	if cell("A3") != "Indicator" || cell("G3") != "Value" {
		t.Errorf("unexpected header %q .. %q", cell("A3"), cell("G3"))
	}
	if cell("A4") != "ANC coverage" || cell("G4") != "25" {
		t.Errorf("unexpected first row %q %q", cell("A4"), cell("G4"))
	}
	if cell("A5") != "No data" || cell("G5") != "" {
		t.Errorf("expected an empty value cell, got %q", cell("G5"))
	}
}
