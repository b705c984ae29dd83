package expression

import (
	"fmt"
	"strings"
)

// Kind identifies what an item reference points at.
type Kind int

const (
	KindDataElement        Kind = iota // #{de} or #{de.*}
	KindDataElementOperand             // #{de.coc} or #{de.coc.aoc}
	KindProgramDataElement             // D{program.de}
	KindProgramAttribute               // A{program.attribute}
	KindProgramIndicator               // I{programIndicator}
	KindIndicator                      // N{indicator}
	KindReportingRate                  // R{dataSet.RATE_TYPE}
	KindConstant                       // C{constant}
	KindOrgUnitGroup                   // OUG{group}
	KindDays                           // [days]
)

var kindNames = map[Kind]string{
	KindDataElement:        "data_element",
	KindDataElementOperand: "data_element_operand",
	KindProgramDataElement: "program_data_element",
	KindProgramAttribute:   "program_attribute",
	KindProgramIndicator:   "program_indicator",
	KindIndicator:          "indicator",
	KindReportingRate:      "reporting_rate",
	KindConstant:           "constant",
	KindOrgUnitGroup:       "org_unit_group",
	KindDays:               "days",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Dimensional reports whether values for this kind come from the value map
// and are therefore subject to the missing-value policy.
func (k Kind) Dimensional() bool {
	switch k {
	case KindConstant, KindOrgUnitGroup, KindDays:
		return false
	}
	return true
}

// Reporting rate types accepted in R{dataSet.RATE_TYPE}.
const (
	RateReportingRate       = "REPORTING_RATE"
	RateReportingRateOnTime = "REPORTING_RATE_ON_TIME"
	RateActualReports       = "ACTUAL_REPORTS"
	RateActualReportsOnTime = "ACTUAL_REPORTS_ON_TIME"
	RateExpectedReports     = "EXPECTED_REPORTS"
)

var rateTypeLabels = map[string]string{
	RateReportingRate:       "Reporting rate",
	RateReportingRateOnTime: "Reporting rate on time",
	RateActualReports:       "Actual reports",
	RateActualReportsOnTime: "Actual reports on time",
	RateExpectedReports:     "Expected reports",
}

// Wildcard is the category option combo part that selects the total.
const Wildcard = "*"

// Reference is a single item reference found in a formula.
type Reference struct {
	Kind  Kind
	Parts []string
	// Text is the exact source text of the reference, Start and End its
	// byte offsets in the formula (End exclusive).
	Text  string
	Start int
	End   int
}

// Key returns the canonical value-map key. #{de} and #{de.*} share the key
// "de"; an explicit combo keys as "de.coc".
func (r Reference) Key() string {
	switch r.Kind {
	case KindDataElement:
		return r.Parts[0]
	case KindDays:
		return DaysSigil
	}
	return strings.Join(r.Parts, ".")
}

// IsTotal reports whether a data element reference asks for the total over
// all disaggregations, as opposed to one specific combo.
func (r Reference) IsTotal() bool {
	return r.Kind == KindDataElement
}

// Wildcard reports whether the reference was written with the * combo.
func (r Reference) Wildcard() bool {
	return r.Kind == KindDataElement && len(r.Parts) > 1 && r.Parts[1] == Wildcard
}

func (r Reference) String() string {
	return r.Text
}
