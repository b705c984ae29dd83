package expression

import (
	"fmt"
	"regexp"
	"strings"
)

// DaysSigil stands for the number of days in the evaluated period.
const DaysSigil = "[days]"

// referencePattern is the generic variable pattern: a kind key followed by a
// braced identifier list, or the days sigil. Per-kind arity is checked after
// matching so that a wrong part count surfaces as a malformed reference
// instead of being skipped as plain text.
var referencePattern = regexp.MustCompile(`(#|OUG|[CDAINR])\{([^{}]*)\}|\[days\]`)

var anchoredReferencePattern = regexp.MustCompile(`^(?:` + referencePattern.String() + `)`)

var identifierPattern = regexp.MustCompile(`^\w+$`)

var sigilKinds = map[string]Kind{
	"C":   KindConstant,
	"OUG": KindOrgUnitGroup,
	"D":   KindProgramDataElement,
	"A":   KindProgramAttribute,
	"I":   KindProgramIndicator,
	"N":   KindIndicator,
	"R":   KindReportingRate,
}

// ReferenceScanner walks the item references of a formula left to right.
// It is lazy: each call to Scan finds only the next match. Reset rewinds it
// to the start of the formula.
//
//	s := NewReferenceScanner(formula)
//	for s.Scan() {
//		ref := s.Reference()
//	}
//	if err := s.Err(); err != nil { ... }
type ReferenceScanner struct {
	text string
	pos  int
	ref  Reference
	err  error
}

// NewReferenceScanner returns a scanner positioned at the start of text.
func NewReferenceScanner(text string) *ReferenceScanner {
	return &ReferenceScanner{text: text}
}

// Scan advances to the next reference. It returns false at the end of the
// formula or on a malformed reference, in which case Err is non-nil.
func (s *ReferenceScanner) Scan() bool {
	if s.err != nil || s.pos >= len(s.text) {
		return false
	}
	base := s.pos
	loc := referencePattern.FindStringSubmatchIndex(s.text[base:])
	if loc == nil {
		s.pos = len(s.text)
		return false
	}

	ref, err := referenceAt(s.text, base, loc)
	s.pos = ref.End
	if err != nil {
		s.err = err
		return false
	}
	s.ref = ref
	return true
}

// referenceAt builds the reference that referencePattern matched at loc in
// text[base:].
func referenceAt(text string, base int, loc []int) (Reference, error) {
	start, end := base+loc[0], base+loc[1]
	if loc[2] < 0 {
		return Reference{Kind: KindDays, Text: text[start:end], Start: start, End: end}, nil
	}

	sigil := text[base+loc[2] : base+loc[3]]
	body := text[base+loc[4] : base+loc[5]]
	ref, reason := buildReference(sigil, body)
	ref.Text = text[start:end]
	ref.Start = start
	ref.End = end
	if reason != "" {
		return ref, &MalformedReferenceError{
			Formula: text,
			Text:    ref.Text,
			Start:   start,
			End:     end,
			Reason:  reason,
		}
	}
	return ref, nil
}

// Reference returns the reference found by the last successful Scan.
func (s *ReferenceScanner) Reference() Reference {
	return s.ref
}

// Err returns the first malformed reference encountered, if any.
func (s *ReferenceScanner) Err() error {
	return s.err
}

// Reset rewinds the scanner so the formula can be walked again.
func (s *ReferenceScanner) Reset() {
	s.pos = 0
	s.ref = Reference{}
	s.err = nil
}

func buildReference(sigil, body string) (Reference, string) {
	parts := strings.Split(body, ".")
	for i, p := range parts {
		if p == "" {
			return Reference{}, "empty identifier"
		}
		if sigil == "#" && i > 0 && p == Wildcard {
			continue
		}
		if !identifierPattern.MatchString(p) {
			return Reference{}, fmt.Sprintf("invalid identifier %q", p)
		}
	}

	if sigil == "#" {
		switch {
		case len(parts) > 3:
			return Reference{}, fmt.Sprintf("data element reference takes 1 to 3 identifiers, got %d", len(parts))
		case len(parts) == 1, len(parts) == 2 && parts[1] == Wildcard:
			return Reference{Kind: KindDataElement, Parts: parts}, ""
		default:
			return Reference{Kind: KindDataElementOperand, Parts: parts}, ""
		}
	}

	kind := sigilKinds[sigil]
	want := 1
	if kind == KindProgramDataElement || kind == KindProgramAttribute || kind == KindReportingRate {
		want = 2
	}
	if len(parts) != want {
		return Reference{}, fmt.Sprintf("%s reference takes %d identifier(s), got %d", kind, want, len(parts))
	}
	if kind == KindReportingRate {
		if _, ok := rateTypeLabels[parts[1]]; !ok {
			return Reference{}, fmt.Sprintf("unknown reporting rate type %q", parts[1])
		}
	}
	return Reference{Kind: kind, Parts: parts}, ""
}

// ParseReference parses text that must consist of exactly one reference,
// surrounding whitespace aside.
func ParseReference(text string) (Reference, error) {
	trimmed := strings.TrimSpace(text)
	s := NewReferenceScanner(trimmed)
	if !s.Scan() {
		if err := s.Err(); err != nil {
			return Reference{}, err
		}
		return Reference{}, fmt.Errorf("%q is not an item reference", text)
	}
	ref := s.Reference()
	if ref.Start != 0 || ref.End != len(trimmed) {
		return Reference{}, fmt.Errorf("%q is not a single item reference", text)
	}
	return ref, nil
}

// References returns every reference in formula in source order.
func References(formula string) ([]Reference, error) {
	var refs []Reference
	s := NewReferenceScanner(formula)
	for s.Scan() {
		refs = append(refs, s.Reference())
	}
	return refs, s.Err()
}
