package expression

import (
	"strconv"
	"strings"
)

// Input carries everything a formula may be evaluated against. All maps are
// read only during evaluation and may be shared between goroutines.
type Input struct {
	// Values maps canonical reference keys to values. A key that is absent
	// is a missing value, which is not the same as a present zero.
	Values map[string]float64
	// Constants maps constant uids to values.
	Constants map[string]float64
	// OrgUnitGroupCounts maps org unit group uids to member counts.
	OrgUnitGroupCounts map[string]int
	// Days is the number of days in the period, nil when unknown.
	Days   *int
	Policy MissingValuePolicy
	// Samples maps the trimmed text of an aggregate function argument to
	// its sample series. Nil outside a predictor context.
	Samples map[string][]float64
}

// Days returns a pointer suitable for Input.Days.
func Days(n int) *int {
	return &n
}

// Pass is one text rewrite of the substitution pipeline. A pass returns
// ErrNoValue when the missing-value policy disqualifies the formula.
type Pass func(formula string) (string, error)

// Pipeline applies its passes left to right.
type Pipeline []Pass

// Apply runs formula through every pass, stopping at the first error.
func (p Pipeline) Apply(formula string) (string, error) {
	var err error
	for _, pass := range p {
		if formula, err = pass(formula); err != nil {
			return "", err
		}
	}
	return formula, nil
}

// SubstitutionPipeline returns the passes that turn a formula into a
// literal-only expression. The order matters: aggregate arguments are
// resolved before the item passes can see the references inside them, and
// isNull claims its references before the dimensional pass counts them.
func SubstitutionPipeline(in Input) Pipeline {
	return Pipeline{
		AggregatePass(in.Samples, in.Policy),
		IsNullPass(in.Values),
		CaseNormalizationPass(),
		DimensionalItemPass(in.Values, in.Policy),
		ConstantPass(in.Constants),
		OrgUnitGroupPass(in.OrgUnitGroupCounts),
		DaysPass(in.Days),
	}
}

// Substitute rewrites formula into a literal-only expression for the math
// evaluator. It returns ErrNoValue when the policy disqualifies the formula.
func Substitute(formula string, in Input) (string, error) {
	return SubstitutionPipeline(in).Apply(formula)
}

// formatNumber renders v so that the math evaluator reads back the same
// value. Negative numbers are parenthesised so they survive juxtaposition
// with a preceding operator, and large integral values keep a decimal point
// so they parse as floats rather than overflowing an int.
func formatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") && (v >= 1e15 || v <= -1e15) {
		s += ".0"
	}
	if strings.HasPrefix(s, "-") {
		return "(" + s + ")"
	}
	return s
}

func formatList(xs []float64) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = formatNumber(x)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// replaceReferences rebuilds formula with every reference for which fn
// returns ok replaced by the returned text.
func replaceReferences(formula string, fn func(ref Reference) (string, bool, error)) (string, error) {
	var b strings.Builder
	last := 0
	s := NewReferenceScanner(formula)
	for s.Scan() {
		ref := s.Reference()
		repl, ok, err := fn(ref)
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		b.WriteString(formula[last:ref.Start])
		b.WriteString(repl)
		last = ref.End
	}
	if err := s.Err(); err != nil {
		return "", err
	}
	b.WriteString(formula[last:])
	return b.String(), nil
}
