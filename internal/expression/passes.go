package expression

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ehr/formula-engine/internal/expression/mathexpr"
)

var (
	aggregatePattern = namePattern(mathexpr.AggregateFunctions)
	scalarPattern    = regexp.MustCompile(`(?i)\b(?:` + alternation(mathexpr.ScalarFunctions) + `)\s*\(`)
	isNullPattern    = regexp.MustCompile(`(?i)\bis(?:not)?null`)
)

func alternation(names []string) string {
	sorted := append([]string(nil), names...)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	for i, n := range sorted {
		sorted[i] = regexp.QuoteMeta(n)
	}
	return strings.Join(sorted, "|")
}

func namePattern(names []string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(?:` + alternation(names) + `)`)
}

// findName finds the next match of re in text at or after from that starts
// a word. Matching on text[from:] alone would treat from as a word boundary
// even in the middle of an identifier.
func findName(re *regexp.Regexp, text string, from int) []int {
	for from < len(text) {
		loc := re.FindStringIndex(text[from:])
		if loc == nil {
			return nil
		}
		start := from + loc[0]
		if start == 0 || !isWordByte(text[start-1]) {
			return []int{start, from + loc[1]}
		}
		from = start + 1
	}
	return nil
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// ============================================================================
// Aggregate pass
// ============================================================================

// AggregatePass uppercases aggregate function heads. With a sample map it
// also replaces the aggregate argument by the bracketed sample list found
// under the argument's trimmed text. When the argument list has a comma at
// the top nesting level, the first argument is a scalar left for the later
// passes and the remainder is the aggregate argument.
func AggregatePass(samples map[string][]float64, policy MissingValuePolicy) Pass {
	return func(formula string) (string, error) {
		text := formula
		i := 0
		for i < len(text) {
			loc := findName(aggregatePattern, text, i)
			if loc == nil {
				break
			}
			nameStart, nameEnd := loc[0], loc[1]
			open := nameEnd + 1
			end := MatchSpan(text, open)
			switch end {
			case SpanEmpty:
				i = nameStart + 1
				continue
			case SpanUnterminated:
				return "", &StructureError{Formula: formula, Pos: nameStart, Msg: "unterminated aggregate function call"}
			}

			head := strings.ToUpper(text[nameStart:nameEnd])
			if samples == nil {
				text = text[:nameStart] + head + text[nameEnd:]
				i = open
				continue
			}

			inner := text[open:end]
			scalar, arg := splitAggregateArgument(inner)
			list, ok := samples[strings.TrimSpace(arg)]
			var repl string
			switch {
			case ok:
				repl = formatList(list)
			case policy == SkipIfAnyValueMissing:
				return "", ErrNoValue
			default:
				repl = "0"
			}
			if scalar != "" {
				repl = strings.TrimSpace(scalar) + ", " + repl
			}

			call := head + "(" + repl + ")"
			text = text[:nameStart] + call + text[end+1:]
			i = nameStart + len(call)
		}
		return text, nil
	}
}

// splitAggregateArgument applies the two-argument rule: a top-level comma
// separates a leading scalar from the aggregate argument.
func splitAggregateArgument(inner string) (scalar, arg string) {
	parts := SplitTopLevel(inner, ',')
	if len(parts) < 2 {
		return "", inner
	}
	return parts[0], strings.Join(parts[1:], ",")
}

// ============================================================================
// isNull pass
// ============================================================================

type nullCall struct {
	start, end int // end exclusive, covers the closing parenthesis
	literal    string
	refText    string
	missing    bool
}

// IsNullPass replaces isNull(ref) and isNotNull(ref) with a boolean literal.
// The lookup is not counted by the missing-value policy. When the tested
// value is missing, every other occurrence of the same reference text is
// replaced with 0 so the dimensional pass does not count it as missing.
func IsNullPass(values map[string]float64) Pass {
	return func(formula string) (string, error) {
		var calls []nullCall
		i := 0
		for i < len(formula) {
			loc := findName(isNullPattern, formula, i)
			if loc == nil {
				break
			}
			start, nameEnd := loc[0], loc[1]
			open := nameEnd + 1
			end := MatchSpan(formula, open)
			switch end {
			case SpanEmpty:
				i = start + 1
				continue
			case SpanUnterminated:
				return "", &StructureError{Formula: formula, Pos: start, Msg: "unterminated isNull call"}
			}

			ref, err := ParseReference(formula[open:end])
			if err != nil || !ref.Kind.Dimensional() {
				return "", &StructureError{Formula: formula, Pos: open, Msg: "isNull takes a single item reference"}
			}
			_, present := values[ref.Key()]
			isNull := !present
			if strings.EqualFold(formula[start:nameEnd], "isNotNull") {
				isNull = present
			}
			calls = append(calls, nullCall{
				start:   start,
				end:     end + 1,
				literal: strconv.FormatBool(isNull),
				refText: ref.Text,
				missing: !present,
			})
			i = end + 1
		}
		if len(calls) == 0 {
			return formula, nil
		}

		var missing []string
		for _, c := range calls {
			if c.missing {
				missing = append(missing, c.refText, "0")
			}
		}
		zero := strings.NewReplacer(missing...)

		var b strings.Builder
		last := 0
		for _, c := range calls {
			b.WriteString(zero.Replace(formula[last:c.start]))
			b.WriteString(c.literal)
			last = c.end
		}
		b.WriteString(zero.Replace(formula[last:]))
		return b.String(), nil
	}
}

// ============================================================================
// Case normalization pass
// ============================================================================

// CaseNormalizationPass rewrites scalar function names to the uppercase
// form the math evaluator registers.
func CaseNormalizationPass() Pass {
	return func(formula string) (string, error) {
		return scalarPattern.ReplaceAllStringFunc(formula, strings.ToUpper), nil
	}
}

// ============================================================================
// Item passes
// ============================================================================

// DimensionalItemPass substitutes value-map entries for dimensional item
// references. Under SkipIfAnyValueMissing the first missing value stops
// the pass; under SkipIfAllValuesMissing the pass fails once every counted
// reference turned out to be missing. Missing values otherwise become 0.
func DimensionalItemPass(values map[string]float64, policy MissingValuePolicy) Pass {
	return func(formula string) (string, error) {
		var counter itemCounter
		out, err := replaceReferences(formula, func(ref Reference) (string, bool, error) {
			if !ref.Kind.Dimensional() {
				return "", false, nil
			}
			v, present := values[ref.Key()]
			counter.record(present)
			if !present {
				if policy == SkipIfAnyValueMissing {
					return "", false, ErrNoValue
				}
				return "0", true, nil
			}
			return formatNumber(v), true, nil
		})
		if err != nil {
			return "", err
		}
		if counter.skip(policy) {
			return "", ErrNoValue
		}
		return out, nil
	}
}

// ConstantPass substitutes constant values. Unknown constants become 0.
func ConstantPass(constants map[string]float64) Pass {
	return func(formula string) (string, error) {
		return replaceReferences(formula, func(ref Reference) (string, bool, error) {
			if ref.Kind != KindConstant {
				return "", false, nil
			}
			if v, ok := constants[ref.Key()]; ok {
				return formatNumber(v), true, nil
			}
			return "0", true, nil
		})
	}
}

// OrgUnitGroupPass substitutes org unit group member counts. Unknown groups
// become 0.
func OrgUnitGroupPass(counts map[string]int) Pass {
	return func(formula string) (string, error) {
		return replaceReferences(formula, func(ref Reference) (string, bool, error) {
			if ref.Kind != KindOrgUnitGroup {
				return "", false, nil
			}
			return strconv.Itoa(counts[ref.Key()]), true, nil
		})
	}
}

// DaysPass substitutes the period length, or 0 when it is unknown.
func DaysPass(days *int) Pass {
	return func(formula string) (string, error) {
		if !strings.Contains(formula, DaysSigil) {
			return formula, nil
		}
		n := 0
		if days != nil {
			n = *days
		}
		return strings.ReplaceAll(formula, DaysSigil, strconv.Itoa(n)), nil
	}
}
