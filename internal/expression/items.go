package expression

import "strings"

// DimensionalItemKeys returns the distinct value-map keys a caller has to
// resolve before evaluating formula, in order of first appearance.
func DimensionalItemKeys(formula string) ([]string, error) {
	return distinctKeys(formula, Kind.Dimensional)
}

// ConstantIDs returns the distinct constant uids referenced by formula.
func ConstantIDs(formula string) ([]string, error) {
	return distinctKeys(formula, func(k Kind) bool { return k == KindConstant })
}

// OrgUnitGroupIDs returns the distinct org unit group uids referenced by
// formula.
func OrgUnitGroupIDs(formula string) ([]string, error) {
	return distinctKeys(formula, func(k Kind) bool { return k == KindOrgUnitGroup })
}

func distinctKeys(formula string, keep func(Kind) bool) ([]string, error) {
	seen := map[string]bool{}
	var keys []string
	s := NewReferenceScanner(formula)
	for s.Scan() {
		ref := s.Reference()
		if !keep(ref.Kind) || seen[ref.Key()] {
			continue
		}
		seen[ref.Key()] = true
		keys = append(keys, ref.Key())
	}
	return keys, s.Err()
}

// AggregateArguments returns the distinct sample-map keys of formula: the
// trimmed aggregate argument of every outermost aggregate call, after the
// two-argument rule has set any leading scalar aside.
func AggregateArguments(formula string) ([]string, error) {
	seen := map[string]bool{}
	var args []string
	i := 0
	for i < len(formula) {
		loc := findName(aggregatePattern, formula, i)
		if loc == nil {
			break
		}
		nameStart, open := loc[0], loc[1]+1
		end := MatchSpan(formula, open)
		switch end {
		case SpanEmpty:
			i = nameStart + 1
			continue
		case SpanUnterminated:
			return nil, &StructureError{Formula: formula, Pos: nameStart, Msg: "unterminated aggregate function call"}
		}

		_, arg := splitAggregateArgument(formula[open:end])
		arg = strings.TrimSpace(arg)
		if !seen[arg] {
			seen[arg] = true
			args = append(args, arg)
		}
		i = end + 1
	}
	return args, nil
}
