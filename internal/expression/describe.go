package expression

import "strings"

// DaysDescription is how the days sigil reads in a description.
const DaysDescription = "[Number of days]"

// Describe replaces every reference in formula with the display name of
// what it points at. Everything between references is kept verbatim. An
// unresolvable reference fails with *UnknownReferenceError naming the
// missing uid.
func Describe(formula string, resolver MetadataResolver) (string, error) {
	return replaceReferences(formula, func(ref Reference) (string, bool, error) {
		name, err := describeReference(formula, ref, resolver)
		if err != nil {
			return "", false, err
		}
		return name, true, nil
	})
}

// DescribeReference returns the display name of a single reference.
func DescribeReference(ref Reference, resolver MetadataResolver) (string, error) {
	return describeReference(ref.Text, ref, resolver)
}

func describeReference(formula string, ref Reference, resolver MetadataResolver) (string, error) {
	if ref.Kind == KindDays {
		return DaysDescription, nil
	}

	objs := objectsOf(ref)
	names := make([]string, 0, len(objs))
	for _, obj := range objs {
		name, ok := resolver.ObjectName(obj.class, obj.uid)
		if !ok {
			return "", &UnknownReferenceError{Formula: formula, Reference: ref, UID: obj.uid}
		}
		names = append(names, name)
	}

	if ref.Kind == KindReportingRate {
		return names[0] + " - " + rateTypeLabels[ref.Parts[1]], nil
	}
	return strings.Join(names, " "), nil
}
