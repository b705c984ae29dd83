package expression

import (
	"errors"
	"fmt"

	"github.com/ehr/formula-engine/internal/expression/mathexpr"
)

// ObjectClass names a kind of metadata object a reference can point at.
type ObjectClass string

const (
	ClassDataElement            ObjectClass = "dataElement"
	ClassCategoryOptionCombo    ObjectClass = "categoryOptionCombo"
	ClassProgram                ObjectClass = "program"
	ClassTrackedEntityAttribute ObjectClass = "trackedEntityAttribute"
	ClassProgramIndicator       ObjectClass = "programIndicator"
	ClassIndicator              ObjectClass = "indicator"
	ClassDataSet                ObjectClass = "dataSet"
	ClassConstant               ObjectClass = "constant"
	ClassOrganisationUnitGroup  ObjectClass = "organisationUnitGroup"
)

// ObjectClasses lists every class in a stable order.
var ObjectClasses = []ObjectClass{
	ClassDataElement,
	ClassCategoryOptionCombo,
	ClassProgram,
	ClassTrackedEntityAttribute,
	ClassProgramIndicator,
	ClassIndicator,
	ClassDataSet,
	ClassConstant,
	ClassOrganisationUnitGroup,
}

// ParseObjectClass accepts the camel case class names.
func ParseObjectClass(s string) (ObjectClass, error) {
	for _, c := range ObjectClasses {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown object class %q", s)
}

// MetadataResolver looks up metadata objects by class and uid. ok is false
// when no such object exists.
type MetadataResolver interface {
	ObjectName(class ObjectClass, uid string) (name string, ok bool)
}

// objectRef is one metadata object a reference depends on.
type objectRef struct {
	class ObjectClass
	uid   string
}

// objectsOf lists the objects that must exist for ref to resolve, in the
// order their names appear in a description.
func objectsOf(ref Reference) []objectRef {
	p := ref.Parts
	switch ref.Kind {
	case KindDataElement:
		return []objectRef{{ClassDataElement, p[0]}}
	case KindDataElementOperand:
		objs := []objectRef{{ClassDataElement, p[0]}}
		for _, coc := range p[1:] {
			if coc != Wildcard {
				objs = append(objs, objectRef{ClassCategoryOptionCombo, coc})
			}
		}
		return objs
	case KindProgramDataElement:
		return []objectRef{{ClassProgram, p[0]}, {ClassDataElement, p[1]}}
	case KindProgramAttribute:
		return []objectRef{{ClassProgram, p[0]}, {ClassTrackedEntityAttribute, p[1]}}
	case KindProgramIndicator:
		return []objectRef{{ClassProgramIndicator, p[0]}}
	case KindIndicator:
		return []objectRef{{ClassIndicator, p[0]}}
	case KindReportingRate:
		return []objectRef{{ClassDataSet, p[0]}}
	case KindConstant:
		return []objectRef{{ClassConstant, p[0]}}
	case KindOrgUnitGroup:
		return []objectRef{{ClassOrganisationUnitGroup, p[0]}}
	}
	return nil
}

// MissingObject returns the first object ref depends on that resolver does
// not know. ok is false when every object resolves.
func MissingObject(ref Reference, resolver MetadataResolver) (class ObjectClass, uid string, ok bool) {
	for _, obj := range objectsOf(ref) {
		if _, found := resolver.ObjectName(obj.class, obj.uid); !found {
			return obj.class, obj.uid, true
		}
	}
	return "", "", false
}

// ============================================================================
// Validation
// ============================================================================

// ValidationOutcome is the closed set of validation results.
type ValidationOutcome int

const (
	Valid ValidationOutcome = iota
	DimensionalItemNotFound
	ConstantNotFound
	OrgUnitGroupNotFound
	MalformedReference
	NotWellFormed
)

var outcomeNames = map[ValidationOutcome]string{
	Valid:                   "VALID",
	DimensionalItemNotFound: "DIMENSIONAL_ITEM_NOT_FOUND",
	ConstantNotFound:        "CONSTANT_NOT_FOUND",
	OrgUnitGroupNotFound:    "ORG_UNIT_GROUP_NOT_FOUND",
	MalformedReference:      "MALFORMED_REFERENCE",
	NotWellFormed:           "NOT_WELL_FORMED",
}

func (o ValidationOutcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return fmt.Sprintf("ValidationOutcome(%d)", int(o))
}

func (o ValidationOutcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Validation is the outcome of Validate. Reference holds the text of the
// offending reference and Err the underlying error, when there is one.
type Validation struct {
	Outcome   ValidationOutcome
	Reference string
	Err       error
}

func (v Validation) Valid() bool {
	return v.Outcome == Valid
}

// Message is a one-line explanation suitable for formula authors.
func (v Validation) Message() string {
	switch {
	case v.Outcome == Valid:
		return "valid"
	case v.Err != nil:
		return fmt.Sprintf("%s: %v", v.Outcome, v.Err)
	case v.Reference != "":
		return fmt.Sprintf("%s: %s", v.Outcome, v.Reference)
	}
	return v.Outcome.String()
}

var syntaxChecker = mathexpr.New()

// dummyValue stands in for every reference during the syntax check.
const dummyValue = 1

// Validate checks that every reference in formula is well formed and points
// at an existing object, then that the formula with every reference set to
// a dummy value is a well formed expression. The first problem found
// decides the outcome.
func Validate(formula string, resolver MetadataResolver) Validation {
	refs, err := References(formula)
	if err != nil {
		var mre *MalformedReferenceError
		if errors.As(err, &mre) {
			return Validation{Outcome: MalformedReference, Reference: mre.Text, Err: err}
		}
		return Validation{Outcome: MalformedReference, Err: err}
	}

	in := Input{
		Values:             map[string]float64{},
		Constants:          map[string]float64{},
		OrgUnitGroupCounts: map[string]int{},
		Days:               Days(dummyValue),
	}
	for _, ref := range refs {
		if _, _, missing := MissingObject(ref, resolver); missing {
			return Validation{Outcome: notFoundOutcome(ref.Kind), Reference: ref.Text}
		}
		switch {
		case ref.Kind == KindConstant:
			in.Constants[ref.Key()] = dummyValue
		case ref.Kind == KindOrgUnitGroup:
			in.OrgUnitGroupCounts[ref.Key()] = dummyValue
		case ref.Kind.Dimensional():
			in.Values[ref.Key()] = dummyValue
		}
	}

	literal, err := Substitute(formula, in)
	if err != nil {
		return Validation{Outcome: NotWellFormed, Err: err}
	}
	if err := syntaxChecker.Check(literal); err != nil {
		return Validation{Outcome: NotWellFormed, Err: err}
	}
	return Validation{Outcome: Valid}
}

func notFoundOutcome(k Kind) ValidationOutcome {
	switch k {
	case KindConstant:
		return ConstantNotFound
	case KindOrgUnitGroup:
		return OrgUnitGroupNotFound
	}
	return DimensionalItemNotFound
}
