package expression

import (
	"fmt"

	"github.com/ehr/formula-engine/internal/expression/mathexpr"
)

// ErrNoValue is returned by pipeline passes and the math evaluator when a
// formula is disqualified by the missing-value policy or an aggregate has
// nothing to aggregate. Evaluators turn it into a NoValue result.
var ErrNoValue = mathexpr.ErrNoValue

// MalformedReferenceError reports a braced reference whose content does not
// fit its kind.
type MalformedReferenceError struct {
	Formula string
	Text    string
	Start   int
	End     int
	Reason  string
}

func (e *MalformedReferenceError) Error() string {
	return fmt.Sprintf("malformed reference %s at [%d:%d]: %s", e.Text, e.Start, e.End, e.Reason)
}

// UnknownReferenceError reports a reference whose identifier does not match
// any known metadata object.
type UnknownReferenceError struct {
	Formula   string
	Reference Reference
	// UID is the identifier part that could not be resolved.
	UID string
}

func (e *UnknownReferenceError) Error() string {
	if e.UID != "" && e.UID != e.Reference.Key() {
		return fmt.Sprintf("unknown reference %s: no %s", e.Reference.Text, e.UID)
	}
	return fmt.Sprintf("unknown reference %s", e.Reference.Text)
}

// StructureError reports a formula whose function calls are not shaped the
// way their evaluation requires, such as an unterminated argument list.
type StructureError struct {
	Formula string
	Pos     int
	Msg     string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("formula structure at %d: %s", e.Pos, e.Msg)
}
