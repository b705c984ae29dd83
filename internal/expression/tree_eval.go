package expression

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ehr/formula-engine/internal/expression/aggregate"
	"github.com/ehr/formula-engine/internal/expression/mathexpr"
)

// TreeEvaluator parses a formula and walks the tree, resolving references
// straight from the input maps. Formulas evaluated repeatedly should be
// parsed once with Parse and evaluated through Tree.Evaluate.
type TreeEvaluator struct{}

func NewTreeEvaluator() *TreeEvaluator {
	return &TreeEvaluator{}
}

func (e *TreeEvaluator) Evaluate(formula string, in Input) (Result, error) {
	if strings.TrimSpace(formula) == "" {
		return NoValue(), nil
	}
	t, err := Parse(formula)
	if err != nil {
		return NoValue(), err
	}
	return t.Evaluate(in)
}

// twoArgumentAggregates take a scalar before the samples.
var twoArgumentAggregates = map[string]func([]float64, float64) (float64, error){
	"PERCENTILE":      aggregate.Percentile,
	"RANK_HIGH":       aggregate.RankHigh,
	"RANK_LOW":        aggregate.RankLow,
	"RANK_PERCENTILE": aggregate.RankPercentile,
}

var oneArgumentAggregates = map[string]func([]float64) (float64, error){
	"AVG":      aggregate.Mean,
	"COUNT":    aggregate.Count,
	"MAX":      aggregate.Max,
	"MEDIAN":   aggregate.Median,
	"MIN":      aggregate.Min,
	"STDDEV":   aggregate.StdDev,
	"SUM":      aggregate.Sum,
	"VARIANCE": aggregate.Variance,
}

var unaryFunctions = map[string]func(float64) float64{
	"ABS":   math.Abs,
	"CEIL":  math.Ceil,
	"FLOOR": math.Floor,
	"SQRT":  math.Sqrt,
	"EXP":   math.Exp,
	"LOG":   math.Log,
	"LOG10": math.Log10,
}

// Evaluate walks the tree against in. Found and valued counters are kept
// for every dimensional reference actually visited, and the missing-value
// policy is applied once after the walk.
func (t *Tree) Evaluate(in Input) (Result, error) {
	ev := &evalContext{in: in, source: t.source, nullTested: map[string]bool{}}
	ev.collectNullTests(t.root)

	v, err := ev.eval(t.root)
	if errors.Is(err, ErrNoValue) || ev.counter.skip(in.Policy) {
		return NoValue(), nil
	}
	if err != nil {
		return NoValue(), err
	}

	switch x := v.(type) {
	case bool:
		return BoolResult(x), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return NoValue(), nil
		}
		return NumberResult(x), nil
	}
	return NoValue(), fmt.Errorf("unexpected result type %T", v)
}

// ============================================================================
// Evaluator
// ============================================================================

type evalContext struct {
	in      Input
	source  string
	counter itemCounter
	// nullTested holds the text of references tested by isNull whose value
	// is missing. Their other occurrences resolve to 0 without counting.
	nullTested map[string]bool
}

func (ev *evalContext) collectNullTests(n *astNode) {
	if n == nil {
		return
	}
	if n.kind == ndIsNull {
		ref := n.value.(Reference)
		if _, ok := ev.in.Values[ref.Key()]; !ok {
			ev.nullTested[ref.Text] = true
		}
		return
	}
	children := n.children
	if n.kind == ndAggregate && ev.in.Samples != nil {
		children = scalarArguments(n)
	}
	for _, c := range children {
		ev.collectNullTests(c)
	}
}

func (ev *evalContext) eval(n *astNode) (interface{}, error) {
	switch n.kind {
	case ndNumber, ndBool:
		return n.value, nil
	case ndRef:
		return ev.evalRef(n.value.(Reference))
	case ndIsNull:
		_, present := ev.in.Values[n.value.(Reference).Key()]
		return present == n.negate, nil
	case ndUnary:
		return ev.evalUnary(n)
	case ndBinary:
		return ev.evalBinary(n)
	case ndAnd:
		return ev.evalLogical(n, false)
	case ndOr:
		return ev.evalLogical(n, true)
	case ndFunction:
		return ev.evalFunction(n)
	case ndAggregate:
		return ev.evalAggregate(n)
	}
	return nil, fmt.Errorf("unknown node kind %d", n.kind)
}

func (ev *evalContext) evalRef(ref Reference) (interface{}, error) {
	switch ref.Kind {
	case KindConstant:
		v, ok := ev.in.Constants[ref.Key()]
		if !ok {
			return nil, &UnknownReferenceError{Formula: ev.source, Reference: ref, UID: ref.Key()}
		}
		return v, nil
	case KindOrgUnitGroup:
		v, ok := ev.in.OrgUnitGroupCounts[ref.Key()]
		if !ok {
			return nil, &UnknownReferenceError{Formula: ev.source, Reference: ref, UID: ref.Key()}
		}
		return float64(v), nil
	case KindDays:
		if ev.in.Days == nil {
			return 0.0, nil
		}
		return float64(*ev.in.Days), nil
	}

	if ev.nullTested[ref.Text] {
		return 0.0, nil
	}
	v, present := ev.in.Values[ref.Key()]
	ev.counter.record(present)
	if !present {
		return 0.0, nil
	}
	return v, nil
}

func (ev *evalContext) number(n *astNode) (float64, error) {
	v, err := ev.eval(n)
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("number expected, found %T", v)
	}
	return f, nil
}

func (ev *evalContext) boolean(n *astNode) (bool, error) {
	v, err := ev.eval(n)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("boolean expected, found %T", v)
	}
	return b, nil
}

func (ev *evalContext) evalUnary(n *astNode) (interface{}, error) {
	if n.value.(tokenKind) == tkNot {
		b, err := ev.boolean(n.children[0])
		if err != nil {
			return nil, err
		}
		return !b, nil
	}
	f, err := ev.number(n.children[0])
	if err != nil {
		return nil, err
	}
	if n.value.(tokenKind) == tkMinus {
		return -f, nil
	}
	return f, nil
}

// ============================================================================
// Binary operators
// ============================================================================

func (ev *evalContext) evalBinary(n *astNode) (interface{}, error) {
	op := n.value.(tokenKind)
	lv, err := ev.eval(n.children[0])
	if err != nil {
		return nil, err
	}
	rv, err := ev.eval(n.children[1])
	if err != nil {
		return nil, err
	}

	if op == tkEq || op == tkNe {
		if lb, ok := lv.(bool); ok {
			rb, ok := rv.(bool)
			if !ok {
				return nil, fmt.Errorf("cannot compare bool with %T", rv)
			}
			return (lb == rb) == (op == tkEq), nil
		}
	}

	l, lok := lv.(float64)
	r, rok := rv.(float64)
	if !lok || !rok {
		return nil, fmt.Errorf("number expected, found %T and %T", lv, rv)
	}

	switch op {
	case tkPlus:
		return l + r, nil
	case tkMinus:
		return l - r, nil
	case tkStar:
		return l * r, nil
	case tkSlash:
		return l / r, nil
	case tkPercent:
		return math.Mod(l, r), nil
	case tkCaret:
		return math.Pow(l, r), nil
	case tkEq:
		return l == r, nil
	case tkNe:
		return l != r, nil
	case tkLt:
		return l < r, nil
	case tkGt:
		return l > r, nil
	case tkLe:
		return l <= r, nil
	case tkGe:
		return l >= r, nil
	}
	return nil, fmt.Errorf("unknown operator %d", op)
}

// evalLogical short-circuits: the right operand is only visited when the
// left one does not decide the result.
func (ev *evalContext) evalLogical(n *astNode, isOr bool) (interface{}, error) {
	l, err := ev.boolean(n.children[0])
	if err != nil {
		return nil, err
	}
	if l == isOr {
		return l, nil
	}
	return ev.boolean(n.children[1])
}

// ============================================================================
// Functions
// ============================================================================

func (ev *evalContext) evalFunction(n *astNode) (interface{}, error) {
	name := n.value.(string)
	args := n.children

	if name == "IF" {
		if len(args) != 3 {
			return nil, fmt.Errorf("IF takes 3 arguments, got %d", len(args))
		}
		cond, err := ev.boolean(args[0])
		if err != nil {
			return nil, fmt.Errorf("IF condition: %w", err)
		}
		if cond {
			return ev.eval(args[1])
		}
		return ev.eval(args[2])
	}

	xs, err := ev.numbers(args)
	if err != nil {
		return nil, err
	}
	if fn, ok := unaryFunctions[name]; ok {
		if len(xs) != 1 {
			return nil, fmt.Errorf("%s takes 1 argument, got %d", name, len(xs))
		}
		return fn(xs[0]), nil
	}
	switch name {
	case "POW":
		if len(xs) != 2 {
			return nil, fmt.Errorf("POW takes 2 arguments, got %d", len(xs))
		}
		return math.Pow(xs[0], xs[1]), nil
	case "ROUND":
		switch len(xs) {
		case 1:
			return mathexpr.Round(xs[0], 0), nil
		case 2:
			return mathexpr.Round(xs[0], int(xs[1])), nil
		}
		return nil, fmt.Errorf("ROUND takes 1 or 2 arguments, got %d", len(xs))
	}
	return nil, fmt.Errorf("unknown function %s", name)
}

func (ev *evalContext) numbers(args []*astNode) ([]float64, error) {
	xs := make([]float64, 0, len(args))
	for _, a := range args {
		f, err := ev.number(a)
		if err != nil {
			return nil, err
		}
		xs = append(xs, f)
	}
	return xs, nil
}

// scalarArguments returns the arguments evaluated as scalars when the
// aggregate argument is taken from the sample map: only the leading scalar
// of the two-argument form.
func scalarArguments(n *astNode) []*astNode {
	if len(n.children) > 1 {
		return n.children[:1]
	}
	return nil
}

// evalAggregate mirrors the aggregate pass: with a sample map the argument
// text selects the samples, otherwise the arguments are evaluated as
// scalars and aggregated as they stand.
func (ev *evalContext) evalAggregate(n *astNode) (interface{}, error) {
	name := n.value.(string)

	scalars := n.children
	var samples []float64
	if ev.in.Samples != nil {
		scalars = scalarArguments(n)
		list, ok := ev.in.Samples[n.arg]
		switch {
		case ok:
			samples = list
		case ev.in.Policy == SkipIfAnyValueMissing:
			return nil, ErrNoValue
		default:
			samples = []float64{0}
		}
	}

	xs, err := ev.numbers(scalars)
	if err != nil {
		return nil, err
	}
	xs = append(xs, samples...)

	var v float64
	if fn, ok := twoArgumentAggregates[name]; ok {
		if len(xs) < 2 || (ev.in.Samples != nil && len(scalars) == 0) {
			return nil, fmt.Errorf("%s expects a scalar and a sample list", name)
		}
		v, err = fn(xs[1:], xs[0])
	} else {
		v, err = oneArgumentAggregates[name](xs)
	}
	if errors.Is(err, aggregate.ErrEmpty) {
		return nil, ErrNoValue
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}
