// Package mathexpr evaluates literal-only arithmetic and boolean expressions,
// the form a formula takes once every item reference has been substituted.
// It is built on expr-lang/expr with builtins disabled, so the only callable
// names are the uppercase functions registered here.
package mathexpr

import (
	"errors"
	"fmt"
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/ehr/formula-engine/internal/expression/aggregate"
)

// ErrNoValue signals that the expression is well formed but has no value,
// for example an aggregate over an empty list or a division by zero.
var ErrNoValue = errors.New("no value present")

// SyntaxError reports an expression the grammar or type checker rejects.
type SyntaxError struct {
	Expression string
	Err        error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("mathexpr: malformed expression %q: %v", e.Expression, e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// Scalar and aggregate function names accepted by the evaluator.
var (
	ScalarFunctions = []string{
		"IF", "ABS", "CEIL", "FLOOR", "ROUND", "SQRT", "EXP", "LOG", "LOG10", "POW",
	}
	AggregateFunctions = []string{
		"AVG", "COUNT", "MAX", "MEDIAN", "MIN", "PERCENTILE",
		"RANK_HIGH", "RANK_LOW", "RANK_PERCENTILE", "STDDEV", "SUM", "VARIANCE",
	}
)

// Evaluator is stateless and safe for concurrent use.
type Evaluator struct{}

func New() *Evaluator {
	return &Evaluator{}
}

// run carries per-evaluation state shared by the registered functions.
type run struct {
	noValue bool
}

func (e *Evaluator) compile(expression string, r *run) (*vm.Program, error) {
	opts := []expr.Option{
		expr.Env(map[string]interface{}{}),
		expr.Optimize(false),
		expr.DisableAllBuiltins(),
	}
	opts = append(opts, r.functions()...)
	program, err := expr.Compile(expression, opts...)
	if err != nil {
		return nil, &SyntaxError{Expression: expression, Err: err}
	}
	return program, nil
}

// Check reports whether expression is well formed without running it.
func (e *Evaluator) Check(expression string) error {
	_, err := e.compile(expression, &run{})
	return err
}

// Evaluate runs expression and returns a float64 or a bool. It returns
// ErrNoValue when the result is undefined.
func (e *Evaluator) Evaluate(expression string) (interface{}, error) {
	r := &run{}
	program, err := e.compile(expression, r)
	if err != nil {
		return nil, err
	}

	out, err := expr.Run(program, map[string]interface{}{})
	if r.noValue || errors.Is(err, ErrNoValue) {
		return nil, ErrNoValue
	}
	if err != nil {
		return nil, fmt.Errorf("mathexpr: run %q: %w", expression, err)
	}

	switch v := out.(type) {
	case bool:
		return v, nil
	case nil:
		return nil, ErrNoValue
	}
	f, err := toFloat(out)
	if err != nil {
		return nil, fmt.Errorf("mathexpr: result of %q: %w", expression, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, ErrNoValue
	}
	return f, nil
}

func (r *run) functions() []expr.Option {
	return []expr.Option{
		expr.Function("IF", fnIf),
		expr.Function("ABS", unary(math.Abs)),
		expr.Function("CEIL", unary(math.Ceil)),
		expr.Function("FLOOR", unary(math.Floor)),
		expr.Function("SQRT", unary(math.Sqrt)),
		expr.Function("EXP", unary(math.Exp)),
		expr.Function("LOG", unary(math.Log)),
		expr.Function("LOG10", unary(math.Log10)),
		expr.Function("POW", fnPow),
		expr.Function("ROUND", fnRound),

		expr.Function("AVG", r.aggregate(aggregate.Mean)),
		expr.Function("COUNT", r.aggregate(aggregate.Count)),
		expr.Function("MAX", r.aggregate(aggregate.Max)),
		expr.Function("MEDIAN", r.aggregate(aggregate.Median)),
		expr.Function("MIN", r.aggregate(aggregate.Min)),
		expr.Function("STDDEV", r.aggregate(aggregate.StdDev)),
		expr.Function("SUM", r.aggregate(aggregate.Sum)),
		expr.Function("VARIANCE", r.aggregate(aggregate.Variance)),
		expr.Function("PERCENTILE", r.aggregate2(aggregate.Percentile)),
		expr.Function("RANK_HIGH", r.aggregate2(aggregate.RankHigh)),
		expr.Function("RANK_LOW", r.aggregate2(aggregate.RankLow)),
		expr.Function("RANK_PERCENTILE", r.aggregate2(aggregate.RankPercentile)),
	}
}

// ============================================================================
// Scalar functions
// ============================================================================

func fnIf(params ...interface{}) (interface{}, error) {
	if len(params) != 3 {
		return nil, fmt.Errorf("IF takes 3 arguments, got %d", len(params))
	}
	cond, ok := params[0].(bool)
	if !ok {
		return nil, fmt.Errorf("IF condition must be boolean, got %T", params[0])
	}
	if cond {
		return params[1], nil
	}
	return params[2], nil
}

func unary(fn func(float64) float64) func(params ...interface{}) (interface{}, error) {
	return func(params ...interface{}) (interface{}, error) {
		if len(params) != 1 {
			return nil, fmt.Errorf("expected 1 argument, got %d", len(params))
		}
		x, err := toFloat(params[0])
		if err != nil {
			return nil, err
		}
		return fn(x), nil
	}
}

func fnPow(params ...interface{}) (interface{}, error) {
	if len(params) != 2 {
		return nil, fmt.Errorf("POW takes 2 arguments, got %d", len(params))
	}
	x, err := toFloat(params[0])
	if err != nil {
		return nil, err
	}
	y, err := toFloat(params[1])
	if err != nil {
		return nil, err
	}
	return math.Pow(x, y), nil
}

func fnRound(params ...interface{}) (interface{}, error) {
	if len(params) != 1 && len(params) != 2 {
		return nil, fmt.Errorf("ROUND takes 1 or 2 arguments, got %d", len(params))
	}
	x, err := toFloat(params[0])
	if err != nil {
		return nil, err
	}
	places := 0.0
	if len(params) == 2 {
		if places, err = toFloat(params[1]); err != nil {
			return nil, err
		}
	}
	return Round(x, int(places)), nil
}

// Round rounds half away from zero to the given number of decimal places.
func Round(x float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(x*scale) / scale
}

// ============================================================================
// Aggregate functions
// ============================================================================

func (r *run) aggregate(fn func([]float64) (float64, error)) func(params ...interface{}) (interface{}, error) {
	return func(params ...interface{}) (interface{}, error) {
		xs, err := flatten(params)
		if err != nil {
			return nil, err
		}
		v, err := fn(xs)
		return r.result(v, err)
	}
}

// aggregate2 handles the two-argument form: a scalar followed by the samples.
func (r *run) aggregate2(fn func([]float64, float64) (float64, error)) func(params ...interface{}) (interface{}, error) {
	return func(params ...interface{}) (interface{}, error) {
		if len(params) < 2 {
			return nil, fmt.Errorf("expected a scalar and a sample list, got %d argument(s)", len(params))
		}
		arg, err := toFloat(params[0])
		if err != nil {
			return nil, err
		}
		xs, err := flatten(params[1:])
		if err != nil {
			return nil, err
		}
		v, err := fn(xs, arg)
		return r.result(v, err)
	}
}

func (r *run) result(v float64, err error) (interface{}, error) {
	if errors.Is(err, aggregate.ErrEmpty) {
		r.noValue = true
		return nil, ErrNoValue
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func flatten(params []interface{}) ([]float64, error) {
	var xs []float64
	for _, p := range params {
		if list, ok := p.([]interface{}); ok {
			inner, err := flatten(list)
			if err != nil {
				return nil, err
			}
			xs = append(xs, inner...)
			continue
		}
		x, err := toFloat(p)
		if err != nil {
			return nil, err
		}
		xs = append(xs, x)
	}
	return xs, nil
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	}
	return 0, fmt.Errorf("number expected, found %T", v)
}
