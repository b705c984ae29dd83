package expression

import (
	"encoding/json"
	"strconv"
)

// ResultKind tells which field of a Result is meaningful.
type ResultKind int

const (
	ResultNoValue ResultKind = iota
	ResultNumber
	ResultBool
)

// Result is the outcome of evaluating a formula. Missing data yields a
// NoValue result, never an error.
type Result struct {
	Kind   ResultKind
	Number float64
	Bool   bool
}

func NoValue() Result { return Result{Kind: ResultNoValue} }
func NumberResult(v float64) Result { return Result{Kind: ResultNumber, Number: v} }
func BoolResult(v bool) Result { return Result{Kind: ResultBool, Bool: v} }
func (r Result) HasValue() bool { return r.Kind != ResultNoValue }
func (r Result) IsNumber() bool { return r.Kind == ResultNumber }
func (r Result) IsBool() bool { return r.Kind == ResultBool }

// Float returns the numeric value. Booleans convert to 1 and 0. ok is false
// for NoValue.
func (r Result) Float() (v float64, ok bool) {
	switch r.Kind {
	case ResultNumber:
		return r.Number, true
	case ResultBool:
		if r.Bool {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func (r Result) String() string {
	switch r.Kind {
	case ResultNumber:
		return strconv.FormatFloat(r.Number, 'f', -1, 64)
	case ResultBool:
		return strconv.FormatBool(r.Bool)
	}
	return "no value"
}

// MarshalJSON encodes a number, a boolean or null.
func (r Result) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case ResultNumber:
		return json.Marshal(r.Number)
	case ResultBool:
		return json.Marshal(r.Bool)
	}
	return []byte("null"), nil
}
