// Package aggregate implements the statistics behind the aggregate formula
// functions. Every function reports ErrEmpty for an empty sample list so the
// caller can map it to a no-value result.
package aggregate

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var ErrEmpty = errors.New("aggregate: no values")

func Count(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return 0, ErrEmpty
	}
	return float64(len(xs)), nil
}

func Sum(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return 0, ErrEmpty
	}
	var s float64
	for _, x := range xs {
		s += x
	}
	return s, nil
}

func Mean(xs []float64) (float64, error) {
	s, err := Sum(xs)
	if err != nil {
		return 0, err
	}
	return s / float64(len(xs)), nil
}

func Min(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return 0, ErrEmpty
	}
	m := xs[0]
	for _, x := range xs[1:] {
		m = math.Min(m, x)
	}
	return m, nil
}

func Max(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return 0, ErrEmpty
	}
	m := xs[0]
	for _, x := range xs[1:] {
		m = math.Max(m, x)
	}
	return m, nil
}

// Variance is the bias-corrected sample variance (n-1 denominator). A single
// sample has variance 0.
func Variance(xs []float64) (float64, error) {
	mean, err := Mean(xs)
	if err != nil {
		return 0, err
	}
	if len(xs) == 1 {
		return 0, nil
	}
	var sq, comp float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
		comp += d
	}
	n := float64(len(xs))
	return (sq - comp*comp/n) / (n - 1), nil
}

func StdDev(xs []float64) (float64, error) {
	v, err := Variance(xs)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(v), nil
}

func Median(xs []float64) (float64, error) {
	return Percentile(xs, 50)
}

// Percentile estimates the p-th percentile, 0 < p <= 100, using position
// p(n+1)/100 with linear interpolation between the neighbouring order
// statistics. Positions outside the sample clamp to the extremes.
func Percentile(xs []float64, p float64) (float64, error) {
	if len(xs) == 0 {
		return 0, ErrEmpty
	}
	if p <= 0 || p > 100 || math.IsNaN(p) {
		return 0, fmt.Errorf("aggregate: percentile %v out of range (0, 100]", p)
	}
	if len(xs) == 1 {
		return xs[0], nil
	}

	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	n := float64(len(sorted))
	pos := p * (n + 1) / 100
	fpos := math.Floor(pos)
	dif := pos - fpos
	switch {
	case pos < 1:
		return sorted[0], nil
	case pos >= n:
		return sorted[len(sorted)-1], nil
	}
	lower := sorted[int(fpos)-1]
	upper := sorted[int(fpos)]
	return lower + dif*(upper-lower), nil
}

// RankHigh is the 1-based rank of v when samples are ordered from high to
// low, counting ties in v's favour: the number of samples <= v.
func RankHigh(xs []float64, v float64) (float64, error) {
	if len(xs) == 0 {
		return 0, ErrEmpty
	}
	var r int
	for _, x := range xs {
		if x <= v {
			r++
		}
	}
	return float64(r), nil
}

// RankLow is one more than the number of samples strictly greater than v.
func RankLow(xs []float64, v float64) (float64, error) {
	if len(xs) == 0 {
		return 0, ErrEmpty
	}
	r := 1
	for _, x := range xs {
		if x > v {
			r++
		}
	}
	return float64(r), nil
}

// RankPercentile is RankHigh as a whole percentage of the sample size.
func RankPercentile(xs []float64, v float64) (float64, error) {
	r, err := RankHigh(xs, v)
	if err != nil {
		return 0, err
	}
	return math.Floor(100*r/float64(len(xs)) + 0.5), nil
}
