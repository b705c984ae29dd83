package expression

import (
	"github.com/shopspring/decimal"
)

// DaysPerYear is the annualisation day count.
const DaysPerYear = 365

// Ratio is an indicator value kept as numerator/denominator * multiplier/divisor
// so that the division happens once, when the value is rendered.
type Ratio struct {
	Numerator   decimal.Decimal `json:"numerator"`
	Denominator decimal.Decimal `json:"denominator"`
	Multiplier  decimal.Decimal `json:"multiplier"`
	Divisor     decimal.Decimal `json:"divisor"`
}

// NewRatio assembles the ratio for an indicator with the given type factor.
// Annualised indicators multiply by DaysPerYear and divide by the number of
// days in the period. ok is false when either side has no value, the
// denominator is zero, or an annualised ratio has no positive day count.
func NewRatio(numerator, denominator Result, factor float64, annualized bool, days int) (r Ratio, ok bool) {
	num, ok := numerator.Float()
	if !ok {
		return Ratio{}, false
	}
	den, ok := denominator.Float()
	if !ok || den == 0 {
		return Ratio{}, false
	}

	r = Ratio{
		Numerator:   decimal.NewFromFloat(num),
		Denominator: decimal.NewFromFloat(den),
		Multiplier:  decimal.NewFromFloat(factor),
		Divisor:     decimal.NewFromInt(1),
	}
	if annualized {
		if days <= 0 {
			return Ratio{}, false
		}
		r.Multiplier = r.Multiplier.Mul(decimal.NewFromInt(DaysPerYear))
		r.Divisor = decimal.NewFromInt(int64(days))
	}
	return r, true
}

// Decimal performs the deferred division. Both products are formed before
// the single division.
func (r Ratio) Decimal() decimal.Decimal {
	return r.Numerator.Mul(r.Multiplier).Div(r.Denominator.Mul(r.Divisor))
}

// Value returns the ratio as a float.
func (r Ratio) Value() float64 {
	return r.Decimal().InexactFloat64()
}

// Round returns the value rounded half away from zero to places decimals.
func (r Ratio) Round(places int32) decimal.Decimal {
	return r.Decimal().Round(places)
}
