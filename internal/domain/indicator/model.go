package indicator

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/formula-engine/internal/expression"
	"github.com/ehr/formula-engine/internal/platform/reporting"
)

// Indicator maps to the indicator table. Its value is
// numerator / denominator * factor, with the factor scaled to a year when
// Annualized is set.
type Indicator struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Code        string    `db:"code" json:"code,omitempty"`
	Numerator   string    `db:"numerator" json:"numerator"`
	Denominator string    `db:"denominator" json:"denominator"`
	Factor      float64   `db:"factor" json:"factor"`
	Annualized  bool      `db:"annualized" json:"annualized"`
	Decimals    *int      `db:"decimals" json:"decimals,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

func (ind *Indicator) check() error {
	if strings.TrimSpace(ind.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(ind.Numerator) == "" || strings.TrimSpace(ind.Denominator) == "" {
		return fmt.Errorf("numerator and denominator are required")
	}
	if ind.Factor == 0 {
		ind.Factor = 1
	}
	if ind.Decimals != nil && (*ind.Decimals < 0 || *ind.Decimals > 10) {
		return fmt.Errorf("decimals must be between 0 and 10")
	}
	return nil
}

// DataRequest is the data an indicator is evaluated against for one period.
type DataRequest struct {
	Period string             `json:"period,omitempty"`
	Values map[string]float64 `json:"values"`
	Days   *int               `json:"days,omitempty"`
}

type Evaluation struct {
	IndicatorID uuid.UUID         `json:"indicator_id"`
	Name        string            `json:"name"`
	Period      string            `json:"period,omitempty"`
	Numerator   expression.Result `json:"numerator"`
	Denominator expression.Result `json:"denominator"`
	Ratio       *expression.Ratio `json:"ratio,omitempty"`
	Value       *float64          `json:"value"`

	indicator *Indicator
}

// Compute evaluates both sides under SKIP_IF_ALL_VALUES_MISSING and forms
// the ratio. Value is nil when either side has no value or the denominator
// is zero.
func Compute(ind *Indicator, eval expression.Evaluator, in expression.Input) (*Evaluation, error) {
	in.Policy = expression.SkipIfAllValuesMissing
	num, err := eval.Evaluate(ind.Numerator, in)
	if err != nil {
		return nil, fmt.Errorf("numerator of %s: %w", ind.Name, err)
	}
	den, err := eval.Evaluate(ind.Denominator, in)
	if err != nil {
		return nil, fmt.Errorf("denominator of %s: %w", ind.Name, err)
	}

	e := &Evaluation{IndicatorID: ind.ID, Name: ind.Name, Numerator: num, Denominator: den, indicator: ind}
	days := 0
	if in.Days != nil {
		days = *in.Days
	}
	ratio, ok := expression.NewRatio(num, den, ind.Factor, ind.Annualized, days)
	if !ok {
		return e, nil
	}
	e.Ratio = &ratio
	v := ratio.Value()
	if ind.Decimals != nil {
		v = ratio.Round(int32(*ind.Decimals)).InexactFloat64()
	}
	e.Value = &v
	return e, nil
}

// Row converts the evaluation for a workbook export.
func (e *Evaluation) Row() reporting.IndicatorRow {
	row := reporting.IndicatorRow{Name: e.Name, Value: e.Value}
	if ind := e.indicator; ind != nil {
		row.Numerator, row.Denominator, row.Factor = ind.Numerator, ind.Denominator, ind.Factor
	}
	if v, ok := e.Numerator.Float(); ok {
		row.NumValue = &v
	}
	if v, ok := e.Denominator.Float(); ok {
		row.DenValue = &v
	}
	return row
}
