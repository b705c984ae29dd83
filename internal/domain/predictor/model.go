package predictor

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ehr/formula-engine/internal/expression"
)

// DefaultDecimals applies to non-integer outputs without explicit decimals.
const DefaultDecimals = 4

// Predictor maps to the predictor table. The generator is evaluated for an
// output period with aggregate functions fed from the sample periods.
type Predictor struct {
	ID                uuid.UUID                     `db:"id" json:"id"`
	Name              string                        `db:"name" json:"name"`
	Generator         string                        `db:"generator" json:"generator"`
	Policy            expression.MissingValuePolicy `db:"missing_value_policy" json:"missing_value_policy"`
	SampleSkipTest    string                        `db:"sample_skip_test" json:"sample_skip_test,omitempty"`
	OutputDataElement string                        `db:"output_data_element" json:"output_data_element"`
	OutputInteger     bool                          `db:"output_integer" json:"output_integer"`
	Decimals          *int                          `db:"decimals" json:"decimals,omitempty"`
	CreatedAt         time.Time                     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time                     `db:"updated_at" json:"updated_at"`
}

func (p *Predictor) check() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(p.Generator) == "" {
		return fmt.Errorf("generator is required")
	}
	if strings.TrimSpace(p.OutputDataElement) == "" {
		return fmt.Errorf("output_data_element is required")
	}
	if p.Decimals != nil && (*p.Decimals < 0 || *p.Decimals > 10) {
		return fmt.Errorf("decimals must be between 0 and 10")
	}
	return nil
}

func (p *Predictor) places() int32 {
	switch {
	case p.OutputInteger:
		return 0
	case p.Decimals != nil:
		return int32(*p.Decimals)
	}
	return DefaultDecimals
}

// SamplePeriod carries the item values of one past period.
type SamplePeriod struct {
	Period string             `json:"period"`
	Values map[string]float64 `json:"values"`
	Days   *int               `json:"days,omitempty"`
}

type PredictRequest struct {
	Period  string             `json:"period"`
	Values  map[string]float64 `json:"values"`
	Days    *int               `json:"days,omitempty"`
	Samples []SamplePeriod     `json:"samples"`
}

// Prediction is the generated output value. Value is nil when the generator
// gave no finite value.
type Prediction struct {
	PredictorID       uuid.UUID            `json:"predictor_id"`
	Name              string               `json:"name"`
	Period            string               `json:"period"`
	OutputDataElement string               `json:"output_data_element"`
	Value             *float64             `json:"value"`
	Samples           map[string][]float64 `json:"samples"`
	SkippedPeriods    []string             `json:"skipped_periods,omitempty"`
}

// Predict runs the sample skip test over every sample period, evaluates each
// aggregate argument of the generator in the periods that remain, and then
// evaluates the generator. in supplies constants and org unit group counts.
func Predict(p *Predictor, eval expression.Evaluator, in expression.Input, req PredictRequest) (*Prediction, error) {
	out := &Prediction{
		PredictorID:       p.ID,
		Name:              p.Name,
		Period:            req.Period,
		OutputDataElement: p.OutputDataElement,
	}

	kept := make([]SamplePeriod, 0, len(req.Samples))
	for _, sp := range req.Samples {
		skip, err := skipped(p, eval, in, sp)
		if err != nil {
			return nil, err
		}
		if skip {
			out.SkippedPeriods = append(out.SkippedPeriods, sp.Period)
			continue
		}
		kept = append(kept, sp)
	}

	args, err := expression.AggregateArguments(p.Generator)
	if err != nil {
		return nil, fmt.Errorf("generator of %s: %w", p.Name, err)
	}
	out.Samples = make(map[string][]float64, len(args))
	for _, arg := range args {
		list := []float64{}
		for _, sp := range kept {
			sin := in
			sin.Values, sin.Days, sin.Policy = sp.Values, sp.Days, expression.SkipIfAllValuesMissing
			r, err := eval.Evaluate(arg, sin)
			if err != nil {
				return nil, fmt.Errorf("sample %q of %s in %s: %w", arg, p.Name, sp.Period, err)
			}
			if v, ok := r.Float(); ok {
				list = append(list, v)
			}
		}
		out.Samples[arg] = list
	}

	gin := in
	gin.Values, gin.Days, gin.Policy, gin.Samples = req.Values, req.Days, p.Policy, out.Samples
	r, err := eval.Evaluate(p.Generator, gin)
	if err != nil {
		return nil, fmt.Errorf("generator of %s: %w", p.Name, err)
	}
	v, ok := r.Float()
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return out, nil
	}
	rounded := decimal.NewFromFloat(v).Round(p.places()).InexactFloat64()
	out.Value = &rounded
	return out, nil
}

// skipped reports whether the skip test evaluates to true for a period.
func skipped(p *Predictor, eval expression.Evaluator, in expression.Input, sp SamplePeriod) (bool, error) {
	if strings.TrimSpace(p.SampleSkipTest) == "" {
		return false, nil
	}
	in.Values, in.Days, in.Policy = sp.Values, sp.Days, expression.NeverSkip
	r, err := eval.Evaluate(p.SampleSkipTest, in)
	if err != nil {
		return false, fmt.Errorf("sample skip test of %s in %s: %w", p.Name, sp.Period, err)
	}
	return r.IsBool() && r.Bool, nil
}
