package formula

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/formula-engine/internal/domain/metadata"
	"github.com/ehr/formula-engine/internal/expression"
	"github.com/ehr/formula-engine/internal/platform/reporting"
)

// ErrInvalidRequest wraps request problems the caller can fix.
var ErrInvalidRequest = errors.New("invalid request")

type Service struct {
	source metadata.SnapshotSource
	eval   expression.Evaluator
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(source metadata.SnapshotSource, eval expression.Evaluator, logger zerolog.Logger) *Service {
	return &Service{source: source, eval: eval, logger: logger, now: time.Now}
}

func (s *Service) Evaluate(ctx context.Context, req EvaluateRequest) (*EvaluateResponse, error) {
	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	r, err := s.eval.Evaluate(req.Formula, snap.Bind(req.input()))
	if err != nil {
		s.logger.Debug().Err(err).Str("formula", req.Formula).Msg("formula evaluation failed")
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return &EvaluateResponse{Formula: req.Formula, Value: r, HasValue: r.HasValue()}, nil
}

func (s *Service) Validate(ctx context.Context, formula string) (*ValidateResponse, error) {
	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return validate(snap, formula), nil
}

func validate(snap *metadata.Snapshot, formula string) *ValidateResponse {
	v := expression.Validate(formula, snap)
	resp := &ValidateResponse{
		Formula:   formula,
		Valid:     v.Valid(),
		Outcome:   v.Outcome,
		Reference: v.Reference,
		Message:   v.Message(),
	}
	if v.Reference != "" && !v.Valid() {
		resp.Suggestion = suggest(snap, v.Reference)
	}
	return resp
}

// suggest proposes the closest known object for the unresolved part of a
// reference.
func suggest(snap *metadata.Snapshot, reference string) *Suggestion {
	refs, err := expression.References(reference)
	if err != nil || len(refs) != 1 {
		return nil
	}
	class, uid, missing := expression.MissingObject(refs[0], snap)
	if !missing {
		return nil
	}
	o, ok := snap.Suggest(class, uid)
	if !ok {
		return nil
	}
	return &Suggestion{Class: o.Class, UID: o.UID, Name: o.Name}
}

func (s *Service) Describe(ctx context.Context, formula string) (*DescribeResponse, error) {
	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	desc, err := expression.Describe(formula, snap)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return &DescribeResponse{Formula: formula, Description: desc}, nil
}

func (s *Service) Items(formula string) (*ItemsResponse, error) {
	var resp ItemsResponse
	var err error
	if resp.DimensionalItems, err = expression.DimensionalItemKeys(formula); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if resp.Constants, err = expression.ConstantIDs(formula); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if resp.OrgUnitGroups, err = expression.OrgUnitGroupIDs(formula); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if resp.AggregateArguments, err = expression.AggregateArguments(formula); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return &resp, nil
}

// Check validates and describes every formula for a report. A formula that
// fails validation is not described.
func (s *Service) Check(ctx context.Context, formulas []NamedFormula) ([]reporting.FormulaCheck, error) {
	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	checks := make([]reporting.FormulaCheck, 0, len(formulas))
	for _, f := range formulas {
		v := validate(snap, f.Formula)
		check := reporting.FormulaCheck{Name: f.Name, Formula: f.Formula, Outcome: v.Outcome.String()}
		if v.Valid {
			check.Description, _ = expression.Describe(f.Formula, snap)
		} else {
			check.Message = v.Message
			if v.Suggestion != nil {
				check.Message += fmt.Sprintf(" (did you mean %s, %s?)", v.Suggestion.UID, v.Suggestion.Name)
			}
		}
		checks = append(checks, check)
	}
	return checks, nil
}

// Report renders Check as an HTML document.
func (s *Service) Report(ctx context.Context, req ReportRequest) ([]byte, error) {
	checks, err := s.Check(ctx, req.Formulas)
	if err != nil {
		return nil, err
	}
	title := req.Title
	if title == "" {
		title = "Formula validation"
	}
	s.logger.Info().Int("formulas", len(checks)).Msg("rendering validation report")
	return reporting.ValidationHTML(title, s.now(), checks)
}
