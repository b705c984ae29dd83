package indicator

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/formula-engine/internal/domain/metadata"
	"github.com/ehr/formula-engine/internal/expression"
	"github.com/ehr/formula-engine/internal/platform/reporting"
)

// ErrInvalid wraps definition or data problems the caller can fix.
var ErrInvalid = errors.New("invalid indicator")

// maxBatch caps how many indicators one batch evaluation loads.
const maxBatch = 1000

type Service struct {
	repo   IndicatorRepository
	source metadata.SnapshotSource
	eval   expression.Evaluator
	logger zerolog.Logger
}

func NewService(repo IndicatorRepository, source metadata.SnapshotSource, eval expression.Evaluator, logger zerolog.Logger) *Service {
	return &Service{repo: repo, source: source, eval: eval, logger: logger}
}

// checkFormulas rejects an indicator whose numerator or denominator does not
// validate against the tenant metadata.
func (s *Service) checkFormulas(ctx context.Context, ind *Indicator) error {
	if err := ind.check(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return err
	}
	for side, formula := range map[string]string{"numerator": ind.Numerator, "denominator": ind.Denominator} {
		if v := expression.Validate(formula, snap); !v.Valid() {
			return fmt.Errorf("%w: %s: %s", ErrInvalid, side, v.Message())
		}
	}
	return nil
}

func (s *Service) CreateIndicator(ctx context.Context, ind *Indicator) error {
	if err := s.checkFormulas(ctx, ind); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, ind); err != nil {
		return fmt.Errorf("create indicator: %w", err)
	}
	s.logger.Info().Str("indicator_id", ind.ID.String()).Str("name", ind.Name).Msg("indicator created")
	return nil
}

func (s *Service) GetIndicator(ctx context.Context, id uuid.UUID) (*Indicator, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateIndicator(ctx context.Context, ind *Indicator) error {
	if err := s.checkFormulas(ctx, ind); err != nil {
		return err
	}
	return s.repo.Update(ctx, ind)
}

func (s *Service) DeleteIndicator(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListIndicators(ctx context.Context, limit, offset int) ([]*Indicator, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) input(snap *metadata.Snapshot, req DataRequest) expression.Input {
	return snap.Bind(expression.Input{Values: req.Values, Days: req.Days})
}

func (s *Service) Evaluate(ctx context.Context, id uuid.UUID, req DataRequest) (*Evaluation, error) {
	ind, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	e, err := Compute(ind, s.eval, s.input(snap, req))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	e.Period = req.Period
	return e, nil
}

// EvaluateAll evaluates the given indicators, or every stored indicator when
// ids is empty, against one set of data. An indicator whose formulas fail
// to evaluate is logged and reported without a value.
func (s *Service) EvaluateAll(ctx context.Context, ids []uuid.UUID, req DataRequest) ([]*Evaluation, error) {
	inds, err := s.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	in := s.input(snap, req)
	out := make([]*Evaluation, 0, len(inds))
	for _, ind := range inds {
		e, err := Compute(ind, s.eval, in)
		if err != nil {
			s.logger.Warn().Err(err).Str("indicator_id", ind.ID.String()).Msg("indicator evaluation failed")
			e = &Evaluation{IndicatorID: ind.ID, Name: ind.Name, indicator: ind}
		}
		e.Period = req.Period
		out = append(out, e)
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, ids []uuid.UUID) ([]*Indicator, error) {
	if len(ids) == 0 {
		inds, _, err := s.repo.List(ctx, maxBatch, 0)
		return inds, err
	}
	if len(ids) > maxBatch {
		return nil, fmt.Errorf("%w: at most %d indicators per batch", ErrInvalid, maxBatch)
	}
	inds := make([]*Indicator, 0, len(ids))
	for _, id := range ids {
		ind, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("indicator %s: %w", id, err)
		}
		inds = append(inds, ind)
	}
	return inds, nil
}

// Export writes the batch evaluation as an xlsx workbook.
func (s *Service) Export(ctx context.Context, w io.Writer, ids []uuid.UUID, req DataRequest) error {
	evals, err := s.EvaluateAll(ctx, ids, req)
	if err != nil {
		return err
	}
	rows := make([]reporting.IndicatorRow, len(evals))
	for i, e := range evals {
		rows[i] = e.Row()
	}
	return reporting.WriteIndicatorWorkbook(w, req.Period, rows)
}
