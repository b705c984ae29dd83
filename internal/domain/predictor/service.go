package predictor

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/formula-engine/internal/domain/metadata"
	"github.com/ehr/formula-engine/internal/expression"
)

// ErrInvalid wraps definition or data problems the caller can fix.
var ErrInvalid = errors.New("invalid predictor")

type Service struct {
	repo   PredictorRepository
	source metadata.SnapshotSource
	eval   expression.Evaluator
	logger zerolog.Logger
}

func NewService(repo PredictorRepository, source metadata.SnapshotSource, eval expression.Evaluator, logger zerolog.Logger) *Service {
	return &Service{repo: repo, source: source, eval: eval, logger: logger}
}

// checkPredictor validates the generator and skip test against the tenant
// metadata and requires the output to be a known data element.
func (s *Service) checkPredictor(ctx context.Context, p *Predictor) error {
	if err := p.check(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return err
	}
	if _, ok := snap.ObjectName(expression.ClassDataElement, p.OutputDataElement); !ok {
		return fmt.Errorf("%w: output data element %s not found", ErrInvalid, p.OutputDataElement)
	}
	if v := expression.Validate(p.Generator, snap); !v.Valid() {
		return fmt.Errorf("%w: generator: %s", ErrInvalid, v.Message())
	}
	if p.SampleSkipTest != "" {
		if v := expression.Validate(p.SampleSkipTest, snap); !v.Valid() {
			return fmt.Errorf("%w: sample skip test: %s", ErrInvalid, v.Message())
		}
	}
	return nil
}

func (s *Service) CreatePredictor(ctx context.Context, p *Predictor) error {
	if err := s.checkPredictor(ctx, p); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return fmt.Errorf("create predictor: %w", err)
	}
	s.logger.Info().Str("predictor_id", p.ID.String()).Str("name", p.Name).Msg("predictor created")
	return nil
}

func (s *Service) GetPredictor(ctx context.Context, id uuid.UUID) (*Predictor, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdatePredictor(ctx context.Context, p *Predictor) error {
	if err := s.checkPredictor(ctx, p); err != nil {
		return err
	}
	return s.repo.Update(ctx, p)
}

func (s *Service) DeletePredictor(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListPredictors(ctx context.Context, limit, offset int) ([]*Predictor, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) Predict(ctx context.Context, id uuid.UUID, req PredictRequest) (*Prediction, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out, err := Predict(p, s.eval, snap.Bind(expression.Input{}), req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	s.logger.Debug().
		Str("predictor_id", p.ID.String()).
		Str("period", req.Period).
		Int("samples", len(req.Samples)).
		Int("skipped", len(out.SkippedPeriods)).
		Msg("prediction generated")
	return out, nil
}
