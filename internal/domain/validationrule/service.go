package validationrule

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
var ErrInvalid = errors.New("invalid validation rule")

const maxRules = 1000

type Service struct {
	repo   RuleRepository
	source metadata.SnapshotSource
	eval   expression.Evaluator
	logger zerolog.Logger
}

func NewService(repo RuleRepository, source metadata.SnapshotSource, eval expression.Evaluator, logger zerolog.Logger) *Service {
	return &Service{repo: repo, source: source, eval: eval, logger: logger}
}

func (s *Service) checkRule(ctx context.Context, r *Rule) error {
	if err := r.check(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return err
	}
	if v := expression.Validate(r.Left, snap); !v.Valid() {
		return fmt.Errorf("%w: left: %s", ErrInvalid, v.Message())
	}
	if v := expression.Validate(r.Right, snap); !v.Valid() {
		return fmt.Errorf("%w: right: %s", ErrInvalid, v.Message())
	}
	return nil
}

func (s *Service) CreateRule(ctx context.Context, r *Rule) error {
	if err := s.checkRule(ctx, r); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return fmt.Errorf("create validation rule: %w", err)
	}
	s.logger.Info().Str("rule_id", r.ID.String()).Str("name", r.Name).Msg("validation rule created")
	return nil
}

func (s *Service) GetRule(ctx context.Context, id uuid.UUID) (*Rule, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateRule(ctx context.Context, r *Rule) error {
	if err := s.checkRule(ctx, r); err != nil {
		return err
	}
	return s.repo.Update(ctx, r)
}

func (s *Service) DeleteRule(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListRules(ctx context.Context, limit, offset int) ([]*Rule, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) Evaluate(ctx context.Context, id uuid.UUID, req DataRequest) (*Result, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	res, err := Check(r, s.eval, snap.Bind(expression.Input{Values: req.Values, Days: req.Days}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	res.Period = req.Period
	return res, nil
}

// Run checks every stored rule against one set of data and returns the
// violations. Rules that fail to evaluate are logged and left out.
func (s *Service) Run(ctx context.Context, req DataRequest) ([]*Result, error) {
	rules, _, err := s.repo.List(ctx, maxRules, 0)
	if err != nil {
		return nil, err
	}
	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	in := snap.Bind(expression.Input{Values: req.Values, Days: req.Days})
	violations := []*Result{}
	for _, r := range rules {
		res, err := Check(r, s.eval, in)
		if err != nil {
			s.logger.Warn().Err(err).Str("rule_id", r.ID.String()).Msg("validation rule evaluation failed")
			continue
		}
		if res.Violated {
			res.Period = req.Period
			violations = append(violations, res)
		}
	}
	s.logger.Debug().Int("rules", len(rules)).Int("violations", len(violations)).Msg("validation run finished")
	return violations, nil
}
