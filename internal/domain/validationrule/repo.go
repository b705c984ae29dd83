package validationrule

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("validation rule not found")

type RuleRepository interface {
	Create(ctx context.Context, r *Rule) error
	GetByID(ctx context.Context, id uuid.UUID) (*Rule, error)
	Update(ctx context.Context, r *Rule) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Rule, int, error)
}
