package indicator

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("indicator not found")

type IndicatorRepository interface {
	Create(ctx context.Context, ind *Indicator) error
	GetByID(ctx context.Context, id uuid.UUID) (*Indicator, error)
	Update(ctx context.Context, ind *Indicator) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Indicator, int, error)
}
