package predictor

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("predictor not found")

type PredictorRepository interface {
	Create(ctx context.Context, p *Predictor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Predictor, error)
	Update(ctx context.Context, p *Predictor) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Predictor, int, error)
}
