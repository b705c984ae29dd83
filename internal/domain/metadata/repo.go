package metadata

import (
	"context"
	"errors"

	"github.com/ehr/formula-engine/internal/expression"
)

var ErrNotFound = errors.New("metadata object not found")

type ObjectRepository interface {
	// Upsert inserts o or replaces the object with the same class and uid.
	Upsert(ctx context.Context, o *Object) error
	Get(ctx context.Context, class expression.ObjectClass, uid string) (*Object, error)
	Delete(ctx context.Context, class expression.ObjectClass, uid string) error
	// List pages through objects, restricted to class unless it is empty.
	List(ctx context.Context, class expression.ObjectClass, limit, offset int) ([]*Object, int, error)
	All(ctx context.Context) ([]*Object, error)
}
