package metadata

import (
	"context"
	"fmt"

	"github.com/ehr/formula-engine/internal/expression"
)

// SnapshotSource yields the metadata visible to the current request.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// StaticSource serves one fixed snapshot, typically loaded from a catalog
// file.
type StaticSource struct {
	S *Snapshot
}

func (s StaticSource) Snapshot(context.Context) (*Snapshot, error) {
	return s.S, nil
}

type Service struct {
	repo ObjectRepository
}

func NewService(repo ObjectRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) SaveObject(ctx context.Context, o *Object) error {
	if err := o.Validate(); err != nil {
		return err
	}
	return s.repo.Upsert(ctx, o)
}

func (s *Service) GetObject(ctx context.Context, class expression.ObjectClass, uid string) (*Object, error) {
	return s.repo.Get(ctx, class, uid)
}

func (s *Service) DeleteObject(ctx context.Context, class expression.ObjectClass, uid string) error {
	return s.repo.Delete(ctx, class, uid)
}

func (s *Service) ListObjects(ctx context.Context, class expression.ObjectClass, limit, offset int) ([]*Object, int, error) {
	if class != "" {
		if _, err := expression.ParseObjectClass(string(class)); err != nil {
			return nil, 0, err
		}
	}
	return s.repo.List(ctx, class, limit, offset)
}

// Snapshot loads every object of the tenant into a Snapshot.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	objs, err := s.repo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}
	return NewSnapshot(objs), nil
}

func (s *Service) Search(ctx context.Context, query string, class expression.ObjectClass, limit int) ([]Match, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Search(query, class, limit), nil
}

// Import validates the whole catalog before writing any of it and returns
// the number of objects stored.
func (s *Service) Import(ctx context.Context, c Catalog) (int, error) {
	objs, err := c.Objects()
	if err != nil {
		return 0, err
	}
	for i, o := range objs {
		if err := s.repo.Upsert(ctx, o); err != nil {
			return i, fmt.Errorf("store %s %s: %w", o.Class, o.UID, err)
		}
	}
	return len(objs), nil
}
