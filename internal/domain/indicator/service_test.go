package indicator

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/ehr/formula-engine/internal/domain/metadata"
	"github.com/ehr/formula-engine/internal/expression"
)

// -- Mock Repository --

type mockIndicatorRepo struct {
	store map[uuid.UUID]*Indicator
}

func newMockIndicatorRepo() *mockIndicatorRepo {
	return &mockIndicatorRepo{store: make(map[uuid.UUID]*Indicator)}
}

func (m *mockIndicatorRepo) Create(_ context.Context, ind *Indicator) error {
	ind.ID = uuid.New()
	m.store[ind.ID] = ind
	return nil
}

func (m *mockIndicatorRepo) GetByID(_ context.Context, id uuid.UUID) (*Indicator, error) {
	ind, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ind, nil
}

func (m *mockIndicatorRepo) Update(_ context.Context, ind *Indicator) error {
	if _, ok := m.store[ind.ID]; !ok {
		return ErrNotFound
	}
	m.store[ind.ID] = ind
	return nil
}

func (m *mockIndicatorRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *mockIndicatorRepo) List(_ context.Context, limit, offset int) ([]*Indicator, int, error) {
	var r []*Indicator
	for _, ind := range m.store {
		r = append(r, ind)
	}
	sort.Slice(r, func(i, j int) bool { return r[i].Name < r[j].Name })
	total := len(r)
	if offset > len(r) {
		offset = len(r)
	}
	r = r[offset:]
	if limit < len(r) {
		r = r[:limit]
	}
	return r, total, nil
}

const testCatalog = `
dataElement:
  - {uid: deA, name: ANC 1st visit}
  - {uid: deB, name: Live births}
constant:
  - {uid: popShare, name: Population share, value: 0.5}
`

func newTestService(t *testing.T) (*Service, *mockIndicatorRepo) {
	t.Helper()
	c, err := metadata.ParseCatalog([]byte(testCatalog), metadata.FormatYAML)
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	snap, err := c.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	repo := newMockIndicatorRepo()
	return NewService(repo, metadata.StaticSource{S: snap}, expression.NewTreeEvaluator(), zerolog.Nop()), repo
}

func TestCreateIndicator(t *testing.T) {
	svc, repo := newTestService(t)
	ind := &Indicator{Name: "ANC coverage", Numerator: "#{deA}", Denominator: "#{deB} * C{popShare}", Factor: 100}
	if err := svc.CreateIndicator(context.Background(), ind); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ind.ID == uuid.Nil || len(repo.store) != 1 {
		t.Error("expected the indicator to be stored")
	}
}

func TestCreateIndicator_UnknownReference(t *testing.T) {
	svc, repo := newTestService(t)
	err := svc.CreateIndicator(context.Background(), &Indicator{Name: "x", Numerator: "#{deA}", Denominator: "#{ghost}"})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if len(repo.store) != 0 {
		t.Error("expected nothing stored")
	}
}

func TestUpdateIndicator(t *testing.T) {
	svc, _ := newTestService(t)
	ind := &Indicator{Name: "ANC", Numerator: "#{deA}", Denominator: "#{deB}"}
	if err := svc.CreateIndicator(context.Background(), ind); err != nil {
		t.Fatalf("create: %v", err)
	}
	upd := &Indicator{ID: ind.ID, Name: "ANC", Numerator: "#{deA}", Denominator: "#{deB}", Factor: 1000}
	if err := svc.UpdateIndicator(context.Background(), upd); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := svc.UpdateIndicator(context.Background(), &Indicator{ID: uuid.New(), Name: "n", Numerator: "1", Denominator: "1"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEvaluate(t *testing.T) {
	svc, _ := newTestService(t)
	ind := &Indicator{Name: "ANC", Numerator: "#{deA}", Denominator: "#{deB} * C{popShare}", Factor: 100}
	if err := svc.CreateIndicator(context.Background(), ind); err != nil {
		t.Fatalf("create: %v", err)
	}
	e, err := svc.Evaluate(context.Background(), ind.ID, DataRequest{Period: "202601", Values: map[string]float64{"deA": 30, "deB": 120}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Value == nil || *e.Value != 50 {
		t.Errorf("expected 50, got %v", e.Value)
	}
	if e.Period != "202601" {
		t.Errorf("expected the period to be echoed, got %q", e.Period)
	}

	if _, err := svc.Evaluate(context.Background(), uuid.New(), DataRequest{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEvaluateAll(t *testing.T) {
	svc, repo := newTestService(t)
	for _, ind := range []*Indicator{
		{Name: "a", Numerator: "#{deA}", Denominator: "#{deB}", Factor: 1},
		{Name: "b", Numerator: "#{deB}", Denominator: "#{deA}", Factor: 1},
	} {
		if err := svc.CreateIndicator(context.Background(), ind); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	// Stored definitions can go bad when metadata changes; the batch keeps going.
	broken := &Indicator{ID: uuid.New(), Name: "c", Numerator: "(", Denominator: "1", Factor: 1}
	repo.store[broken.ID] = broken

	evals, err := svc.EvaluateAll(context.Background(), nil, DataRequest{Values: map[string]float64{"deA": 1, "deB": 4}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(evals) != 3 {
		t.Fatalf("expected 3 evaluations, got %d", len(evals))
	}
	if *evals[0].Value != 0.25 || *evals[1].Value != 4 {
		t.Errorf("unexpected values %v %v", *evals[0].Value, *evals[1].Value)
	}
	if evals[2].Value != nil {
		t.Error("expected the broken indicator to have no value")
	}

	if _, err := svc.EvaluateAll(context.Background(), []uuid.UUID{uuid.New()}, DataRequest{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for an unknown id, got %v", err)
	}
}

func TestExport(t *testing.T) {
	svc, _ := newTestService(t)
	ind := &Indicator{Name: "ANC", Numerator: "#{deA}", Denominator: "#{deB}", Factor: 100}
	if err := svc.CreateIndicator(context.Background(), ind); err != nil {
		t.Fatalf("create: %v", err)
	}
	var buf bytes.Buffer
	if err := svc.Export(context.Background(), &buf, nil, DataRequest{Period: "2026Q1", Values: map[string]float64{"deA": 1, "deB": 8}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	period, _ := f.GetCellValue("Indicators", "B1")
	name, _ := f.GetCellValue("Indicators", "A4")
	value, _ := f.GetCellValue("Indicators", "G4")
	if period != "2026Q1" || name != "ANC" || value != "12.5" {
		t.Errorf("unexpected cells period=%q name=%q value=%q", period, name, value)
	}
}
