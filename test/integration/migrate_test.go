package integration

import (
	"context"
	"testing"

	"github.com/ehr/formula-engine/internal/platform/db"
	"github.com/ehr/formula-engine/migrations"
)

func TestMigrations_UpIsIdempotent(t *testing.T) {
	tenantID := createTenant(t, "migrate")
	ctx := context.Background()
	m := db.NewMigrator(globalPool, migrations.FS)

	n, err := m.Up(ctx, db.SchemaName(tenantID))
	if err != nil {
		t.Fatalf("second up: %v", err)
	}
	if n != 0 {
		t.Errorf("expected nothing left to apply, got %d", n)
	}

	statuses, err := m.Status(ctx, db.SchemaName(tenantID))
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(statuses) != 4 {
		t.Fatalf("expected 4 migrations, got %d", len(statuses))
	}
	for _, s := range statuses {
		if !s.Applied || s.AppliedAt == nil {
			t.Errorf("expected %03d_%s to be applied", s.Version, s.Name)
		}
	}
}
