package jsonstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"billable/internal/catalog"
	"billable/internal/catalog/catalogtest"
)

func TestStore(t *testing.T) {
	catalogtest.RunStoreTests(t, func(t *testing.T) catalog.Store {
		return New(t.TempDir())
	})
}

func TestLegacyHourlyRate(t *testing.T) {
	dir := t.TempDir()
	legacy := `[{"id":"p1","name":"Site","client_id":"c1","color":"#000","hourly_rate":45}]`
	if err := os.WriteFile(filepath.Join(dir, projectsFile), []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := New(dir).GetProject(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if len(p.RateChanges) != 1 || p.RateChanges[0].HourlyRate != 45 || p.RateChanges[0].EffectiveDate != nil {
		t.Fatalf("RateChanges = %+v, want one baseline of 45", p.RateChanges)
	}
}
