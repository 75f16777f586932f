package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"billable/internal/catalog"
	"billable/internal/catalog/catalogtest"
	"billable/internal/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "catalog.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore(t *testing.T) {
	catalogtest.RunStoreTests(t, func(t *testing.T) catalog.Store {
		return openTestStore(t)
	})
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveClient(ctx, core.Client{ID: "c1", Name: "Acme"}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	// Migrations are idempotent on an up-to-date schema.
	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	cs, err := s.ListClients(ctx)
	if err != nil || len(cs) != 1 {
		t.Fatalf("ListClients() = %v, %v", cs, err)
	}
}
