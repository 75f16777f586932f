package cli

import (
	"context"
	"path/filepath"
	"testing"

	"billable/internal/config"
	"billable/internal/core"
	"billable/internal/log"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		DataDir:         dir,
		CatalogBackend:  backend,
		SQLiteDBPath:    filepath.Join(dir, "catalog.db"),
		PropagationMode: "eager",
		MonthlyOverflow: "skip",
	}
}

func TestOpenRuntime(t *testing.T) {
	for _, backend := range []string{"json", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			rt, err := OpenRuntime(ctx, testConfig(t, backend), log.Discard(), nil)
			if err != nil {
				t.Fatalf("OpenRuntime() error = %v", err)
			}
			defer rt.Close()

			if err := rt.Ping(ctx); err != nil {
				t.Errorf("Ping() error = %v", err)
			}
			if rt.Ledger.Mode() != "eager" {
				t.Errorf("Mode() = %q, want eager", rt.Ledger.Mode())
			}

			client, err := rt.Catalog.SaveClient(ctx, "Acme", nil)
			if err != nil {
				t.Fatal(err)
			}
			p, err := rt.Catalog.SaveProject(ctx, core.Project{
				Name: "Website", ClientID: client.ID,
				RateChanges: []core.RateChange{{HourlyRate: 40}},
			})
			if err != nil {
				t.Fatal(err)
			}
			l, err := rt.Ledger.SaveTask(ctx, core.Task{
				ProjectID: p.ID, ClientID: client.ID, Date: core.NewDate(2024, 3, 4), Hours: 3,
			})
			if err != nil {
				t.Fatal(err)
			}
			if got := l.Summary[client.ID].TotalAmount; got != 120 {
				t.Errorf("amount = %v, want 120", got)
			}
		})
	}
}

func TestOpenRuntimeRejectsBadMode(t *testing.T) {
	cfg := testConfig(t, "json")
	cfg.PropagationMode = "sometimes"
	if _, err := OpenRuntime(context.Background(), cfg, log.Discard(), nil); err == nil {
		t.Fatal("expected error for unknown propagation mode")
	}
}
