package backend

import (
	"context"
	"path/filepath"
	"testing"

	"billable/internal/config"
	"billable/internal/core"
	"billable/internal/log"
)

func TestFromAppConfig(t *testing.T) {
	cfg := &config.Config{CatalogBackend: "sqlite", DataDir: "/data", SQLiteDBPath: "/data/c.db"}
	got, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if got.Type != SQLiteBackend || got.SQLiteDBPath != "/data/c.db" {
		t.Errorf("FromAppConfig() = %+v", got)
	}

	if _, err := FromAppConfig(&config.Config{CatalogBackend: "memory"}); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestCreateBackend(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name   string
		config Config
	}{
		{"json", Config{Type: JSONBackend, DataDirectory: filepath.Join(dir, "json")}},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(dir, "sqlite", "catalog.db")}},
	}

	f := NewFactory(log.Discard())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			res, err := f.CreateBackend(ctx, tt.config)
			if err != nil {
				t.Fatalf("CreateBackend() error = %v", err)
			}
			if res.Cleanup != nil {
				t.Cleanup(func() { res.Cleanup() })
			}
			if err := res.Ping(ctx); err != nil {
				t.Fatalf("Ping() error = %v", err)
			}
			if err := res.Store.SaveClient(ctx, core.Client{ID: "c1", Name: "Acme"}); err != nil {
				t.Fatalf("SaveClient() error = %v", err)
			}
		})
	}
}

func TestCreateBackendValidates(t *testing.T) {
	f := NewFactory(log.Discard())
	if _, err := f.CreateBackend(context.Background(), Config{Type: SQLiteBackend}); err == nil {
		t.Error("expected error without database path")
	}
}

func TestCreateNotifierDisabled(t *testing.T) {
	n, cleanup := NewFactory(log.Discard()).CreateNotifier(&config.Config{})
	if n != nil || cleanup != nil {
		t.Error("expected no notifier without AMQP URL")
	}
}
