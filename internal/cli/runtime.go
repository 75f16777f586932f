package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"billable/internal/backend"
	"billable/internal/catalog"
	"billable/internal/config"
	"billable/internal/ledger"
	"billable/internal/log"
	"billable/internal/services"
)

// Runtime is the ledger and catalog every binary works against.
type Runtime struct {
	Store   *ledger.FileStore
	Catalog *catalog.Catalog
	Logos   *catalog.LogoStore
	Ledger  *services.LedgerService
	// Ping checks the catalog backend.
	Ping func(ctx context.Context) error

	cleanup backend.CleanupFunc
}

// OpenRuntime builds the catalog backend and the ledger service from cfg.
// notifier may be nil.
func OpenRuntime(ctx context.Context, cfg *config.Config, logger *log.Logger, notifier services.Notifier) (*Runtime, error) {
	mode, err := services.ParsePropagationMode(cfg.PropagationMode)
	if err != nil {
		return nil, err
	}
	overflow, err := services.ParseOverflowPolicy(cfg.MonthlyOverflow)
	if err != nil {
		return nil, err
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	be, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{Ping: be.Ping, cleanup: be.Cleanup}
	fail := func(err error) (*Runtime, error) {
		return nil, errors.Join(err, rt.Close())
	}

	rt.Logos, err = catalog.NewLogoStore(filepath.Join(cfg.DataDir, "logos"))
	if err != nil {
		return fail(err)
	}
	rt.Catalog = catalog.New(be.Store, rt.Logos, logger)

	rt.Store, err = ledger.NewFileStore(cfg.DataDir)
	if err != nil {
		return fail(fmt.Errorf("open ledger: %w", err))
	}
	rt.Ledger = services.NewLedgerService(rt.Store, rt.Catalog, services.Options{
		Mode:     mode,
		Engine:   services.NewEngine(overflow),
		Notifier: notifier,
		Logger:   logger,
	})

	logger.InfoContext(ctx, "Ledger opened",
		"data_dir", cfg.DataDir,
		"propagation", mode,
		"overflow", overflow,
		"catalog", bcfg.Type)
	return rt, nil
}

// Close releases the catalog backend.
func (r *Runtime) Close() error {
	if r.cleanup == nil {
		return nil
	}
	return r.cleanup()
}
