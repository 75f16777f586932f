package main

import (
	"context"
	"errors"
	"os"

	"billable/internal/amqp"
	"billable/internal/cli"
	"billable/internal/config"
	"billable/internal/log"
	ports "billable/internal/sheets"
	gsheet "billable/internal/sheets/google"
	"billable/internal/sheets/memory"
	"billable/internal/worker"
)

func main() {
	cfg := cli.MustLoadConfig((*config.Config).ValidateWorker)
	logger := cli.SetupLogger(cfg).WithComponent(log.ComponentWorker)

	logger.Info("Starting billable-worker")
	if err := run(cfg, logger); err != nil {
		logger.Error("Worker failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := cli.SignalContext(logger)
	defer stop()

	// The worker only reads the ledger, so it never publishes events.
	rt, err := cli.OpenRuntime(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	writer, err := billingWriter(ctx, cfg, logger)
	if err != nil {
		return err
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	w := worker.NewBillingWorker(rt.Ledger, rt.Store, rt.Catalog, writer, cfg.BillingSheetPrefix, logger)

	logger.Info("Performing startup sync", "months", cfg.StartupSyncMonths)
	if err := w.StartupSync(ctx, cfg.StartupSyncMonths); err != nil {
		logger.Error("Startup sync failed", log.FieldError, err)
	}

	err = client.ConsumeLedgerChanged(ctx, w.HandleLedgerChanged)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func billingWriter(ctx context.Context, cfg *config.Config, logger *log.Logger) (ports.BillingWriter, error) {
	if !cfg.SheetsEnabled() {
		logger.Warn("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, billing sheets kept in memory")
		return memory.New(), nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return client, nil
}
