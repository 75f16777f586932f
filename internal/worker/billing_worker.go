package worker

import (
	"context"
	"fmt"

	"billable/internal/amqp"
	"billable/internal/core"
	"billable/internal/log"
	"billable/internal/sheets"
)

// MonthReader gives read-only access to month ledgers.
type MonthReader interface {
	PeekMonth(ctx context.Context, ym core.YearMonth) (*core.Ledger, error)
}

// MonthLister lists the months that have a shard on disk.
type MonthLister interface {
	ListMonths(ctx context.Context) ([]core.YearMonth, error)
}

// Directory resolves catalog names for the billing sheet.
type Directory interface {
	ListProjects(ctx context.Context) ([]core.Project, error)
	ListClients(ctx context.Context) ([]core.Client, error)
}

// BillingWorker rewrites the billing tab of a month whenever its ledger changes.
type BillingWorker struct {
	ledger    MonthReader
	months    MonthLister
	directory Directory
	writer    sheets.BillingWriter
	prefix    string
	logger    *log.Logger
}

func NewBillingWorker(ledger MonthReader, months MonthLister, directory Directory, writer sheets.BillingWriter, prefix string, logger *log.Logger) *BillingWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &BillingWorker{
		ledger:    ledger,
		months:    months,
		directory: directory,
		writer:    writer,
		prefix:    prefix,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleLedgerChanged processes a single ledger event from AMQP.
func (w *BillingWorker) HandleLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	ym, err := msg.YearMonth()
	if err != nil {
		return err
	}
	w.logger.InfoContext(ctx, "Processing ledger event", log.FieldMonth, msg.Month, "reason", msg.Reason)
	return w.SyncMonth(ctx, ym)
}

// SyncMonth renders the month's summary and writes it to its tab.
func (w *BillingWorker) SyncMonth(ctx context.Context, ym core.YearMonth) error {
	l, err := w.ledger.PeekMonth(ctx, ym)
	if err != nil {
		return fmt.Errorf("read month %s: %w", ym, err)
	}
	names, err := w.names(ctx)
	if err != nil {
		return err
	}
	sheet := sheets.BuildBillingSheet(w.prefix, l, names)
	if err := w.writer.WriteBilling(ctx, sheet); err != nil {
		return fmt.Errorf("write billing sheet %s: %w", sheet.Title, err)
	}
	w.logger.InfoContext(ctx, "Billing synced", log.FieldOperation, log.OpSync, log.FieldMonth, ym.String(), log.FieldSheetsRef, sheet.Title)
	return nil
}

// StartupSync rewrites the most recent months on disk, recovering events
// missed while the worker was down. limit <= 0 syncs every month.
func (w *BillingWorker) StartupSync(ctx context.Context, limit int) error {
	months, err := w.months.ListMonths(ctx)
	if err != nil {
		return fmt.Errorf("list months: %w", err)
	}
	if limit > 0 && len(months) > limit {
		months = months[len(months)-limit:]
	}

	synced, failed := 0, 0
	for _, ym := range months {
		if err := w.SyncMonth(ctx, ym); err != nil {
			w.logger.ErrorContext(ctx, "Startup sync failed", log.FieldMonth, ym.String(), log.FieldError, err)
			failed++
			continue
		}
		synced++
	}

	w.logger.InfoContext(ctx, "Startup sync completed",
		"total", len(months),
		"synced", synced,
		"errors", failed)
	return nil
}

func (w *BillingWorker) names(ctx context.Context) (sheets.Names, error) {
	names := sheets.Names{Clients: map[string]string{}, Projects: map[string]string{}}
	if w.directory == nil {
		return names, nil
	}
	projects, err := w.directory.ListProjects(ctx)
	if err != nil {
		return names, fmt.Errorf("list projects: %w", err)
	}
	for _, p := range projects {
		names.Projects[p.ID] = p.Name
	}
	clients, err := w.directory.ListClients(ctx)
	if err != nil {
		return names, fmt.Errorf("list clients: %w", err)
	}
	for _, c := range clients {
		names.Clients[c.ID] = c.Name
	}
	return names, nil
}
