package worker

import (
	"context"
	"errors"
	"testing"

	"billable/internal/amqp"
	"billable/internal/core"
	"billable/internal/log"
	"billable/internal/sheets/memory"
)

type fakeLedger struct {
	months map[core.YearMonth]*core.Ledger
	peeks  []core.YearMonth
}

func (f *fakeLedger) PeekMonth(_ context.Context, ym core.YearMonth) (*core.Ledger, error) {
	f.peeks = append(f.peeks, ym)
	if l, ok := f.months[ym]; ok {
		return l, nil
	}
	return core.NewLedger(ym), nil
}

func (f *fakeLedger) ListMonths(context.Context) ([]core.YearMonth, error) {
	return []core.YearMonth{{Year: 2024, Month: 1}, {Year: 2024, Month: 2}, {Year: 2024, Month: 3}}, nil
}

type fakeDirectory struct{}

func (fakeDirectory) ListProjects(context.Context) ([]core.Project, error) {
	return []core.Project{{ID: "p1", Name: "Website"}}, nil
}

func (fakeDirectory) ListClients(context.Context) ([]core.Client, error) {
	return []core.Client{{ID: "c1", Name: "Acme"}}, nil
}

func TestHandleLedgerChanged(t *testing.T) {
	mar := core.YearMonth{Year: 2024, Month: 3}
	l := core.NewLedger(mar)
	l.Summary = core.Summary{"c1": {TotalHours: 2, TotalAmount: 100, Projects: map[string]core.ProjectSummary{"p1": {TotalHours: 2, TotalAmount: 100}}}}

	ledger := &fakeLedger{months: map[core.YearMonth]*core.Ledger{mar: l}}
	store := memory.New()
	w := NewBillingWorker(ledger, ledger, fakeDirectory{}, store, "Billing", log.Discard())

	if err := w.HandleLedgerChanged(context.Background(), amqp.NewLedgerChangedMessage(mar, "save")); err != nil {
		t.Fatalf("HandleLedgerChanged() error = %v", err)
	}

	rows, ok := store.Sheet("Billing 2024-03")
	if !ok {
		t.Fatal("billing tab not written")
	}
	if rows[1][0] != "Acme" || rows[2][1] != "Website" {
		t.Fatalf("names not resolved: %v", rows)
	}
}

func TestHandleLedgerChangedRejectsBadMonth(t *testing.T) {
	w := NewBillingWorker(&fakeLedger{}, nil, nil, memory.New(), "Billing", log.Discard())
	err := w.HandleLedgerChanged(context.Background(), &amqp.LedgerChangedMessage{Month: "2024-00"})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStartupSyncLimit(t *testing.T) {
	ledger := &fakeLedger{}
	store := memory.New()
	w := NewBillingWorker(ledger, ledger, nil, store, "Billing", log.Discard())

	if err := w.StartupSync(context.Background(), 2); err != nil {
		t.Fatalf("StartupSync() error = %v", err)
	}
	if store.Writes() != 2 {
		t.Fatalf("Writes() = %d, want 2", store.Writes())
	}
	if _, ok := store.Sheet("Billing 2024-01"); ok {
		t.Fatal("month outside the limit was synced")
	}
}
