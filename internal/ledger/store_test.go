package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"billable/internal/core"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	return s
}

func TestFileStoreMonthRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ym := core.YearMonth{Year: 2024, Month: 3}

	if ok, err := s.MonthExists(ctx, ym); err != nil || ok {
		t.Fatalf("MonthExists() = %v, %v; want false", ok, err)
	}
	if _, err := s.ReadMonth(ctx, ym); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("ReadMonth() on missing shard error = %v, want ErrNotFound", err)
	}

	l := core.NewLedger(ym)
	l.Tasks = []core.Task{
		{ID: "b", ProjectID: "p", ClientID: "c", Date: core.NewDate(2024, 3, 20), Hours: 1},
		{ID: "a", ProjectID: "p", ClientID: "c", Date: core.NewDate(2024, 3, 5), Hours: 2, Recurring: core.Weekly, DefinitionID: "a"},
	}
	l.Revision = 7
	if err := s.WriteMonth(ctx, l); err != nil {
		t.Fatalf("WriteMonth() error = %v", err)
	}

	got, err := s.ReadMonth(ctx, ym)
	if err != nil {
		t.Fatalf("ReadMonth() error = %v", err)
	}
	if got.Month != ym || got.Revision != 7 {
		t.Fatalf("ReadMonth() month=%v revision=%d", got.Month, got.Revision)
	}
	if ids := []string{got.Tasks[0].ID, got.Tasks[1].ID}; !reflect.DeepEqual(ids, []string{"a", "b"}) {
		t.Fatalf("tasks not sorted by date: %v", ids)
	}
	if got.Tasks[0].Recurring != core.Weekly || got.Tasks[0].DefinitionID != "a" {
		t.Fatalf("task fields lost: %+v", got.Tasks[0])
	}

	if _, err := os.Stat(filepath.Join(s.Root(), "months", "2024_3.json")); err != nil {
		t.Fatalf("shard file not at expected path: %v", err)
	}
}

func TestFileStoreCorruptShard(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ym := core.YearMonth{Year: 2024, Month: 1}

	if err := os.WriteFile(filepath.Join(s.Root(), "months", ym.ShardName()), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ReadMonth(ctx, ym); !errors.Is(err, core.ErrIOFailure) {
		t.Fatalf("ReadMonth() error = %v, want ErrIOFailure", err)
	}
}

func TestFileStoreListMonths(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, ym := range []core.YearMonth{{Year: 2024, Month: 10}, {Year: 2023, Month: 12}, {Year: 2024, Month: 2}} {
		if err := s.WriteMonth(ctx, core.NewLedger(ym)); err != nil {
			t.Fatal(err)
		}
	}
	// Noise that must be ignored.
	_ = os.WriteFile(filepath.Join(s.Root(), "months", "notes.txt"), nil, 0o644)

	got, err := s.ListMonths(ctx)
	if err != nil {
		t.Fatalf("ListMonths() error = %v", err)
	}
	want := []core.YearMonth{{Year: 2023, Month: 12}, {Year: 2024, Month: 2}, {Year: 2024, Month: 10}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ListMonths() = %v, want %v", got, want)
	}
}

func TestFileStoreDefinitionsAndJournal(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	defs, err := s.ReadDefinitions(ctx)
	if err != nil || len(defs) != 0 {
		t.Fatalf("ReadDefinitions() on empty store = %v, %v", defs, err)
	}
	j, err := s.ReadJournal(ctx)
	if err != nil || j.Head() != 0 {
		t.Fatalf("ReadJournal() on empty store = %+v, %v", j, err)
	}

	def := core.Task{ID: "d1", ProjectID: "p", ClientID: "c", Date: core.NewDate(2024, 1, 3), Recurring: core.Monthly, DefinitionID: "d1"}
	if err := s.WriteDefinitions(ctx, []core.Task{def}); err != nil {
		t.Fatalf("WriteDefinitions() error = %v", err)
	}
	j.Append(Entry{Kind: EntryDelete, DefinitionID: "d1", From: core.NewDate(2024, 2, 3)})
	if err := s.WriteJournal(ctx, j); err != nil {
		t.Fatalf("WriteJournal() error = %v", err)
	}

	defs, err = s.ReadDefinitions(ctx)
	if err != nil || len(defs) != 1 || defs[0].ID != "d1" {
		t.Fatalf("ReadDefinitions() = %v, %v", defs, err)
	}
	j, err = s.ReadJournal(ctx)
	if err != nil || j.Head() != 1 || len(j.Entries) != 1 || j.Entries[0].Kind != EntryDelete {
		t.Fatalf("ReadJournal() = %+v, %v", j, err)
	}
}

func TestFileStoreNoTempFilesLeft(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ym := core.YearMonth{Year: 2024, Month: 5}
	for i := 0; i < 3; i++ {
		if err := s.WriteMonth(ctx, core.NewLedger(ym)); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := os.ReadDir(filepath.Join(s.Root(), "months"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the shard file, found %d entries", len(entries))
	}
}
