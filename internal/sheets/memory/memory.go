package memory

import (
	"context"
	"sync"

	ports "billable/internal/sheets"
)

// Store keeps billing tabs in memory. It backs the worker when no
// spreadsheet is configured, and tests.
type Store struct {
	mu     sync.Mutex
	sheets map[string][][]any
	writes int
}

var _ ports.BillingWriter = (*Store)(nil)

func New() *Store {
	return &Store{sheets: map[string][][]any{}}
}

// WriteBilling replaces the tab's rows.
func (s *Store) WriteBilling(_ context.Context, sheet ports.BillingSheet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([][]any, len(sheet.Rows))
	for i, r := range sheet.Rows {
		rows[i] = append([]any(nil), r...)
	}
	s.sheets[sheet.Title] = rows
	s.writes++
	return nil
}

// Sheet returns a copy of the rows of a tab.
func (s *Store) Sheet(title string) ([][]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.sheets[title]
	if !ok {
		return nil, false
	}
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = append([]any(nil), r...)
	}
	return out, true
}

// Writes counts WriteBilling calls.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
