// Package ledger persists month shards, the recurring definition registry
// and the propagation journal as JSON files under one data directory.
//
// Layout:
//
//	months/{year}_{month}.json   one Ledger per month
//	recurring.json               recurring definitions
//	journal.json                 propagation journal
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"billable/internal/core"
)

const (
	monthsDir       = "months"
	definitionsFile = "recurring.json"
	journalFile     = "journal.json"
)

// FileStore reads and writes ledger files. It holds no state besides the
// root directory; callers serialize access.
type FileStore struct {
	root string
}

// NewFileStore creates the directory layout under root if missing.
func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: empty data directory", core.ErrConfiguration)
	}
	if err := os.MkdirAll(filepath.Join(root, monthsDir), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create data directory: %v", core.ErrIOFailure, err)
	}
	return &FileStore{root: root}, nil
}

// Root returns the data directory.
func (s *FileStore) Root() string {
	return s.root
}

func (s *FileStore) monthPath(ym core.YearMonth) string {
	return filepath.Join(s.root, monthsDir, ym.ShardName())
}

// ReadMonth loads the shard of ym. A missing shard is core.ErrNotFound.
func (s *FileStore) ReadMonth(ctx context.Context, ym core.YearMonth) (*core.Ledger, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := core.NewLedger(ym)
	if err := ReadJSONFile(s.monthPath(ym), l); err != nil {
		return nil, fmt.Errorf("read month %s: %w", ym, err)
	}
	l.Month = ym
	if l.Tasks == nil {
		l.Tasks = []core.Task{}
	}
	if l.Summary == nil {
		l.Summary = core.Summary{}
	}
	return l, nil
}

// WriteMonth persists l with its tasks sorted by date.
func (s *FileStore) WriteMonth(ctx context.Context, l *core.Ledger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.SortTasks()
	if err := WriteJSONFile(s.monthPath(l.Month), l); err != nil {
		return fmt.Errorf("write month %s: %w", l.Month, err)
	}
	return nil
}

// MonthExists reports whether ym has a shard on disk.
func (s *FileStore) MonthExists(ctx context.Context, ym core.YearMonth) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(s.monthPath(ym))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("%w: stat month %s: %v", core.ErrIOFailure, ym, err)
	}
}

// ListMonths returns every month with a shard on disk, ascending.
func (s *FileStore) ListMonths(ctx context.Context) ([]core.YearMonth, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.root, monthsDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: list months: %v", core.ErrIOFailure, err)
	}
	var months []core.YearMonth
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ym, ok := core.ParseShardName(e.Name()); ok {
			months = append(months, ym)
		}
	}
	slices.SortFunc(months, core.YearMonth.Compare)
	return months, nil
}

// ReadDefinitions loads the recurring registry. A missing file is an
// empty registry.
func (s *FileStore) ReadDefinitions(ctx context.Context) ([]core.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var defs []core.Task
	err := ReadJSONFile(filepath.Join(s.root, definitionsFile), &defs)
	if errors.Is(err, core.ErrNotFound) {
		return []core.Task{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read definitions: %w", err)
	}
	if defs == nil {
		defs = []core.Task{}
	}
	return defs, nil
}

// WriteDefinitions replaces the recurring registry.
func (s *FileStore) WriteDefinitions(ctx context.Context, defs []core.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if defs == nil {
		defs = []core.Task{}
	}
	if err := WriteJSONFile(filepath.Join(s.root, definitionsFile), defs); err != nil {
		return fmt.Errorf("write definitions: %w", err)
	}
	return nil
}

// ReadJournal loads the propagation journal. A missing file is an empty journal.
func (s *FileStore) ReadJournal(ctx context.Context) (*Journal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	j := NewJournal()
	err := ReadJSONFile(filepath.Join(s.root, journalFile), j)
	if errors.Is(err, core.ErrNotFound) {
		return NewJournal(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	if j.Entries == nil {
		j.Entries = []Entry{}
	}
	return j, nil
}

// WriteJournal replaces the propagation journal.
func (s *FileStore) WriteJournal(ctx context.Context, j *Journal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := WriteJSONFile(filepath.Join(s.root, journalFile), j); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}

// ReadJSONFile decodes path into v. A missing file is core.ErrNotFound.
func ReadJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", core.ErrNotFound, filepath.Base(path))
		}
		return fmt.Errorf("%w: %v", core.ErrIOFailure, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: corrupt %s: %v", core.ErrIOFailure, filepath.Base(path), err)
	}
	return nil
}

// WriteJSONFile writes v as indented JSON through a temp file in the
// target directory and renames it into place. Readers never observe a
// partial file.
func WriteJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", core.ErrIOFailure, filepath.Base(path), err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", core.ErrIOFailure, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", core.ErrIOFailure, err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %v", core.ErrIOFailure, filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp file: %v", core.ErrIOFailure, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: rename %s: %v", core.ErrIOFailure, filepath.Base(path), err)
	}
	success = true
	return nil
}
