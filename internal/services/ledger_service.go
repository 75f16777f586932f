package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"billable/internal/core"
	"billable/internal/ledger"
	"billable/internal/log"
)

// PropagationMode selects when persisted later months receive series changes.
type PropagationMode string

const (
	// PropagationLazy leaves later shards stale; they catch up from the
	// journal the next time they are opened.
	PropagationLazy PropagationMode = "lazy"
	// PropagationEager rewrites every later shard on disk before returning.
	PropagationEager PropagationMode = "eager"
)

// ParsePropagationMode accepts "lazy" and "eager"; empty means lazy.
func ParsePropagationMode(s string) (PropagationMode, error) {
	switch m := PropagationMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", PropagationLazy:
		return PropagationLazy, nil
	case PropagationEager:
		return PropagationEager, nil
	default:
		return "", fmt.Errorf("%w: unknown propagation mode %q", core.ErrConfiguration, s)
	}
}

// ShardStore persists month shards, the definition registry and the journal.
type ShardStore interface {
	ReadMonth(ctx context.Context, ym core.YearMonth) (*core.Ledger, error)
	WriteMonth(ctx context.Context, l *core.Ledger) error
	MonthExists(ctx context.Context, ym core.YearMonth) (bool, error)
	ListMonths(ctx context.Context) ([]core.YearMonth, error)
	ReadDefinitions(ctx context.Context) ([]core.Task, error)
	WriteDefinitions(ctx context.Context, defs []core.Task) error
	ReadJournal(ctx context.Context) (*ledger.Journal, error)
	WriteJournal(ctx context.Context, j *ledger.Journal) error
}

// ProjectCatalog is the part of the catalog the ledger needs for billing.
type ProjectCatalog interface {
	ListProjects(ctx context.Context) ([]core.Project, error)
	GetProject(ctx context.Context, id string) (core.Project, error)
}

// Notifier is told about every month a mutation rewrote.
type Notifier interface {
	PublishLedgerChanged(ctx context.Context, month core.YearMonth, reason string) error
}

// Options configures a LedgerService. Zero values pick the defaults.
type Options struct {
	Mode     PropagationMode
	Engine   *Engine
	Notifier Notifier
	Now      func() time.Time
	Logger   *log.Logger
}

// LedgerService is the month-sharded task ledger. Every call names the
// month it targets and returns the ledger it produced; one mutex
// serializes all calls, so a service must be the only writer of its store.
type LedgerService struct {
	mu       sync.Mutex
	store    ShardStore
	projects ProjectCatalog
	engine   *Engine
	mode     PropagationMode
	notifier Notifier
	now      func() time.Time
	logger   *log.Logger
}

func NewLedgerService(store ShardStore, projects ProjectCatalog, opts Options) *LedgerService {
	s := &LedgerService{
		store:    store,
		projects: projects,
		engine:   opts.Engine,
		mode:     opts.Mode,
		notifier: opts.Notifier,
		now:      opts.Now,
		logger:   opts.Logger,
	}
	if s.engine == nil {
		s.engine = NewEngine(OverflowClamp)
	}
	if s.mode == "" {
		s.mode = PropagationLazy
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = log.New(log.DefaultConfig())
	}
	s.logger = s.logger.WithComponent(log.ComponentLedger)
	return s
}

// Mode reports the configured propagation mode.
func (s *LedgerService) Mode() PropagationMode {
	return s.mode
}

// LoadMonth returns the ledger of ym, creating and materializing it on
// first access and catching it up with the journal otherwise.
func (s *LedgerService) LoadMonth(ctx context.Context, ym core.YearMonth) (*core.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.loadState(ctx)
	if err != nil {
		return nil, err
	}
	l, _, err := s.openMonth(ctx, st, ym, true)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// PeekMonth returns what LoadMonth would return without writing anything.
func (s *LedgerService) PeekMonth(ctx context.Context, ym core.YearMonth) (*core.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.loadState(ctx)
	if err != nil {
		return nil, err
	}
	l, _, err := s.openMonth(ctx, st, ym, false)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// SaveTask appends a new task to the month of its date. A recurring task
// also becomes a definition and is materialized into that month.
func (s *LedgerService) SaveTask(ctx context.Context, task core.Task) (*core.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.Deleted = false
	task.DeletedFrom = nil
	task.DefinitionID = ""
	if err := task.Validate(); err != nil {
		return nil, err
	}

	st, err := s.loadState(ctx)
	if err != nil {
		return nil, err
	}
	ym := task.Date.YearMonth()
	l, _, err := s.openMonth(ctx, st, ym, false)
	if err != nil {
		return nil, err
	}
	if l.Has(task.ID) || st.definition(task.ID) >= 0 {
		return nil, fmt.Errorf("%w: task %s already exists", core.ErrConsistencyViolation, task.ID)
	}

	l.Tasks = append(l.Tasks, task)
	if task.Recurring.IsSet() {
		if err := s.registerDefinition(ctx, st, l, len(l.Tasks)-1); err != nil {
			return nil, err
		}
		task.DefinitionID = task.ID
	}

	if err := s.persist(ctx, st, l); err != nil {
		return nil, err
	}
	log.NewStructuredLogger(s.logger).LogTaskSaved(ctx, ym.String(), task.ID, task.DefinitionID, task.ProjectID, task.ClientID, task.Hours)

	if err := s.afterJournal(ctx, st, ym); err != nil {
		return nil, err
	}
	s.notify(ctx, ym, "save")
	return l, nil
}

// UpdateTask replaces the mutable fields of task id in ym. The task's date
// never changes. Series members propagate the change to later occurrences;
// a plain task given a recurrence becomes a new series.
func (s *LedgerService) UpdateTask(ctx context.Context, ym core.YearMonth, id string, fields core.TaskFields) (*core.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fields.Validate(); err != nil {
		return nil, err
	}
	st, err := s.loadState(ctx)
	if err != nil {
		return nil, err
	}
	l, _, err := s.openMonth(ctx, st, ym, false)
	if err != nil {
		return nil, err
	}
	i, ok := l.Index(id)
	if !ok {
		return nil, fmt.Errorf("%w: task %s in %s", core.ErrNotFound, id, ym)
	}

	task := &l.Tasks[i]
	if task.InSeries() && st.definition(task.DefinitionID) < 0 {
		s.logger.WarnContext(ctx, "Series definition missing, detaching task",
			log.FieldTaskID, task.ID, log.FieldDefinitionID, task.DefinitionID)
		task.DefinitionID = ""
	}

	switch {
	case task.InSeries():
		if err := s.propagateUpdate(ctx, st, l, i, fields); err != nil {
			return nil, err
		}
		s.notify(ctx, ym, "update")
		return l, nil
	case fields.Recurring.IsSet():
		task.Apply(fields)
		if err := s.registerDefinition(ctx, st, l, i); err != nil {
			return nil, err
		}
	default:
		task.Apply(fields)
	}

	if err := s.persist(ctx, st, l); err != nil {
		return nil, err
	}
	if err := s.afterJournal(ctx, st, ym); err != nil {
		return nil, err
	}
	s.notify(ctx, ym, "update")
	return l, nil
}

// DeleteTask removes task id from ym. Deleting a series member soft-deletes
// its definition and removes the members on or after that day from every
// persisted month.
func (s *LedgerService) DeleteTask(ctx context.Context, ym core.YearMonth, id string) (*core.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.loadState(ctx)
	if err != nil {
		return nil, err
	}
	l, _, err := s.openMonth(ctx, st, ym, false)
	if err != nil {
		return nil, err
	}
	i, ok := l.Index(id)
	if !ok {
		return nil, fmt.Errorf("%w: task %s in %s", core.ErrNotFound, id, ym)
	}

	task := l.Tasks[i]
	if task.InSeries() && st.definition(task.DefinitionID) >= 0 {
		if err := s.propagateDelete(ctx, st, l, task); err != nil {
			return nil, err
		}
		s.notify(ctx, ym, "delete")
		return l, nil
	}

	l.RemoveFunc(func(t core.Task) bool { return t.ID == id })
	if err := s.persist(ctx, st, l); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Task deleted", log.FieldTaskID, id, log.FieldMonth, ym.String())
	s.notify(ctx, ym, "delete")
	return l, nil
}

// LoadRecurringDefinitions returns every definition in the registry,
// including ended and deleted ones.
func (s *LedgerService) LoadRecurringDefinitions(ctx context.Context) ([]core.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.loadState(ctx)
	if err != nil {
		return nil, err
	}
	return st.defs, nil
}

// GetRateForDate resolves the hourly rate of a project on a day.
func (s *LedgerService) GetRateForDate(ctx context.Context, projectID string, on core.Date) (float64, error) {
	p, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("get project %s: %w", projectID, err)
	}
	return p.RateOn(on)
}

// CurrentRate resolves the hourly rate of a project today.
func (s *LedgerService) CurrentRate(ctx context.Context, projectID string) (float64, error) {
	return s.GetRateForDate(ctx, projectID, core.DateOf(s.now()))
}

// SweepReport summarizes a Sweep run.
type SweepReport struct {
	Months    int `json:"months"`
	Rewritten int `json:"rewritten"`
	Compacted int `json:"compacted"`
}

// Sweep catches every shard on disk up with the journal, oldest first,
// then drops journal entries no shard needs any more.
func (s *LedgerService) Sweep(ctx context.Context) (SweepReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report SweepReport
	st, err := s.loadState(ctx)
	if err != nil {
		return report, err
	}
	months, err := s.store.ListMonths(ctx)
	if err != nil {
		return report, err
	}
	for _, ym := range months {
		_, written, err := s.openMonth(ctx, st, ym, true)
		if err != nil {
			return report, err
		}
		report.Months++
		if written {
			report.Rewritten++
		}
	}
	report.Compacted, err = s.compact(ctx, st)
	if err != nil {
		return report, err
	}
	s.logger.InfoContext(ctx, "Sweep completed",
		"months", report.Months, "rewritten", report.Rewritten, "compacted", report.Compacted)
	return report, nil
}

// state is the registry and journal as read at the start of an operation.
type state struct {
	defs    []core.Task
	journal *ledger.Journal
}

func (st *state) definition(id string) int {
	for i, d := range st.defs {
		if d.ID == id {
			return i
		}
	}
	return -1
}

func (s *LedgerService) loadState(ctx context.Context) (*state, error) {
	defs, err := s.store.ReadDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	for i := range defs {
		if defs[i].DefinitionID == "" {
			defs[i].DefinitionID = defs[i].ID
		}
	}
	j, err := s.store.ReadJournal(ctx)
	if err != nil {
		return nil, err
	}
	return &state{defs: defs, journal: j}, nil
}

func (s *LedgerService) lookup(ctx context.Context) (core.ProjectLookup, error) {
	if s.projects == nil {
		return core.ProjectIndex(nil), nil
	}
	projects, err := s.projects.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return core.ProjectIndex(projects), nil
}

// openMonth reads or creates the shard of ym, replays pending journal
// entries and recomputes the summary. With persist it writes the shard
// back when anything changed and reports whether it did.
func (s *LedgerService) openMonth(ctx context.Context, st *state, ym core.YearMonth, persist bool) (*core.Ledger, bool, error) {
	lookup, err := s.lookup(ctx)
	if err != nil {
		return nil, false, err
	}

	changed := false
	l, err := s.store.ReadMonth(ctx, ym)
	switch {
	case errors.Is(err, core.ErrNotFound):
		l = core.NewLedger(ym)
		for _, def := range st.defs {
			materializeInto(s.engine, l, def)
		}
		l.Revision = st.journal.Head()
		changed = true
		s.logger.InfoContext(ctx, "Month materialized",
			log.FieldMonth, ym.String(), log.FieldCount, len(l.Tasks), log.FieldOperation, log.OpMaterialize)
	case err != nil:
		return nil, false, err
	default:
		if n := upgradeLegacy(l, st); n > 0 {
			changed = true
			s.logger.InfoContext(ctx, "Linked legacy occurrences to definitions", log.FieldMonth, ym.String(), log.FieldCount, n)
		}
		if pending := st.journal.Pending(l.Revision); len(pending) > 0 {
			replay(s.engine, l, pending)
			changed = true
			s.logger.DebugContext(ctx, "Journal replayed",
				log.FieldMonth, ym.String(), log.FieldCount, len(pending), log.FieldRevision, l.Revision, log.FieldOperation, log.OpReplay)
		}
	}

	before := l.Summary
	l.Recompute(lookup)
	if !reflect.DeepEqual(before, l.Summary) {
		changed = true
	}

	if persist && changed {
		if err := s.store.WriteMonth(ctx, l); err != nil {
			return nil, false, err
		}
		return l, true, nil
	}
	return l, false, nil
}

// persist recomputes l's summary and writes it at the journal head. l must
// already reflect every journal entry.
func (s *LedgerService) persist(ctx context.Context, st *state, l *core.Ledger) error {
	lookup, err := s.lookup(ctx)
	if err != nil {
		return err
	}
	l.Recompute(lookup)
	l.Revision = st.journal.Head()
	return s.store.WriteMonth(ctx, l)
}

// registerDefinition turns l.Tasks[i] into a recurring definition:
// registry first, then the journal, then the occurrences of l's month.
func (s *LedgerService) registerDefinition(ctx context.Context, st *state, l *core.Ledger, i int) error {
	if err := checkPrefixCollision(st.defs, l.Tasks[i].ID); err != nil {
		return err
	}
	l.Tasks[i].DefinitionID = l.Tasks[i].ID
	def := l.Tasks[i]

	st.defs = append(st.defs, def)
	if err := s.store.WriteDefinitions(ctx, st.defs); err != nil {
		return fmt.Errorf("persist registry: %w", err)
	}
	st.journal.Append(ledger.Entry{
		Kind:         ledger.EntryExtend,
		DefinitionID: def.ID,
		From:         def.Date,
		Definition:   &def,
	})
	if err := s.store.WriteJournal(ctx, st.journal); err != nil {
		return fmt.Errorf("persist journal: %w", err)
	}

	n := materializeInto(s.engine, l, def)
	s.logger.InfoContext(ctx, "Recurring definition registered",
		log.FieldDefinitionID, def.ID, log.FieldRecurrence, string(def.Recurring),
		log.FieldMonth, l.Month.String(), log.FieldCount, n)
	return nil
}

// checkPrefixCollision rejects a definition id that is a prefix of an
// existing one or has one as prefix.
func checkPrefixCollision(defs []core.Task, id string) error {
	for _, d := range defs {
		if strings.HasPrefix(d.ID, id) || strings.HasPrefix(id, d.ID) {
			return fmt.Errorf("%w: definition id %q collides with %q", core.ErrConsistencyViolation, id, d.ID)
		}
	}
	return nil
}

func (s *LedgerService) notify(ctx context.Context, ym core.YearMonth, reason string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishLedgerChanged(ctx, ym, reason); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish ledger change",
			log.FieldMonth, ym.String(), log.FieldError, err)
	}
}
