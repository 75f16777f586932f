package services

import (
	"context"
	"fmt"

	"billable/internal/core"
	"billable/internal/ledger"
	"billable/internal/log"
)

// Propagation steps, logged as they run.
const (
	stepLocate  = "locate_definition"
	stepPatch   = "patch_current_month"
	stepPersist = "persist_registry"
	stepScan    = "scan_future_months"
	stepRestore = "restore_original_month"
)

func (s *LedgerService) step(ctx context.Context, step, defID string, args ...any) {
	s.logger.WithComponent(log.ComponentPropagation).InfoContext(ctx, "Propagation step",
		append([]any{log.FieldOperation, log.OpPropagate, log.FieldStep, step, log.FieldDefinitionID, defID}, args...)...)
}

// propagateUpdate pushes fields from series member l.Tasks[i] onward.
// Members dated on or after max(definition date, member date) take the new
// fields. Clearing the recurrence ends the series on that day instead of
// rewriting the definition.
func (s *LedgerService) propagateUpdate(ctx context.Context, st *state, l *core.Ledger, i int, fields core.TaskFields) error {
	task := l.Tasks[i]

	di := st.definition(task.DefinitionID)
	if di < 0 {
		return fmt.Errorf("%w: definition %s", core.ErrNotFound, task.DefinitionID)
	}
	def := &st.defs[di]
	threshold := core.MaxDate(def.Date, task.Date)
	s.step(ctx, stepLocate, def.ID, "threshold", threshold.String())

	if fields.Recurring.IsSet() {
		def.Apply(fields)
	} else {
		endSeries(def, threshold)
	}

	n := 0
	for j := range l.Tasks {
		t := &l.Tasks[j]
		if t.DefinitionID == def.ID && t.Date.Compare(threshold) >= 0 {
			patchMember(t, fields)
			n++
		}
	}
	s.step(ctx, stepPatch, def.ID, log.FieldMonth, l.Month.String(), log.FieldCount, n)

	f := fields
	return s.commit(ctx, st, l, ledger.Entry{
		Kind:         ledger.EntryUpdate,
		DefinitionID: def.ID,
		From:         threshold,
		Fields:       &f,
	})
}

// propagateDelete removes task and every later member of its series. The
// definition is soft-deleted, so months not on disk yet never see it.
func (s *LedgerService) propagateDelete(ctx context.Context, st *state, l *core.Ledger, task core.Task) error {
	di := st.definition(task.DefinitionID)
	if di < 0 {
		return fmt.Errorf("%w: definition %s", core.ErrNotFound, task.DefinitionID)
	}
	def := &st.defs[di]
	from := task.Date
	s.step(ctx, stepLocate, def.ID, "removal_date", from.String())

	def.Deleted = true

	n := l.RemoveFunc(func(t core.Task) bool {
		return t.DefinitionID == def.ID && t.Date.Compare(from) >= 0
	})
	s.step(ctx, stepPatch, def.ID, log.FieldMonth, l.Month.String(), log.FieldCount, n)

	return s.commit(ctx, st, l, ledger.Entry{
		Kind:         ledger.EntryDelete,
		DefinitionID: def.ID,
		From:         from,
	})
}

// endSeries stops def from producing occurrences on or after day. Clearing
// the recurrence of a member ends the series this way.
func endSeries(def *core.Task, day core.Date) {
	if def.DeletedFrom == nil || day.Compare(*def.DeletedFrom) < 0 {
		d := day
		def.DeletedFrom = &d
	}
}

// commit persists a propagation in failure-safe order: registry, journal,
// the patched month, then (eager mode) every later month on disk in
// ascending order. A failure leaves the registry ahead and later shards
// stale, which the journal repairs on their next load.
func (s *LedgerService) commit(ctx context.Context, st *state, l *core.Ledger, entry ledger.Entry) error {
	if err := s.store.WriteDefinitions(ctx, st.defs); err != nil {
		return fmt.Errorf("persist registry: %w", err)
	}
	entry = st.journal.Append(entry)
	if err := s.store.WriteJournal(ctx, st.journal); err != nil {
		return fmt.Errorf("persist journal: %w", err)
	}
	s.step(ctx, stepPersist, entry.DefinitionID, log.FieldRevision, entry.Seq)

	if err := s.persist(ctx, st, l); err != nil {
		return err
	}
	if err := s.afterJournal(ctx, st, l.Month); err != nil {
		return err
	}
	s.step(ctx, stepRestore, entry.DefinitionID, log.FieldMonth, l.Month.String())
	return nil
}

// afterJournal brings every persisted month after ym up to the journal
// head in eager mode and compacts the journal. Lazy mode defers both.
func (s *LedgerService) afterJournal(ctx context.Context, st *state, ym core.YearMonth) error {
	if s.mode != PropagationEager {
		return nil
	}
	months, err := s.store.ListMonths(ctx)
	if err != nil {
		return err
	}
	patched := 0
	for _, m := range months {
		if !ym.Before(m) {
			continue
		}
		_, written, err := s.openMonth(ctx, st, m, true)
		if err != nil {
			return fmt.Errorf("propagate into %s: %w", m, err)
		}
		if written {
			patched++
			s.notify(ctx, m, "propagate")
		}
	}
	s.step(ctx, stepScan, "", log.FieldCount, patched)

	_, err = s.compact(ctx, st)
	return err
}

// compact drops journal entries every shard on disk has applied.
func (s *LedgerService) compact(ctx context.Context, st *state) (int, error) {
	months, err := s.store.ListMonths(ctx)
	if err != nil {
		return 0, err
	}
	revisions := make(map[core.YearMonth]int64, len(months))
	for _, m := range months {
		l, err := s.store.ReadMonth(ctx, m)
		if err != nil {
			return 0, err
		}
		revisions[m] = l.Revision
	}
	dropped := st.journal.Compact(revisions)
	if dropped == 0 {
		return 0, nil
	}
	if err := s.store.WriteJournal(ctx, st.journal); err != nil {
		return 0, fmt.Errorf("persist journal: %w", err)
	}
	s.logger.WithComponent(log.ComponentPropagation).InfoContext(ctx, "Journal compacted",
		log.FieldCount, dropped, log.FieldOperation, log.OpCompact)
	return dropped, nil
}
