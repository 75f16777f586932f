package services

import (
	"strings"

	"billable/internal/core"
	"billable/internal/ledger"
)

// materializeInto adds the occurrences of def in l's month that l does not
// hold yet. The anchor day belongs to the definition's own record, so its
// occurrence is never added. It reports how many tasks were added.
func materializeInto(e *Engine, l *core.Ledger, def core.Task) int {
	var occ []core.Task
	for _, t := range e.Materialize(def, l.Month) {
		if t.Date.Compare(def.Date) == 0 {
			continue
		}
		occ = append(occ, t)
	}
	return l.AddMissing(occ...)
}

// replay applies journal entries to l in order and advances its revision.
func replay(e *Engine, l *core.Ledger, entries []ledger.Entry) {
	for _, entry := range entries {
		if entry.Affects(l.Month) {
			applyEntry(e, l, entry)
		}
		l.Revision = entry.Seq
	}
}

func applyEntry(e *Engine, l *core.Ledger, entry ledger.Entry) int {
	member := func(t core.Task) bool {
		return t.DefinitionID == entry.DefinitionID && t.Date.Compare(entry.From) >= 0
	}

	switch entry.Kind {
	case ledger.EntryUpdate:
		if entry.Fields == nil {
			return 0
		}
		n := 0
		for i := range l.Tasks {
			if member(l.Tasks[i]) {
				patchMember(&l.Tasks[i], *entry.Fields)
				n++
			}
		}
		return n
	case ledger.EntryDelete:
		return l.RemoveFunc(member)
	case ledger.EntryExtend:
		if entry.Definition == nil {
			return 0
		}
		return materializeInto(e, l, *entry.Definition)
	}
	return 0
}

// patchMember applies fields to a series member. Clearing the recurrence
// detaches the member from its series.
func patchMember(t *core.Task, fields core.TaskFields) {
	t.Apply(fields)
	if !fields.Recurring.IsSet() {
		t.DefinitionID = ""
	}
}

// upgradeLegacy links tasks written before definition ids existed to their
// definitions: anchors by id, occurrences by id minus the "_YYYY-MM-DD"
// suffix. Matching is exact, never by prefix.
func upgradeLegacy(l *core.Ledger, st *state) int {
	n := 0
	for i := range l.Tasks {
		t := &l.Tasks[i]
		if t.DefinitionID != "" || !t.Recurring.IsSet() {
			continue
		}
		if st.definition(t.ID) >= 0 {
			t.DefinitionID = t.ID
			n++
			continue
		}
		if defID, ok := definitionOf(t.ID, t.Date); ok && st.definition(defID) >= 0 {
			t.DefinitionID = defID
			n++
		}
	}
	return n
}

// definitionOf splits an occurrence id into its definition id when the
// suffix matches the occurrence's own date.
func definitionOf(id string, d core.Date) (string, bool) {
	return strings.CutSuffix(id, "_"+d.String())
}
