package ledger

import (
	"slices"

	"billable/internal/core"
)

// EntryKind names a propagation step recorded in the journal.
type EntryKind string

const (
	// EntryUpdate applies Fields to series members dated on or after From.
	EntryUpdate EntryKind = "update"
	// EntryDelete removes series members dated on or after From.
	EntryDelete EntryKind = "delete"
	// EntryExtend materializes Definition into months after From's month.
	EntryExtend EntryKind = "extend"
)

// Entry is one change to a recurring series that persisted shards may not
// have seen yet.
type Entry struct {
	Seq          int64            `json:"seq"`
	Kind         EntryKind        `json:"kind"`
	DefinitionID string           `json:"definition_id"`
	From         core.Date        `json:"from"`
	Fields       *core.TaskFields `json:"fields,omitempty"`
	Definition   *core.Task       `json:"definition,omitempty"`
}

// Affects reports whether the entry can change a shard of month ym.
func (e Entry) Affects(ym core.YearMonth) bool {
	from := e.From.YearMonth()
	if e.Kind == EntryExtend {
		return from.Before(ym)
	}
	return !ym.Before(from)
}

// Journal is the ordered log of series changes. Seq only grows, including
// across compactions, so a shard revision stays comparable forever.
type Journal struct {
	Seq     int64   `json:"seq"`
	Entries []Entry `json:"entries"`
}

// NewJournal returns an empty journal.
func NewJournal() *Journal {
	return &Journal{Entries: []Entry{}}
}

// Head is the sequence number of the most recent entry.
func (j *Journal) Head() int64 {
	return j.Seq
}

// Append assigns the next sequence number to e and records it.
func (j *Journal) Append(e Entry) Entry {
	j.Seq++
	e.Seq = j.Seq
	j.Entries = append(j.Entries, e)
	return e
}

// Pending returns the entries a shard at revision has not applied yet, in order.
func (j *Journal) Pending(revision int64) []Entry {
	var out []Entry
	for _, e := range j.Entries {
		if e.Seq > revision {
			out = append(out, e)
		}
	}
	return out
}

// Compact drops every entry no shard still needs. revisions maps each
// shard on disk to the last entry it applied. It reports how many entries
// were dropped.
func (j *Journal) Compact(revisions map[core.YearMonth]int64) int {
	before := len(j.Entries)
	j.Entries = slices.DeleteFunc(j.Entries, func(e Entry) bool {
		for ym, rev := range revisions {
			if rev < e.Seq && e.Affects(ym) {
				return false
			}
		}
		return true
	})
	if j.Entries == nil {
		j.Entries = []Entry{}
	}
	return before - len(j.Entries)
}
