package core

import (
	"slices"
)

// Ledger is the task collection of exactly one month plus its derived
// summary. It is the unit of persistence.
type Ledger struct {
	Month    YearMonth `json:"-"`
	Tasks    []Task    `json:"tasks"`
	Summary  Summary   `json:"summary"`
	Unpriced []string  `json:"unpriced,omitempty"`
	// Revision is the last propagation journal entry applied to this shard.
	Revision int64 `json:"revision"`
}

func NewLedger(ym YearMonth) *Ledger {
	return &Ledger{
		Month:   ym,
		Tasks:   []Task{},
		Summary: Summary{},
	}
}

// Index returns the position of the task with the given id.
func (l *Ledger) Index(id string) (int, bool) {
	i := slices.IndexFunc(l.Tasks, func(t Task) bool { return t.ID == id })
	return i, i >= 0
}

func (l *Ledger) Has(id string) bool {
	_, ok := l.Index(id)
	return ok
}

// AddMissing appends the tasks whose id is not already present and
// reports how many were added.
func (l *Ledger) AddMissing(tasks ...Task) int {
	added := 0
	for _, t := range tasks {
		if l.Has(t.ID) {
			continue
		}
		l.Tasks = append(l.Tasks, t)
		added++
	}
	return added
}

// RemoveFunc drops every task matching del and reports how many went.
func (l *Ledger) RemoveFunc(del func(Task) bool) int {
	before := len(l.Tasks)
	l.Tasks = slices.DeleteFunc(l.Tasks, del)
	return before - len(l.Tasks)
}

// SortTasks orders tasks ascending by date, keeping insertion order
// within a day.
func (l *Ledger) SortTasks() {
	slices.SortStableFunc(l.Tasks, func(a, b Task) int { return a.Date.Compare(b.Date) })
}

// Recompute rebuilds the summary from scratch.
func (l *Ledger) Recompute(lookup ProjectLookup) {
	l.Summary = Aggregate(l.Tasks, lookup)
	l.Unpriced = UnpricedProjects(l.Tasks, lookup)
}

func (l *Ledger) Clone() *Ledger {
	c := *l
	c.Tasks = slices.Clone(l.Tasks)
	if c.Tasks == nil {
		c.Tasks = []Task{}
	}
	c.Unpriced = slices.Clone(l.Unpriced)
	c.Summary = make(Summary, len(l.Summary))
	for k, v := range l.Summary {
		projects := make(map[string]ProjectSummary, len(v.Projects))
		for pk, pv := range v.Projects {
			projects[pk] = pv
		}
		v.Projects = projects
		c.Summary[k] = v
	}
	return &c
}
