package core

import (
	"slices"

	"github.com/shopspring/decimal"
)

// ProjectSummary holds the totals of one project within a month.
type ProjectSummary struct {
	TotalHours  float64 `json:"total_hours"`
	TotalAmount float64 `json:"total_amount"`
}

// ClientSummary holds the totals of one client and its projects.
type ClientSummary struct {
	TotalHours  float64                   `json:"total_hours"`
	TotalAmount float64                   `json:"total_amount"`
	Projects    map[string]ProjectSummary `json:"projects"`
}

// Summary maps client id to its totals. It is always derived from a task
// list and the rate history at computation time, never patched.
type Summary map[string]ClientSummary

type totals struct {
	hours, amount decimal.Decimal
}

func (t *totals) add(hours, amount decimal.Decimal) {
	t.hours = t.hours.Add(hours)
	t.amount = t.amount.Add(amount)
}

// Aggregate groups tasks by client then project, summing hours and
// hours times the rate in force on each task's own day.
//
// Sums are exact decimals so the result does not depend on task order.
// Tasks whose project is unknown or has no baseline rate count their hours
// with a zero amount; see UnpricedProjects.
func Aggregate(tasks []Task, lookup ProjectLookup) Summary {
	clients := map[string]*totals{}
	projects := map[string]map[string]*totals{}

	for _, t := range tasks {
		hours := decimal.NewFromFloat(t.Hours)
		amount := decimal.Zero
		if rate, ok := rateFor(t, lookup); ok {
			amount = hours.Mul(decimal.NewFromFloat(rate))
		}

		if clients[t.ClientID] == nil {
			clients[t.ClientID] = &totals{}
			projects[t.ClientID] = map[string]*totals{}
		}
		if projects[t.ClientID][t.ProjectID] == nil {
			projects[t.ClientID][t.ProjectID] = &totals{}
		}
		clients[t.ClientID].add(hours, amount)
		projects[t.ClientID][t.ProjectID].add(hours, amount)
	}

	summary := make(Summary, len(clients))
	for clientID, ct := range clients {
		cs := ClientSummary{
			TotalHours:  ct.hours.InexactFloat64(),
			TotalAmount: ct.amount.InexactFloat64(),
			Projects:    make(map[string]ProjectSummary, len(projects[clientID])),
		}
		for projectID, pt := range projects[clientID] {
			cs.Projects[projectID] = ProjectSummary{
				TotalHours:  pt.hours.InexactFloat64(),
				TotalAmount: pt.amount.InexactFloat64(),
			}
		}
		summary[clientID] = cs
	}
	return summary
}

// UnpricedProjects lists, sorted, the project ids referenced by tasks for
// which no rate could be resolved.
func UnpricedProjects(tasks []Task, lookup ProjectLookup) []string {
	var out []string
	for _, t := range tasks {
		if _, ok := rateFor(t, lookup); ok || slices.Contains(out, t.ProjectID) {
			continue
		}
		out = append(out, t.ProjectID)
	}
	slices.Sort(out)
	return out
}

func rateFor(t Task, lookup ProjectLookup) (float64, bool) {
	if lookup == nil {
		return 0, false
	}
	p, ok := lookup(t.ProjectID)
	if !ok {
		return 0, false
	}
	rate, err := p.RateOn(t.Date)
	if err != nil {
		return 0, false
	}
	return rate, true
}
