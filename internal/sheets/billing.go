package sheets

import (
	"cmp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"billable/internal/core"
)

// Names resolves ids to display names. Missing entries fall back to the id.
type Names struct {
	Clients  map[string]string
	Projects map[string]string
}

func (n Names) client(id string) string {
	if v := n.Clients[id]; v != "" {
		return v
	}
	return id
}

func (n Names) project(id string) string {
	if v := n.Projects[id]; v != "" {
		return v
	}
	return id
}

// SheetTitle names the tab of a month, e.g. "Billing 2024-03".
func SheetTitle(prefix string, ym core.YearMonth) string {
	return strings.TrimSpace(strings.TrimSpace(prefix) + " " + ym.String())
}

// BuildBillingSheet renders a month summary: a header, one row per client
// followed by its projects, a grand total and, when some work could not be
// priced, the list of those projects. Clients and projects are sorted by
// display name so rewrites are stable.
func BuildBillingSheet(prefix string, l *core.Ledger, names Names) BillingSheet {
	rows := [][]any{{"Client", "Project", "Hours", "Amount"}}

	clientIDs := make([]string, 0, len(l.Summary))
	for id := range l.Summary {
		clientIDs = append(clientIDs, id)
	}
	slices.SortFunc(clientIDs, func(a, b string) int {
		return cmp.Or(cmp.Compare(names.client(a), names.client(b)), cmp.Compare(a, b))
	})

	hours, amount := decimal.Zero, decimal.Zero
	for _, cid := range clientIDs {
		cs := l.Summary[cid]
		rows = append(rows, []any{names.client(cid), "", round(cs.TotalHours), round(cs.TotalAmount)})
		hours = hours.Add(decimal.NewFromFloat(cs.TotalHours))
		amount = amount.Add(decimal.NewFromFloat(cs.TotalAmount))

		projectIDs := make([]string, 0, len(cs.Projects))
		for id := range cs.Projects {
			projectIDs = append(projectIDs, id)
		}
		slices.SortFunc(projectIDs, func(a, b string) int {
			return cmp.Or(cmp.Compare(names.project(a), names.project(b)), cmp.Compare(a, b))
		})
		for _, pid := range projectIDs {
			ps := cs.Projects[pid]
			rows = append(rows, []any{"", names.project(pid), round(ps.TotalHours), round(ps.TotalAmount)})
		}
	}
	rows = append(rows, []any{"Total", "", hours.Round(2).InexactFloat64(), amount.Round(2).InexactFloat64()})

	if len(l.Unpriced) > 0 {
		unpriced := make([]string, 0, len(l.Unpriced))
		for _, pid := range l.Unpriced {
			unpriced = append(unpriced, names.project(pid))
		}
		rows = append(rows, []any{"Unpriced", strings.Join(unpriced, ", "), "", ""})
	}

	return BillingSheet{Title: SheetTitle(prefix, l.Month), Rows: rows}
}

func round(f float64) float64 {
	return decimal.NewFromFloat(f).Round(2).InexactFloat64()
}
