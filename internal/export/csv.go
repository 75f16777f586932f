// Package export writes a month ledger as CSV or JSON.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"billable/internal/core"
)

// Names maps ids to display names. Missing ids print as "Unknown".
type Names struct {
	Projects map[string]string
	Clients  map[string]string
}

func (n Names) project(id string) string {
	if name, ok := n.Projects[id]; ok {
		return name
	}
	return "Unknown"
}

func (n Names) client(id string) string {
	if name, ok := n.Clients[id]; ok {
		return name
	}
	return "Unknown"
}

// ToCSV writes one row per task of l. The amount column is empty for
// tasks whose project has no rate on the task's day.
func ToCSV(w io.Writer, l *core.Ledger, lookup core.ProjectLookup, names Names) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"ID", "Date", "Client", "Project", "Title", "Hours", "Rate", "Amount", "Recurring", "Notes"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows(l, lookup, names) {
		rate, amount := "", ""
		if r.Rate != nil {
			rate = strconv.FormatFloat(*r.Rate, 'f', 2, 64)
			amount = strconv.FormatFloat(*r.Amount, 'f', 2, 64)
		}
		record := []string{
			r.ID,
			r.Date,
			r.Client,
			r.Project,
			r.Title,
			strconv.FormatFloat(r.Hours, 'f', -1, 64),
			rate,
			amount,
			r.Recurring,
			r.Notes,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
