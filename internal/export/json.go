package export

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"billable/internal/core"
)

// document is the JSON and YAML export of one month.
type document struct {
	Month      string        `json:"month" yaml:"month"`
	ExportedAt string        `json:"exported_at" yaml:"exported_at"`
	Count      int           `json:"count" yaml:"count"`
	Entries    []row         `json:"entries" yaml:"entries"`
	Totals     []clientTotal `json:"totals" yaml:"totals"`
	Unpriced   []string      `json:"unpriced,omitempty" yaml:"unpriced,omitempty"`
}

type row struct {
	ID        string   `json:"id" yaml:"id"`
	Date      string   `json:"date" yaml:"date"`
	ClientID  string   `json:"client_id" yaml:"client_id"`
	Client    string   `json:"client" yaml:"client"`
	ProjectID string   `json:"project_id" yaml:"project_id"`
	Project   string   `json:"project" yaml:"project"`
	Title     string   `json:"title" yaml:"title"`
	Hours     float64  `json:"hours" yaml:"hours"`
	Rate      *float64 `json:"rate,omitempty" yaml:"rate,omitempty"`
	Amount    *float64 `json:"amount,omitempty" yaml:"amount,omitempty"`
	Recurring string   `json:"recurring,omitempty" yaml:"recurring,omitempty"`
	Notes     string   `json:"notes,omitempty" yaml:"notes,omitempty"`
}

type clientTotal struct {
	ClientID string         `json:"client_id" yaml:"client_id"`
	Client   string         `json:"client" yaml:"client"`
	Hours    float64        `json:"hours" yaml:"hours"`
	Amount   float64        `json:"amount" yaml:"amount"`
	Projects []projectTotal `json:"projects" yaml:"projects"`
}

type projectTotal struct {
	ProjectID string  `json:"project_id" yaml:"project_id"`
	Project   string  `json:"project" yaml:"project"`
	Hours     float64 `json:"hours" yaml:"hours"`
	Amount    float64 `json:"amount" yaml:"amount"`
}

// ToJSON writes l as an indented document with the tasks, the per-client
// totals and the export time.
func ToJSON(w io.Writer, l *core.Ledger, lookup core.ProjectLookup, names Names, now time.Time) error {
	data, err := json.MarshalIndent(newDocument(l, lookup, names, now), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

// ToYAML writes the same document as ToJSON in YAML.
func ToYAML(w io.Writer, l *core.Ledger, lookup core.ProjectLookup, names Names, now time.Time) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(newDocument(l, lookup, names, now)); err != nil {
		return fmt.Errorf("write yaml: %w", err)
	}
	return enc.Close()
}

func newDocument(l *core.Ledger, lookup core.ProjectLookup, names Names, now time.Time) document {
	doc := document{
		Month:      l.Month.String(),
		ExportedAt: now.UTC().Format(time.RFC3339),
		Entries:    rows(l, lookup, names),
		Totals:     totals(l.Summary, names),
		Unpriced:   l.Unpriced,
	}
	doc.Count = len(doc.Entries)
	return doc
}

// totals flattens the summary, clients and projects ordered by name.
func totals(s core.Summary, names Names) []clientTotal {
	out := make([]clientTotal, 0, len(s))
	for clientID, cs := range s {
		ct := clientTotal{
			ClientID: clientID,
			Client:   names.client(clientID),
			Hours:    cs.TotalHours,
			Amount:   cs.TotalAmount,
			Projects: make([]projectTotal, 0, len(cs.Projects)),
		}
		for projectID, ps := range cs.Projects {
			ct.Projects = append(ct.Projects, projectTotal{
				ProjectID: projectID,
				Project:   names.project(projectID),
				Hours:     ps.TotalHours,
				Amount:    ps.TotalAmount,
			})
		}
		slices.SortFunc(ct.Projects, func(a, b projectTotal) int {
			return cmp.Or(cmp.Compare(a.Project, b.Project), cmp.Compare(a.ProjectID, b.ProjectID))
		})
		out = append(out, ct)
	}
	slices.SortFunc(out, func(a, b clientTotal) int {
		return cmp.Or(cmp.Compare(a.Client, b.Client), cmp.Compare(a.ClientID, b.ClientID))
	})
	return out
}

func rows(l *core.Ledger, lookup core.ProjectLookup, names Names) []row {
	out := make([]row, 0, len(l.Tasks))
	for _, t := range l.Tasks {
		r := row{
			ID:        t.ID,
			Date:      t.Date.String(),
			ClientID:  t.ClientID,
			Client:    names.client(t.ClientID),
			ProjectID: t.ProjectID,
			Project:   names.project(t.ProjectID),
			Title:     t.Title,
			Hours:     t.Hours,
			Recurring: string(t.Recurring),
			Notes:     t.Notes,
		}
		if p, ok := lookup(t.ProjectID); ok {
			if rate, err := p.RateOn(t.Date); err == nil {
				amount, _ := decimal.NewFromFloat(t.Hours).Mul(decimal.NewFromFloat(rate)).Round(2).Float64()
				r.Rate, r.Amount = &rate, &amount
			}
		}
		out = append(out, r)
	}
	return out
}
