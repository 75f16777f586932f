package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"billable/internal/core"
)

func sampleLedger() (*core.Ledger, core.ProjectLookup, Names) {
	from := core.NewDate(2024, 3, 10)
	projects := []core.Project{{
		ID: "p1", Name: "Website", ClientID: "c1",
		RateChanges: []core.RateChange{{HourlyRate: 50}, {HourlyRate: 60, EffectiveDate: &from}},
	}}
	l := core.NewLedger(core.YearMonth{Year: 2024, Month: 3})
	l.Tasks = []core.Task{
		{ID: "t1", ProjectID: "p1", ClientID: "c1", Date: core.NewDate(2024, 3, 4), Hours: 2, Title: "Layout, header"},
		{ID: "t2", ProjectID: "p1", ClientID: "c1", Date: core.NewDate(2024, 3, 11), Hours: 1.5, Recurring: core.Weekly},
		{ID: "t3", ProjectID: "gone", ClientID: "c1", Date: core.NewDate(2024, 3, 12), Hours: 1},
	}
	lookup := core.ProjectIndex(projects)
	l.Recompute(lookup)
	names := Names{
		Projects: map[string]string{"p1": "Website"},
		Clients:  map[string]string{"c1": "Acme"},
	}
	return l, lookup, names
}

func TestToCSV(t *testing.T) {
	l, lookup, names := sampleLedger()
	var buf bytes.Buffer
	if err := ToCSV(&buf, l, lookup, names); err != nil {
		t.Fatalf("ToCSV: %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 4 {
		t.Fatalf("expected 4 rows (1 header + 3 data), got %d", len(records))
	}
	if records[0][0] != "ID" || records[0][7] != "Amount" {
		t.Errorf("header = %v", records[0])
	}

	tests := []struct {
		row                         int
		title, project, rate, amount string
	}{
		{1, "Layout, header", "Website", "50.00", "100.00"},
		{2, "", "Website", "60.00", "90.00"},
		{3, "", "Unknown", "", ""},
	}
	for _, tt := range tests {
		rec := records[tt.row]
		if rec[4] != tt.title || rec[3] != tt.project || rec[6] != tt.rate || rec[7] != tt.amount {
			t.Errorf("row %d = %v", tt.row, rec)
		}
	}
	if records[2][8] != "weekly" {
		t.Errorf("recurring column = %q", records[2][8])
	}
}

func TestToJSON(t *testing.T) {
	l, lookup, names := sampleLedger()
	var buf bytes.Buffer
	now := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	if err := ToJSON(&buf, l, lookup, names, now); err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	var got document
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	checkDocument(t, got)
}

func TestToYAML(t *testing.T) {
	l, lookup, names := sampleLedger()
	var buf bytes.Buffer
	now := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	if err := ToYAML(&buf, l, lookup, names, now); err != nil {
		t.Fatalf("ToYAML: %v", err)
	}
	if !strings.Contains(buf.String(), "\ntotals:\n") {
		t.Errorf("yaml output = %q", buf.String())
	}

	var got document
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	checkDocument(t, got)
}

func checkDocument(t *testing.T, got document) {
	t.Helper()
	if got.Month != "2024-03" || got.Count != 3 || got.ExportedAt != "2024-04-01T09:00:00Z" {
		t.Errorf("header = %+v", got)
	}
	if got.Entries[0].Client != "Acme" || got.Entries[0].Amount == nil || *got.Entries[0].Amount != 100 {
		t.Errorf("first entry = %+v", got.Entries[0])
	}
	if got.Entries[2].Rate != nil {
		t.Errorf("unknown project has rate %v", *got.Entries[2].Rate)
	}
	if len(got.Totals) != 1 || got.Totals[0].Client != "Acme" || got.Totals[0].Amount != 190 {
		t.Fatalf("totals = %+v", got.Totals)
	}
	if ps := got.Totals[0].Projects; len(ps) != 2 || ps[0].Project != "Unknown" || ps[1].Project != "Website" {
		t.Errorf("project totals = %+v", ps)
	}
	if len(got.Unpriced) != 1 || got.Unpriced[0] != "gone" {
		t.Errorf("unpriced = %v", got.Unpriced)
	}
}
