package sheets

import (
	"reflect"
	"testing"

	"billable/internal/core"
)

func TestSheetTitle(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"Billing", "Billing 2024-03"},
		{"  Fatture ", "Fatture 2024-03"},
		{"", "2024-03"},
	}
	for _, tt := range tests {
		if got := SheetTitle(tt.prefix, core.YearMonth{Year: 2024, Month: 3}); got != tt.want {
			t.Errorf("SheetTitle(%q) = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}

func TestBuildBillingSheet(t *testing.T) {
	l := core.NewLedger(core.YearMonth{Year: 2024, Month: 3})
	l.Summary = core.Summary{
		"c2": {TotalHours: 1, TotalAmount: 100, Projects: map[string]core.ProjectSummary{
			"p3": {TotalHours: 1, TotalAmount: 100},
		}},
		"c1": {TotalHours: 3.5, TotalAmount: 190.005, Projects: map[string]core.ProjectSummary{
			"p2": {TotalHours: 1.5, TotalAmount: 90.005},
			"p1": {TotalHours: 2, TotalAmount: 100},
		}},
	}
	l.Unpriced = []string{"ghost"}

	names := Names{
		Clients:  map[string]string{"c1": "Acme", "c2": "Beta"},
		Projects: map[string]string{"p1": "API", "p2": "Website", "p3": "App"},
	}

	sheet := BuildBillingSheet("Billing", l, names)
	if sheet.Title != "Billing 2024-03" {
		t.Errorf("Title = %q", sheet.Title)
	}

	want := [][]any{
		{"Client", "Project", "Hours", "Amount"},
		{"Acme", "", 3.5, 190.01},
		{"", "API", 2.0, 100.0},
		{"", "Website", 1.5, 90.01},
		{"Beta", "", 1.0, 100.0},
		{"", "App", 1.0, 100.0},
		{"Total", "", 4.5, 290.01},
		{"Unpriced", "ghost", "", ""},
	}
	if !reflect.DeepEqual(sheet.Rows, want) {
		t.Fatalf("rows mismatch\n got: %v\nwant: %v", sheet.Rows, want)
	}
}

func TestBuildBillingSheetEmptyMonth(t *testing.T) {
	sheet := BuildBillingSheet("Billing", core.NewLedger(core.YearMonth{Year: 2024, Month: 1}), Names{})
	want := [][]any{
		{"Client", "Project", "Hours", "Amount"},
		{"Total", "", 0.0, 0.0},
	}
	if !reflect.DeepEqual(sheet.Rows, want) {
		t.Fatalf("rows = %v", sheet.Rows)
	}
}

func TestQuoteSheet(t *testing.T) {
	if got := quoteSheet("Bob's 2024-03"); got != "'Bob''s 2024-03'" {
		t.Errorf("quoteSheet() = %q", got)
	}
}
