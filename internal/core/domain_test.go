package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2024, 3, 1))
	if err != nil || string(b) != `"2024-03-01"` {
		t.Fatalf("marshal = %s, %v", b, err)
	}

	var d Date
	if err := json.Unmarshal([]byte(`"2024-02-29"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Compare(NewDate(2024, 2, 29)) != 0 {
		t.Fatalf("unexpected date %v", d)
	}

	if err := json.Unmarshal([]byte(`"2024-02-30"`), &d); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestYearMonth(t *testing.T) {
	ym := YearMonth{Year: 2024, Month: 2}
	if got := ym.End(); got.Compare(NewDate(2024, 2, 29)) != 0 {
		t.Fatalf("End() = %v", got)
	}
	if got := (YearMonth{Year: 2024, Month: 12}).Next(); got != (YearMonth{Year: 2025, Month: 1}) {
		t.Fatalf("Next() = %v", got)
	}
	if !ym.Before(YearMonth{Year: 2024, Month: 3}) || ym.Before(YearMonth{Year: 2023, Month: 12}) {
		t.Fatalf("Before() ordering wrong")
	}
	if ym.ShardName() != "2024_2.json" {
		t.Fatalf("ShardName() = %q", ym.ShardName())
	}
}

func TestParseYearMonth(t *testing.T) {
	cases := []struct {
		in      string
		want    YearMonth
		wantErr bool
	}{
		{"2024-03", YearMonth{2024, 3}, false},
		{" 2024-12 ", YearMonth{2024, 12}, false},
		{"2024-3", YearMonth{}, true},
		{"2024-13", YearMonth{}, true},
		{"2024_03", YearMonth{}, true},
		{"abcd-01", YearMonth{}, true},
	}
	for _, c := range cases {
		got, err := ParseYearMonth(c.in)
		if c.wantErr {
			if !errors.Is(err, ErrValidation) {
				t.Errorf("ParseYearMonth(%q) error = %v, want ErrValidation", c.in, err)
			}
			continue
		}
		if err != nil || got != c.want {
			t.Errorf("ParseYearMonth(%q) = %v, %v", c.in, got, err)
		}
	}
}

func TestParseShardName(t *testing.T) {
	cases := []struct {
		name string
		want YearMonth
		ok   bool
	}{
		{"2024_3.json", YearMonth{2024, 3}, true},
		{"2024_12.json", YearMonth{2024, 12}, true},
		{"2024_13.json", YearMonth{}, false},
		{"journal.json", YearMonth{}, false},
		{"2024_3.json.tmp", YearMonth{}, false},
	}
	for _, tc := range cases {
		got, ok := ParseShardName(tc.name)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("%q: got %v,%v want %v,%v", tc.name, got, ok, tc.want, tc.ok)
		}
	}
}

func TestRecurrenceJSON(t *testing.T) {
	cases := []struct {
		in   string
		want Recurrence
		ok   bool
	}{
		{`null`, None, true},
		{`"none"`, None, true},
		{`""`, None, true},
		{`"weekly"`, Weekly, true},
		{`"Monthly"`, Monthly, true},
		{`"yearly"`, None, false},
	}
	for _, tc := range cases {
		var r Recurrence
		err := json.Unmarshal([]byte(tc.in), &r)
		if tc.ok && (err != nil || r != tc.want) {
			t.Fatalf("%s: got %q, %v", tc.in, r, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s: expected error", tc.in)
		}
	}

	b, _ := json.Marshal(Task{ID: "a", Date: NewDate(2024, 1, 1)})
	var raw map[string]any
	_ = json.Unmarshal(b, &raw)
	if raw["recurring"] != nil {
		t.Fatalf("no recurrence must encode as null, got %v", raw["recurring"])
	}
	if _, ok := raw["definition_id"]; ok {
		t.Fatalf("empty definition_id must be omitted")
	}
}

func TestTaskValidate(t *testing.T) {
	good := Task{
		ID:        "t1",
		ProjectID: "p",
		ClientID:  "c",
		Date:      NewDate(2025, 1, 1),
		Hours:     0,
		Recurring: Weekly,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Task{
		{ProjectID: "p", ClientID: "c"}, // zero date
		{ProjectID: "p", ClientID: "c", Date: NewDate(2025, 1, 1), Hours: -1},
		{ProjectID: "", ClientID: "c", Date: NewDate(2025, 1, 1)},
		{ProjectID: "p", ClientID: "", Date: NewDate(2025, 1, 1)},
		{ProjectID: "p", ClientID: "c", Date: NewDate(2025, 1, 1), Recurring: "hourly"},
	}
	for i, b := range bads {
		if err := b.Validate(); !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d expected validation error, got %v", i, err)
		}
	}
}

func TestTaskApplyKeepsDateAndIdentity(t *testing.T) {
	task := Task{ID: "x", DefinitionID: "d", Date: NewDate(2024, 5, 1), Hours: 2}
	task.Apply(TaskFields{ProjectID: "p2", ClientID: "c2", Hours: 3, Title: "new", Recurring: Daily})

	if task.ID != "x" || task.DefinitionID != "d" || task.Date.Compare(NewDate(2024, 5, 1)) != 0 {
		t.Fatalf("identity changed: %+v", task)
	}
	if task.Hours != 3 || task.ProjectID != "p2" || task.Recurring != Daily {
		t.Fatalf("fields not applied: %+v", task)
	}
}

func TestProjectLegacyHourlyRate(t *testing.T) {
	var p Project
	if err := json.Unmarshal([]byte(`{"id":"p","name":"Site","client_id":"c","hourly_rate":45}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(p.RateChanges) != 1 || p.RateChanges[0].EffectiveDate != nil || p.RateChanges[0].HourlyRate != 45 {
		t.Fatalf("legacy rate not upgraded: %+v", p.RateChanges)
	}

	var q Project
	if err := json.Unmarshal([]byte(`{"id":"q","name":"App","client_id":"c","hourly_rate":45,"rate_changes":[{"hourly_rate":50,"effective_date":null}]}`), &q); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(q.RateChanges) != 1 || q.RateChanges[0].HourlyRate != 50 {
		t.Fatalf("rate history must win over flat rate: %+v", q.RateChanges)
	}
}

func TestProjectValidate(t *testing.T) {
	d := NewDate(2024, 3, 1)
	good := Project{Name: "p", ClientID: "c", RateChanges: []RateChange{{HourlyRate: 50}, {HourlyRate: 60, EffectiveDate: &d}}}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	noBaseline := Project{Name: "p", ClientID: "c", RateChanges: []RateChange{{HourlyRate: 60, EffectiveDate: &d}}}
	if err := noBaseline.Validate(); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	negative := Project{Name: "p", ClientID: "c", RateChanges: []RateChange{{HourlyRate: -1}}}
	if err := negative.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
