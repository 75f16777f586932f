package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	None    Recurrence = ""
	Daily   Recurrence = "daily"
	Weekly  Recurrence = "weekly"
	Monthly Recurrence = "monthly"
)

// DateLayout is the calendar-day wire format used in files and over HTTP.
const DateLayout = "2006-01-02"

type (
	Recurrence string

	Date struct {
		time.Time
	}

	// YearMonth identifies one ledger shard.
	YearMonth struct {
		Year  int
		Month int
	}

	Task struct {
		ID        string     `json:"id"`
		ProjectID string     `json:"project_id"`
		ClientID  string     `json:"client_id"`
		Date      Date       `json:"date"`
		Hours     float64    `json:"hours"`
		Title     string     `json:"title"`
		Notes     string     `json:"notes"`
		Recurring Recurrence `json:"recurring"`
		Deleted   bool       `json:"deleted"`

		// DefinitionID links an occurrence (and the anchor record itself)
		// to its recurring definition. Empty for standalone tasks.
		DefinitionID string `json:"definition_id,omitempty"`
		// DeletedFrom is set on definitions only: the first day a series
		// ended by clearing its recurrence no longer produces occurrences.
		DeletedFrom *Date `json:"deleted_from,omitempty"`
	}

	// TaskFields is the mutable part of a task. Updates never move a task
	// to another day.
	TaskFields struct {
		ProjectID string     `json:"project_id"`
		ClientID  string     `json:"client_id"`
		Hours     float64    `json:"hours"`
		Title     string     `json:"title"`
		Notes     string     `json:"notes"`
		Recurring Recurrence `json:"recurring"`
	}

	Client struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		LogoPath string `json:"logo_path"`
	}
)

var (
	ErrInvalidDay        = fmt.Errorf("%w: invalid day", ErrValidation)
	ErrInvalidMonth      = fmt.Errorf("%w: invalid month", ErrValidation)
	ErrInvalidHours      = fmt.Errorf("%w: hours must be zero or more", ErrValidation)
	ErrInvalidRecurrence = fmt.Errorf("%w: invalid recurrence", ErrValidation)
	ErrEmptyProject      = fmt.Errorf("%w: empty project id", ErrValidation)
	ErrEmptyClient       = fmt.Errorf("%w: empty client id", ErrValidation)
	ErrEmptyName         = fmt.Errorf("%w: empty name", ErrValidation)
)

// NewDate creates a new Date from year, month, day. Out of range values
// are normalized the way time.Date does.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD calendar day.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: date %q: %v", ErrValidation, s, err)
	}
	return Date{Time: t}, nil
}

// DateOf truncates a timestamp to its calendar day in its own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrValidation)
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// Compare returns -1, 0 or +1 comparing calendar days.
func (d Date) Compare(o Date) int {
	return d.Time.Compare(o.Time)
}

func (d Date) YearMonth() YearMonth {
	return YearMonth{Year: d.Year(), Month: d.Month()}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: date must be a string: %v", ErrValidation, err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MaxDate returns the later of two days.
func MaxDate(a, b Date) Date {
	if a.Compare(b) >= 0 {
		return a
	}
	return b
}

func NewYearMonth(year, month int) (YearMonth, error) {
	if month < 1 || month > 12 {
		return YearMonth{}, ErrInvalidMonth
	}
	if year < 1 || year > 9999 {
		return YearMonth{}, fmt.Errorf("%w: invalid year %d", ErrValidation, year)
	}
	return YearMonth{Year: year, Month: month}, nil
}

// ParseYearMonth parses "YYYY-MM".
func ParseYearMonth(s string) (YearMonth, error) {
	y, m, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok || len(y) != 4 || len(m) != 2 {
		return YearMonth{}, fmt.Errorf("%w: month %q, want YYYY-MM", ErrValidation, s)
	}
	year, err := strconv.Atoi(y)
	if err != nil {
		return YearMonth{}, fmt.Errorf("%w: month %q, want YYYY-MM", ErrValidation, s)
	}
	month, err := strconv.Atoi(m)
	if err != nil {
		return YearMonth{}, fmt.Errorf("%w: month %q, want YYYY-MM", ErrValidation, s)
	}
	return NewYearMonth(year, month)
}

func (ym YearMonth) Start() Date {
	return NewDate(ym.Year, ym.Month, 1)
}

// End returns the last day of the month.
func (ym YearMonth) End() Date {
	return NewDate(ym.Year, ym.Month+1, 0)
}

func (ym YearMonth) Next() YearMonth {
	if ym.Month == 12 {
		return YearMonth{Year: ym.Year + 1, Month: 1}
	}
	return YearMonth{Year: ym.Year, Month: ym.Month + 1}
}

func (ym YearMonth) Compare(o YearMonth) int {
	switch {
	case ym.Year != o.Year:
		if ym.Year < o.Year {
			return -1
		}
		return 1
	case ym.Month < o.Month:
		return -1
	case ym.Month > o.Month:
		return 1
	}
	return 0
}

func (ym YearMonth) Before(o YearMonth) bool {
	return ym.Compare(o) < 0
}

func (ym YearMonth) Contains(d Date) bool {
	return d.Year() == ym.Year && d.Month() == ym.Month
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, ym.Month)
}

// ShardName is the month file name, e.g. "2024_3.json".
func (ym YearMonth) ShardName() string {
	return strconv.Itoa(ym.Year) + "_" + strconv.Itoa(ym.Month) + ".json"
}

// ParseShardName is the inverse of ShardName. Unrelated files report false.
func ParseShardName(name string) (YearMonth, bool) {
	base, ok := strings.CutSuffix(name, ".json")
	if !ok {
		return YearMonth{}, false
	}
	y, m, ok := strings.Cut(base, "_")
	if !ok {
		return YearMonth{}, false
	}
	year, err := strconv.Atoi(y)
	if err != nil {
		return YearMonth{}, false
	}
	month, err := strconv.Atoi(m)
	if err != nil {
		return YearMonth{}, false
	}
	ym, err := NewYearMonth(year, month)
	if err != nil {
		return YearMonth{}, false
	}
	return ym, true
}

func (r Recurrence) IsSet() bool {
	return r != None
}

func (r Recurrence) Validate() error {
	switch r {
	case None, Daily, Weekly, Monthly:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidRecurrence, string(r))
	}
}

func (r Recurrence) MarshalJSON() ([]byte, error) {
	if r == None {
		return []byte("null"), nil
	}
	return json.Marshal(string(r))
}

// UnmarshalJSON accepts null, "" and "none" as no recurrence.
func (r *Recurrence) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = None
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: recurrence must be a string", ErrValidation)
	}
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "none" {
		s = ""
	}
	*r = Recurrence(s)
	return r.Validate()
}

// OccurrenceID builds the id of the occurrence of a definition on a day.
func OccurrenceID(definitionID string, d Date) string {
	return definitionID + "_" + d.String()
}

func (t Task) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if t.Hours < 0 {
		return ErrInvalidHours
	}
	if strings.TrimSpace(t.ProjectID) == "" {
		return ErrEmptyProject
	}
	if strings.TrimSpace(t.ClientID) == "" {
		return ErrEmptyClient
	}
	if len(t.Title) > 200 {
		return fmt.Errorf("%w: title too long (max 200 characters)", ErrValidation)
	}
	return t.Recurring.Validate()
}

// InSeries reports whether the task belongs to a recurring series.
func (t Task) InSeries() bool {
	return t.DefinitionID != ""
}

func (t Task) Fields() TaskFields {
	return TaskFields{
		ProjectID: t.ProjectID,
		ClientID:  t.ClientID,
		Hours:     t.Hours,
		Title:     t.Title,
		Notes:     t.Notes,
		Recurring: t.Recurring,
	}
}

// Apply copies the mutable fields onto the task. Date and identity stay.
func (t *Task) Apply(f TaskFields) {
	t.ProjectID = f.ProjectID
	t.ClientID = f.ClientID
	t.Hours = f.Hours
	t.Title = f.Title
	t.Notes = f.Notes
	t.Recurring = f.Recurring
}

func (f TaskFields) Validate() error {
	if f.Hours < 0 {
		return ErrInvalidHours
	}
	if strings.TrimSpace(f.ProjectID) == "" {
		return ErrEmptyProject
	}
	if strings.TrimSpace(f.ClientID) == "" {
		return ErrEmptyClient
	}
	return f.Recurring.Validate()
}

func (c Client) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 200 {
		return fmt.Errorf("%w: name too long (max 200 characters)", ErrValidation)
	}
	return nil
}
