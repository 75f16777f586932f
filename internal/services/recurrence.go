// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for recurring task materialization.
// Each recurrence kind (daily, weekly, monthly) has its own matcher that
// decides whether a calendar day carries an occurrence of a definition.

package services

import (
	"fmt"
	"strings"

	"billable/internal/core"
)

// OverflowPolicy decides what a monthly series anchored on day 29-31 does in
// months that are too short.
type OverflowPolicy string

const (
	// OverflowClamp emits on the last day of short months.
	OverflowClamp OverflowPolicy = "clamp"
	// OverflowSkip emits nothing in months without the anchor day.
	OverflowSkip OverflowPolicy = "skip"
)

// ParseOverflowPolicy accepts "clamp" and "skip"; empty means clamp.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch p := OverflowPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", OverflowClamp:
		return OverflowClamp, nil
	case OverflowSkip:
		return OverflowSkip, nil
	default:
		return "", fmt.Errorf("%w: unknown monthly overflow policy %q", core.ErrConfiguration, s)
	}
}

// OccurrenceMatcher is the strategy interface for recurrence kinds.
type OccurrenceMatcher interface {
	// Matches reports whether day carries an occurrence of a series anchored on anchor.
	// Callers guarantee day is not before anchor.
	Matches(day, anchor core.Date) bool
}

// DailyMatcher matches every day.
type DailyMatcher struct{}

func (DailyMatcher) Matches(_, _ core.Date) bool { return true }

// WeeklyMatcher matches the anchor's weekday.
type WeeklyMatcher struct{}

func (WeeklyMatcher) Matches(day, anchor core.Date) bool {
	return day.Weekday() == anchor.Weekday()
}

// MonthlyMatcher matches the anchor's day of month.
type MonthlyMatcher struct {
	Overflow OverflowPolicy
}

func (m MonthlyMatcher) Matches(day, anchor core.Date) bool {
	target := anchor.Day()
	if m.Overflow != OverflowSkip {
		lastDay := day.YearMonth().End().Day()
		if target > lastDay {
			target = lastDay
		}
	}
	return day.Day() == target
}

// defaultMatchers maps recurrence kinds to their matchers.
var defaultMatchers = map[core.Recurrence]OccurrenceMatcher{
	core.Daily:   DailyMatcher{},
	core.Weekly:  WeeklyMatcher{},
	core.Monthly: MonthlyMatcher{Overflow: OverflowClamp},
}

// GetOccurrenceMatcher returns the default matcher for a recurrence kind.
func GetOccurrenceMatcher(kind core.Recurrence) (OccurrenceMatcher, error) {
	m, ok := defaultMatchers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidRecurrence, string(kind))
	}
	return m, nil
}

// Engine expands recurring definitions into concrete occurrences of a month.
// It is pure: no I/O, no clock.
type Engine struct {
	matchers map[core.Recurrence]OccurrenceMatcher
}

// NewEngine builds an engine with the default matchers and the given
// monthly overflow policy.
func NewEngine(overflow OverflowPolicy) *Engine {
	e := &Engine{matchers: make(map[core.Recurrence]OccurrenceMatcher, len(defaultMatchers))}
	for k, m := range defaultMatchers {
		e.matchers[k] = m
	}
	e.matchers[core.Monthly] = MonthlyMatcher{Overflow: overflow}
	return e
}

// Register installs or replaces the matcher for a recurrence kind.
func (e *Engine) Register(kind core.Recurrence, m OccurrenceMatcher) {
	e.matchers[kind] = m
}

// Materialize returns the occurrences of def inside ym, ascending by date.
//
// Candidate days run from the later of the month start and the anchor date
// through the month end. A deleted definition produces nothing; an ended
// series (DeletedFrom) stops the day before its bound. The anchor day itself
// is included when it falls in ym; callers holding the anchor record drop it
// by id.
func (e *Engine) Materialize(def core.Task, ym core.YearMonth) []core.Task {
	if !def.Recurring.IsSet() {
		return nil
	}
	if def.Deleted {
		return nil
	}
	m, ok := e.matchers[def.Recurring]
	if !ok {
		return nil
	}

	end := ym.End()
	if def.DeletedFrom != nil && def.DeletedFrom.Compare(end) <= 0 {
		end = def.DeletedFrom.AddDays(-1)
	}

	var out []core.Task
	for day := core.MaxDate(ym.Start(), def.Date); day.Compare(end) <= 0; day = day.AddDays(1) {
		if !m.Matches(day, def.Date) {
			continue
		}
		out = append(out, Occurrence(def, day))
	}
	return out
}

// Occurrence builds the concrete task of def on day.
func Occurrence(def core.Task, day core.Date) core.Task {
	return core.Task{
		ID:           core.OccurrenceID(def.ID, day),
		ProjectID:    def.ProjectID,
		ClientID:     def.ClientID,
		Date:         day,
		Hours:        def.Hours,
		Title:        def.Title,
		Notes:        def.Notes,
		Recurring:    def.Recurring,
		DefinitionID: def.ID,
	}
}
