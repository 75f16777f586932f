package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type (
	// RateChange sets the hourly rate from EffectiveDate onwards. A nil
	// EffectiveDate is the baseline rate, in force since the beginning of time.
	RateChange struct {
		HourlyRate    float64 `json:"hourly_rate"`
		EffectiveDate *Date   `json:"effective_date"`
	}

	Project struct {
		ID          string       `json:"id"`
		Name        string       `json:"name"`
		ClientID    string       `json:"client_id"`
		Color       string       `json:"color"`
		RateChanges []RateChange `json:"rate_changes"`
		Hidden      bool         `json:"hidden"`
	}

	// ProjectLookup resolves a project by id.
	ProjectLookup func(id string) (Project, bool)
)

// UnmarshalJSON upgrades the superseded flat hourly_rate model into a
// baseline rate change when no rate history is present.
func (p *Project) UnmarshalJSON(b []byte) error {
	type plain Project
	var raw struct {
		plain
		HourlyRate *float64 `json:"hourly_rate"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*p = Project(raw.plain)
	if len(p.RateChanges) == 0 && raw.HourlyRate != nil {
		p.RateChanges = []RateChange{{HourlyRate: *raw.HourlyRate}}
	}
	return nil
}

func (p Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(p.ClientID) == "" {
		return ErrEmptyClient
	}
	baseline := false
	for _, rc := range p.RateChanges {
		if rc.HourlyRate < 0 {
			return fmt.Errorf("%w: hourly rate must be zero or more", ErrValidation)
		}
		if rc.EffectiveDate == nil {
			baseline = true
		} else if rc.EffectiveDate.IsZero() {
			return fmt.Errorf("%w: rate change without effective date", ErrValidation)
		}
	}
	if !baseline {
		return fmt.Errorf("%w: project %q has no baseline rate", ErrConfiguration, p.Name)
	}
	return nil
}

// RateOn returns the hourly rate in force on the given day.
func (p Project) RateOn(d Date) (float64, error) {
	rate, err := ResolveRate(p.RateChanges, d)
	if err != nil {
		return 0, fmt.Errorf("project %s: %w", p.ID, err)
	}
	return rate, nil
}

// CurrentRate is RateOn evaluated at now.
func (p Project) CurrentRate(now time.Time) (float64, error) {
	return p.RateOn(DateOf(now))
}

// ProjectIndex builds a lookup over a project list.
func ProjectIndex(projects []Project) ProjectLookup {
	byID := make(map[string]Project, len(projects))
	for _, p := range projects {
		byID[p.ID] = p
	}
	return func(id string) (Project, bool) {
		p, ok := byID[id]
		return p, ok
	}
}
