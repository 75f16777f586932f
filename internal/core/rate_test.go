package core

import (
	"errors"
	"testing"
	"time"
)

func dateptr(y, m, d int) *Date {
	v := NewDate(y, m, d)
	return &v
}

func TestResolveRate(t *testing.T) {
	// Stored out of order on purpose.
	changes := []RateChange{
		{HourlyRate: 70, EffectiveDate: dateptr(2024, 6, 1)},
		{HourlyRate: 50, EffectiveDate: nil},
		{HourlyRate: 60, EffectiveDate: dateptr(2024, 3, 1)},
	}

	tests := []struct {
		name string
		on   Date
		want float64
	}{
		{"before any change uses baseline", NewDate(2024, 2, 28), 50},
		{"on the effective date", NewDate(2024, 3, 1), 60},
		{"between changes", NewDate(2024, 5, 31), 60},
		{"after latest change", NewDate(2025, 1, 1), 70},
		{"far past", NewDate(1990, 1, 1), 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveRate(changes, tt.on)
			if err != nil {
				t.Fatalf("ResolveRate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveRate() = %v, want %v", got, tt.want)
			}
		})
	}

	if changes[0].HourlyRate != 70 {
		t.Fatalf("input slice was reordered")
	}
}

func TestResolveRateWithoutBaseline(t *testing.T) {
	_, err := ResolveRate([]RateChange{{HourlyRate: 60, EffectiveDate: dateptr(2024, 3, 1)}}, NewDate(2024, 4, 1))
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if _, err := ResolveRate(nil, NewDate(2024, 4, 1)); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for empty history, got %v", err)
	}
}

func TestCurrentRate(t *testing.T) {
	p := Project{ID: "p", RateChanges: []RateChange{
		{HourlyRate: 50},
		{HourlyRate: 60, EffectiveDate: dateptr(2024, 3, 1)},
	}}
	now := time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC)
	got, err := p.CurrentRate(now)
	if err != nil || got != 60 {
		t.Fatalf("CurrentRate() = %v, %v", got, err)
	}
}
