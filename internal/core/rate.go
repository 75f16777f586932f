package core

import (
	"fmt"
	"slices"
)

// ResolveRate returns the hourly rate effective on the given day from an
// unordered rate history.
//
// Changes are sorted ascending by effective date with the baseline (nil
// date) first; the walk keeps the last rate whose date is nil or not after
// on and stops at the first later one. Without a baseline the result is
// undefined and ErrConfiguration is returned. The input is not reordered.
func ResolveRate(changes []RateChange, on Date) (float64, error) {
	if !slices.ContainsFunc(changes, func(rc RateChange) bool { return rc.EffectiveDate == nil }) {
		return 0, fmt.Errorf("%w: no baseline rate", ErrConfiguration)
	}

	sorted := slices.Clone(changes)
	slices.SortStableFunc(sorted, compareRateChanges)

	var rate float64
	for _, rc := range sorted {
		if rc.EffectiveDate != nil && rc.EffectiveDate.Compare(on) > 0 {
			break
		}
		rate = rc.HourlyRate
	}
	return rate, nil
}

func compareRateChanges(a, b RateChange) int {
	switch {
	case a.EffectiveDate == nil && b.EffectiveDate == nil:
		return 0
	case a.EffectiveDate == nil:
		return -1
	case b.EffectiveDate == nil:
		return 1
	}
	return a.EffectiveDate.Compare(*b.EffectiveDate)
}
