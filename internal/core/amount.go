// Package core provides the ledger domain: tasks, recurring definitions,
// rate histories and month summaries.
//
// This file contains helpers for parsing hours and rates typed by people,
// who write both 7.5 and 7,5.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDecimal converts a non-negative decimal string to a float64.
//
// It accepts both dot (7.5) and comma (7,5) decimal separators, surrounding
// whitespace and an optional leading plus sign. Negative values, thousands
// separators and anything that is not a plain decimal are rejected.
//
// Examples:
//
//	ParseDecimal("7.5")  -> 7.5, nil
//	ParseDecimal("7,25") -> 7.25, nil
//	ParseDecimal("-1")   -> 0, ErrValidation
func ParseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty number", ErrValidation)
	}
	if strings.Count(s, ",") > 1 || (strings.Contains(s, ",") && strings.Contains(s, ".")) {
		return 0, fmt.Errorf("%w: invalid number %q", ErrValidation, s)
	}
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.TrimPrefix(s, "+")
	if strings.ContainsAny(s, "eE") {
		return 0, fmt.Errorf("%w: invalid number %q", ErrValidation, s)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid number %q", ErrValidation, s)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: negative number %q", ErrValidation, s)
	}
	return d.InexactFloat64(), nil
}
