package core

import "errors"

// Error kinds surfaced by the ledger. Callers match them with errors.Is;
// every returned error wraps exactly one of these.
var (
	ErrNotFound             = errors.New("not found")
	ErrValidation           = errors.New("validation failed")
	ErrConfiguration        = errors.New("configuration error")
	ErrIOFailure            = errors.New("io failure")
	ErrConsistencyViolation = errors.New("consistency violation")
)
