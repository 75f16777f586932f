package sheets

import (
	"context"
)

// Ports for outbound adapters.
type (
	// BillingSheet is a rendered tab: a title and its rows, header first.
	BillingSheet struct {
		Title string
		Rows  [][]any
	}

	// BillingWriter replaces the content of a billing tab, creating it when missing.
	BillingWriter interface {
		WriteBilling(ctx context.Context, sheet BillingSheet) error
	}
)
