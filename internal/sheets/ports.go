// Package sheets defines the spreadsheet mirror of the ledger's transactions.
package sheets

import (
	"context"

	"budgetbook/internal/core"
)

// Header is the first row of a mirror sheet; every following row holds one
// transaction in this column order.
var Header = []string{"ID", "Date", "Kind", "Category", "Amount", "Note"}

// TransactionMirror keeps one row per transaction, keyed by the id in column A.
type TransactionMirror interface {
	// AppendTransaction adds a row for tx unless one with its id exists,
	// returning a reference to the row.
	AppendTransaction(ctx context.Context, tx core.Transaction) (rowRef string, err error)
	// DeleteTransaction removes the row for id; found is false when no row matched.
	DeleteTransaction(ctx context.Context, id string) (found bool, err error)
	// TransactionIDs lists the ids currently mirrored, in row order.
	TransactionIDs(ctx context.Context) ([]string, error)
}

// Row renders tx in Header order.
func Row(tx core.Transaction) []string {
	return []string{
		tx.ID,
		tx.Date.String(),
		string(tx.Kind),
		tx.Category,
		tx.Amount.StringFixed(core.CurrencyPlaces),
		tx.Note,
	}
}
