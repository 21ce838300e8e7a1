// Package store defines the per-owner persistence contract of the ledger.
//
// Every read and write is scoped to an owner id; implementations never
// return or touch rows belonging to another owner.
package store

import (
	"context"

	"budgetbook/internal/core"

	"github.com/shopspring/decimal"
)

// DefaultTransactionLimit bounds how many of the most recent transactions a
// reload fetches.
const DefaultTransactionLimit = 800

type (
	// NewTransaction is a validated transaction that has not been assigned an id yet.
	NewTransaction struct {
		Owner    string
		Date     core.Date
		Kind     core.Kind
		Category string
		Amount   decimal.Decimal
		Note     string
	}

	// Reader lists an owner's records.
	Reader interface {
		// ListCategories returns categories in creation order, oldest first.
		ListCategories(ctx context.Context, owner string) ([]core.Category, error)
		// ListTransactions returns at most limit transactions, newest date
		// first; ties are broken by creation, newest first.
		ListTransactions(ctx context.Context, owner string, limit int) ([]core.Transaction, error)
		ListBudgets(ctx context.Context, owner string) ([]core.Budget, error)
		GetTransaction(ctx context.Context, owner, id string) (core.Transaction, error)
		// FindBudget looks a budget up by exact null-aware scope equality.
		FindBudget(ctx context.Context, owner string, scope core.Scope) (core.Budget, bool, error)
	}

	// Writer mutates an owner's records. Unknown ids yield core.ErrNotFound,
	// a second budget for the same (owner, scope) yields core.ErrConflict.
	Writer interface {
		InsertTransaction(ctx context.Context, tx NewTransaction) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, owner, id string) error
		InsertCategory(ctx context.Context, owner, name string) (core.Category, error)
		InsertBudget(ctx context.Context, owner string, scope core.Scope, amount decimal.Decimal) (core.Budget, error)
		UpdateBudget(ctx context.Context, owner, id string, amount decimal.Decimal) (core.Budget, error)
	}

	// Ledger is the full store surface used by the service layer.
	Ledger interface {
		Reader
		Writer
		// Ping checks that the backing database is reachable.
		Ping(ctx context.Context) error
		Close() error
	}
)

// Transaction assigns id to the pending transaction.
func (n NewTransaction) Transaction(id string) core.Transaction {
	return core.Transaction{
		ID:       id,
		Owner:    n.Owner,
		Date:     n.Date,
		Kind:     n.Kind,
		Category: n.Category,
		Amount:   n.Amount,
		Note:     n.Note,
	}
}
