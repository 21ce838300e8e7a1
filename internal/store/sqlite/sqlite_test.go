package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"budgetbook/internal/core"
	"budgetbook/internal/store"
	"budgetbook/internal/store/storetest"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"
)

func openTemp(t *testing.T) *Repository {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	assert.NoError(t, err)
	return r
}

func TestLedgerContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Ledger { return openTemp(t) })
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	ctx := context.Background()

	r, err := Open(path)
	assert.NoError(t, err)
	_, err = r.InsertCategory(ctx, "u1", "Food")
	assert.NoError(t, err)
	assert.NoError(t, r.Close())

	r, err = Open(path)
	assert.NoError(t, err)
	defer r.Close()
	cats, err := r.ListCategories(ctx, "u1")
	assert.NoError(t, err)
	assert.Equal(t, []string{"Food"}, core.CategoryNames(cats))
}

func TestCorruptDateNeverMatches(t *testing.T) {
	r := openTemp(t)
	defer r.Close()
	ctx := context.Background()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, owner_id, date, kind, category, amount, note, created_at)
		 VALUES ('x', 'u1', 'not-a-date', 'expense', 'Food', '5', '', '')`)
	assert.NoError(t, err)

	txs, err := r.ListTransactions(ctx, "u1", 10)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(txs))
	assert.True(t, txs[0].Date.IsZero())
	assert.False(t, core.Filter{}.Matches(txs[0].Date))
}

func TestBudgetYearZeroIsRejected(t *testing.T) {
	r := openTemp(t)
	defer r.Close()
	ctx := context.Background()

	_, err := r.InsertBudget(ctx, "u1", core.Scope{Year: core.Ptr(0)}, decimal.NewFromInt(10))
	assert.Error(t, err)
	assert.False(t, errors.Is(err, core.ErrConflict))

	// The null year is still free.
	_, err = r.InsertBudget(ctx, "u1", core.Scope{}, decimal.NewFromInt(20))
	assert.NoError(t, err)
	_, err = r.InsertBudget(ctx, "u1", core.Scope{Year: core.Ptr(-1)}, decimal.NewFromInt(30))
	assert.Error(t, err)

	budgets, err := r.ListBudgets(ctx, "u1")
	assert.NoError(t, err)
	assert.Equal(t, 1, len(budgets))
	assert.True(t, budgets[0].Scope.Year == nil)
}
