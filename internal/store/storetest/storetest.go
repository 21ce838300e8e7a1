// Package storetest holds the behaviour every store.Ledger implementation
// must share. Backends call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"

	"budgetbook/internal/core"
	"budgetbook/internal/store"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"
)

// Factory returns a fresh, empty ledger for one subtest.
type Factory func(t *testing.T) store.Ledger

func Run(t *testing.T, newLedger Factory) {
	t.Helper()
	tests := []struct {
		name string
		fn   func(t *testing.T, l store.Ledger)
	}{
		{"TransactionsNewestFirst", testTransactionsNewestFirst},
		{"TransactionLimit", testTransactionLimit},
		{"DeleteTransaction", testDeleteTransaction},
		{"CategoriesInCreationOrder", testCategoriesInCreationOrder},
		{"BudgetScopes", testBudgetScopes},
		{"BudgetConflict", testBudgetConflict},
		{"UpdateBudget", testUpdateBudget},
		{"OwnerIsolation", testOwnerIsolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLedger(t)
			t.Cleanup(func() { _ = l.Close() })
			tt.fn(t, l)
		})
	}
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func insert(t *testing.T, l store.Ledger, owner string, d core.Date, kind core.Kind, amt string) core.Transaction {
	t.Helper()
	tx, err := l.InsertTransaction(context.Background(), store.NewTransaction{
		Owner: owner, Date: d, Kind: kind, Category: "Food", Amount: amount(amt), Note: "n",
	})
	assert.NoError(t, err)
	assert.NotEqual(t, "", tx.ID)
	return tx
}

func testTransactionsNewestFirst(t *testing.T, l store.Ledger) {
	ctx := context.Background()
	old := insert(t, l, "u1", core.NewDate(2025, 1, 10), core.Expense, "1")
	first := insert(t, l, "u1", core.NewDate(2025, 3, 1), core.Expense, "2")
	second := insert(t, l, "u1", core.NewDate(2025, 3, 1), core.Income, "3.50")

	got, err := l.ListTransactions(ctx, "u1", store.DefaultTransactionLimit)
	assert.NoError(t, err)
	assert.Equal(t, 3, len(got))
	assert.Equal(t, second.ID, got[0].ID)
	assert.Equal(t, first.ID, got[1].ID)
	assert.Equal(t, old.ID, got[2].ID)

	assert.True(t, got[0].Amount.Equal(amount("3.5")))
	assert.Equal(t, core.Income, got[0].Kind)
	assert.Equal(t, "2025-03-01", got[0].Date.String())
	assert.Equal(t, "Food", got[0].Category)
	assert.Equal(t, "n", got[0].Note)
}

func testTransactionLimit(t *testing.T, l store.Ledger) {
	for day := 1; day <= 5; day++ {
		insert(t, l, "u1", core.NewDate(2025, 2, day), core.Expense, "1")
	}
	got, err := l.ListTransactions(context.Background(), "u1", 2)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(got))
	assert.Equal(t, "2025-02-05", got[0].Date.String())
	assert.Equal(t, "2025-02-04", got[1].Date.String())
}

func testDeleteTransaction(t *testing.T, l store.Ledger) {
	ctx := context.Background()
	tx := insert(t, l, "u1", core.NewDate(2025, 2, 1), core.Expense, "9")

	fetched, err := l.GetTransaction(ctx, "u1", tx.ID)
	assert.NoError(t, err)
	assert.Equal(t, tx.ID, fetched.ID)

	assert.NoError(t, l.DeleteTransaction(ctx, "u1", tx.ID))
	err = l.DeleteTransaction(ctx, "u1", tx.ID)
	assert.True(t, errors.Is(err, core.ErrNotFound))
	_, err = l.GetTransaction(ctx, "u1", tx.ID)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func testCategoriesInCreationOrder(t *testing.T, l store.Ledger) {
	ctx := context.Background()
	for _, name := range []string{"Rent", "Food", "Rent"} {
		_, err := l.InsertCategory(ctx, "u1", name)
		assert.NoError(t, err)
	}
	got, err := l.ListCategories(ctx, "u1")
	assert.NoError(t, err)
	assert.Equal(t, []string{"Rent", "Food", "Rent"}, core.CategoryNames(got))
}

func testBudgetScopes(t *testing.T, l store.Ledger) {
	ctx := context.Background()
	scopes := []core.Scope{
		{},
		{Year: core.Ptr(2025)},
		{Month: core.Ptr(3)},
		{Year: core.Ptr(2025), Month: core.Ptr(3)},
	}
	for i, s := range scopes {
		_, err := l.InsertBudget(ctx, "u1", s, decimal.NewFromInt(int64(i+1)*100))
		assert.NoError(t, err)
	}
	all, err := l.ListBudgets(ctx, "u1")
	assert.NoError(t, err)
	assert.Equal(t, 4, len(all))

	for i, s := range scopes {
		b, ok, err := l.FindBudget(ctx, "u1", s)
		assert.NoError(t, err)
		assert.True(t, ok, "scope %s", s)
		assert.True(t, b.Scope.Equal(s), "scope %s got %s", s, b.Scope)
		assert.True(t, b.Amount.Equal(decimal.NewFromInt(int64(i+1)*100)))
	}

	_, ok, err := l.FindBudget(ctx, "u1", core.Scope{Year: core.Ptr(2024)})
	assert.NoError(t, err)
	assert.False(t, ok)
}

func testBudgetConflict(t *testing.T, l store.Ledger) {
	ctx := context.Background()
	for _, s := range []core.Scope{{}, {Month: core.Ptr(7)}} {
		_, err := l.InsertBudget(ctx, "u1", s, amount("10"))
		assert.NoError(t, err)
		_, err = l.InsertBudget(ctx, "u1", s, amount("20"))
		assert.True(t, errors.Is(err, core.ErrConflict), "scope %s: %v", s, err)
	}
	// Another owner may hold the same scope.
	_, err := l.InsertBudget(ctx, "u2", core.Scope{}, amount("30"))
	assert.NoError(t, err)
}

func testUpdateBudget(t *testing.T, l store.Ledger) {
	ctx := context.Background()
	b, err := l.InsertBudget(ctx, "u1", core.Scope{Year: core.Ptr(2025)}, amount("10"))
	assert.NoError(t, err)

	updated, err := l.UpdateBudget(ctx, "u1", b.ID, amount("12.34"))
	assert.NoError(t, err)
	assert.Equal(t, b.ID, updated.ID)
	assert.True(t, updated.Amount.Equal(amount("12.34")))

	found, ok, err := l.FindBudget(ctx, "u1", core.Scope{Year: core.Ptr(2025)})
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, found.Amount.Equal(amount("12.34")))

	_, err = l.UpdateBudget(ctx, "u2", b.ID, amount("1"))
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func testOwnerIsolation(t *testing.T, l store.Ledger) {
	ctx := context.Background()
	tx := insert(t, l, "u1", core.NewDate(2025, 2, 1), core.Expense, "9")
	_, err := l.InsertCategory(ctx, "u1", "Food")
	assert.NoError(t, err)

	txs, err := l.ListTransactions(ctx, "u2", 10)
	assert.NoError(t, err)
	assert.Equal(t, 0, len(txs))
	cats, err := l.ListCategories(ctx, "u2")
	assert.NoError(t, err)
	assert.Equal(t, 0, len(cats))

	err = l.DeleteTransaction(ctx, "u2", tx.ID)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}
