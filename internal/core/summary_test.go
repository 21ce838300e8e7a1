package core

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

func sampleTransactions() []Transaction {
	return []Transaction{
		{ID: "1", Date: NewDate(2025, 3, 5), Kind: Expense, Category: "Food", Amount: dec("200")},
		{ID: "2", Date: NewDate(2025, 4, 1), Kind: Income, Category: "Salary", Amount: dec("5000")},
	}
}

func TestSummarizeEndToEnd(t *testing.T) {
	txs := sampleTransactions()

	s := Summarize(txs, Filter{Year: Ptr(2025), Month: Ptr(3)})
	assertDec(t, "0", s.Income)
	assertDec(t, "200", s.Expense)
	assertDec(t, "-200", s.Balance)
	assert.Equal(t, 1, s.Count)

	s = Summarize(txs, Filter{Year: Ptr(2025)})
	assertDec(t, "5000", s.Income)
	assertDec(t, "200", s.Expense)
	assertDec(t, "4800", s.Balance)
	assert.Equal(t, 2, s.Count)
}

func TestSummarizeEmpty(t *testing.T) {
	filters := []Filter{{}, {Year: Ptr(2025)}, {Month: Ptr(1)}, {Year: Ptr(2025), Month: Ptr(1)}}
	for _, f := range filters {
		s := Summarize(nil, f)
		assertDec(t, "0", s.Income)
		assertDec(t, "0", s.Expense)
		assertDec(t, "0", s.Balance)
		assert.Equal(t, 0, s.Count)
	}
}

func TestSummarizeOrderIndependentAndExact(t *testing.T) {
	txs := []Transaction{
		{Date: NewDate(2025, 1, 1), Kind: Expense, Amount: dec("0.10")},
		{Date: NewDate(2025, 1, 2), Kind: Expense, Amount: dec("0.20")},
		{Date: NewDate(2025, 1, 3), Kind: Income, Amount: dec("0.30")},
		{Date: NewDate(2025, 2, 1), Kind: Expense, Amount: dec("99.99")},
	}
	reversed := make([]Transaction, len(txs))
	for i := range txs {
		reversed[len(txs)-1-i] = txs[i]
	}

	f := Filter{Month: Ptr(1)}
	a := Summarize(txs, f)
	b := Summarize(reversed, f)
	assertDec(t, "0.30", a.Expense)
	assertDec(t, "0", a.Balance)
	assert.True(t, a.Expense.Equal(b.Expense))
	assert.True(t, a.Income.Equal(b.Income))
	assert.True(t, a.Balance.Equal(a.Income.Sub(a.Expense)))
}

func TestFilterTransactionsIsSubset(t *testing.T) {
	txs := sampleTransactions()
	got := FilterTransactions(txs, Filter{Month: Ptr(4)})
	assert.Equal(t, 1, len(got))
	assert.Equal(t, "2", got[0].ID)

	assert.Equal(t, 0, len(FilterTransactions(txs, Filter{Year: Ptr(1999)})))
}

func TestExpenseByCategory(t *testing.T) {
	txs := append(sampleTransactions(),
		Transaction{Date: NewDate(2025, 3, 9), Kind: Expense, Category: "Rent", Amount: dec("800")},
		Transaction{Date: NewDate(2025, 3, 10), Kind: Expense, Category: "Food", Amount: dec("12.5")},
	)
	got := ExpenseByCategory(txs)
	assert.Equal(t, 2, len(got))
	assert.Equal(t, "Food", got[0].Name)
	assertDec(t, "212.5", got[0].Amount)
	assert.Equal(t, "Rent", got[1].Name)
}
