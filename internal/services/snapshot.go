package services

import (
	"time"

	"budgetbook/internal/core"
)

// Snapshot is one full reload of an owner's ledger. It is never mutated
// after construction; every view is derived from it on demand.
type Snapshot struct {
	Owner   string
	Version uint64

	Categories []core.Category
	// CategoryNames are the selectable labels: stored categories in creation
	// order, or the default set when the owner has none yet.
	CategoryNames          []string
	UsingDefaultCategories bool

	// Transactions holds at most the reload limit, newest first.
	Transactions []core.Transaction
	Truncated    bool
	Budgets      []core.Budget
	LoadedAt     time.Time
}

// LedgerView is what a client renders for one filter.
type LedgerView struct {
	Filter       core.Filter           `json:"filter"`
	Label        string                `json:"label"`
	Version      uint64                `json:"version"`
	Categories   []string              `json:"categories"`
	Transactions []core.Transaction    `json:"transactions"`
	Truncated    bool                  `json:"truncated"`
	Summary      core.Summary          `json:"summary"`
	Budget       core.Resolution       `json:"budget"`
	Allowance    core.Allowance        `json:"allowance"`
	ByCategory   []core.CategoryAmount `json:"by_category"`
}

func newSnapshot(owner string, version uint64, cats []core.Category, txs []core.Transaction, budgets []core.Budget, limit int, now time.Time) *Snapshot {
	names, defaults := core.SelectableCategories(cats)
	return &Snapshot{
		Owner:                  owner,
		Version:                version,
		Categories:             cats,
		CategoryNames:          names,
		UsingDefaultCategories: defaults,
		Transactions:           txs,
		Truncated:              limit > 0 && len(txs) >= limit,
		Budgets:                budgets,
		LoadedAt:               now,
	}
}

// View filters, totals and resolves the budget for f. It has no side effects.
func (s *Snapshot) View(f core.Filter) LedgerView {
	filtered := core.FilterTransactions(s.Transactions, f)
	summary := core.Totals(filtered)
	resolution := core.ResolveBudget(s.Budgets, f)
	return LedgerView{
		Filter:       f,
		Label:        f.Label(),
		Version:      s.Version,
		Categories:   s.CategoryNames,
		Transactions: filtered,
		Truncated:    s.Truncated,
		Summary:      summary,
		Budget:       resolution,
		Allowance:    core.ComputeAllowance(summary.Expense, resolution),
		ByCategory:   core.ExpenseByCategory(filtered),
	}
}
