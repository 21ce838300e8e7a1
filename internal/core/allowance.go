package core

import "github.com/shopspring/decimal"

const (
	BudgetUnset  BudgetState = "unset"
	BudgetActive BudgetState = "active"
)

// BudgetState tells the caller whether a usage percentage should be shown.
type BudgetState string

// Allowance combines the expense total with the effective budget.
type Allowance struct {
	State BudgetState `json:"state"`
	// IsSet mirrors the resolution: true for a resolved budget of 0 too.
	IsSet  bool            `json:"is_set"`
	Budget decimal.Decimal `json:"budget"`
	// Ratio is expense/budget clamped to [0,1]; 0 when State is unset.
	Ratio     float64         `json:"ratio"`
	Remaining decimal.Decimal `json:"remaining"`
	// Exhausted is set once Ratio reaches 1, OverBudget once Remaining is negative.
	Exhausted  bool `json:"exhausted"`
	OverBudget bool `json:"over_budget"`
}

// ComputeAllowance derives the usage ratio and remaining allowance.
func ComputeAllowance(expense decimal.Decimal, r Resolution) Allowance {
	a := Allowance{
		State:     BudgetUnset,
		IsSet:     r.IsSet,
		Budget:    r.Amount,
		Remaining: r.Amount.Sub(expense),
	}
	if !r.IsSet || !r.Amount.IsPositive() {
		return a
	}
	a.State = BudgetActive
	ratio := expense.Div(r.Amount)
	if ratio.GreaterThan(decimal.NewFromInt(1)) {
		ratio = decimal.NewFromInt(1)
	}
	if ratio.IsNegative() {
		ratio = decimal.Zero
	}
	a.Ratio = ratio.InexactFloat64()
	a.Exhausted = a.Ratio >= 1
	a.OverBudget = a.Remaining.IsNegative()
	return a
}

// Percent is the rounded usage percentage for display.
func (a Allowance) Percent() int {
	return int(decimal.NewFromFloat(a.Ratio * 100).Round(0).IntPart())
}
