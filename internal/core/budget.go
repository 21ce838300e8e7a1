package core

import "github.com/shopspring/decimal"

// Resolution is the effective budget for a filter.
type Resolution struct {
	Amount decimal.Decimal `json:"amount"`
	IsSet  bool            `json:"is_set"`
	// Scope of the matched record; zero when IsSet is false.
	Scope Scope `json:"scope"`
	// Tier is 1 (year+month) through 4 (global); 0 when nothing matched.
	Tier int `json:"tier"`
}

// ResolutionTiers lists the lookup keys tried for a filter, most specific first.
// Under an All axis the tiers that would need a value on that axis collapse
// onto null, so the same key may repeat; the first hit still wins.
func ResolutionTiers(f Filter) []Scope {
	k := f.ScopeKey()
	return []Scope{
		{Year: k.Year, Month: k.Month},
		{Year: k.Year},
		{Month: k.Month},
		{},
	}
}

// ResolveBudget picks the single applicable budget for f from budgets using
// exact null-aware scope equality at each tier. When nothing matches the
// result is unset with a zero amount.
func ResolveBudget(budgets []Budget, f Filter) Resolution {
	for i, scope := range ResolutionTiers(f) {
		if b, ok := findBudget(budgets, scope); ok {
			return Resolution{Amount: b.Amount, IsSet: true, Scope: b.Scope, Tier: i + 1}
		}
	}
	return Resolution{Amount: decimal.Zero}
}

// findBudget returns the record whose scope equals scope exactly.
func findBudget(budgets []Budget, scope Scope) (Budget, bool) {
	for _, b := range budgets {
		if b.Scope.Equal(scope) {
			return b, true
		}
	}
	return Budget{}, false
}
