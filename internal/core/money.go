// Package core provides money parsing and handling utilities.
//
// This file contains the parser used for every amount a user types,
// transactions and budgets alike.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencyPlaces is the precision amounts are kept at.
const CurrencyPlaces = 2

// maxAmountText bounds both the input length and the decimal exponent, so
// exponent notation such as "1e9999999" is refused before any rescaling.
const maxAmountText = 32

// MaxAmount is the exclusive upper bound of an amount: twelve integer
// digits, the NUMERIC(14,2) columns of the postgres store.
var MaxAmount = decimal.New(1, 12)

// ParseAmount converts user input into a non-negative decimal amount.
//
// Thousands separators (",") and surrounding blanks are stripped before
// parsing; the value is rounded half-up to CurrencyPlaces. Empty input,
// non-numeric input, negative values and values of MaxAmount or more are
// rejected with ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("1,234.5") -> 1234.50, nil
//	ParseAmount("0")       -> 0, nil
//	ParseAmount("12.345")  -> 12.35, nil
//	ParseAmount("-1")      -> error
//	ParseAmount("1e13")    -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" || len(s) > maxAmountText {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if exp := d.Exponent(); exp > maxAmountText || exp < -maxAmountText {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(CurrencyPlaces)
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateAmount checks that d lies in [0, MaxAmount).
func ValidateAmount(d decimal.Decimal) error {
	if d.IsNegative() || d.GreaterThanOrEqual(MaxAmount) {
		return ErrInvalidAmount
	}
	return nil
}

// FormatAmount renders an amount with thousands separators, e.g. "-1,234.50".
func FormatAmount(d decimal.Decimal) string {
	s := d.StringFixed(CurrencyPlaces)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}
