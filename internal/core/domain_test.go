package core

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(dec(want)), "want %s, got %s", want, got)
}

func TestDateValidate(t *testing.T) {
	assert.NoError(t, NewDate(2025, 1, 1).Validate())
	assert.NoError(t, NewDate(2025, 12, 31).Validate())

	err := Date{}.Validate()
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2025-03-05 ")
	assert.NoError(t, err)
	assert.Equal(t, 2025, d.Year())
	assert.Equal(t, 3, d.Month())
	assert.Equal(t, 5, d.Day())
	assert.Equal(t, "2025-03-05", d.String())

	_, err = ParseDate("05/03/2025")
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Date Date `json:"date"`
	}{NewDate(2025, 4, 1)})
	assert.NoError(t, err)
	assert.Equal(t, `{"date":"2025-04-01"}`, string(b))

	var in struct {
		Date Date `json:"date"`
	}
	assert.NoError(t, json.Unmarshal([]byte(`{"date":"2024-02-29"}`), &in))
	assert.Equal(t, NewDate(2024, 2, 29), in.Date)

	err = json.Unmarshal([]byte(`{"date":"2024-13-01"}`), &in)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Income ")
	assert.NoError(t, err)
	assert.Equal(t, Income, k)

	k, err = ParseKind("expense")
	assert.NoError(t, err)
	assert.Equal(t, Expense, k)

	_, err = ParseKind("transfer")
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestContainsCategoryToleratesDuplicates(t *testing.T) {
	names := CategoryNames([]Category{{Name: "Food"}, {Name: "Food"}, {Name: "Rent"}})
	assert.Equal(t, []string{"Food", "Food", "Rent"}, names)
	assert.True(t, ContainsCategory(names, "Food"))
	assert.False(t, ContainsCategory(names, "food"))
}

func TestSelectableCategories(t *testing.T) {
	names, defaults := SelectableCategories(nil)
	assert.True(t, defaults)
	assert.Equal(t, DefaultCategories, names)
	names[0] = "changed"
	assert.Equal(t, "Food", DefaultCategories[0])

	names, defaults = SelectableCategories([]Category{{Name: "Books"}})
	assert.False(t, defaults)
	assert.Equal(t, []string{"Books"}, names)
}

func TestErrorTaxonomy(t *testing.T) {
	err := WrapStore("delete transaction", ErrNotFound)
	assert.True(t, errors.Is(err, ErrStore))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))

	var se *StoreError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, "delete transaction", se.Op)

	// Wrapping twice keeps the original operation.
	assert.Equal(t, err, WrapStore("other", err))
	assert.NoError(t, WrapStore("noop", nil))

	assert.True(t, errors.Is(ErrInvalidAmount, ErrValidation))
	assert.True(t, errors.Is(&ValidationError{Field: "amount", Reason: "must be a number from 0 up to 999,999,999,999.99"}, ErrInvalidAmount))
}
