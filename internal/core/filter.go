package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AllLabel is the textual form of an unrestricted selector.
const AllLabel = "all"

// Filter is the user's (year, month) view. A nil axis means "All".
type Filter struct {
	Year  *int `json:"year"`
	Month *int `json:"month"`
}

// Scope is the (year, month) specificity pair of a Budget. A nil axis is the
// null scope component; it only ever equals another nil, never a value.
type Scope struct {
	Year  *int `json:"year"`
	Month *int `json:"month"`
}

// Ptr returns a pointer to v, for building filters and scopes.
func Ptr(v int) *int {
	return &v
}

// NewFilter validates both axes. Pass nil for All.
func NewFilter(year, month *int) (Filter, error) {
	if year != nil && *year < 1 {
		return Filter{}, &ValidationError{Field: "year", Reason: "must be a positive year"}
	}
	if month != nil && (*month < 1 || *month > 12) {
		return Filter{}, &ValidationError{Field: "month", Reason: "must be between 1 and 12"}
	}
	return Filter{Year: copyInt(year), Month: copyInt(month)}, nil
}

// DefaultFilter selects the current year across all months.
func DefaultFilter(now time.Time) Filter {
	return Filter{Year: Ptr(now.Year())}
}

// ParseFilter reads the textual selectors; "" and "all" (any case) mean All.
func ParseFilter(year, month string) (Filter, error) {
	y, err := parseSelector("year", year)
	if err != nil {
		return Filter{}, err
	}
	m, err := parseSelector("month", month)
	if err != nil {
		return Filter{}, err
	}
	return NewFilter(y, m)
}

func parseSelector(field, s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, AllLabel) {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, &ValidationError{Field: field, Reason: fmt.Sprintf("%q is not a number", s)}
	}
	return &v, nil
}

// ScopeKey is the budget scope this filter resolves against.
func (f Filter) ScopeKey() Scope {
	return Scope{Year: copyInt(f.Year), Month: copyInt(f.Month)}
}

// Matches reports whether a transaction dated d falls inside the filter.
// A zero date never matches.
func (f Filter) Matches(d Date) bool {
	if d.IsZero() {
		return false
	}
	if f.Year != nil && d.Year() != *f.Year {
		return false
	}
	if f.Month != nil && d.Month() != *f.Month {
		return false
	}
	return true
}

// Label renders the filter for display, e.g. "2025 / March" or "All years / All months".
func (f Filter) Label() string {
	y := "All years"
	if f.Year != nil {
		y = strconv.Itoa(*f.Year)
	}
	m := "All months"
	if f.Month != nil {
		m = time.Month(*f.Month).String()
	}
	return y + " / " + m
}

// Equal compares two scopes with null-aware equality.
func (s Scope) Equal(o Scope) bool {
	return optEqual(s.Year, o.Year) && optEqual(s.Month, o.Month)
}

func (s Scope) String() string {
	return "(" + optString(s.Year) + ", " + optString(s.Month) + ")"
}

// YearOptions lists the selectable years: All, then now-5 through now+5.
func YearOptions(now time.Time) []string {
	out := []string{AllLabel}
	for y := now.Year() - 5; y <= now.Year()+5; y++ {
		out = append(out, strconv.Itoa(y))
	}
	return out
}

// MonthOptions lists the selectable months: All, then 1 through 12.
func MonthOptions() []string {
	out := []string{AllLabel}
	for m := 1; m <= 12; m++ {
		out = append(out, strconv.Itoa(m))
	}
	return out
}

func optEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func optString(v *int) string {
	if v == nil {
		return "null"
	}
	return strconv.Itoa(*v)
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
