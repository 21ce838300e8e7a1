package core

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

// DefaultCategories is presented to owners who have not created any category yet.
var DefaultCategories = []string{"Food", "Transport", "Daily Goods", "Entertainment", "Rent", "Salary", "Other"}

type (
	Kind string

	// Date is a calendar date without time of day, always normalized to UTC midnight.
	Date struct {
		time.Time
	}

	Transaction struct {
		ID       string          `json:"id"`
		Owner    string          `json:"owner"`
		Date     Date            `json:"date"`
		Kind     Kind            `json:"kind"`
		Category string          `json:"category"` // stored by name, never rewritten when categories change
		Amount   decimal.Decimal `json:"amount"`
		Note     string          `json:"note"`
	}

	Category struct {
		ID        string    `json:"id"`
		Owner     string    `json:"owner"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"created_at"`
	}

	Budget struct {
		ID     string          `json:"id"`
		Owner  string          `json:"owner"`
		Scope  Scope           `json:"scope"`
		Amount decimal.Decimal `json:"amount"`
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO calendar date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, &ValidationError{Field: "date", Reason: "expected YYYY-MM-DD"}
	}
	return Date{Time: t}, nil
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return &ValidationError{Field: "date", Reason: "expected a string"}
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return &ValidationError{Field: "date", Reason: "cannot be zero"}
	}
	return nil
}

func (k Kind) Validate() error {
	switch k {
	case Income, Expense:
		return nil
	default:
		return &ValidationError{Field: "kind", Reason: "must be income or expense"}
	}
}

// ParseKind accepts the canonical names case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if err := k.Validate(); err != nil {
		return "", err
	}
	return k, nil
}

// CategoryNames returns the display labels in their stored order.
func CategoryNames(cats []Category) []string {
	out := make([]string, 0, len(cats))
	for _, c := range cats {
		out = append(out, c.Name)
	}
	return out
}

// SelectableCategories returns the labels a new transaction may use: the
// stored categories in order, or DefaultCategories when there are none.
func SelectableCategories(cats []Category) (names []string, defaults bool) {
	if len(cats) == 0 {
		return append([]string(nil), DefaultCategories...), true
	}
	return CategoryNames(cats), false
}

// ContainsCategory reports whether name is one of the labels. Duplicates are tolerated.
func ContainsCategory(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
