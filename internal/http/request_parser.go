package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"budgetbook/internal/core"
	"budgetbook/internal/services"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

// requestError is a malformed request, reported before the service is called.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

type (
	transactionRequest struct {
		Date     string     `json:"date"`
		Kind     string     `json:"kind"`
		Category string     `json:"category"`
		Amount   amountText `json:"amount"`
		Note     string     `json:"note"`
	}

	categoryRequest struct {
		Name string `json:"name"`
	}

	// budgetRequest uses null for an "All" component.
	budgetRequest struct {
		Year   *int       `json:"year"`
		Month  *int       `json:"month"`
		Amount amountText `json:"amount"`
	}
)

func (t transactionRequest) input() services.TransactionInput {
	return services.TransactionInput{
		Date:     t.Date,
		Kind:     t.Kind,
		Category: sanitizeInput(t.Category),
		Amount:   string(t.Amount),
		Note:     sanitizeInput(t.Note),
	}
}

func (b budgetRequest) input() services.BudgetInput {
	return services.BudgetInput{Year: b.Year, Month: b.Month, Amount: string(b.Amount)}
}

// amountText accepts an amount as a JSON string ("1,234.50") or number (1234.5).
// The service parses the text so both forms share one validation path.
type amountText string

func (a *amountText) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*a = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amountText(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("amount must be a string or a number")
	}
	*a = amountText(n.String())
	return nil
}

// parseFilter reads ?year=&month=; a missing, empty or "all" selector means All.
func parseFilter(r *http.Request) (core.Filter, error) {
	q := r.URL.Query()
	return core.ParseFilter(q.Get("year"), q.Get("month"))
}

// decodeJSON reads exactly one JSON object from the body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return &requestError{status: http.StatusRequestEntityTooLarge, msg: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)}
		case errors.Is(err, io.EOF):
			return &requestError{status: http.StatusBadRequest, msg: "request body is empty"}
		default:
			return &requestError{status: http.StatusBadRequest, msg: "malformed JSON: " + err.Error()}
		}
	}
	if dec.More() {
		return &requestError{status: http.StatusBadRequest, msg: "request body must hold a single JSON object"}
	}
	return nil
}

// sanitizeInput drops control characters other than tab and newlines and trims blanks.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}
