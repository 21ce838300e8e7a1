package google

import (
	"fmt"
	"strings"

	"budgetbook/internal/core"
	"budgetbook/internal/sheets"
)

// formulaPrefixes start a formula when a cell is entered as USER_ENTERED.
const formulaPrefixes = "=+-@"

// transactionRow converts tx into sheet cells. Free text that could be read
// as a formula is quoted; the amount stays numeric.
func transactionRow(tx core.Transaction) []any {
	cells := sheets.Row(tx)
	out := make([]any, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	out[3] = escapeCell(tx.Category)
	out[5] = escapeCell(tx.Note)
	return out
}

func escapeCell(s string) string {
	if s != "" && strings.ContainsRune(formulaPrefixes, rune(s[0])) {
		return "'" + s
	}
	return s
}

// rowIndexOf returns the zero-based row holding id in its first column, or -1.
func rowIndexOf(values [][]any, id string) int {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if cellString(row[0]) == id {
			return i
		}
	}
	return -1
}

// idsFrom lists the first-column values below the header row.
func idsFrom(values [][]any) []string {
	var ids []string
	for i, row := range values {
		if i == 0 || len(row) == 0 {
			continue
		}
		if id := cellString(row[0]); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func cellString(v any) string {
	return strings.TrimSpace(fmt.Sprint(v))
}
