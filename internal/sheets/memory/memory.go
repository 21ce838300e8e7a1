// Package memory is an in-process transaction mirror for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"budgetbook/internal/core"
	"budgetbook/internal/sheets"
)

var _ sheets.TransactionMirror = (*Mirror)(nil)

type Mirror struct {
	mu   sync.Mutex
	rows [][]string
}

func New() *Mirror {
	return &Mirror{}
}

// AppendTransaction stores the row and returns a synthetic reference.
func (m *Mirror) AppendTransaction(_ context.Context, tx core.Transaction) (string, error) {
	if tx.ID == "" {
		return "", fmt.Errorf("transaction has no id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexLocked(tx.ID); i >= 0 {
		return fmt.Sprintf("mem:%d", i+1), nil
	}
	m.rows = append(m.rows, sheets.Row(tx))
	return fmt.Sprintf("mem:%d", len(m.rows)), nil
}

func (m *Mirror) DeleteTransaction(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexLocked(id)
	if i < 0 {
		return false, nil
	}
	m.rows = append(m.rows[:i], m.rows[i+1:]...)
	return true, nil
}

func (m *Mirror) TransactionIDs(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.rows))
	for _, r := range m.rows {
		ids = append(ids, r[0])
	}
	return ids, nil
}

// Rows returns a copy of the mirrored rows in Header order.
func (m *Mirror) Rows() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, len(m.rows))
	for i, r := range m.rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

func (m *Mirror) indexLocked(id string) int {
	for i, r := range m.rows {
		if r[0] == id {
			return i
		}
	}
	return -1
}
