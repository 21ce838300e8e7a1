// Package memory is an in-process ledger store, used for local runs and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"budgetbook/internal/core"
	"budgetbook/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SeedFile is looked up inside the directory given to NewFromDir.
const SeedFile = "seed_ledger.json"

type txRow struct {
	tx  core.Transaction
	seq int64
}

type Store struct {
	mu      sync.Mutex
	seq     int64
	now     func() time.Time
	cats    []core.Category
	txs     []txRow
	budgets []core.Budget
}

var _ store.Ledger = (*Store)(nil)

func New() *Store {
	return &Store{now: time.Now}
}

// Seed is the on-disk fixture format accepted by NewFromDir.
type Seed struct {
	Categories []struct {
		Owner string `json:"owner"`
		Name  string `json:"name"`
	} `json:"categories"`
	Transactions []struct {
		Owner    string    `json:"owner"`
		Date     core.Date `json:"date"`
		Kind     string    `json:"kind"`
		Category string    `json:"category"`
		Amount   string    `json:"amount"`
		Note     string    `json:"note"`
	} `json:"transactions"`
	Budgets []struct {
		Owner  string `json:"owner"`
		Year   *int   `json:"year"`
		Month  *int   `json:"month"`
		Amount string `json:"amount"`
	} `json:"budgets"`
}

// NewFromDir returns a store preloaded from base/seed_ledger.json.
// A missing file yields an empty store.
func NewFromDir(base string) (*Store, error) {
	s := New()
	b, err := os.ReadFile(filepath.Join(base, SeedFile))
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(b, &seed); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	if err := s.Load(context.Background(), seed); err != nil {
		return nil, err
	}
	return s, nil
}

// Load inserts every seed record, validating amounts and kinds the same way
// user input is validated.
func (s *Store) Load(ctx context.Context, seed Seed) error {
	for _, c := range seed.Categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		if _, err := s.InsertCategory(ctx, c.Owner, name); err != nil {
			return err
		}
	}
	for i, t := range seed.Transactions {
		kind, err := core.ParseKind(t.Kind)
		if err != nil {
			return fmt.Errorf("seed transaction %d: %w", i, err)
		}
		amount, err := core.ParseAmount(t.Amount)
		if err != nil {
			return fmt.Errorf("seed transaction %d: %w", i, err)
		}
		_, err = s.InsertTransaction(ctx, store.NewTransaction{
			Owner: t.Owner, Date: t.Date, Kind: kind,
			Category: t.Category, Amount: amount, Note: t.Note,
		})
		if err != nil {
			return err
		}
	}
	for i, b := range seed.Budgets {
		amount, err := core.ParseAmount(b.Amount)
		if err != nil {
			return fmt.Errorf("seed budget %d: %w", i, err)
		}
		if _, err := s.InsertBudget(ctx, b.Owner, core.Scope{Year: b.Year, Month: b.Month}, amount); err != nil {
			return fmt.Errorf("seed budget %d: %w", i, err)
		}
	}
	return nil
}

func (s *Store) ListCategories(_ context.Context, owner string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Category
	for _, c := range s.cats {
		if c.Owner == owner {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) ListTransactions(_ context.Context, owner string, limit int) ([]core.Transaction, error) {
	s.mu.Lock()
	rows := make([]txRow, 0, len(s.txs))
	for _, r := range s.txs {
		if r.tx.Owner == owner {
			rows = append(rows, r)
		}
	}
	s.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].tx.Date.Equal(rows[j].tx.Date.Time) {
			return rows[i].tx.Date.After(rows[j].tx.Date.Time)
		}
		return rows[i].seq > rows[j].seq
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]core.Transaction, len(rows))
	for i, r := range rows {
		out[i] = r.tx
	}
	return out, nil
}

func (s *Store) ListBudgets(_ context.Context, owner string) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Budget
	for _, b := range s.budgets {
		if b.Owner == owner {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, owner, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.txs {
		if r.tx.Owner == owner && r.tx.ID == id {
			return r.tx, nil
		}
	}
	return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
}

func (s *Store) FindBudget(_ context.Context, owner string, scope core.Scope) (core.Budget, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.findBudgetLocked(owner, scope)
	return b, ok, nil
}

func (s *Store) findBudgetLocked(owner string, scope core.Scope) (core.Budget, bool) {
	for _, b := range s.budgets {
		if b.Owner == owner && b.Scope.Equal(scope) {
			return b, true
		}
	}
	return core.Budget{}, false
}

func (s *Store) InsertTransaction(_ context.Context, n store.NewTransaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	tx := n.Transaction(uuid.NewString())
	s.txs = append(s.txs, txRow{tx: tx, seq: s.seq})
	return tx, nil
}

func (s *Store) DeleteTransaction(_ context.Context, owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.txs {
		if r.tx.Owner == owner && r.tx.ID == id {
			s.txs = append(s.txs[:i], s.txs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
}

func (s *Store) InsertCategory(_ context.Context, owner, name string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := core.Category{ID: uuid.NewString(), Owner: owner, Name: name, CreatedAt: s.now().UTC()}
	s.cats = append(s.cats, c)
	return c, nil
}

func (s *Store) InsertBudget(_ context.Context, owner string, scope core.Scope, amount decimal.Decimal) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.findBudgetLocked(owner, scope); ok {
		return core.Budget{}, fmt.Errorf("budget %s: %w", scope, core.ErrConflict)
	}
	b := core.Budget{
		ID:     uuid.NewString(),
		Owner:  owner,
		Scope:  core.Scope{Year: clone(scope.Year), Month: clone(scope.Month)},
		Amount: amount,
	}
	s.budgets = append(s.budgets, b)
	return b, nil
}

func (s *Store) UpdateBudget(_ context.Context, owner, id string, amount decimal.Decimal) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, b := range s.budgets {
		if b.Owner == owner && b.ID == id {
			s.budgets[i].Amount = amount
			return s.budgets[i], nil
		}
	}
	return core.Budget{}, fmt.Errorf("budget %s: %w", id, core.ErrNotFound)
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func clone(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
