// Package sqlite stores the ledger in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"budgetbook/internal/core"
	"budgetbook/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type Repository struct {
	db *sql.DB
}

var _ store.Ledger = (*Repository)(nil)

// Open creates the database file if needed and applies pending migrations.
func Open(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Debug("SQLite ledger ready", "db_path", dbPath)
	return &Repository{db: db}, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) ListCategories(ctx context.Context, owner string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, name, created_at FROM categories
		 WHERE owner_id = ? ORDER BY created_at ASC, rowid ASC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		var created string
		if err := rows.Scan(&c.ID, &c.Owner, &c.Name, &created); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) ListTransactions(ctx context.Context, owner string, limit int) ([]core.Transaction, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, date, kind, category, amount, note FROM transactions
		 WHERE owner_id = ? ORDER BY date DESC, rowid DESC LIMIT ?`, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *Repository) GetTransaction(ctx context.Context, owner, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, date, kind, category, amount, note FROM transactions
		 WHERE owner_id = ? AND id = ?`, owner, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return tx, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		tx           core.Transaction
		date, amount string
		kind         string
	)
	if err := s.Scan(&tx.ID, &tx.Owner, &date, &kind, &tx.Category, &amount, &tx.Note); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tx, err
		}
		return tx, fmt.Errorf("scan transaction: %w", err)
	}
	// A malformed date is kept as zero and never matches a filter.
	tx.Date, _ = core.ParseDate(date)
	tx.Kind = core.Kind(kind)
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return tx, fmt.Errorf("transaction %s amount %q: %w", tx.ID, amount, err)
	}
	tx.Amount = d
	return tx, nil
}

func (r *Repository) ListBudgets(ctx context.Context, owner string) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, scope_year, scope_month, amount FROM budgets
		 WHERE owner_id = ? ORDER BY rowid ASC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repository) FindBudget(ctx context.Context, owner string, scope core.Scope) (core.Budget, bool, error) {
	// IS compares NULL to NULL as equal.
	row := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, scope_year, scope_month, amount FROM budgets
		 WHERE owner_id = ? AND scope_year IS ? AND scope_month IS ?`,
		owner, nullInt(scope.Year), nullInt(scope.Month))
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, false, nil
	}
	if err != nil {
		return core.Budget{}, false, err
	}
	return b, true, nil
}

func scanBudget(s scanner) (core.Budget, error) {
	var (
		b           core.Budget
		year, month sql.NullInt64
		amount      string
	)
	if err := s.Scan(&b.ID, &b.Owner, &year, &month, &amount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return b, err
		}
		return b, fmt.Errorf("scan budget: %w", err)
	}
	b.Scope = core.Scope{Year: fromNull(year), Month: fromNull(month)}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return b, fmt.Errorf("budget %s amount %q: %w", b.ID, amount, err)
	}
	b.Amount = d
	return b, nil
}

func (r *Repository) InsertTransaction(ctx context.Context, n store.NewTransaction) (core.Transaction, error) {
	tx := n.Transaction(uuid.NewString())
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, owner_id, date, kind, category, amount, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.Owner, tx.Date.String(), string(tx.Kind), tx.Category,
		tx.Amount.String(), tx.Note, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return tx, nil
}

func (r *Repository) DeleteTransaction(ctx context.Context, owner, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE owner_id = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireRow(res, "transaction", id)
}

func (r *Repository) InsertCategory(ctx context.Context, owner, name string) (core.Category, error) {
	c := core.Category{ID: uuid.NewString(), Owner: owner, Name: name, CreatedAt: time.Now().UTC()}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, owner_id, name, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Owner, c.Name, c.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

func (r *Repository) InsertBudget(ctx context.Context, owner string, scope core.Scope, amount decimal.Decimal) (core.Budget, error) {
	b := core.Budget{ID: uuid.NewString(), Owner: owner, Scope: scope, Amount: amount}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (id, owner_id, scope_year, scope_month, amount) VALUES (?, ?, ?, ?, ?)`,
		b.ID, owner, nullInt(scope.Year), nullInt(scope.Month), amount.String())
	if err != nil {
		if isUniqueViolation(err) {
			return core.Budget{}, fmt.Errorf("budget %s: %w", scope, core.ErrConflict)
		}
		return core.Budget{}, fmt.Errorf("insert budget: %w", err)
	}
	return b, nil
}

func (r *Repository) UpdateBudget(ctx context.Context, owner, id string, amount decimal.Decimal) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE budgets SET amount = ? WHERE owner_id = ? AND id = ?
		 RETURNING id, owner_id, scope_year, scope_month, amount`,
		amount.String(), owner, id)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, fmt.Errorf("budget %s: %w", id, core.ErrNotFound)
	}
	return b, err
}

func requireRow(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, core.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func fromNull(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
