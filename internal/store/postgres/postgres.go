// Package postgres stores the ledger in PostgreSQL (15 or newer) through a
// pgx connection pool.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"budgetbook/internal/core"
	"budgetbook/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

type Repository struct {
	pool *pgxpool.Pool
}

var _ store.Ledger = (*Repository)(nil)

// Open connects to databaseURL and creates the schema when missing.
func Open(ctx context.Context, databaseURL string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) ListCategories(ctx context.Context, owner string) ([]core.Category, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, owner_id, name, created_at FROM categories
		 WHERE owner_id = $1 ORDER BY created_at ASC, seq ASC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Owner, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) ListTransactions(ctx context.Context, owner string, limit int) ([]core.Transaction, error) {
	// LIMIT NULL is no limit.
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, owner_id, date, kind, category, amount::text, note FROM transactions
		 WHERE owner_id = $1 ORDER BY date DESC, seq DESC LIMIT $2`, owner, lim)
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
	row := r.pool.QueryRow(ctx,
		`SELECT id, owner_id, date, kind, category, amount::text, note FROM transactions
		 WHERE owner_id = $1 AND id = $2`, owner, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return tx, err
}

func scanTransaction(row pgx.Row) (core.Transaction, error) {
	var (
		tx     core.Transaction
		date   time.Time
		kind   string
		amount string
	)
	if err := row.Scan(&tx.ID, &tx.Owner, &date, &kind, &tx.Category, &amount, &tx.Note); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tx, err
		}
		return tx, fmt.Errorf("scan transaction: %w", err)
	}
	tx.Date = core.NewDate(date.Year(), int(date.Month()), date.Day())
	tx.Kind = core.Kind(kind)
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return tx, fmt.Errorf("transaction %s amount %q: %w", tx.ID, amount, err)
	}
	tx.Amount = d
	return tx, nil
}

func (r *Repository) ListBudgets(ctx context.Context, owner string) ([]core.Budget, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, owner_id, scope_year, scope_month, amount::text FROM budgets
		 WHERE owner_id = $1 ORDER BY seq ASC`, owner)
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
	row := r.pool.QueryRow(ctx,
		`SELECT id, owner_id, scope_year, scope_month, amount::text FROM budgets
		 WHERE owner_id = $1
		   AND scope_year IS NOT DISTINCT FROM $2::integer
		   AND scope_month IS NOT DISTINCT FROM $3::integer`,
		owner, scope.Year, scope.Month)
	b, err := scanBudget(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Budget{}, false, nil
	}
	if err != nil {
		return core.Budget{}, false, err
	}
	return b, true, nil
}

func scanBudget(row pgx.Row) (core.Budget, error) {
	var (
		b      core.Budget
		amount string
	)
	if err := row.Scan(&b.ID, &b.Owner, &b.Scope.Year, &b.Scope.Month, &amount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return b, err
		}
		return b, fmt.Errorf("scan budget: %w", err)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return b, fmt.Errorf("budget %s amount %q: %w", b.ID, amount, err)
	}
	b.Amount = d
	return b, nil
}

func (r *Repository) InsertTransaction(ctx context.Context, n store.NewTransaction) (core.Transaction, error) {
	tx := n.Transaction(uuid.NewString())
	_, err := r.pool.Exec(ctx,
		`INSERT INTO transactions (id, owner_id, date, kind, category, amount, note)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tx.ID, tx.Owner, tx.Date.Time, string(tx.Kind), tx.Category, tx.Amount.String(), tx.Note)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return tx, nil
}

func (r *Repository) DeleteTransaction(ctx context.Context, owner, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM transactions WHERE owner_id = $1 AND id = $2`, owner, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *Repository) InsertCategory(ctx context.Context, owner, name string) (core.Category, error) {
	c := core.Category{ID: uuid.NewString(), Owner: owner, Name: name}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO categories (id, owner_id, name) VALUES ($1, $2, $3) RETURNING created_at`,
		c.ID, owner, name).Scan(&c.CreatedAt)
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

func (r *Repository) InsertBudget(ctx context.Context, owner string, scope core.Scope, amount decimal.Decimal) (core.Budget, error) {
	b := core.Budget{ID: uuid.NewString(), Owner: owner, Scope: scope, Amount: amount}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO budgets (id, owner_id, scope_year, scope_month, amount) VALUES ($1, $2, $3, $4, $5)`,
		b.ID, owner, scope.Year, scope.Month, amount.String())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return core.Budget{}, fmt.Errorf("budget %s: %w", scope, core.ErrConflict)
		}
		return core.Budget{}, fmt.Errorf("insert budget: %w", err)
	}
	return b, nil
}

func (r *Repository) UpdateBudget(ctx context.Context, owner, id string, amount decimal.Decimal) (core.Budget, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE budgets SET amount = $1 WHERE owner_id = $2 AND id = $3
		 RETURNING id, owner_id, scope_year, scope_month, amount::text`,
		amount.String(), owner, id)
	b, err := scanBudget(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Budget{}, fmt.Errorf("budget %s: %w", id, core.ErrNotFound)
	}
	return b, err
}
