package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"budgetbook/internal/amqp"
	"budgetbook/internal/auth"
	"budgetbook/internal/cache"
	"budgetbook/internal/core"
	"budgetbook/internal/log"
	"budgetbook/internal/store"

	"github.com/shopspring/decimal"
)

const (
	DefaultSnapshotTTL     = 10 * time.Minute
	DefaultMaxCachedOwners = 1000
)

// EventPublisher announces committed mutations. *amqp.Client implements it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}

type Options struct {
	// TransactionLimit bounds each reload; store.DefaultTransactionLimit when zero.
	TransactionLimit int
	SnapshotTTL      time.Duration
	MaxCachedOwners  int
	// Events may be nil; mutations then publish nothing.
	Events EventPublisher
	Logger *log.Logger
	Now    func() time.Time
}

type (
	TransactionInput struct {
		Date     string
		Kind     string
		Category string
		// Amount is the raw user text, e.g. "1,234.50".
		Amount string
		Note   string
	}

	BudgetInput struct {
		Year  *int
		Month *int
		// Amount is the raw user text; thousands separators are stripped.
		Amount string
	}
)

// LedgerService validates and applies ledger mutations for the current user
// and keeps the latest full reload of each owner's ledger.
type LedgerService struct {
	store    store.Ledger
	identity auth.Identity
	events   EventPublisher
	limit    int
	now      func() time.Time
	logger   *log.Logger
	slog     *log.StructuredLogger

	snapshots *cache.LRUCache[*Snapshot]
	budgetMu  *keyedMutex

	mu      sync.Mutex
	seq     uint64
	reloads map[string]*reloadState
}

func NewLedgerService(st store.Ledger, identity auth.Identity, opts Options) *LedgerService {
	if opts.TransactionLimit <= 0 {
		opts.TransactionLimit = store.DefaultTransactionLimit
	}
	if opts.SnapshotTTL <= 0 {
		opts.SnapshotTTL = DefaultSnapshotTTL
	}
	if opts.MaxCachedOwners <= 0 {
		opts.MaxCachedOwners = DefaultMaxCachedOwners
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger.WithComponent(log.ComponentLedger)
	return &LedgerService{
		store:     st,
		identity:  identity,
		events:    opts.Events,
		limit:     opts.TransactionLimit,
		now:       opts.Now,
		logger:    logger,
		slog:      log.NewStructuredLogger(logger),
		snapshots: cache.NewLRUCache[*Snapshot](opts.MaxCachedOwners, opts.SnapshotTTL),
		budgetMu:  newKeyedMutex(),
		reloads:   make(map[string]*reloadState),
	}
}

// SnapshotCache exposes the snapshot cache for periodic expiry.
func (s *LedgerService) SnapshotCache() cache.Cleaner {
	return s.snapshots
}

// TransactionLimit is the number of most recent transactions a reload keeps.
func (s *LedgerService) TransactionLimit() int {
	return s.limit
}

func (s *LedgerService) owner(ctx context.Context) (string, error) {
	id, ok := s.identity.CurrentUser(ctx)
	if !ok {
		return "", core.ErrNotAuthenticated
	}
	return id, nil
}

// AddTransaction validates in, stores it and reloads the ledger.
func (s *LedgerService) AddTransaction(ctx context.Context, in TransactionInput) (core.Transaction, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return core.Transaction{}, err
	}

	n, err := s.validateTransaction(ctx, owner, in)
	if err != nil {
		if errors.Is(err, core.ErrValidation) {
			s.slog.LogRejected(ctx, "Transaction rejected", log.OpCreate, err, log.NewFields().WithOwner(owner))
		}
		return core.Transaction{}, err
	}

	tx, err := s.store.InsertTransaction(ctx, n)
	if err != nil {
		return core.Transaction{}, s.storeFailure(ctx, "insert transaction", log.OpCreate, owner, err)
	}

	s.slog.LogMutation(ctx, "Transaction added", log.OpCreate, log.NewFields().
		WithOwner(owner).
		WithAmount(tx.Amount).
		With(log.FieldKind, string(tx.Kind)).
		With(log.FieldCategory, tx.Category).
		With(log.FieldEntityID, tx.ID))

	return tx, s.committed(ctx, owner, amqp.EntityTransaction, amqp.ActionCreated, tx.ID)
}

func (s *LedgerService) validateTransaction(ctx context.Context, owner string, in TransactionInput) (store.NewTransaction, error) {
	date, err := core.ParseDate(in.Date)
	if err != nil {
		return store.NewTransaction{}, err
	}
	kind, err := core.ParseKind(in.Kind)
	if err != nil {
		return store.NewTransaction{}, err
	}
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return store.NewTransaction{}, err
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		return store.NewTransaction{}, core.ErrEmptyCategory
	}

	// Checked against the store, not the cached snapshot, so categories added
	// by another process count.
	cats, err := s.store.ListCategories(ctx, owner)
	if err != nil {
		return store.NewTransaction{}, s.storeFailure(ctx, "list categories", log.OpCreate, owner, err)
	}
	names, _ := core.SelectableCategories(cats)
	if !core.ContainsCategory(names, category) {
		return store.NewTransaction{}, &core.ValidationError{
			Field:  "category",
			Reason: fmt.Sprintf("%q is not one of your categories", category),
		}
	}

	return store.NewTransaction{
		Owner:    owner,
		Date:     date,
		Kind:     kind,
		Category: category,
		Amount:   amount,
		Note:     strings.TrimSpace(in.Note),
	}, nil
}

// DeleteTransaction removes id. An id unknown to the store is reported as a
// store error that also matches core.ErrNotFound.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id string) error {
	owner, err := s.owner(ctx)
	if err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return &core.ValidationError{Field: "id", Reason: "cannot be empty"}
	}

	if err := s.store.DeleteTransaction(ctx, owner, id); err != nil {
		return s.storeFailure(ctx, "delete transaction", log.OpDelete, owner, err)
	}

	s.slog.LogMutation(ctx, "Transaction deleted", log.OpDelete, log.NewFields().
		WithOwner(owner).
		With(log.FieldEntityID, id))

	return s.committed(ctx, owner, amqp.EntityTransaction, amqp.ActionDeleted, id)
}

// AddCategory stores a new category label. Duplicate names are allowed.
func (s *LedgerService) AddCategory(ctx context.Context, name string) (core.Category, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return core.Category{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		s.slog.LogRejected(ctx, "Category rejected", log.OpCreate, core.ErrEmptyCategory, log.NewFields().WithOwner(owner))
		return core.Category{}, core.ErrEmptyCategory
	}

	c, err := s.store.InsertCategory(ctx, owner, name)
	if err != nil {
		return core.Category{}, s.storeFailure(ctx, "insert category", log.OpCreate, owner, err)
	}

	s.slog.LogMutation(ctx, "Category added", log.OpCreate, log.NewFields().
		WithOwner(owner).
		With(log.FieldCategory, c.Name))

	return c, s.committed(ctx, owner, amqp.EntityCategory, amqp.ActionCreated, c.ID)
}

// SaveBudget creates or updates the single budget for the input's scope.
// Callers racing on the same (owner, scope) are serialized here; a writer in
// another process is caught by the store's unique constraint and the insert
// falls back to an update.
func (s *LedgerService) SaveBudget(ctx context.Context, in BudgetInput) (core.Budget, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return core.Budget{}, err
	}

	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		s.slog.LogRejected(ctx, "Budget rejected", log.OpUpsert, err, log.NewFields().WithOwner(owner))
		return core.Budget{}, err
	}
	f, err := core.NewFilter(in.Year, in.Month)
	if err != nil {
		s.slog.LogRejected(ctx, "Budget rejected", log.OpUpsert, err, log.NewFields().WithOwner(owner))
		return core.Budget{}, err
	}
	scope := f.ScopeKey()

	unlock := s.budgetMu.Lock(owner + "|" + scope.String())
	b, action, err := s.upsertBudget(ctx, owner, scope, amount)
	unlock()
	if err != nil {
		return core.Budget{}, s.storeFailure(ctx, "save budget", log.OpUpsert, owner, err)
	}

	s.slog.LogMutation(ctx, "Budget saved", log.OpUpsert, log.NewFields().
		WithOwner(owner).
		WithScope(scope.String()).
		WithAmount(amount).
		With("action", action))

	return b, s.committed(ctx, owner, amqp.EntityBudget, action, b.ID)
}

func (s *LedgerService) upsertBudget(ctx context.Context, owner string, scope core.Scope, amount decimal.Decimal) (core.Budget, string, error) {
	existing, ok, err := s.store.FindBudget(ctx, owner, scope)
	if err != nil {
		return core.Budget{}, "", fmt.Errorf("find budget: %w", err)
	}
	if ok {
		b, err := s.store.UpdateBudget(ctx, owner, existing.ID, amount)
		return b, amqp.ActionUpdated, err
	}

	b, err := s.store.InsertBudget(ctx, owner, scope, amount)
	if err == nil {
		return b, amqp.ActionCreated, nil
	}
	if !errors.Is(err, core.ErrConflict) {
		return core.Budget{}, "", err
	}

	existing, ok, err = s.store.FindBudget(ctx, owner, scope)
	if err != nil {
		return core.Budget{}, "", fmt.Errorf("find budget after conflict: %w", err)
	}
	if !ok {
		return core.Budget{}, "", fmt.Errorf("budget %s vanished after conflict: %w", scope, core.ErrConflict)
	}
	b, err = s.store.UpdateBudget(ctx, owner, existing.ID, amount)
	return b, amqp.ActionUpdated, err
}

// ReloadError reports a mutation that was committed but whose follow-up
// reload failed. The next read reloads again.
type ReloadError struct {
	Entity string
	Action string
	Err    error
}

func (e *ReloadError) Error() string {
	return fmt.Sprintf("reload after %s/%s: %v", e.Entity, e.Action, e.Err)
}

func (e *ReloadError) Unwrap() error {
	return e.Err
}

// committed runs after every successful mutation: announce it, then reload.
// The mutation stands even when the reload fails; the error is still returned.
func (s *LedgerService) committed(ctx context.Context, owner, entity, action, id string) error {
	s.publish(ctx, amqp.NewLedgerEvent(owner, entity, action, id))
	if _, err := s.reload(ctx, owner); err != nil {
		s.snapshots.Delete(owner)
		return &ReloadError{Entity: entity, Action: action, Err: err}
	}
	return nil
}

func (s *LedgerService) publish(ctx context.Context, ev *amqp.LedgerEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEvent(ctx, ev); err != nil {
		// The store already holds the change; only the mirror lags.
		s.logger.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldError, err,
			"kind", ev.Kind(),
			log.FieldEntityID, ev.ID)
	}
}

func (s *LedgerService) storeFailure(ctx context.Context, op, logOp, owner string, err error) error {
	errType := log.ErrorTypeDatabase
	if errors.Is(err, core.ErrNotFound) {
		errType = log.ErrorTypeNotFound
	}
	s.slog.LogError(ctx, "Ledger store call failed", err, errType, logOp,
		log.NewFields().WithOwner(owner).With("store_op", op))
	return core.WrapStore(op, err)
}

// Ping reports whether the store is reachable.
func (s *LedgerService) Ping(ctx context.Context) error {
	return core.WrapStore("ping", s.store.Ping(ctx))
}

// Close releases the store and, when it holds one, the event connection.
func (s *LedgerService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if c, ok := s.events.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("events: %w", err))
		}
	}
	return errors.Join(errs...)
}
