// Package worker consumes ledger events and keeps the spreadsheet mirror in step.
package worker

import (
	"context"
	"errors"
	"fmt"

	"budgetbook/internal/amqp"
	"budgetbook/internal/core"
	"budgetbook/internal/log"
	"budgetbook/internal/sheets"
	"budgetbook/internal/store"
)

// SheetsMirror applies transaction events to a TransactionMirror. Category
// and budget events are acknowledged without effect.
type SheetsMirror struct {
	store  store.Reader
	mirror sheets.TransactionMirror
	limit  int
	logger *log.Logger
}

func NewSheetsMirror(st store.Reader, mirror sheets.TransactionMirror, limit int, logger *log.Logger) *SheetsMirror {
	if limit <= 0 {
		limit = store.DefaultTransactionLimit
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SheetsMirror{
		store:  st,
		mirror: mirror,
		limit:  limit,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// Handle is an amqp.Handler. A returned error requeues the delivery.
func (w *SheetsMirror) Handle(ctx context.Context, ev *amqp.LedgerEvent) error {
	if ev.Entity != amqp.EntityTransaction {
		w.logger.DebugContext(ctx, "Ignoring ledger event", "kind", ev.Kind(), log.FieldEntityID, ev.ID)
		return nil
	}
	switch ev.Action {
	case amqp.ActionCreated:
		return w.appendTransaction(ctx, ev)
	case amqp.ActionDeleted:
		return w.deleteTransaction(ctx, ev)
	default:
		w.logger.DebugContext(ctx, "Ignoring ledger event", "kind", ev.Kind(), log.FieldEntityID, ev.ID)
		return nil
	}
}

func (w *SheetsMirror) appendTransaction(ctx context.Context, ev *amqp.LedgerEvent) error {
	tx, err := w.store.GetTransaction(ctx, ev.Owner, ev.ID)
	if errors.Is(err, core.ErrNotFound) {
		// deleted before the event was consumed
		w.logger.InfoContext(ctx, "Transaction gone before mirroring, skipping",
			log.FieldOwner, ev.Owner, log.FieldEntityID, ev.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction %s: %w", ev.ID, err)
	}

	ref, err := w.mirror.AppendTransaction(ctx, tx)
	if err != nil {
		return fmt.Errorf("append transaction %s: %w", ev.ID, err)
	}
	w.logger.InfoContext(ctx, "Mirrored transaction",
		log.FieldOwner, ev.Owner,
		log.FieldEntityID, ev.ID,
		log.FieldSheetsRef, ref,
		log.FieldAmount, tx.Amount.StringFixed(core.CurrencyPlaces))
	return nil
}

func (w *SheetsMirror) deleteTransaction(ctx context.Context, ev *amqp.LedgerEvent) error {
	found, err := w.mirror.DeleteTransaction(ctx, ev.ID)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", ev.ID, err)
	}
	if !found {
		w.logger.WarnContext(ctx, "No mirrored row for deleted transaction",
			log.FieldOwner, ev.Owner, log.FieldEntityID, ev.ID)
		return nil
	}
	w.logger.InfoContext(ctx, "Removed mirrored transaction", log.FieldOwner, ev.Owner, log.FieldEntityID, ev.ID)
	return nil
}

// Reconcile appends the owner's recent transactions that have no mirrored
// row, recovering from events lost while the worker was down. It returns
// how many rows were added.
func (w *SheetsMirror) Reconcile(ctx context.Context, owner string) (int, error) {
	txs, err := w.store.ListTransactions(ctx, owner, w.limit)
	if err != nil {
		return 0, fmt.Errorf("list transactions: %w", err)
	}
	ids, err := w.mirror.TransactionIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list mirrored ids: %w", err)
	}
	mirrored := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		mirrored[id] = struct{}{}
	}

	added, failed := 0, 0
	// oldest first so the sheet keeps chronological order
	for i := len(txs) - 1; i >= 0; i-- {
		tx := txs[i]
		if _, ok := mirrored[tx.ID]; ok {
			continue
		}
		if _, err := w.mirror.AppendTransaction(ctx, tx); err != nil {
			w.logger.ErrorContext(ctx, "Failed to mirror transaction during reconcile",
				log.FieldOwner, owner, log.FieldEntityID, tx.ID, log.FieldError, err)
			failed++
			continue
		}
		added++
	}

	w.logger.InfoContext(ctx, "Reconcile completed",
		log.FieldOwner, owner, "checked", len(txs), "added", added, "errors", failed)
	if failed > 0 {
		return added, fmt.Errorf("reconcile: %d transactions not mirrored", failed)
	}
	return added, nil
}
