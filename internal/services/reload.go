package services

import (
	"context"
	"fmt"

	"budgetbook/internal/core"
	"budgetbook/internal/log"

	"golang.org/x/sync/errgroup"
)

// reloadState tracks the reloads of one owner that are still in flight. It
// is dropped once the last of them finishes; versions come from a
// service-wide counter, so a later reload always outranks the cached one.
type reloadState struct {
	inflight int
	applied  uint64
}

// Reload re-fetches categories, the most recent transactions and budgets for
// the current user. A reload issued earlier than the last applied one never
// replaces it.
func (s *LedgerService) Reload(ctx context.Context) (*Snapshot, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, owner)
}

// Current returns the cached snapshot, reloading when it is missing or expired.
func (s *LedgerService) Current(ctx context.Context) (*Snapshot, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	return s.current(ctx, owner)
}

// View derives the ledger view for f from the current snapshot.
func (s *LedgerService) View(ctx context.Context, f core.Filter) (LedgerView, error) {
	snap, err := s.Current(ctx)
	if err != nil {
		return LedgerView{}, err
	}
	return snap.View(f), nil
}

func (s *LedgerService) current(ctx context.Context, owner string) (*Snapshot, error) {
	if snap, ok := s.snapshots.Get(owner); ok {
		return snap, nil
	}
	return s.reload(ctx, owner)
}

func (s *LedgerService) reload(ctx context.Context, owner string) (*Snapshot, error) {
	seq := s.issue(owner)
	defer s.finish(owner)

	var (
		cats    []core.Category
		txs     []core.Transaction
		budgets []core.Budget
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cats, err = s.store.ListCategories(gctx, owner)
		if err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		txs, err = s.store.ListTransactions(gctx, owner, s.limit)
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		budgets, err = s.store.ListBudgets(gctx, owner)
		if err != nil {
			return fmt.Errorf("list budgets: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.slog.LogError(ctx, "Ledger reload failed", err, log.ErrorTypeDatabase, log.OpReload,
			log.NewFields().WithOwner(owner).With(log.FieldVersion, seq))
		return nil, core.WrapStore("reload", err)
	}

	snap := newSnapshot(owner, seq, cats, txs, budgets, s.limit, s.now())
	applied := s.apply(snap)
	s.logger.DebugContext(ctx, "Ledger reloaded",
		log.FieldOwner, owner,
		log.FieldVersion, seq,
		"applied_version", applied.Version,
		"transactions", len(txs),
		"budgets", len(budgets))
	return applied, nil
}

func (s *LedgerService) issue(owner string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.reloads[owner]
	if !ok {
		st = &reloadState{}
		s.reloads[owner] = st
	}
	st.inflight++
	s.seq++
	return s.seq
}

func (s *LedgerService) finish(owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.reloads[owner]
	if !ok {
		return
	}
	st.inflight--
	if st.inflight <= 0 {
		delete(s.reloads, owner)
	}
}

// pendingReloads counts owners with a reload in flight.
func (s *LedgerService) pendingReloads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reloads)
}

// apply stores snap unless a later-issued reload already landed, in which
// case that newer snapshot is returned instead.
func (s *LedgerService) apply(snap *Snapshot) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.reloads[snap.Owner]
	if snap.Version <= st.applied {
		if cur, ok := s.snapshots.Get(snap.Owner); ok && cur.Version > snap.Version {
			return cur
		}
		return snap
	}
	st.applied = snap.Version
	s.snapshots.Set(snap.Owner, snap)
	return snap
}
