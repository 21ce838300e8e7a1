package services

import (
	"context"
	"testing"
	"time"

	"budgetbook/internal/auth"
	"budgetbook/internal/core"
	"budgetbook/internal/store"
	"budgetbook/internal/store/memory"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"
)

// gatedStore lets the test hold one ListTransactions call after it has read
// its (by then stale) result.
type gatedStore struct {
	store.Ledger
	gate    chan struct{}
	reached chan struct{}
}

func (g *gatedStore) ListTransactions(ctx context.Context, owner string, limit int) ([]core.Transaction, error) {
	txs, err := g.Ledger.ListTransactions(ctx, owner, limit)
	if g.gate != nil {
		gate := g.gate
		g.gate = nil
		close(g.reached)
		<-gate
	}
	return txs, err
}

func TestLastIssuedReloadWins(t *testing.T) {
	mem := memory.New()
	gs := &gatedStore{Ledger: mem, gate: make(chan struct{}), reached: make(chan struct{})}
	svc := NewLedgerService(gs, auth.Static("u1"), Options{})
	ctx := context.Background()
	gate := gs.gate

	type result struct {
		snap *Snapshot
		err  error
	}
	early := make(chan result, 1)
	go func() {
		snap, err := svc.Reload(ctx)
		early <- result{snap, err}
	}()
	<-gs.reached

	_, err := mem.InsertTransaction(ctx, store.NewTransaction{
		Owner: "u1", Date: core.NewDate(2025, 1, 1), Kind: core.Expense, Category: "Food", Amount: decimal.NewFromInt(3),
	})
	assert.NoError(t, err)

	late, err := svc.Reload(ctx)
	assert.NoError(t, err)
	assert.Equal(t, uint64(2), late.Version)
	assert.Equal(t, 1, len(late.Transactions))

	close(gate)
	var r result
	select {
	case r = <-early:
	case <-time.After(5 * time.Second):
		t.Fatal("early reload did not finish")
	}
	assert.NoError(t, r.err)
	// The early reload read an empty ledger but must not replace the later one.
	assert.Equal(t, uint64(2), r.snap.Version)

	cur, err := svc.Current(ctx)
	assert.NoError(t, err)
	assert.Equal(t, uint64(2), cur.Version)
	assert.Equal(t, 1, len(cur.Transactions))
}

func TestReloadStateIsReleased(t *testing.T) {
	mem := memory.New()
	ctx := context.Background()
	svc := NewLedgerService(mem, auth.ContextIdentity{}, Options{MaxCachedOwners: 2})

	var last uint64
	for _, owner := range []string{"a", "b", "c", "d", "e"} {
		snap, err := svc.Reload(auth.WithUser(ctx, owner))
		assert.NoError(t, err)
		assert.True(t, snap.Version > last)
		last = snap.Version
	}
	assert.Equal(t, 0, svc.pendingReloads())
	assert.Equal(t, 2, svc.snapshots.Size())

	// An evicted owner reloads with a version above everything issued so far.
	snap, err := svc.Current(auth.WithUser(ctx, "a"))
	assert.NoError(t, err)
	assert.True(t, snap.Version > last)
	assert.Equal(t, 0, svc.pendingReloads())
}

func TestReloadRespectsTransactionLimit(t *testing.T) {
	mem := memory.New()
	ctx := context.Background()
	for day := 1; day <= 5; day++ {
		_, err := mem.InsertTransaction(ctx, store.NewTransaction{
			Owner: "u1", Date: core.NewDate(2025, 1, day), Kind: core.Expense, Category: "Food", Amount: decimal.NewFromInt(1),
		})
		assert.NoError(t, err)
	}

	svc := NewLedgerService(mem, auth.Static("u1"), Options{TransactionLimit: 3})
	snap, err := svc.Reload(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 3, len(snap.Transactions))
	assert.True(t, snap.Truncated)
	assert.Equal(t, "2025-01-05", snap.Transactions[0].Date.String())

	view := snap.View(core.Filter{})
	assert.True(t, view.Truncated)
	assert.True(t, view.Summary.Expense.Equal(decimal.NewFromInt(3)))
}

func TestDefaultTransactionLimit(t *testing.T) {
	svc := NewLedgerService(memory.New(), auth.Static("u1"), Options{})
	assert.Equal(t, 800, svc.TransactionLimit())
}

func TestCurrentUsesCacheUntilExpiry(t *testing.T) {
	mem := memory.New()
	svc := NewLedgerService(mem, auth.Static("u1"), Options{SnapshotTTL: 20 * time.Millisecond})
	ctx := context.Background()

	first, err := svc.Current(ctx)
	assert.NoError(t, err)
	again, err := svc.Current(ctx)
	assert.NoError(t, err)
	assert.Equal(t, first.Version, again.Version)

	time.Sleep(40 * time.Millisecond)
	assert.True(t, svc.SnapshotCache().CleanExpired() >= 0)
	later, err := svc.Current(ctx)
	assert.NoError(t, err)
	assert.True(t, later.Version > first.Version)
}

func TestSnapshotViewIsPure(t *testing.T) {
	snap := newSnapshot("u1", 1, nil, []core.Transaction{
		{ID: "1", Date: core.NewDate(2025, 3, 5), Kind: core.Expense, Category: "Food", Amount: decimal.NewFromInt(1500)},
	}, []core.Budget{
		{ID: "b", Scope: core.Scope{Year: core.Ptr(2025)}, Amount: decimal.NewFromInt(1000)},
	}, 800, time.Now())

	f := core.Filter{Year: core.Ptr(2025), Month: core.Ptr(3)}
	a := snap.View(f)
	b := snap.View(f)
	assert.Equal(t, a.Summary, b.Summary)
	assert.Equal(t, 1.0, a.Allowance.Ratio)
	assert.True(t, a.Allowance.OverBudget)
	assert.True(t, a.Allowance.Remaining.Equal(decimal.NewFromInt(-500)))
	assert.Equal(t, 2, a.Budget.Tier)
	assert.Equal(t, "2025 / March", a.Label)
	assert.True(t, snap.UsingDefaultCategories)
	assert.False(t, snap.Truncated)
}
