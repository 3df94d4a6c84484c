// Package repository owns the per-user synchronization state: the live
// transaction set mirrored from the remote feed, the month-keyed cache, the
// stats ledger view and the latest-error slot.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"expensesync/internal/cache"
	"expensesync/internal/core"
	"expensesync/internal/feed"
)

// LiveLimit bounds the live set to the most recent transactions. Aggregation
// over it is O(n) per push, which this cap keeps trivial.
const LiveLimit = 50

var ErrNotStarted = errors.New("repository not started")

// SnapshotPublisher receives the live set after every replacement.
type SnapshotPublisher interface {
	Publish(ctx context.Context, transactions []core.Transaction, now time.Time)
}

// Repository keeps one user's view consistent with the store. The live set
// is replaced wholesale on every feed push, with no diffing or client-side
// reconciliation, and every aggregate is rederived from that ground truth.
type Repository struct {
	adapter feed.Adapter
	pub     SnapshotPublisher // optional
	now     func() time.Time

	mu           sync.Mutex
	userID       string
	expenses     []core.Transaction
	currentTotal core.Money
	stats        []core.MonthlyStat
	months       *cache.Months
	stopLive     func()
	stopStats    func()
	started      bool

	errMu   sync.Mutex
	lastErr error

	wg sync.WaitGroup
}

func New(adapter feed.Adapter, pub SnapshotPublisher) *Repository {
	return &Repository{
		adapter: adapter,
		pub:     pub,
		now:     time.Now,
	}
}

// Start opens the expense and stats subscriptions for userID and begins
// mirroring pushes into the local state.
func (r *Repository) Start(ctx context.Context, userID string) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return errors.New("repository already started")
	}
	r.userID = userID
	r.months = cache.NewMonths(func(ctx context.Context, month core.MonthKey) ([]core.Transaction, error) {
		start, end, ok := month.Bounds()
		if !ok {
			return nil, nil
		}
		return r.adapter.QueryExpensesRange(ctx, userID, start, end)
	})
	r.mu.Unlock()

	liveCh, stopLive, err := r.adapter.SubscribeExpenses(ctx, userID, LiveLimit)
	if err != nil {
		return fmt.Errorf("subscribe expenses: %w", err)
	}
	statsCh, stopStats, err := r.adapter.SubscribeStats(ctx, userID)
	if err != nil {
		stopLive()
		return fmt.Errorf("subscribe stats: %w", err)
	}

	r.mu.Lock()
	r.stopLive = stopLive
	r.stopStats = stopStats
	r.started = true
	r.mu.Unlock()

	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		for snap := range liveCh {
			r.applyLive(ctx, snap)
		}
	}()
	go func() {
		defer r.wg.Done()
		for snap := range statsCh {
			r.applyStats(snap)
		}
	}()
	return nil
}

// Stop releases both subscriptions and tears down the cache. In-flight month
// fetches that complete afterwards are discarded, not stored.
func (r *Repository) Stop() {
	r.mu.Lock()
	stopLive, stopStats := r.stopLive, r.stopStats
	months := r.months
	r.stopLive, r.stopStats = nil, nil
	r.started = false
	r.mu.Unlock()

	if stopLive != nil {
		stopLive()
	}
	if stopStats != nil {
		stopStats()
	}
	r.wg.Wait()
	if months != nil {
		months.Close()
	}
}

// applyLive replaces the live set with the pushed snapshot and rederives the
// current-month aggregate. Pure in-memory swap; the publisher runs outside
// the lock.
func (r *Repository) applyLive(ctx context.Context, snap []core.Transaction) {
	now := r.now()

	r.mu.Lock()
	r.expenses = snap
	r.currentTotal = currentMonthTotal(snap, now)
	list := append([]core.Transaction(nil), snap...)
	pub := r.pub
	r.mu.Unlock()

	if pub != nil {
		pub.Publish(ctx, list, now)
	}
}

// applyStats replaces the ledger view and re-sorts by month key descending;
// remote ordering is never relied on.
func (r *Repository) applyStats(snap []core.MonthlyStat) {
	sorted := append([]core.MonthlyStat(nil), snap...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Month > sorted[j].Month
	})
	r.mu.Lock()
	r.stats = sorted
	r.mu.Unlock()
}

// Add validates the transaction locally and sends a create request. Invalid
// input never reaches the store. The live list is not touched here: the
// subscription re-push is the source of truth.
func (r *Repository) Add(ctx context.Context, t core.Transaction) error {
	t = t.Normalize()
	if err := t.Validate(); err != nil {
		return err
	}
	if _, err := r.adapter.CreateExpense(ctx, r.userID, t); err != nil {
		r.setErr(fmt.Errorf("add expense: %w", err))
		return err
	}
	r.invalidateMonth(core.MonthKeyOf(t.Date))
	return nil
}

// Update sends a full-document replace for t.ID. A missing identity fails
// into the error slot without a remote call.
func (r *Repository) Update(ctx context.Context, t core.Transaction) error {
	if t.ID == "" {
		r.setErr(core.ErrMissingID)
		return core.ErrMissingID
	}
	t = t.Normalize()
	if err := t.Validate(); err != nil {
		return err
	}
	if err := r.adapter.ReplaceExpense(ctx, r.userID, t); err != nil {
		r.setErr(fmt.Errorf("update expense: %w", err))
		return err
	}
	r.invalidateMonth(core.MonthKeyOf(t.Date))
	return nil
}

// Delete removes the transaction and invalidates its month only once the
// remote delete has acknowledged.
func (r *Repository) Delete(ctx context.Context, t core.Transaction) error {
	if t.ID == "" {
		r.setErr(core.ErrMissingID)
		return core.ErrMissingID
	}
	if err := r.adapter.DeleteExpense(ctx, r.userID, t.ID); err != nil {
		r.setErr(fmt.Errorf("delete expense: %w", err))
		return err
	}
	r.invalidateMonth(core.MonthKeyOf(t.Date))
	return nil
}

// Month returns the cached transaction list for a month, fetching it from
// the store on first use.
func (r *Repository) Month(ctx context.Context, key core.MonthKey) ([]core.Transaction, error) {
	r.mu.Lock()
	months := r.months
	r.mu.Unlock()
	if months == nil {
		return nil, ErrNotStarted
	}
	list, err := months.Get(ctx, key)
	if err != nil {
		r.setErr(fmt.Errorf("fetch month %s: %w", key, err))
		return nil, err
	}
	return list, nil
}

func (r *Repository) invalidateMonth(key core.MonthKey) {
	r.mu.Lock()
	months := r.months
	r.mu.Unlock()
	if months != nil {
		months.Invalidate(key)
	}
}

// Expenses returns a copy of the live transaction set.
func (r *Repository) Expenses() []core.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Transaction(nil), r.expenses...)
}

// Stats returns the ledger view, sorted by month key descending.
func (r *Repository) Stats() []core.MonthlyStat {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.MonthlyStat(nil), r.stats...)
}

// LastError is the single source of truth for "what went wrong last". It is
// cleared explicitly by the consumer, never automatically.
func (r *Repository) LastError() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.lastErr
}

func (r *Repository) ClearError() {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	r.lastErr = nil
}

func (r *Repository) setErr(err error) {
	r.errMu.Lock()
	r.lastErr = err
	r.errMu.Unlock()
	slog.Warn("remote operation failed", "error", err)
}
