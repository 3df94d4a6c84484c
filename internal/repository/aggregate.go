package repository

import (
	"context"
	"fmt"
	"time"

	"expensesync/internal/core"
)

// currentMonthTotal sums the live transactions falling in the calendar month
// containing now.
func currentMonthTotal(list []core.Transaction, now time.Time) core.Money {
	var cents int64
	for _, t := range list {
		if core.SameMonth(t.Date, now) {
			cents += t.Amount.Cents
		}
	}
	return core.Money{Cents: cents}
}

// CurrentMonthTotal is derived purely from the live set, recomputed on every
// feed push.
func (r *Repository) CurrentMonthTotal() core.Money {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentTotal
}

// MonthOverMonth compares this month's spend so far against the same partial
// window of the previous month: only previous-month days up to today's
// day-of-month count, so a mid-month snapshot is compared fairly.
//
// The current side reads the live set while the previous side goes through
// the month cache, so the two can carry slightly different staleness. When
// the partial previous total is zero the comparison is undefined and ok is
// false, never 0% and never an infinity.
func (r *Repository) MonthOverMonth(ctx context.Context) (pct float64, ok bool, err error) {
	now := r.now()

	r.mu.Lock()
	current := r.currentTotal
	months := r.months
	r.mu.Unlock()
	if months == nil {
		return 0, false, ErrNotStarted
	}

	prevKey := core.MonthKeyOf(now).Prev()
	prevList, err := months.Get(ctx, prevKey)
	if err != nil {
		r.setErr(fmt.Errorf("fetch previous month: %w", err))
		return 0, false, err
	}

	var partialPrev int64
	for _, t := range prevList {
		if t.Date.Day() <= now.Day() {
			partialPrev += t.Amount.Cents
		}
	}
	if partialPrev == 0 {
		return 0, false, nil
	}
	pct = float64(current.Cents-partialPrev) / float64(partialPrev) * 100
	return pct, true, nil
}
