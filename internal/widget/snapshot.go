// Package widget derives the cross-process summary from the live transaction
// set and hands it to a reader in another process through a shared slot. The
// two sides never share memory; the reader only ever sees the last value
// written.
package widget

import (
	"time"

	"expensesync/internal/core"
)

// BuildSnapshot computes the summary for the calendar month containing now:
// the month total, and the per-day cumulative spend truncated at now's
// day-of-month. Future days are omitted, not zero-filled, so the trend line
// ends at today instead of flattening out.
func BuildSnapshot(transactions []core.Transaction, now time.Time) core.WidgetSnapshot {
	month := core.MonthKeyOf(now)

	var current []core.Transaction
	for _, t := range transactions {
		if core.SameMonth(t.Date, now) {
			current = append(current, t)
		}
	}

	daily := core.DailyTotals(current, month)
	days := len(daily)
	upTo := now.Day()
	if upTo > days {
		upTo = days
	}

	cumulative := make([]int64, 0, upTo)
	var running int64
	for i := 0; i < upTo; i++ {
		running += daily[i].Cents
		cumulative = append(cumulative, running)
	}

	return core.WidgetSnapshot{
		TotalCents:           core.SumAmounts(current).Cents,
		MonthLabel:           month.Label(),
		DailyCumulativeCents: cumulative,
		LastUpdated:          now,
	}
}
