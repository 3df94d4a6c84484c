package widget

import (
	"context"
	"log/slog"
	"time"

	"expensesync/internal/core"
)

// Publisher recomputes and overwrites the slots every time the live
// transaction set changes. Staleness on the reader side is expected; the
// only promise is "as of LastUpdated".
type Publisher struct {
	userID   string
	slots    []Slot
	notifier Notifier // optional
}

func NewPublisher(userID string, notifier Notifier, slots ...Slot) *Publisher {
	return &Publisher{userID: userID, slots: slots, notifier: notifier}
}

// Publish builds the snapshot from the current live set and writes it to
// every slot, then fires the refresh hint. Slot and notifier failures are
// logged and swallowed: the widget is a best-effort consumer.
func (p *Publisher) Publish(ctx context.Context, transactions []core.Transaction, now time.Time) {
	snap := BuildSnapshot(transactions, now)
	for _, slot := range p.slots {
		if err := slot.Publish(ctx, snap); err != nil {
			slog.WarnContext(ctx, "widget slot write failed", "error", err)
		}
	}
	if p.notifier != nil {
		if err := p.notifier.NotifyRefresh(ctx, p.userID); err != nil {
			slog.DebugContext(ctx, "widget refresh hint failed", "error", err)
		}
	}
}
