package widget

import (
	"context"

	"expensesync/internal/core"
)

// Namespace identifies the shared slot across both processes, the moral
// equivalent of an app-group suite name.
const Namespace = "expensesync.widget"

// Slot is a process-shared single-value store with single-writer,
// single-reader semantics. Publish overwrites the whole value atomically;
// the reader sees either the old or the new complete snapshot, never a
// partial write.
type Slot interface {
	Publish(ctx context.Context, snap core.WidgetSnapshot) error

	// Load returns the last-written snapshot. A slot that was never written
	// yields the documented empty default and ok=false, not an error.
	Load(ctx context.Context) (snap core.WidgetSnapshot, ok bool, err error)
}

// Notifier requests a refresh from the external consumer after a write.
// Best-effort, fire-and-forget: failures must not affect the publisher.
type Notifier interface {
	NotifyRefresh(ctx context.Context, userID string) error
}
