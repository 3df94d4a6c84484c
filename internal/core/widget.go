package core

import "time"

// WidgetSnapshot is the cross-process summary handed to the widget reader.
// It is copied, never shared: the publisher serializes it into a slot and the
// reader in another process loads the last-written value on its own schedule.
type WidgetSnapshot struct {
	TotalCents           int64     `json:"totalCents"`
	MonthLabel           string    `json:"monthLabel"`
	DailyCumulativeCents []int64   `json:"dailyCumulativeCents"`
	LastUpdated          time.Time `json:"lastUpdated"`
}

// EmptyWidgetSnapshot is what a reader substitutes for a slot that was never
// written.
func EmptyWidgetSnapshot() WidgetSnapshot {
	return WidgetSnapshot{MonthLabel: "CURRENT", DailyCumulativeCents: []int64{}}
}
