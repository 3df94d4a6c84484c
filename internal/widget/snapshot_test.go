package widget

import (
	"testing"
	"time"

	"expensesync/internal/core"
)

func TestBuildSnapshotSingleExpense(t *testing.T) {
	now := time.Date(2024, time.March, 5, 12, 0, 0, 0, time.UTC)
	list := []core.Transaction{
		{ID: "1", Title: "Lunch", Amount: core.Money{Cents: 45000}, Date: now},
	}

	snap := BuildSnapshot(list, now)

	if snap.TotalCents != 45000 {
		t.Errorf("total = %d, want 45000", snap.TotalCents)
	}
	if snap.MonthLabel != "MARCH" {
		t.Errorf("label = %q, want MARCH", snap.MonthLabel)
	}
	want := []int64{0, 0, 0, 0, 45000}
	if len(snap.DailyCumulativeCents) != len(want) {
		t.Fatalf("points = %v, want %v", snap.DailyCumulativeCents, want)
	}
	for i, v := range want {
		if snap.DailyCumulativeCents[i] != v {
			t.Fatalf("points = %v, want %v", snap.DailyCumulativeCents, want)
		}
	}
	if !snap.LastUpdated.Equal(now) {
		t.Errorf("last updated = %v, want %v", snap.LastUpdated, now)
	}
}

func TestBuildSnapshotTruncatesAtToday(t *testing.T) {
	now := time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)
	list := []core.Transaction{
		{Amount: core.Money{Cents: 100}, Date: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)},
		{Amount: core.Money{Cents: 200}, Date: time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)},
	}

	snap := BuildSnapshot(list, now)
	if len(snap.DailyCumulativeCents) != 10 {
		t.Fatalf("trend line has %d points, want 10 (future days omitted)", len(snap.DailyCumulativeCents))
	}
	prev := int64(0)
	for i, v := range snap.DailyCumulativeCents {
		if v < prev {
			t.Fatalf("cumulative series decreased at index %d: %v", i, snap.DailyCumulativeCents)
		}
		prev = v
	}
	if snap.DailyCumulativeCents[9] != 300 {
		t.Errorf("final cumulative = %d, want 300", snap.DailyCumulativeCents[9])
	}
}

func TestBuildSnapshotIgnoresOtherMonths(t *testing.T) {
	now := time.Date(2024, time.March, 5, 12, 0, 0, 0, time.UTC)
	list := []core.Transaction{
		{Amount: core.Money{Cents: 100}, Date: time.Date(2024, time.February, 20, 0, 0, 0, 0, time.UTC)},
		{Amount: core.Money{Cents: 250}, Date: now},
	}

	snap := BuildSnapshot(list, now)
	if snap.TotalCents != 250 {
		t.Errorf("total = %d, want 250 (other months excluded)", snap.TotalCents)
	}
}

func TestBuildSnapshotEmpty(t *testing.T) {
	now := time.Date(2024, time.March, 3, 12, 0, 0, 0, time.UTC)
	snap := BuildSnapshot(nil, now)
	if snap.TotalCents != 0 {
		t.Errorf("total = %d, want 0", snap.TotalCents)
	}
	if len(snap.DailyCumulativeCents) != 3 {
		t.Errorf("empty month still carries one point per elapsed day, got %v", snap.DailyCumulativeCents)
	}
	for _, v := range snap.DailyCumulativeCents {
		if v != 0 {
			t.Fatalf("empty month points must be zero, got %v", snap.DailyCumulativeCents)
		}
	}
}
