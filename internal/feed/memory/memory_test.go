package memory

import (
	"context"
	"testing"
	"time"

	"expensesync/internal/core"
)

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 12, 0, 0, 0, time.UTC)
}

func mustCreate(t *testing.T, s *Store, userID string, tx core.Transaction) string {
	t.Helper()
	id, err := s.CreateExpense(context.Background(), userID, tx)
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
	return id
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("no push received")
	}
	panic("unreachable")
}

func TestSubscribeExpensesInitialSnapshot(t *testing.T) {
	s := New()
	mustCreate(t, s, "u1", core.Transaction{Title: "Lunch", Amount: core.Money{Cents: 450}, Date: day(5), Category: "Food"})

	ch, stop, err := s.SubscribeExpenses(context.Background(), "u1", 50)
	if err != nil {
		t.Fatalf("SubscribeExpenses: %v", err)
	}
	defer stop()

	snap := recv(t, ch)
	if len(snap) != 1 || snap[0].Title != "Lunch" {
		t.Errorf("initial snapshot = %v", snap)
	}
}

func TestWritesPushFullSnapshot(t *testing.T) {
	s := New()
	ch, stop, err := s.SubscribeExpenses(context.Background(), "u1", 50)
	if err != nil {
		t.Fatal(err)
	}
	defer stop()
	if snap := recv(t, ch); len(snap) != 0 {
		t.Fatalf("empty store pushed %v", snap)
	}

	id := mustCreate(t, s, "u1", core.Transaction{Title: "A", Amount: core.Money{Cents: 100}, Date: day(1)})
	snap := recv(t, ch)
	if len(snap) != 1 {
		t.Fatalf("snapshot after create = %v", snap)
	}

	if err := s.DeleteExpense(context.Background(), "u1", id); err != nil {
		t.Fatalf("DeleteExpense: %v", err)
	}
	snap = recv(t, ch)
	if len(snap) != 0 {
		t.Errorf("snapshot after delete = %v, want empty", snap)
	}
}

func TestSnapshotOrderAndLimit(t *testing.T) {
	s := New()
	for d := 1; d <= 5; d++ {
		mustCreate(t, s, "u1", core.Transaction{Title: "x", Amount: core.Money{Cents: int64(d)}, Date: day(d)})
	}

	ch, stop, err := s.SubscribeExpenses(context.Background(), "u1", 3)
	if err != nil {
		t.Fatal(err)
	}
	defer stop()

	snap := recv(t, ch)
	if len(snap) != 3 {
		t.Fatalf("limit not applied, got %d entries", len(snap))
	}
	for i := 0; i < len(snap)-1; i++ {
		if snap[i].Date.Before(snap[i+1].Date) {
			t.Fatalf("snapshot not date-descending: %v", snap)
		}
	}
	if snap[0].Date.Day() != 5 {
		t.Errorf("newest entry first, got day %d", snap[0].Date.Day())
	}
}

func TestLatestWinsPush(t *testing.T) {
	s := New()
	ch, stop, err := s.SubscribeExpenses(context.Background(), "u1", 50)
	if err != nil {
		t.Fatal(err)
	}
	defer stop()

	// Nobody reading; each write overwrites the buffered snapshot.
	mustCreate(t, s, "u1", core.Transaction{Title: "A", Amount: core.Money{Cents: 1}, Date: day(1)})
	mustCreate(t, s, "u1", core.Transaction{Title: "B", Amount: core.Money{Cents: 2}, Date: day(2)})

	snap := recv(t, ch)
	if len(snap) != 2 {
		t.Errorf("slow receiver should see the newest snapshot, got %v", snap)
	}
}

func TestStatsFollowWrites(t *testing.T) {
	s := New()
	ch, stop, err := s.SubscribeStats(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	defer stop()
	recv(t, ch) // initial empty

	id := mustCreate(t, s, "u1", core.Transaction{Title: "A", Amount: core.Money{Cents: 30000}, Date: day(5)})
	stats := recv(t, ch)
	if len(stats) != 1 || stats[0].Month != "2024-03" || stats[0].Total.Cents != 30000 {
		t.Fatalf("stats after create = %v", stats)
	}

	// The month key survives at zero once activity happened there.
	if err := s.DeleteExpense(context.Background(), "u1", id); err != nil {
		t.Fatal(err)
	}
	stats = recv(t, ch)
	if len(stats) != 1 || stats[0].Total.Cents != 0 {
		t.Errorf("stats after delete = %v, want 2024-03 at 0", stats)
	}
}

func TestReplaceMovesAcrossMonths(t *testing.T) {
	s := New()
	id := mustCreate(t, s, "u1", core.Transaction{Title: "A", Amount: core.Money{Cents: 500}, Date: day(5)})

	moved := core.Transaction{ID: id, Title: "A", Amount: core.Money{Cents: 500}, Date: time.Date(2024, time.April, 2, 0, 0, 0, 0, time.UTC)}
	if err := s.ReplaceExpense(context.Background(), "u1", moved); err != nil {
		t.Fatalf("ReplaceExpense: %v", err)
	}

	ch, stop, err := s.SubscribeStats(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	defer stop()
	stats := recv(t, ch)

	byMonth := make(map[core.MonthKey]int64)
	for _, st := range stats {
		byMonth[st.Month] = st.Total.Cents
	}
	if byMonth["2024-03"] != 0 {
		t.Errorf("source month total = %d, want 0", byMonth["2024-03"])
	}
	if byMonth["2024-04"] != 500 {
		t.Errorf("target month total = %d, want 500", byMonth["2024-04"])
	}
}

func TestQueryExpensesRange(t *testing.T) {
	s := New()
	for d := 1; d <= 10; d++ {
		mustCreate(t, s, "u1", core.Transaction{Title: "x", Amount: core.Money{Cents: 100}, Date: day(d)})
	}

	from := day(3)
	to := day(7)
	got, err := s.QueryExpensesRange(context.Background(), "u1", from, to)
	if err != nil {
		t.Fatalf("QueryExpensesRange: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("range returned %d entries, want 5 (inclusive bounds)", len(got))
	}
	if got[0].Date.Day() != 7 || got[4].Date.Day() != 3 {
		t.Errorf("range not date-descending: first day %d, last day %d", got[0].Date.Day(), got[4].Date.Day())
	}
}

func TestUsersAreIsolated(t *testing.T) {
	s := New()
	mustCreate(t, s, "alice", core.Transaction{Title: "A", Amount: core.Money{Cents: 100}, Date: day(1)})

	got, err := s.QueryExpensesRange(context.Background(), "bob", day(1), day(28))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("bob sees alice's expenses: %v", got)
	}
}

func TestStopClosesChannel(t *testing.T) {
	s := New()
	ch, stop, err := s.SubscribeExpenses(context.Background(), "u1", 50)
	if err != nil {
		t.Fatal(err)
	}
	recv(t, ch)
	stop()
	stop() // second stop is a no-op

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after stop")
	}

	// Writes after unsubscribe must not panic.
	mustCreate(t, s, "u1", core.Transaction{Title: "A", Amount: core.Money{Cents: 100}, Date: day(1)})
}

func TestDeleteAbsentIsNoError(t *testing.T) {
	s := New()
	if err := s.DeleteExpense(context.Background(), "u1", "mem:999"); err != nil {
		t.Errorf("deleting an absent document = %v, want nil", err)
	}
}

func TestNewFromSeed(t *testing.T) {
	// Amounts in major units, one scalar representation per document, plus
	// one document that cannot survive validation.
	seed := []byte(`[
		{"note": "Lunch", "amount": 4.5, "date": "2024-03-05T12:00:00Z", "category": "Food"},
		{"note": "Metro", "amount": "12", "date": "2024-03-04T08:00:00Z", "category": "Transport"},
		{"note": "Rent", "amount": 900, "date": "2024-03-01T00:00:00Z", "category": "Bills"},
		{"note": "Broken", "amount": "not a number", "date": "2024-03-02T00:00:00Z", "category": "Misc"}
	]`)

	s, err := NewFromSeed("u1", seed)
	if err != nil {
		t.Fatalf("NewFromSeed: %v", err)
	}

	got, err := s.QueryExpensesRange(context.Background(), "u1",
		time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.March, 31, 23, 59, 59, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("seed loaded %d documents, want 3 (bad one skipped)", len(got))
	}

	cents := make(map[string]int64)
	for _, tx := range got {
		cents[tx.Title] = tx.Amount.Cents
	}
	if cents["Lunch"] != 450 {
		t.Errorf("float amount coerced to %d, want 450", cents["Lunch"])
	}
	if cents["Metro"] != 1200 {
		t.Errorf("string amount coerced to %d, want 1200", cents["Metro"])
	}
	if cents["Rent"] != 90000 {
		t.Errorf("integer amount coerced to %d, want 90000", cents["Rent"])
	}
}

func TestNewFromSeedUndecodable(t *testing.T) {
	if _, err := NewFromSeed("u1", []byte("{not json")); err == nil {
		t.Error("undecodable seed should fail")
	}
}

func TestNewDetachedSeed(t *testing.T) {
	s := NewDetached("local")

	ch, stop, err := s.SubscribeExpenses(context.Background(), "local", 50)
	if err != nil {
		t.Fatal(err)
	}
	defer stop()
	snap := recv(t, ch)
	if len(snap) != 5 {
		t.Fatalf("detached seed has %d transactions, want 5", len(snap))
	}
	for _, tx := range snap {
		if tx.ID == "" {
			t.Errorf("seeded transaction without ID: %+v", tx)
		}
	}

	statsCh, stopStats, err := s.SubscribeStats(context.Background(), "local")
	if err != nil {
		t.Fatal(err)
	}
	defer stopStats()
	stats := recv(t, statsCh)
	if len(stats) == 0 {
		t.Error("detached seed should derive stats")
	}
}
