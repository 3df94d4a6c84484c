package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"expensesync/internal/core"
)

func fixedFetch(calls *atomic.Int64, result []core.Transaction) FetchFunc {
	return func(ctx context.Context, month core.MonthKey) ([]core.Transaction, error) {
		calls.Add(1)
		return result, nil
	}
}

func TestGetCachesAfterFirstFetch(t *testing.T) {
	var calls atomic.Int64
	want := []core.Transaction{{ID: "1", Title: "Lunch", Amount: core.Money{Cents: 450}}}
	m := NewMonths(fixedFetch(&calls, want))

	for i := 0; i < 2; i++ {
		got, err := m.Get(context.Background(), "2024-02")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if len(got) != 1 || got[0].ID != "1" {
			t.Fatalf("Get returned %v", got)
		}
	}

	if n := calls.Load(); n != 1 {
		t.Errorf("two Gets for the same month issued %d fetches, want 1", n)
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
}

func TestGetMalformedKey(t *testing.T) {
	var calls atomic.Int64
	m := NewMonths(fixedFetch(&calls, nil))

	got, err := m.Get(context.Background(), "not-a-month")
	if err != nil {
		t.Fatalf("malformed key should not error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("malformed key should yield an empty result, got %v", got)
	}
	if calls.Load() != 0 {
		t.Error("malformed key must not reach the store")
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	var calls atomic.Int64
	m := NewMonths(fixedFetch(&calls, nil))

	ctx := context.Background()
	if _, err := m.Get(ctx, "2024-02"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(ctx, "2024-03"); err != nil {
		t.Fatal(err)
	}

	m.Invalidate("2024-02")

	if _, err := m.Get(ctx, "2024-02"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(ctx, "2024-03"); err != nil {
		t.Fatal(err)
	}

	// 2024-02 fetched twice, 2024-03 once.
	if n := calls.Load(); n != 3 {
		t.Errorf("fetch count = %d, want 3", n)
	}
}

func TestFetchErrorIsNotCached(t *testing.T) {
	var calls atomic.Int64
	fetchErr := errors.New("store down")
	m := NewMonths(func(ctx context.Context, month core.MonthKey) ([]core.Transaction, error) {
		if calls.Add(1) == 1 {
			return nil, fetchErr
		}
		return []core.Transaction{{ID: "1"}}, nil
	})

	ctx := context.Background()
	if _, err := m.Get(ctx, "2024-02"); !errors.Is(err, fetchErr) {
		t.Fatalf("first Get should surface the fetch error, got %v", err)
	}
	got, err := m.Get(ctx, "2024-02")
	if err != nil {
		t.Fatalf("second Get should retry: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("second Get returned %v", got)
	}
}

func TestConcurrentGetsShareOneFetch(t *testing.T) {
	var calls atomic.Int64
	release := make(chan struct{})
	m := NewMonths(func(ctx context.Context, month core.MonthKey) ([]core.Transaction, error) {
		calls.Add(1)
		<-release
		return nil, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Get(context.Background(), "2024-02"); err != nil {
				t.Errorf("Get: %v", err)
			}
		}()
	}

	// Give the goroutines time to pile onto the in-flight fetch.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("concurrent Gets issued %d fetches, want 1", n)
	}
}

func TestCloseDiscardsLateResults(t *testing.T) {
	var calls atomic.Int64
	m := NewMonths(fixedFetch(&calls, []core.Transaction{{ID: "1"}}))

	ctx := context.Background()
	m.Close()

	got, err := m.Get(ctx, "2024-02")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("Get after Close still returns fetched data, got %v", got)
	}
	if m.Len() != 0 {
		t.Errorf("closed cache must not store entries, Len = %d", m.Len())
	}
}
