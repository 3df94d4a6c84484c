// Package cache memoizes month-keyed transaction lists fetched from the
// remote store. Entries live for the owning session: there is no TTL and no
// size bound, the data set is single-user and month-bounded. Invalidation is
// lazy-refresh: dropping the entry, never pushing new data proactively.
package cache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"expensesync/internal/core"
)

// FetchFunc loads one month's transactions from the store.
type FetchFunc func(ctx context.Context, month core.MonthKey) ([]core.Transaction, error)

// Months is a read-through cache keyed by "yyyy-MM". Concurrent Get calls
// for the same uncached key share a single in-flight fetch.
type Months struct {
	fetch FetchFunc

	mu      sync.Mutex
	entries map[core.MonthKey][]core.Transaction
	closed  bool

	flight singleflight.Group
}

func NewMonths(fetch FetchFunc) *Months {
	return &Months{
		fetch:   fetch,
		entries: make(map[core.MonthKey][]core.Transaction),
	}
}

// Get returns the cached list for key, fetching and storing it on a miss.
// A malformed key returns an empty result without touching the store.
func (m *Months) Get(ctx context.Context, key core.MonthKey) ([]core.Transaction, error) {
	month, err := core.ParseMonthKey(key.String())
	if err != nil {
		return nil, nil
	}

	m.mu.Lock()
	if list, ok := m.entries[month]; ok {
		m.mu.Unlock()
		return list, nil
	}
	m.mu.Unlock()

	v, err, _ := m.flight.Do(month.String(), func() (any, error) {
		list, err := m.fetch(ctx, month)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		// A fetch completing after teardown must not repopulate the cache.
		if !m.closed {
			m.entries[month] = list
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]core.Transaction), nil
}

// Invalidate drops the entry for key; the next Get refetches.
func (m *Months) Invalidate(key core.MonthKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// Len returns the number of cached months.
func (m *Months) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close marks the cache torn down. Later Get calls fall through to the
// fetcher but no longer store results.
func (m *Months) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.entries = make(map[core.MonthKey][]core.Transaction)
}
