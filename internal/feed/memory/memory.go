// Package memory is the in-process feed adapter. It backs the detached/
// offline mode (isolated preview or test execution, and the degradation
// target when the remote store is unreachable at startup) and never attempts
// a network call.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"expensesync/internal/core"
	"expensesync/internal/feed"
)

type expenseSub struct {
	userID string
	limit  int
	ch     chan []core.Transaction
}

type statsSub struct {
	userID string
	ch     chan []core.MonthlyStat
}

type Store struct {
	mu       sync.Mutex
	nextID   int64
	expenses map[string][]core.Transaction   // by user
	stats    map[string]map[core.MonthKey]int64 // by user, cents
	expSubs  map[*expenseSub]struct{}
	statSubs map[*statsSub]struct{}
}

var _ feed.Adapter = (*Store)(nil)

func New() *Store {
	return &Store{
		expenses: make(map[string][]core.Transaction),
		stats:    make(map[string]map[core.MonthKey]int64),
		expSubs:  make(map[*expenseSub]struct{}),
		statSubs: make(map[*statsSub]struct{}),
	}
}

// NewDetached returns a store seeded with the fixed example set used when no
// backend is reachable.
func NewDetached(userID string) *Store {
	s := New()
	now := time.Now()
	seed := []core.Transaction{
		{Title: "Lunch", Amount: core.Money{Cents: 45000}, Date: now, Category: "Food", Kind: core.Regular},
		{Title: "Metro card", Amount: core.Money{Cents: 12000}, Date: now.AddDate(0, 0, -1), Category: "Transport", Kind: core.Regular},
		{Title: "Groceries", Amount: core.Money{Cents: 89500}, Date: now.AddDate(0, 0, -2), Category: "Food", Kind: core.Regular},
		{Title: "Headphones", Amount: core.Money{Cents: 249900}, Date: now.AddDate(0, -1, 0), Category: "Shopping", Kind: core.OneOff},
		{Title: "Electricity", Amount: core.Money{Cents: 130000}, Date: now.AddDate(0, -1, -3), Category: "Bills", Kind: core.Regular},
	}
	ctx := context.Background()
	for _, t := range seed {
		_, _ = s.CreateExpense(ctx, userID, t)
	}
	return s
}

// seedDoc mirrors the loose document shape older exports carry: amounts in
// major units, as whatever scalar the exporter happened to write.
type seedDoc struct {
	Note     string          `json:"note"`
	Amount   json.RawMessage `json:"amount"`
	Date     time.Time       `json:"date"`
	Category string          `json:"category"`
	Kind     string          `json:"kind"`
}

// NewFromSeed builds a detached store from a JSON export. Amounts are coerced
// from any scalar representation; a document that still fails validation is
// dropped on its own, never failing the batch.
func NewFromSeed(userID string, data []byte) (*Store, error) {
	var docs []seedDoc
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}

	s := New()
	ctx := context.Background()
	for _, d := range docs {
		var amount any
		if len(d.Amount) > 0 {
			dec := json.NewDecoder(bytes.NewReader(d.Amount))
			dec.UseNumber()
			_ = dec.Decode(&amount)
		}
		t := core.Transaction{
			Title:    d.Note,
			Amount:   core.Money{Cents: core.CoerceCents(amount)},
			Date:     d.Date,
			Category: core.Category(d.Category),
			Kind:     core.Kind(d.Kind),
		}.Normalize()
		if err := t.Validate(); err != nil {
			continue
		}
		_, _ = s.CreateExpense(ctx, userID, t)
	}
	return s, nil
}

func (s *Store) SubscribeExpenses(ctx context.Context, userID string, limit int) (<-chan []core.Transaction, func(), error) {
	sub := &expenseSub{userID: userID, limit: limit, ch: make(chan []core.Transaction, 1)}
	s.mu.Lock()
	s.expSubs[sub] = struct{}{}
	sub.push(s.snapshotLocked(userID, limit))
	s.mu.Unlock()

	stop := func() {
		s.mu.Lock()
		if _, ok := s.expSubs[sub]; ok {
			delete(s.expSubs, sub)
			close(sub.ch)
		}
		s.mu.Unlock()
	}
	return sub.ch, stop, nil
}

func (s *Store) SubscribeStats(ctx context.Context, userID string) (<-chan []core.MonthlyStat, func(), error) {
	sub := &statsSub{userID: userID, ch: make(chan []core.MonthlyStat, 1)}
	s.mu.Lock()
	s.statSubs[sub] = struct{}{}
	sub.push(s.statsLocked(userID))
	s.mu.Unlock()

	stop := func() {
		s.mu.Lock()
		if _, ok := s.statSubs[sub]; ok {
			delete(s.statSubs, sub)
			close(sub.ch)
		}
		s.mu.Unlock()
	}
	return sub.ch, stop, nil
}

func (s *Store) QueryExpensesRange(_ context.Context, userID string, from, to time.Time) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.expenses[userID] {
		if t.Date.Before(from) || t.Date.After(to) {
			continue
		}
		out = append(out, t)
	}
	sortByDateDesc(out)
	return out, nil
}

func (s *Store) CreateExpense(_ context.Context, userID string, t core.Transaction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t.ID = fmt.Sprintf("mem:%d", s.nextID)
	s.expenses[userID] = append(s.expenses[userID], t.Normalize())
	s.recomputeStatLocked(userID, core.MonthKeyOf(t.Date))
	s.notifyLocked(userID)
	return t.ID, nil
}

func (s *Store) ReplaceExpense(_ context.Context, userID string, t core.Transaction) error {
	if t.ID == "" {
		return core.ErrMissingID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.expenses[userID]
	for i, old := range list {
		if old.ID == t.ID {
			list[i] = t.Normalize()
			s.recomputeStatLocked(userID, core.MonthKeyOf(old.Date))
			s.recomputeStatLocked(userID, core.MonthKeyOf(t.Date))
			s.notifyLocked(userID)
			return nil
		}
	}
	return fmt.Errorf("expense %s not found", t.ID)
}

func (s *Store) DeleteExpense(_ context.Context, userID string, id string) error {
	if id == "" {
		return core.ErrMissingID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.expenses[userID]
	for i, old := range list {
		if old.ID == id {
			s.expenses[userID] = append(list[:i], list[i+1:]...)
			s.recomputeStatLocked(userID, core.MonthKeyOf(old.Date))
			s.notifyLocked(userID)
			return nil
		}
	}
	// Deleting an absent document is a no-op, like any document store.
	return nil
}

// recomputeStatLocked rederives one month's total. The month key stays in
// the collection at 0 once any activity happened there.
func (s *Store) recomputeStatLocked(userID string, month core.MonthKey) {
	byMonth := s.stats[userID]
	if byMonth == nil {
		byMonth = make(map[core.MonthKey]int64)
		s.stats[userID] = byMonth
	}
	var total int64
	start, end, ok := month.Bounds()
	if !ok {
		return
	}
	for _, t := range s.expenses[userID] {
		if !t.Date.Before(start) && !t.Date.After(end) {
			total += t.Amount.Cents
		}
	}
	byMonth[month] = total
}

func (s *Store) notifyLocked(userID string) {
	for sub := range s.expSubs {
		if sub.userID == userID {
			sub.push(s.snapshotLocked(userID, sub.limit))
		}
	}
	for sub := range s.statSubs {
		if sub.userID == userID {
			sub.push(s.statsLocked(userID))
		}
	}
}

func (s *Store) snapshotLocked(userID string, limit int) []core.Transaction {
	out := append([]core.Transaction(nil), s.expenses[userID]...)
	sortByDateDesc(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Store) statsLocked(userID string) []core.MonthlyStat {
	out := make([]core.MonthlyStat, 0, len(s.stats[userID]))
	for month, cents := range s.stats[userID] {
		out = append(out, core.MonthlyStat{Month: month, Total: core.Money{Cents: cents}})
	}
	return out
}

// push delivers latest-wins: a slow receiver sees the newest snapshot, not a
// backlog. Sends happen under the store mutex, so at most one is in flight.
func (sub *expenseSub) push(snap []core.Transaction) {
	select {
	case <-sub.ch:
	default:
	}
	sub.ch <- snap
}

func (sub *statsSub) push(snap []core.MonthlyStat) {
	select {
	case <-sub.ch:
	default:
	}
	sub.ch <- snap
}

func sortByDateDesc(list []core.Transaction) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Date.After(list[j].Date)
	})
}
