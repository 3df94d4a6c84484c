// Package sqlite is the single-device feed adapter: the document store lives
// in a local database file. Subscriptions are re-run and re-pushed after
// every local write, which gives the same full-snapshot delivery the remote
// store promises, just without cross-device convergence.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"expensesync/internal/core"
	"expensesync/internal/feed"

	_ "modernc.org/sqlite"
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
	db *sql.DB

	mu       sync.Mutex
	expSubs  map[*expenseSub]struct{}
	statSubs map[*statsSub]struct{}
}

var _ feed.Adapter = (*Store)(nil)

func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{
		db:       db,
		expSubs:  make(map[*expenseSub]struct{}),
		statSubs: make(map[*statsSub]struct{}),
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SubscribeExpenses(ctx context.Context, userID string, limit int) (<-chan []core.Transaction, func(), error) {
	snap, err := s.queryRecent(ctx, userID, limit)
	if err != nil {
		return nil, nil, err
	}

	sub := &expenseSub{userID: userID, limit: limit, ch: make(chan []core.Transaction, 1)}
	s.mu.Lock()
	s.expSubs[sub] = struct{}{}
	pushLatest(sub.ch, snap)
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
	snap, err := s.queryStats(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	sub := &statsSub{userID: userID, ch: make(chan []core.MonthlyStat, 1)}
	s.mu.Lock()
	s.statSubs[sub] = struct{}{}
	pushLatest(sub.ch, snap)
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

func (s *Store) QueryExpensesRange(ctx context.Context, userID string, from, to time.Time) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, note, amount_cents, date, category, kind
		 FROM expenses WHERE user_id = ? AND date >= ? AND date <= ?
		 ORDER BY date DESC`,
		userID, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("query expenses range: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (s *Store) CreateExpense(ctx context.Context, userID string, t core.Transaction) (string, error) {
	t = t.Normalize()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO expenses (user_id, note, amount_cents, date, category, kind)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		userID, t.Title, t.Amount.Cents, t.Date.Unix(), string(t.Category), string(t.Kind))
	if err != nil {
		return "", fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("last insert id: %w", err)
	}

	if err := refreshStatTx(ctx, tx, userID, core.MonthKeyOf(t.Date)); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "expense saved",
		"id", id,
		"amount_cents", t.Amount.Cents,
		"category", t.Category)

	s.notify(ctx, userID)
	return strconv.FormatInt(id, 10), nil
}

func (s *Store) ReplaceExpense(ctx context.Context, userID string, t core.Transaction) error {
	id, err := strconv.ParseInt(t.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("malformed expense id %q", t.ID)
	}
	t = t.Normalize()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var oldDate int64
	err = tx.QueryRowContext(ctx,
		`SELECT date FROM expenses WHERE id = ? AND user_id = ?`, id, userID).Scan(&oldDate)
	if err == sql.ErrNoRows {
		return fmt.Errorf("expense %s not found", t.ID)
	}
	if err != nil {
		return fmt.Errorf("load expense: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE expenses SET note = ?, amount_cents = ?, date = ?, category = ?, kind = ?
		 WHERE id = ? AND user_id = ?`,
		t.Title, t.Amount.Cents, t.Date.Unix(), string(t.Category), string(t.Kind), id, userID)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}

	if err := refreshStatTx(ctx, tx, userID, core.MonthKeyOf(time.Unix(oldDate, 0).UTC())); err != nil {
		return err
	}
	if err := refreshStatTx(ctx, tx, userID, core.MonthKeyOf(t.Date)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.notify(ctx, userID)
	return nil
}

func (s *Store) DeleteExpense(ctx context.Context, userID string, id string) error {
	rowID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		// Nothing can match a malformed id; deleting an absent document
		// is a no-op.
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var date int64
	err = tx.QueryRowContext(ctx,
		`SELECT date FROM expenses WHERE id = ? AND user_id = ?`, rowID, userID).Scan(&date)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load expense: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM expenses WHERE id = ? AND user_id = ?`, rowID, userID); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if err := refreshStatTx(ctx, tx, userID, core.MonthKeyOf(time.Unix(date, 0).UTC())); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.notify(ctx, userID)
	return nil
}

// refreshStatTx rederives one month's total inside the write transaction, so
// the stats collection is always consistent with the expense rows.
func refreshStatTx(ctx context.Context, tx *sql.Tx, userID string, month core.MonthKey) error {
	start, end, ok := month.Bounds()
	if !ok {
		return nil
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO monthly_stats (user_id, month, total_cents)
		 VALUES (?, ?, (SELECT COALESCE(SUM(amount_cents), 0) FROM expenses
		                WHERE user_id = ? AND date >= ? AND date <= ?))
		 ON CONFLICT(user_id, month) DO UPDATE SET total_cents = excluded.total_cents`,
		userID, month.String(), userID, start.Unix(), end.Unix())
	if err != nil {
		return fmt.Errorf("refresh monthly stat: %w", err)
	}
	return nil
}

// notify re-runs every open subscription for the user and pushes fresh full
// snapshots.
func (s *Store) notify(ctx context.Context, userID string) {
	s.mu.Lock()
	expSubs := make([]*expenseSub, 0, len(s.expSubs))
	for sub := range s.expSubs {
		if sub.userID == userID {
			expSubs = append(expSubs, sub)
		}
	}
	statSubs := make([]*statsSub, 0, len(s.statSubs))
	for sub := range s.statSubs {
		if sub.userID == userID {
			statSubs = append(statSubs, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range expSubs {
		snap, err := s.queryRecent(ctx, userID, sub.limit)
		if err != nil {
			slog.WarnContext(ctx, "subscription re-query failed", "error", err)
			continue
		}
		s.mu.Lock()
		if _, ok := s.expSubs[sub]; ok {
			pushLatest(sub.ch, snap)
		}
		s.mu.Unlock()
	}
	for _, sub := range statSubs {
		snap, err := s.queryStats(ctx, userID)
		if err != nil {
			slog.WarnContext(ctx, "stats re-query failed", "error", err)
			continue
		}
		s.mu.Lock()
		if _, ok := s.statSubs[sub]; ok {
			pushLatest(sub.ch, snap)
		}
		s.mu.Unlock()
	}
}

func (s *Store) queryRecent(ctx context.Context, userID string, limit int) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, note, amount_cents, date, category, kind
		 FROM expenses WHERE user_id = ? ORDER BY date DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent expenses: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (s *Store) queryStats(ctx context.Context, userID string) ([]core.MonthlyStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT month, total_cents FROM monthly_stats WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("query monthly stats: %w", err)
	}
	defer rows.Close()

	var out []core.MonthlyStat
	for rows.Next() {
		var month string
		var cents int64
		if err := rows.Scan(&month, &cents); err != nil {
			return nil, fmt.Errorf("scan monthly stat: %w", err)
		}
		out = append(out, core.MonthlyStat{Month: core.MonthKey(month), Total: core.Money{Cents: cents}})
	}
	return out, rows.Err()
}

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	var out []core.Transaction
	for rows.Next() {
		var (
			id       int64
			note     string
			cents    int64
			date     int64
			category string
			kind     string
		)
		if err := rows.Scan(&id, &note, &cents, &date, &category, &kind); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, core.Transaction{
			ID:       strconv.FormatInt(id, 10),
			Title:    note,
			Amount:   core.Money{Cents: cents},
			Date:     time.Unix(date, 0).UTC(),
			Category: core.Category(category),
			Kind:     core.Kind(kind),
		}.Normalize())
	}
	return out, rows.Err()
}

func pushLatest[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}
