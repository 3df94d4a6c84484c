// Package postgres is the remote multi-device feed adapter. Expense and
// stats documents live in Postgres; LISTEN/NOTIFY carries the change signal,
// so a write on any device re-runs every open subscription everywhere and
// pushes a fresh full snapshot. Delivery latency and ordering are the
// store's business, not the caller's.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"expensesync/internal/core"
	"expensesync/internal/feed"
)

const notifyChannel = "expenses_changed"

const schema = `
CREATE TABLE IF NOT EXISTS expenses (
    id BIGSERIAL PRIMARY KEY,
    user_id TEXT NOT NULL,
    note TEXT NOT NULL,
    amount_cents BIGINT NOT NULL,
    date TIMESTAMPTZ NOT NULL,
    category TEXT NOT NULL,
    kind TEXT NOT NULL DEFAULT 'Regular'
);
CREATE INDEX IF NOT EXISTS idx_expenses_user_date ON expenses (user_id, date DESC);
CREATE TABLE IF NOT EXISTS monthly_stats (
    user_id TEXT NOT NULL,
    month TEXT NOT NULL,
    total_cents BIGINT NOT NULL DEFAULT 0,
    PRIMARY KEY (user_id, month)
);`

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
	pool   *pgxpool.Pool
	cancel context.CancelFunc

	mu       sync.Mutex
	expSubs  map[*expenseSub]struct{}
	statSubs map[*statsSub]struct{}
}

var _ feed.Adapter = (*Store)(nil)

// Open connects, ensures the schema and starts the notification listener.
func Open(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	s := &Store{
		pool:     pool,
		cancel:   cancel,
		expSubs:  make(map[*expenseSub]struct{}),
		statSubs: make(map[*statsSub]struct{}),
	}
	go s.listen(listenCtx)
	return s, nil
}

func (s *Store) Close() {
	s.cancel()
	s.pool.Close()
}

// listen holds a dedicated connection on LISTEN and fans incoming change
// signals out to the subscriptions. The connection is re-established with a
// short backoff when it drops; the store's own reconnect is the self-healing
// the subscriptions rely on.
func (s *Store) listen(ctx context.Context) {
	for ctx.Err() == nil {
		if err := s.listenOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("feed listener dropped, reconnecting", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (s *Store) listenOnce(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		s.notify(ctx, notification.Payload)
	}
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
	rows, err := s.pool.Query(ctx,
		`SELECT id, note, amount_cents, date, category, kind
		 FROM expenses WHERE user_id = $1 AND date >= $2 AND date <= $3
		 ORDER BY date DESC`,
		userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query expenses range: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (s *Store) CreateExpense(ctx context.Context, userID string, t core.Transaction) (string, error) {
	t = t.Normalize()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO expenses (user_id, note, amount_cents, date, category, kind)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		userID, t.Title, t.Amount.Cents, t.Date, string(t.Category), string(t.Kind)).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert expense: %w", err)
	}

	if err := refreshStatTx(ctx, tx, userID, core.MonthKeyOf(t.Date)); err != nil {
		return "", err
	}
	if err := notifyTx(ctx, tx, userID); err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *Store) ReplaceExpense(ctx context.Context, userID string, t core.Transaction) error {
	id, err := strconv.ParseInt(t.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("malformed expense id %q", t.ID)
	}
	t = t.Normalize()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var oldDate time.Time
	err = tx.QueryRow(ctx,
		`SELECT date FROM expenses WHERE id = $1 AND user_id = $2`, id, userID).Scan(&oldDate)
	if err == pgx.ErrNoRows {
		return fmt.Errorf("expense %s not found", t.ID)
	}
	if err != nil {
		return fmt.Errorf("load expense: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE expenses SET note = $1, amount_cents = $2, date = $3, category = $4, kind = $5
		 WHERE id = $6 AND user_id = $7`,
		t.Title, t.Amount.Cents, t.Date, string(t.Category), string(t.Kind), id, userID)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}

	if err := refreshStatTx(ctx, tx, userID, core.MonthKeyOf(oldDate)); err != nil {
		return err
	}
	if err := refreshStatTx(ctx, tx, userID, core.MonthKeyOf(t.Date)); err != nil {
		return err
	}
	if err := notifyTx(ctx, tx, userID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) DeleteExpense(ctx context.Context, userID string, id string) error {
	rowID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var date time.Time
	err = tx.QueryRow(ctx,
		`SELECT date FROM expenses WHERE id = $1 AND user_id = $2`, rowID, userID).Scan(&date)
	if err == pgx.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load expense: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM expenses WHERE id = $1 AND user_id = $2`, rowID, userID); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if err := refreshStatTx(ctx, tx, userID, core.MonthKeyOf(date)); err != nil {
		return err
	}
	if err := notifyTx(ctx, tx, userID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// notifyTx queues the change signal inside the transaction; Postgres emits
// it on commit, so peers never observe a notification for a rolled-back
// write.
func notifyTx(ctx context.Context, tx pgx.Tx, userID string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, userID); err != nil {
		return fmt.Errorf("notify change: %w", err)
	}
	return nil
}

func refreshStatTx(ctx context.Context, tx pgx.Tx, userID string, month core.MonthKey) error {
	start, end, ok := month.Bounds()
	if !ok {
		return nil
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO monthly_stats (user_id, month, total_cents)
		 VALUES ($1, $2, (SELECT COALESCE(SUM(amount_cents), 0) FROM expenses
		                  WHERE user_id = $1 AND date >= $3 AND date <= $4))
		 ON CONFLICT (user_id, month) DO UPDATE SET total_cents = excluded.total_cents`,
		userID, month.String(), start, end)
	if err != nil {
		return fmt.Errorf("refresh monthly stat: %w", err)
	}
	return nil
}

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
	rows, err := s.pool.Query(ctx,
		`SELECT id, note, amount_cents, date, category, kind
		 FROM expenses WHERE user_id = $1 ORDER BY date DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent expenses: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (s *Store) queryStats(ctx context.Context, userID string) ([]core.MonthlyStat, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT month, total_cents FROM monthly_stats WHERE user_id = $1`, userID)
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

func scanTransactions(rows pgx.Rows) ([]core.Transaction, error) {
	var out []core.Transaction
	for rows.Next() {
		var (
			id       int64
			note     string
			cents    int64
			date     time.Time
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
			Date:     date.UTC(),
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
