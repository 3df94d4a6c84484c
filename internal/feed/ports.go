// Package feed defines the contract against the remote document store.
//
// The store is opaque: it delivers full result-set snapshots over push
// subscriptions (never diffs), answers one-shot range queries, and accepts
// document writes. The collection layout consumed by concrete adapters
// mirrors users/{userId}/expenses and users/{userId}/stats.
package feed

import (
	"context"
	"time"

	"expensesync/internal/core"
)

// Ports for the store adapters. Subscriptions return a receive channel and a
// stop function; every value received on the channel is the complete current
// result set. There is no ordering guarantee across independent
// subscriptions or queries.
type (
	ExpenseFeed interface {
		// SubscribeExpenses opens a persistent push subscription for the
		// user's most recent transactions, ordered by date descending,
		// limited to limit. The channel is closed once the stop function
		// has returned.
		SubscribeExpenses(ctx context.Context, userID string, limit int) (<-chan []core.Transaction, func(), error)
	}

	StatsFeed interface {
		// SubscribeStats pushes the full per-month stats collection for the
		// user. No server-side ordering is assumed.
		SubscribeStats(ctx context.Context, userID string) (<-chan []core.MonthlyStat, func(), error)
	}

	ExpenseQuerier interface {
		// QueryExpensesRange returns the user's transactions with
		// from <= date <= to, ordered by date descending.
		QueryExpensesRange(ctx context.Context, userID string, from, to time.Time) ([]core.Transaction, error)
	}

	ExpenseWriter interface {
		// CreateExpense persists a new transaction and returns the
		// store-assigned ID.
		CreateExpense(ctx context.Context, userID string, t core.Transaction) (string, error)

		// ReplaceExpense overwrites the full document identified by t.ID.
		ReplaceExpense(ctx context.Context, userID string, t core.Transaction) error

		// DeleteExpense removes the document. Deleting an absent document
		// is not an error.
		DeleteExpense(ctx context.Context, userID string, id string) error
	}
)

// Adapter is the full store surface the synchronization layer consumes.
type Adapter interface {
	ExpenseFeed
	StatsFeed
	ExpenseQuerier
	ExpenseWriter
}
