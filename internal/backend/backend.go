// Package backend selects and constructs the feed adapter for a session.
package backend

import (
	"expensesync/internal/feed"
)

// Type names a feed adapter implementation.
type Type string

const (
	// Memory is the detached/offline adapter: seeded example data, no
	// network, first-class for previews and tests.
	Memory Type = "memory"
	// SQLite keeps the document store in a local database file.
	SQLite Type = "sqlite"
	// Postgres is the remote multi-device store.
	Postgres Type = "postgres"
)

func (t Type) String() string { return string(t) }

func (t Type) IsValid() bool {
	switch t {
	case Memory, SQLite, Postgres:
		return true
	default:
		return false
	}
}

// Types returns all valid backend types.
func Types() []Type {
	return []Type{Memory, SQLite, Postgres}
}

// CleanupFunc releases a backend's resources.
type CleanupFunc func() error

// Result carries the adapter and its optional cleanup.
type Result struct {
	Adapter feed.Adapter
	Cleanup CleanupFunc
	// Detached is set when the factory degraded to the offline adapter
	// because the configured store was unreachable.
	Detached bool
}

// Config holds what the factory needs to build an adapter.
type Config struct {
	Type Type

	// Session user; the memory adapter seeds its example data for them.
	UserID string

	// SeedPath optionally points the detached adapter at a JSON export to
	// load instead of the fixed example set.
	SeedPath string

	// SQLite specific
	SQLiteDBPath string

	// Postgres specific
	PostgresURL string
}
