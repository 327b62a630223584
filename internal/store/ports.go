// Package store defines the persistence collaborator contract: three flat
// record collections that can be mutated and watched. A watch delivers full
// replacement snapshots, never deltas; each delivery supersedes the previous
// one for that collection.
package store

import (
	"context"
	"errors"

	"tally/internal/core"
)

// Collection names as persisted.
const (
	CollectionTransactions = "transactions"
	CollectionCategories   = "categories"
	CollectionBudgets      = "budgets"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrClosed   = errors.New("store closed")
)

type (
	// Snapshot carries a complete replacement record set for one collection,
	// or a terminal stream error. After an Err delivery the channel closes.
	Snapshot[T any] struct {
		Records []T
		Err     error
	}

	// CancelFunc releases a single watch. Idempotent.
	CancelFunc func()

	// CategoryPatch is a partial category update; nil fields are untouched.
	CategoryPatch struct {
		Name *string
		Icon *core.Icon
		Type *core.TransactionType
	}
)

// Ports for the persistence collaborator, split by capability.
type (
	TransactionWriter interface {
		// CreateTransaction persists a new record and returns its
		// store-assigned identifier once the write is acknowledged.
		CreateTransaction(ctx context.Context, tx core.Transaction) (string, error)
	}

	CategoryWriter interface {
		CreateCategory(ctx context.Context, c core.Category) (string, error)
		UpdateCategory(ctx context.Context, id string, patch CategoryPatch) error
		DeleteCategory(ctx context.Context, id string) error
		// BatchCreateCategories writes the whole set atomically: either every
		// record lands or none does.
		BatchCreateCategories(ctx context.Context, cs []core.Category) error
		// ListCategories is a one-shot read, used by startup seeding.
		ListCategories(ctx context.Context) ([]core.Category, error)
	}

	BudgetWriter interface {
		// SetBudget overwrites the full record at its composite key.
		SetBudget(ctx context.Context, b core.Budget) error
	}

	// Watcher delivers full-collection snapshots. An initial snapshot is
	// always delivered first; afterwards one arrives on every change. The
	// channel closes after a terminal error, cancel, or store close.
	Watcher interface {
		WatchTransactions(ctx context.Context) (<-chan Snapshot[core.Transaction], CancelFunc)
		WatchCategories(ctx context.Context) (<-chan Snapshot[core.Category], CancelFunc)
		WatchBudgets(ctx context.Context) (<-chan Snapshot[core.Budget], CancelFunc)
	}
)

// Store is the full persistence collaborator surface.
type Store interface {
	TransactionWriter
	CategoryWriter
	BudgetWriter
	Watcher
	Close() error
}
