// Package memory provides an in-process document store, the default backend
// for development and tests. Snapshots are broadcast to watchers on every
// mutation.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tally/internal/core"
	"tally/internal/store"
)

type Store struct {
	mu           sync.Mutex
	transactions []core.Transaction
	categories   []core.Category
	budgets      []core.Budget
	nextRef      int
	closed       bool

	txHub  *store.Hub[core.Transaction]
	catHub *store.Hub[core.Category]
	budHub *store.Hub[core.Budget]
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		txHub:  store.NewHub[core.Transaction](),
		catHub: store.NewHub[core.Category](),
		budHub: store.NewHub[core.Budget](),
	}
}

// Seed preloads records without broadcasting; meant for test fixtures.
func (s *Store) Seed(txs []core.Transaction, cats []core.Category, buds []core.Budget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append(s.transactions, txs...)
	s.categories = append(s.categories, cats...)
	s.budgets = append(s.budgets, buds...)
}

func (s *Store) newRef(prefix string) string {
	s.nextRef++
	return fmt.Sprintf("%s%06d", prefix, s.nextRef)
}

func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", store.ErrClosed
	}
	tx.ID = s.newRef("t")
	s.transactions = append(s.transactions, tx)
	snap := copyOf(s.transactions)
	s.mu.Unlock()

	s.txHub.Publish(snap)
	return tx.ID, nil
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", store.ErrClosed
	}
	c.ID = s.newRef("c")
	s.categories = append(s.categories, c)
	snap := copyOf(s.categories)
	s.mu.Unlock()

	s.catHub.Publish(snap)
	return c.ID, nil
}

func (s *Store) UpdateCategory(_ context.Context, id string, patch store.CategoryPatch) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return store.ErrClosed
	}
	idx := -1
	for i, c := range s.categories {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("update category %s: %w", id, store.ErrNotFound)
	}
	if patch.Name != nil {
		s.categories[idx].Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Icon != nil {
		s.categories[idx].Icon = *patch.Icon
	}
	if patch.Type != nil {
		s.categories[idx].Type = *patch.Type
	}
	snap := copyOf(s.categories)
	s.mu.Unlock()

	s.catHub.Publish(snap)
	return nil
}

func (s *Store) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return store.ErrClosed
	}
	idx := -1
	for i, c := range s.categories {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("delete category %s: %w", id, store.ErrNotFound)
	}
	s.categories = append(s.categories[:idx], s.categories[idx+1:]...)
	snap := copyOf(s.categories)
	s.mu.Unlock()

	s.catHub.Publish(snap)
	return nil
}

func (s *Store) BatchCreateCategories(_ context.Context, cs []core.Category) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return store.ErrClosed
	}
	// All-or-nothing: assign IDs on a scratch copy first
	batch := make([]core.Category, len(cs))
	for i, c := range cs {
		c.ID = s.newRef("c")
		batch[i] = c
	}
	s.categories = append(s.categories, batch...)
	snap := copyOf(s.categories)
	s.mu.Unlock()

	s.catHub.Publish(snap)
	return nil
}

func (s *Store) ListCategories(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	return copyOf(s.categories), nil
}

func (s *Store) SetBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return store.ErrClosed
	}
	// Full overwrite at the composite key; at most one record per key
	replaced := false
	for i, existing := range s.budgets {
		if existing.ID == b.ID {
			s.budgets[i] = b
			replaced = true
			break
		}
	}
	if !replaced {
		s.budgets = append(s.budgets, b)
	}
	snap := copyOf(s.budgets)
	s.mu.Unlock()

	s.budHub.Publish(snap)
	return nil
}

func (s *Store) WatchTransactions(_ context.Context) (<-chan store.Snapshot[core.Transaction], store.CancelFunc) {
	s.mu.Lock()
	initial := copyOf(s.transactions)
	s.mu.Unlock()
	return s.txHub.Subscribe(initial)
}

func (s *Store) WatchCategories(_ context.Context) (<-chan store.Snapshot[core.Category], store.CancelFunc) {
	s.mu.Lock()
	initial := copyOf(s.categories)
	s.mu.Unlock()
	return s.catHub.Subscribe(initial)
}

func (s *Store) WatchBudgets(_ context.Context) (<-chan store.Snapshot[core.Budget], store.CancelFunc) {
	s.mu.Lock()
	initial := copyOf(s.budgets)
	s.mu.Unlock()
	return s.budHub.Subscribe(initial)
}

// Close tears down every watch; no delivery occurs afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.txHub.Close()
	s.catHub.Close()
	s.budHub.Close()
	return nil
}

func copyOf[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}
