// Package mirror maintains an in-process replica of the three watched
// collections. Each incoming snapshot wholesale-replaces the collection it
// belongs to; readers always see internally consistent copies.
package mirror

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/store"
)

// View is a point-in-time copy of the replica. Slices are owned by the
// caller and never shared with the mirror.
type View struct {
	Transactions []core.Transaction
	Categories   []core.Category
	Budgets      []core.Budget
	Revision     uint64
}

type Mirror struct {
	src    store.Watcher
	logger *log.Logger

	mu           sync.RWMutex
	transactions []core.Transaction
	categories   []core.Category
	budgets      []core.Budget
	seen         map[string]bool
	errs         map[string]error
	revision     uint64

	updates chan struct{}
}

func New(src store.Watcher, logger *log.Logger) *Mirror {
	return &Mirror{
		src:     src,
		logger:  logger.WithComponent("mirror"),
		seen:    make(map[string]bool),
		errs:    make(map[string]error),
		updates: make(chan struct{}, 1),
	}
}

// Run subscribes to all three collections and applies snapshots until the
// context is cancelled or every stream has terminated. A stream failure is
// recorded per collection; the replica keeps serving the last good data for
// it while the other streams continue.
func (m *Mirror) Run(ctx context.Context) error {
	txCh, cancelTx := m.src.WatchTransactions(ctx)
	defer cancelTx()
	catCh, cancelCat := m.src.WatchCategories(ctx)
	defer cancelCat()
	budCh, cancelBud := m.src.WatchBudgets(ctx)
	defer cancelBud()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consume(ctx, m, store.CollectionTransactions, txCh, func(rs []core.Transaction) {
			m.transactions = rs
		})
	})
	g.Go(func() error {
		return consume(ctx, m, store.CollectionCategories, catCh, func(rs []core.Category) {
			m.categories = rs
		})
	})
	g.Go(func() error {
		return consume(ctx, m, store.CollectionBudgets, budCh, func(rs []core.Budget) {
			m.budgets = rs
		})
	})
	return g.Wait()
}

// consume applies one collection's snapshot stream. apply runs under the
// mirror lock.
func consume[T any](ctx context.Context, m *Mirror, collection string, ch <-chan store.Snapshot[T], apply func([]T)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-ch:
			if !ok {
				return nil
			}
			if snap.Err != nil {
				m.recordError(ctx, collection, snap.Err)
				continue
			}
			m.mu.Lock()
			apply(snap.Records)
			m.seen[collection] = true
			delete(m.errs, collection)
			m.revision++
			m.mu.Unlock()
			m.notify()
		}
	}
}

func (m *Mirror) recordError(ctx context.Context, collection string, err error) {
	m.mu.Lock()
	m.errs[collection] = err
	m.mu.Unlock()
	m.logger.ErrorContext(ctx, "watch stream failed", "collection", collection, "error", err)
	m.notify()
}

// notify coalesces change signals: at most one is pending at any time, and
// a reader that drains it sees the newest revision through View.
func (m *Mirror) notify() {
	select {
	case m.updates <- struct{}{}:
	default:
	}
}

// Updates signals that the replica changed since the last read. The channel
// carries no data; call View for the current state.
func (m *Mirror) Updates() <-chan struct{} {
	return m.updates
}

// Ready reports whether every collection has delivered its initial snapshot.
func (m *Mirror) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.seen[store.CollectionTransactions] &&
		m.seen[store.CollectionCategories] &&
		m.seen[store.CollectionBudgets]
}

// Errs returns the current per-collection stream errors.
func (m *Mirror) Errs() map[string]error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]error, len(m.errs))
	for k, v := range m.errs {
		out[k] = v
	}
	return out
}

// Revision returns the replica's monotonic change counter.
func (m *Mirror) Revision() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.revision
}

// View returns a consistent copy of all three collections.
func (m *Mirror) View() View {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return View{
		Transactions: copyOf(m.transactions),
		Categories:   copyOf(m.categories),
		Budgets:      copyOf(m.budgets),
		Revision:     m.revision,
	}
}

func copyOf[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}
