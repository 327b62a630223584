package store

import "sync"

// Hub fans full-collection snapshots out to watchers. Delivery never blocks
// the writer: each subscriber channel holds at most one pending snapshot and
// a newer one displaces it, which is safe because every snapshot fully
// supersedes the previous one.
type Hub[T any] struct {
	mu     sync.Mutex
	subs   map[int]chan Snapshot[T]
	nextID int
	closed bool
}

func NewHub[T any]() *Hub[T] {
	return &Hub[T]{subs: make(map[int]chan Snapshot[T])}
}

// Subscribe registers a watcher and immediately queues the initial snapshot.
// The returned cancel is idempotent and closes the channel.
func (h *Hub[T]) Subscribe(initial []T) (<-chan Snapshot[T], CancelFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Snapshot[T], 1)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	offer(ch, Snapshot[T]{Records: initial})

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// Publish queues a replacement snapshot on every subscriber.
func (h *Hub[T]) Publish(records []T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		offer(ch, Snapshot[T]{Records: records})
	}
}

// Fail delivers a terminal error to every subscriber and closes the streams.
func (h *Hub[T]) Fail(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		offer(ch, Snapshot[T]{Err: err})
		delete(h.subs, id)
		close(ch)
	}
}

// Close tears down every subscription; no delivery happens afterwards.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

// offer replaces any pending snapshot with the newer one.
func offer[T any](ch chan Snapshot[T], s Snapshot[T]) {
	for {
		select {
		case ch <- s:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
