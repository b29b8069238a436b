// Package dispatch fans out store change snapshots to subscribers. Every
// subscriber owns a queue drained by its own goroutine, so a slow callback
// never blocks the store's write path or other subscribers, while delivery
// order for a given subscriber always matches commit order.
package dispatch

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/MyZenaa/pgpbl-jamubae/internal/store"
)

// Dispatcher is an explicit subscription registry keyed by handle.
type Dispatcher struct {
	mu     sync.Mutex
	subs   map[string]*subscriber
	closed bool
	wg     sync.WaitGroup
	logger *slog.Logger
}

// New creates an empty dispatcher.
func New(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		subs:   make(map[string]*subscriber),
		logger: logger,
	}
}

// Subscribe registers fn for snapshots of prefix and queues the provided
// initial snapshot as its first delivery. The caller computes initial under
// the same lock that serializes writes, which pins the subscription into
// commit order.
func (d *Dispatcher) Subscribe(prefix string, fn store.SnapshotFunc, initial []store.Entry) *Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return &Subscription{}
	}

	sub := newSubscriber(uuid.New().String(), prefix, fn)
	d.subs[sub.id] = sub
	sub.push(initial)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		sub.run()
	}()

	return &Subscription{d: d, id: sub.id}
}

// Notify is called by the store after committing a change to key. For each
// subscriber whose prefix covers the key, lister is invoked to produce a
// fresh snapshot of that prefix, which is queued for delivery. The store
// calls Notify while still holding its commit ordering, so per-key snapshots
// are queued in commit order.
func (d *Dispatcher) Notify(key string, lister func(prefix string) []store.Entry) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	for _, sub := range d.subs {
		if store.MatchesPrefix(key, sub.prefix) {
			sub.push(lister(sub.prefix))
		}
	}
}

// Len returns the number of live subscriptions.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs)
}

// Close tears down every subscriber and waits for queued snapshots to drain.
// Subscribe and Notify after Close are no-ops.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for id, sub := range d.subs {
		sub.stop()
		delete(d.subs, id)
	}
	d.mu.Unlock()

	d.wg.Wait()
	if d.logger != nil {
		d.logger.Debug("dispatcher closed")
	}
}

func (d *Dispatcher) unsubscribe(id string) {
	d.mu.Lock()
	sub, ok := d.subs[id]
	if ok {
		delete(d.subs, id)
	}
	d.mu.Unlock()

	if ok {
		sub.stop()
	}
}

// Subscription is a handle to one registered subscriber.
type Subscription struct {
	d    *Dispatcher
	id   string
	once sync.Once
}

// Unsubscribe removes the subscriber. It is idempotent; calling it twice or
// after the dispatcher is closed is a no-op.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		if s.d != nil {
			s.d.unsubscribe(s.id)
		}
	})
}

// subscriber owns an unbounded FIFO of pending snapshots drained by run().
type subscriber struct {
	id     string
	prefix string
	fn     store.SnapshotFunc

	mu     sync.Mutex
	cond   *sync.Cond
	queue  [][]store.Entry
	closed bool
}

func newSubscriber(id, prefix string, fn store.SnapshotFunc) *subscriber {
	s := &subscriber{id: id, prefix: prefix, fn: fn}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *subscriber) push(entries []store.Entry) {
	s.mu.Lock()
	if !s.closed {
		s.queue = append(s.queue, entries)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

func (s *subscriber) run() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.fn(next)
	}
}

// stop prevents further pushes; queued snapshots are still delivered before
// the drain goroutine exits.
func (s *subscriber) stop() {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
}
