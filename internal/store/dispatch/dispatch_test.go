package dispatch

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MyZenaa/pgpbl-jamubae/internal/store"
)

// collector records every snapshot it receives.
type collector struct {
	mu        sync.Mutex
	snapshots [][]store.Entry
}

func (c *collector) fn(entries []store.Entry) {
	c.mu.Lock()
	c.snapshots = append(c.snapshots, entries)
	c.mu.Unlock()
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.snapshots)
}

func (c *collector) last() []store.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.snapshots) == 0 {
		return nil
	}
	return c.snapshots[len(c.snapshots)-1]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func entriesOf(keys ...string) []store.Entry {
	entries := make([]store.Entry, len(keys))
	for i, k := range keys {
		entries[i] = store.Entry{Key: k, Value: []byte(`{}`)}
	}
	return entries
}

func TestSubscribe_DeliversInitialSnapshot(t *testing.T) {
	d := New(nil)
	defer d.Close()

	c := &collector{}
	d.Subscribe("cart", c.fn, entriesOf("cart/jamu-1"))

	waitFor(t, func() bool { return c.count() == 1 })
	require.Len(t, c.last(), 1)
	assert.Equal(t, "cart/jamu-1", c.last()[0].Key)
}

func TestNotify_DeliversInCommitOrder(t *testing.T) {
	d := New(nil)
	defer d.Close()

	c := &collector{}
	d.Subscribe("cart", c.fn, nil)

	for i := 0; i < 10; i++ {
		n := i + 1
		d.Notify("cart/jamu-1", func(prefix string) []store.Entry {
			entries := make([]store.Entry, n)
			for j := range entries {
				entries[j] = store.Entry{Key: fmt.Sprintf("cart/jamu-%d", j)}
			}
			return entries
		})
	}

	waitFor(t, func() bool { return c.count() == 11 })

	c.mu.Lock()
	defer c.mu.Unlock()
	// First delivery is the initial (empty) snapshot; each following one
	// must be strictly larger, proving commit order was preserved.
	for i := 1; i < len(c.snapshots); i++ {
		assert.Len(t, c.snapshots[i], i)
	}
}

func TestNotify_OnlyMatchingPrefix(t *testing.T) {
	d := New(nil)
	defer d.Close()

	cartSub := &collector{}
	orderSub := &collector{}
	d.Subscribe("cart", cartSub.fn, nil)
	d.Subscribe("orders", orderSub.fn, nil)

	d.Notify("cart/jamu-1", func(prefix string) []store.Entry {
		return entriesOf("cart/jamu-1")
	})

	waitFor(t, func() bool { return cartSub.count() == 2 })
	assert.Equal(t, 1, orderSub.count(), "order subscriber should only have its initial snapshot")
}

func TestNotify_SingleDocumentPrefix(t *testing.T) {
	d := New(nil)
	defer d.Close()

	c := &collector{}
	d.Subscribe("orders/abc", c.fn, nil)

	d.Notify("orders/abc", func(prefix string) []store.Entry {
		assert.Equal(t, "orders/abc", prefix)
		return entriesOf("orders/abc")
	})
	d.Notify("orders/xyz", func(prefix string) []store.Entry {
		t.Error("lister should not be called for a non-matching key")
		return nil
	})

	waitFor(t, func() bool { return c.count() == 2 })
}

func TestSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	d := New(nil)
	defer d.Close()

	slowRelease := make(chan struct{})
	var slowStarted sync.Once
	started := make(chan struct{})
	d.Subscribe("cart", func(entries []store.Entry) {
		slowStarted.Do(func() { close(started) })
		<-slowRelease
	}, nil)

	fast := &collector{}
	d.Subscribe("cart", fast.fn, nil)

	<-started
	for i := 0; i < 5; i++ {
		d.Notify("cart/jamu-1", func(prefix string) []store.Entry {
			return entriesOf("cart/jamu-1")
		})
	}

	// The fast subscriber drains all six snapshots while the slow one is
	// still stuck in its first callback.
	waitFor(t, func() bool { return fast.count() == 6 })
	close(slowRelease)
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	d := New(nil)
	defer d.Close()

	c := &collector{}
	sub := d.Subscribe("cart", c.fn, nil)
	waitFor(t, func() bool { return c.count() == 1 })

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 0, d.Len())

	d.Notify("cart/jamu-1", func(prefix string) []store.Entry {
		return entriesOf("cart/jamu-1")
	})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, c.count(), "no delivery after unsubscribe")
}

func TestClose_StopsDeliveryAndFurtherSubscribes(t *testing.T) {
	d := New(nil)

	c := &collector{}
	sub := d.Subscribe("cart", c.fn, nil)
	waitFor(t, func() bool { return c.count() == 1 })

	d.Close()

	// Unsubscribe after close is a no-op, not a panic.
	sub.Unsubscribe()

	// Subscribe after close returns an inert handle.
	after := d.Subscribe("cart", c.fn, entriesOf("cart/jamu-1"))
	after.Unsubscribe()
	assert.Equal(t, 0, d.Len())

	d.Notify("cart/jamu-1", func(prefix string) []store.Entry {
		t.Error("notify after close must not invoke the lister")
		return nil
	})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, c.count())
}

func TestClose_Idempotent(t *testing.T) {
	d := New(nil)
	d.Subscribe("cart", func([]store.Entry) {}, nil)
	d.Close()
	d.Close()
}
