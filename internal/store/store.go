// Package store defines the keyed document store the cart and order state
// live in. Keys are slash-delimited paths ("cart/<productID>",
// "orders/<orderID>"); values are JSON documents. Writes are last-write-wins
// and there are no cross-key transactions.
package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrKeyNotFound is returned when a key does not exist.
	ErrKeyNotFound = errors.New("store: key not found")

	// ErrUnavailable wraps transient backend failures. Operations that fail
	// with it may be retried verbatim.
	ErrUnavailable = errors.New("store: unavailable")

	// ErrClosed is returned when the store has been shut down.
	ErrClosed = errors.New("store: closed")
)

// Unavailable wraps a backend error so callers can match ErrUnavailable while
// keeping the cause.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// Entry is a key together with its JSON-encoded value.
type Entry struct {
	Key   string
	Value []byte
}

// SnapshotFunc receives the full contents under a subscribed prefix, in
// insertion order. It is invoked once on registration and again after every
// committed mutation under the prefix, in commit order.
type SnapshotFunc func(entries []Entry)

// Subscription is a live registration with the store's dispatcher.
// Unsubscribe is idempotent and safe after the store is closed.
type Subscription interface {
	Unsubscribe()
}

// KeyedStore is the remote state tree. Implementations guarantee per-key
// notification ordering; cross-key ordering is not guaranteed.
type KeyedStore interface {
	// Get returns the raw value at key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes the JSON encoding of value at key, creating or replacing it.
	// New keys are appended to their directory's ordering.
	Set(ctx context.Context, key string, value any) error

	// Update merges the given fields into the existing document at key.
	// Missing key returns ErrKeyNotFound; no partial document is created.
	Update(ctx context.Context, key string, fields map[string]any) error

	// Remove deletes key. Removing an absent key is a no-op.
	Remove(ctx context.Context, key string) error

	// List returns all entries under prefix in insertion order.
	List(ctx context.Context, prefix string) ([]Entry, error)

	// CreateWithGeneratedID writes value under a fresh store-generated ID
	// below prefix and returns the ID.
	CreateWithGeneratedID(ctx context.Context, prefix string, value any) (string, error)

	// Subscribe registers fn for snapshots of prefix. The current snapshot is
	// delivered immediately.
	Subscribe(prefix string, fn SnapshotFunc) (Subscription, error)
}

// MatchesPrefix reports whether key lives at or under prefix. A subscription
// to "orders" sees "orders/abc"; a subscription to "orders/abc" sees only
// that document.
func MatchesPrefix(key, prefix string) bool {
	if key == prefix {
		return true
	}
	return len(key) > len(prefix) && key[:len(prefix)] == prefix && key[len(prefix)] == '/'
}
