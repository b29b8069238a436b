// Package memory provides an in-process KeyedStore used by tests and local
// development. It honors the same ordering contract as the redis store:
// per-directory insertion order and commit-ordered snapshots.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/MyZenaa/pgpbl-jamubae/internal/store"
	"github.com/MyZenaa/pgpbl-jamubae/internal/store/dispatch"
)

// Store is a mutex-guarded map with a per-directory insertion index.
type Store struct {
	mu         sync.Mutex
	values     map[string][]byte
	order      map[string][]string // directory -> keys in insertion order
	dispatcher *dispatch.Dispatcher
	closed     bool
}

// New creates an empty store.
func New(logger *slog.Logger) *Store {
	return &Store{
		values:     make(map[string][]byte),
		order:      make(map[string][]string),
		dispatcher: dispatch.New(logger),
	}
}

// Get returns the raw value at key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.values[key]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", key, store.ErrKeyNotFound)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Set writes the JSON encoding of value at key.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	s.setLocked(key, data)
	s.notifyLocked(key)
	return nil
}

// Update merges fields into the existing document at key.
func (s *Store) Update(ctx context.Context, key string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	data, ok := s.values[key]
	if !ok {
		return fmt.Errorf("update %s: %w", key, store.ErrKeyNotFound)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("unmarshal %s: %w", key, err)
	}
	for k, v := range fields {
		doc[k] = v
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}

	s.values[key] = merged
	s.notifyLocked(key)
	return nil
}

// Remove deletes key. Absent keys are a no-op.
func (s *Store) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	if _, ok := s.values[key]; !ok {
		return nil
	}

	delete(s.values, key)
	dir := dirOf(key)
	keys := s.order[dir]
	for i, k := range keys {
		if k == key {
			s.order[dir] = append(keys[:i], keys[i+1:]...)
			break
		}
	}

	s.notifyLocked(key)
	return nil
}

// List returns all entries under prefix in insertion order.
func (s *Store) List(ctx context.Context, prefix string) ([]store.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(prefix), nil
}

// CreateWithGeneratedID writes value under a fresh ID below prefix.
func (s *Store) CreateWithGeneratedID(ctx context.Context, prefix string, value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", prefix, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", store.ErrClosed
	}

	id := uuid.New().String()
	key := prefix + "/" + id
	s.setLocked(key, data)
	s.notifyLocked(key)
	return id, nil
}

// Subscribe registers fn for snapshots of prefix. The initial snapshot is
// taken under the commit lock, pinning the subscription into commit order.
func (s *Store) Subscribe(prefix string, fn store.SnapshotFunc) (store.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	return s.dispatcher.Subscribe(prefix, fn, s.listLocked(prefix)), nil
}

// Close tears down the dispatcher. Further mutations fail with ErrClosed.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.dispatcher.Close()
}

func (s *Store) setLocked(key string, data []byte) {
	if _, exists := s.values[key]; !exists {
		dir := dirOf(key)
		s.order[dir] = append(s.order[dir], key)
	}
	s.values[key] = data
}

func (s *Store) listLocked(prefix string) []store.Entry {
	// Exact-key prefix: a single document subscription.
	if data, ok := s.values[prefix]; ok {
		value := make([]byte, len(data))
		copy(value, data)
		return []store.Entry{{Key: prefix, Value: value}}
	}

	keys := s.order[prefix]
	entries := make([]store.Entry, 0, len(keys))
	for _, k := range keys {
		data := s.values[k]
		value := make([]byte, len(data))
		copy(value, data)
		entries = append(entries, store.Entry{Key: k, Value: value})
	}
	return entries
}

func (s *Store) notifyLocked(key string) {
	s.dispatcher.Notify(key, s.listLocked)
}

// dirOf returns the directory a key lives in ("cart/jamu-1" -> "cart").
func dirOf(key string) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '/' {
			return key[:i]
		}
	}
	return ""
}
