// Package redis implements the KeyedStore on Redis. Documents are JSON
// strings, each directory keeps a list for insertion order, and every write
// publishes the changed key on a channel in the same pipeline, so a single
// consumer goroutine observes changes in commit order and feeds the
// dispatcher.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MyZenaa/pgpbl-jamubae/internal/store"
	"github.com/MyZenaa/pgpbl-jamubae/internal/store/dispatch"
)

const (
	docPrefix     = "jamubae:doc:"
	indexPrefix   = "jamubae:idx:"
	changeChannel = "jamubae:changes"
)

// Store is a Redis-backed keyed document store.
type Store struct {
	client     *redis.Client
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger

	cancel  context.CancelFunc
	pubsub  *redis.PubSub
	done    chan struct{}
	closeMu sync.Mutex
	closed  bool
}

// New creates the store and starts the change consumer.
func New(client *redis.Client, logger *slog.Logger) *Store {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Store{
		client:     client,
		dispatcher: dispatch.New(logger),
		logger:     logger,
		cancel:     cancel,
		pubsub:     client.Subscribe(ctx, changeChannel),
		done:       make(chan struct{}),
	}

	go s.consume(ctx)
	return s
}

// Get returns the raw value at key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, docPrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("get %s: %w", key, store.ErrKeyNotFound)
		}
		return nil, store.Unavailable("redis get "+key, err)
	}
	return data, nil
}

// Set writes the JSON encoding of value at key. New keys are appended to the
// directory index inside the same pipeline as the write and its change
// notice.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}

	exists, err := s.client.Exists(ctx, docPrefix+key).Result()
	if err != nil {
		return store.Unavailable("redis exists "+key, err)
	}

	return s.write(ctx, key, data, exists == 0)
}

// Update merges fields into the existing document at key.
func (s *Store) Update(ctx context.Context, key string, fields map[string]any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
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

	return s.write(ctx, key, merged, false)
}

// Remove deletes key and its index slot. Absent keys are a no-op, but the
// change notice is still published so subscribers converge.
func (s *Store) Remove(ctx context.Context, key string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, docPrefix+key)
	pipe.LRem(ctx, indexPrefix+dirOf(key), 0, key)
	pipe.Publish(ctx, changeChannel, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return store.Unavailable("redis remove "+key, err)
	}
	return nil
}

// List returns all entries under prefix in insertion order.
func (s *Store) List(ctx context.Context, prefix string) ([]store.Entry, error) {
	// Exact-key prefix: a single document subscription.
	if data, err := s.client.Get(ctx, docPrefix+prefix).Bytes(); err == nil {
		return []store.Entry{{Key: prefix, Value: data}}, nil
	} else if err != redis.Nil {
		return nil, store.Unavailable("redis get "+prefix, err)
	}

	keys, err := s.client.LRange(ctx, indexPrefix+prefix, 0, -1).Result()
	if err != nil {
		return nil, store.Unavailable("redis lrange "+prefix, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	docKeys := make([]string, len(keys))
	for i, k := range keys {
		docKeys[i] = docPrefix + k
	}
	values, err := s.client.MGet(ctx, docKeys...).Result()
	if err != nil {
		return nil, store.Unavailable("redis mget "+prefix, err)
	}

	entries := make([]store.Entry, 0, len(keys))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Index slot without a document: a concurrent delete won the
			// race. Skip it; the delete's own notice re-syncs subscribers.
			continue
		}
		entries = append(entries, store.Entry{Key: keys[i], Value: []byte(raw)})
	}
	return entries, nil
}

// CreateWithGeneratedID writes value under a fresh ID below prefix.
func (s *Store) CreateWithGeneratedID(ctx context.Context, prefix string, value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", prefix, err)
	}

	id := newID()
	key := prefix + "/" + id
	if err := s.write(ctx, key, data, true); err != nil {
		return "", err
	}
	return id, nil
}

// Subscribe registers fn for snapshots of prefix. The current snapshot is
// delivered first.
func (s *Store) Subscribe(prefix string, fn store.SnapshotFunc) (store.Subscription, error) {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	initial, err := s.List(context.Background(), prefix)
	if err != nil {
		return nil, err
	}
	return s.dispatcher.Subscribe(prefix, fn, initial), nil
}

// Close stops the change consumer and tears down all subscriptions.
func (s *Store) Close() {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return
	}
	s.closed = true
	s.closeMu.Unlock()

	s.cancel()
	_ = s.pubsub.Close()
	<-s.done
	s.dispatcher.Close()
}

func (s *Store) write(ctx context.Context, key string, data []byte, isNew bool) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, docPrefix+key, data, 0)
	if isNew {
		pipe.RPush(ctx, indexPrefix+dirOf(key), key)
	}
	pipe.Publish(ctx, changeChannel, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return store.Unavailable("redis set "+key, err)
	}
	return nil
}

// consume drains change notices and feeds the dispatcher. A single consumer
// keeps snapshot delivery in commit order per key.
func (s *Store) consume(ctx context.Context) {
	defer close(s.done)

	for msg := range s.pubsub.Channel() {
		key := msg.Payload
		s.dispatcher.Notify(key, func(prefix string) []store.Entry {
			entries, err := s.List(ctx, prefix)
			if err != nil {
				if s.logger != nil {
					s.logger.Error("snapshot after change failed",
						slog.String("prefix", prefix),
						slog.String("error", err.Error()),
					)
				}
				return nil
			}
			return entries
		})
	}
}

func newID() string {
	return uuid.NewString()
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
