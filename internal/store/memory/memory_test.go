package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MyZenaa/pgpbl-jamubae/internal/store"
)

type testDoc struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

func TestGet_MissingKey(t *testing.T) {
	s := New(nil)
	defer s.Close()

	_, err := s.Get(context.Background(), "cart/nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrKeyNotFound))
}

func TestSet_Get_RoundTrip(t *testing.T) {
	s := New(nil)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "cart/jamu-1", testDoc{Name: "Kunyit Asam", Quantity: 1}))

	data, err := s.Get(ctx, "cart/jamu-1")
	require.NoError(t, err)

	var doc testDoc
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "Kunyit Asam", doc.Name)
	assert.Equal(t, 1, doc.Quantity)
}

func TestUpdate_MergesFields(t *testing.T) {
	s := New(nil)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "cart/jamu-1", testDoc{Name: "Kunyit Asam", Quantity: 1}))
	require.NoError(t, s.Update(ctx, "cart/jamu-1", map[string]any{"quantity": 3}))

	data, err := s.Get(ctx, "cart/jamu-1")
	require.NoError(t, err)

	var doc testDoc
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "Kunyit Asam", doc.Name, "unmentioned fields survive a merge")
	assert.Equal(t, 3, doc.Quantity)
}

func TestUpdate_MissingKey(t *testing.T) {
	s := New(nil)
	defer s.Close()

	err := s.Update(context.Background(), "cart/nope", map[string]any{"quantity": 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrKeyNotFound))
}

func TestRemove_Idempotent(t *testing.T) {
	s := New(nil)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "cart/jamu-1", testDoc{Quantity: 1}))
	require.NoError(t, s.Remove(ctx, "cart/jamu-1"))
	require.NoError(t, s.Remove(ctx, "cart/jamu-1"))

	_, err := s.Get(ctx, "cart/jamu-1")
	assert.True(t, errors.Is(err, store.ErrKeyNotFound))
}

func TestList_PreservesInsertionOrder(t *testing.T) {
	s := New(nil)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "cart/jamu-c", testDoc{Quantity: 1}))
	require.NoError(t, s.Set(ctx, "cart/jamu-a", testDoc{Quantity: 1}))
	require.NoError(t, s.Set(ctx, "cart/jamu-b", testDoc{Quantity: 1}))

	// Re-setting an existing key must keep its position.
	require.NoError(t, s.Set(ctx, "cart/jamu-a", testDoc{Quantity: 5}))

	entries, err := s.List(ctx, "cart")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "cart/jamu-c", entries[0].Key)
	assert.Equal(t, "cart/jamu-a", entries[1].Key)
	assert.Equal(t, "cart/jamu-b", entries[2].Key)
}

func TestList_EmptyPrefix(t *testing.T) {
	s := New(nil)
	defer s.Close()

	entries, err := s.List(context.Background(), "cart")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCreateWithGeneratedID(t *testing.T) {
	s := New(nil)
	defer s.Close()

	ctx := context.Background()
	id1, err := s.CreateWithGeneratedID(ctx, "orders", testDoc{Name: "first"})
	require.NoError(t, err)
	id2, err := s.CreateWithGeneratedID(ctx, "orders", testDoc{Name: "second"})
	require.NoError(t, err)

	assert.NotEmpty(t, id1)
	assert.NotEqual(t, id1, id2)

	entries, err := s.List(ctx, "orders")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "orders/"+id1, entries[0].Key)
	assert.Equal(t, "orders/"+id2, entries[1].Key)
}

func TestSubscribe_InitialAndMutationSnapshots(t *testing.T) {
	s := New(nil)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "cart/jamu-1", testDoc{Quantity: 1}))

	var mu sync.Mutex
	var snapshots [][]store.Entry
	sub, err := s.Subscribe("cart", func(entries []store.Entry) {
		mu.Lock()
		snapshots = append(snapshots, entries)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, s.Set(ctx, "cart/jamu-2", testDoc{Quantity: 1}))
	require.NoError(t, s.Remove(ctx, "cart/jamu-1"))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(snapshots) == 3
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, snapshots[0], 1, "initial snapshot")
	assert.Len(t, snapshots[1], 2, "after insert")
	assert.Len(t, snapshots[2], 1, "after remove")
	assert.Equal(t, "cart/jamu-2", snapshots[2][0].Key)
}

func TestSubscribe_SingleDocument(t *testing.T) {
	s := New(nil)
	defer s.Close()

	ctx := context.Background()
	id, err := s.CreateWithGeneratedID(ctx, "orders", testDoc{Name: "order"})
	require.NoError(t, err)

	var mu sync.Mutex
	var snapshots [][]store.Entry
	sub, err := s.Subscribe("orders/"+id, func(entries []store.Entry) {
		mu.Lock()
		snapshots = append(snapshots, entries)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, s.Update(ctx, "orders/"+id, map[string]any{"name": "renamed"}))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(snapshots) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, snapshots[1], 1)

	var doc testDoc
	require.NoError(t, json.Unmarshal(snapshots[1][0].Value, &doc))
	assert.Equal(t, "renamed", doc.Name)
}

func TestClose_RejectsMutations(t *testing.T) {
	s := New(nil)
	s.Close()

	err := s.Set(context.Background(), "cart/jamu-1", testDoc{})
	assert.True(t, errors.Is(err, store.ErrClosed))

	_, err = s.Subscribe("cart", func([]store.Entry) {})
	assert.True(t, errors.Is(err, store.ErrClosed))
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
