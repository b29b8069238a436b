package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MyZenaa/pgpbl-jamubae/internal/domain"
	"github.com/MyZenaa/pgpbl-jamubae/internal/store"
)

// applyTimeout bounds the database work done for one snapshot.
const applyTimeout = 10 * time.Second

// Watcher is the slice of the order service the mirror needs.
type Watcher interface {
	WatchAll(fn func([]domain.Order)) (store.Subscription, error)
}

// Mirror subscribes to the live order list and keeps the archive table in
// step: every snapshot upserts the current orders and deletes the ones that
// disappeared since the previous snapshot.
type Mirror struct {
	repo   *Repository
	orders Watcher
	logger *slog.Logger

	sub   store.Subscription
	known map[string]struct{}
}

// NewMirror creates an archive mirror. Call Start to begin following.
func NewMirror(repo *Repository, orders Watcher, logger *slog.Logger) *Mirror {
	return &Mirror{
		repo:   repo,
		orders: orders,
		logger: logger,
		known:  make(map[string]struct{}),
	}
}

// Start subscribes to the order list. Snapshots arrive on the dispatcher's
// goroutine, one at a time, so apply needs no locking of its own.
func (m *Mirror) Start() error {
	sub, err := m.orders.WatchAll(m.apply)
	if err != nil {
		return fmt.Errorf("subscribe archive mirror: %w", err)
	}
	m.sub = sub
	return nil
}

// Stop detaches the mirror from the order list.
func (m *Mirror) Stop() {
	if m.sub != nil {
		m.sub.Unsubscribe()
	}
}

func (m *Mirror) apply(orders []domain.Order) {
	ctx, cancel := context.WithTimeout(context.Background(), applyTimeout)
	defer cancel()

	current := make(map[string]struct{}, len(orders))
	for i := range orders {
		current[orders[i].ID] = struct{}{}
		if err := m.repo.UpsertOrder(ctx, &orders[i]); err != nil {
			m.logger.Error("failed to archive order",
				slog.String("order_id", orders[i].ID),
				slog.String("error", err.Error()),
			)
		}
	}

	for id := range m.known {
		if _, still := current[id]; still {
			continue
		}
		if err := m.repo.DeleteOrder(ctx, id); err != nil {
			m.logger.Error("failed to drop archived order",
				slog.String("order_id", id),
				slog.String("error", err.Error()),
			)
			// Keep it known so the delete is retried on the next snapshot.
			current[id] = struct{}{}
		}
	}

	m.known = current
}
