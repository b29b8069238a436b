package order

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Reconcile finishes checkouts that crashed between writing the order and
// clearing the cart. If the cart still has lines but an order was placed
// after the last cart write, the lines are leftovers and get cleared.
func (s *Service) Reconcile(ctx context.Context) error {
	items, err := s.carts.Items(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: read cart: %w", err)
	}
	if len(items) == 0 {
		return nil
	}

	orders, err := s.List(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: list orders: %w", err)
	}

	var lastOrder time.Time
	for _, o := range orders {
		if o.UpdatedAt.After(lastOrder) {
			lastOrder = o.UpdatedAt
		}
	}

	var lastCartWrite time.Time
	for _, item := range items {
		if item.UpdatedAt.After(lastCartWrite) {
			lastCartWrite = item.UpdatedAt
		}
	}

	if lastOrder.IsZero() || !lastOrder.After(lastCartWrite) {
		return nil
	}

	if err := s.carts.Clear(ctx); err != nil {
		return fmt.Errorf("reconcile: clear cart: %w", err)
	}

	s.logger.InfoContext(ctx, "cleared stale cart left by interrupted checkout",
		slog.Int("item_count", len(items)),
	)

	return nil
}
