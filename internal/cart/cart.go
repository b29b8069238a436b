// Package cart implements the shared shop cart on top of the keyed store.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MyZenaa/pgpbl-jamubae/internal/domain"
	"github.com/MyZenaa/pgpbl-jamubae/internal/store"
	apperrors "github.com/MyZenaa/pgpbl-jamubae/pkg/errors"
)

// KeyPrefix is the store directory the cart lives under.
const KeyPrefix = "cart"

// dedupWindow is how long a request ID suppresses a repeated upsert.
const dedupWindow = 30 * time.Second

// Publisher emits cart domain events. Event failures never fail the write.
type Publisher interface {
	CartUpdated(ctx context.Context, items []domain.LineItem) error
	CartCleared(ctx context.Context) error
}

// UpsertInput holds the parameters for adding a product to the cart.
type UpsertInput struct {
	ProductID string `json:"product_id" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Price     int64  `json:"price" validate:"gte=0"`
	Image     string `json:"image"`
	// RequestID deduplicates rapid repeats of the same tap.
	RequestID string `json:"request_id"`
}

// Service implements the business logic for cart operations.
type Service struct {
	store    store.KeyedStore
	producer Publisher
	logger   *slog.Logger

	dedupMu sync.Mutex
	dedup   map[string]time.Time
}

// NewService creates a new cart service.
func NewService(st store.KeyedStore, producer Publisher, logger *slog.Logger) *Service {
	return &Service{
		store:    st,
		producer: producer,
		logger:   logger,
		dedup:    make(map[string]time.Time),
	}
}

// Upsert adds a product to the cart. A product already present has its
// quantity incremented by one; a new product starts at quantity one.
func (s *Service) Upsert(ctx context.Context, input UpsertInput) error {
	if input.ProductID == "" {
		return apperrors.InvalidInput("product id is required")
	}
	if input.Name == "" {
		return apperrors.InvalidInput("product name is required")
	}
	if input.Price < 0 {
		return apperrors.InvalidInput("price must not be negative")
	}

	if input.RequestID != "" && s.seenRecently(input.RequestID) {
		s.logger.DebugContext(ctx, "duplicate upsert suppressed",
			slog.String("product_id", input.ProductID),
			slog.String("request_id", input.RequestID),
		)
		return nil
	}

	key := KeyPrefix + "/" + input.ProductID
	now := time.Now().UTC()

	data, err := s.store.Get(ctx, key)
	switch {
	case err == nil:
		var existing domain.LineItem
		if err := json.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf("decode cart item %s: %w", input.ProductID, err)
		}
		if err := s.store.Update(ctx, key, map[string]any{
			"quantity":   existing.Quantity + 1,
			"updated_at": now,
		}); err != nil {
			return fmt.Errorf("increment cart item: %w", err)
		}

	case errors.Is(err, store.ErrKeyNotFound):
		item := domain.LineItem{
			ID:        input.ProductID,
			Name:      input.Name,
			Price:     input.Price,
			Quantity:  1,
			Image:     input.Image,
			UpdatedAt: now,
		}
		if err := s.store.Set(ctx, key, item); err != nil {
			return fmt.Errorf("add cart item: %w", err)
		}

	default:
		return fmt.Errorf("get cart item: %w", err)
	}

	s.publishUpdated(ctx)

	s.logger.InfoContext(ctx, "cart item upserted",
		slog.String("product_id", input.ProductID),
	)

	return nil
}

// SetQuantity sets the quantity of a product already in the cart. Zero or
// below removes the line. A product not in the cart is left alone.
func (s *Service) SetQuantity(ctx context.Context, productID string, quantity int) error {
	if productID == "" {
		return apperrors.InvalidInput("product id is required")
	}

	key := KeyPrefix + "/" + productID

	if quantity <= 0 {
		return s.Remove(ctx, productID)
	}

	err := s.store.Update(ctx, key, map[string]any{
		"quantity":   quantity,
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("set cart quantity: %w", err)
	}

	s.publishUpdated(ctx)

	s.logger.InfoContext(ctx, "cart quantity set",
		slog.String("product_id", productID),
		slog.Int("quantity", quantity),
	)

	return nil
}

// Remove deletes a product line from the cart. Removing an absent product is
// a no-op.
func (s *Service) Remove(ctx context.Context, productID string) error {
	if productID == "" {
		return apperrors.InvalidInput("product id is required")
	}

	if err := s.store.Remove(ctx, KeyPrefix+"/"+productID); err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}

	s.publishUpdated(ctx)

	s.logger.InfoContext(ctx, "cart item removed",
		slog.String("product_id", productID),
	)

	return nil
}

// Clear removes every line from the cart, one by one. A failure part way
// through leaves the remaining lines in place.
func (s *Service) Clear(ctx context.Context) error {
	items, err := s.Items(ctx)
	if err != nil {
		return err
	}

	for _, item := range items {
		if err := s.store.Remove(ctx, KeyPrefix+"/"+item.ID); err != nil {
			return fmt.Errorf("clear cart item %s: %w", item.ID, err)
		}
	}

	if err := s.producer.CartCleared(ctx); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "cart cleared",
		slog.Int("item_count", len(items)),
	)

	return nil
}

// Items returns the cart lines in insertion order.
func (s *Service) Items(ctx context.Context) ([]domain.LineItem, error) {
	entries, err := s.store.List(ctx, KeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	return DecodeItems(entries)
}

// Total returns the cart subtotal, recomputed from the current lines.
func (s *Service) Total(ctx context.Context) (int64, error) {
	items, err := s.Items(ctx)
	if err != nil {
		return 0, err
	}
	return domain.ComputeSubtotal(items), nil
}

// Subscribe streams cart snapshots to fn until the subscription is released.
// The current contents are delivered first.
func (s *Service) Subscribe(fn func([]domain.LineItem)) (store.Subscription, error) {
	return s.store.Subscribe(KeyPrefix, func(entries []store.Entry) {
		items, err := DecodeItems(entries)
		if err != nil {
			s.logger.Error("failed to decode cart snapshot",
				slog.String("error", err.Error()),
			)
			return
		}
		fn(items)
	})
}

// DecodeItems converts raw store entries into cart lines.
func DecodeItems(entries []store.Entry) ([]domain.LineItem, error) {
	items := make([]domain.LineItem, 0, len(entries))
	for _, entry := range entries {
		var item domain.LineItem
		if err := json.Unmarshal(entry.Value, &item); err != nil {
			return nil, fmt.Errorf("decode cart entry %s: %w", entry.Key, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Service) publishUpdated(ctx context.Context) {
	items, err := s.Items(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to read cart for event",
			slog.String("error", err.Error()),
		)
		return
	}
	if err := s.producer.CartUpdated(ctx, items); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("error", err.Error()),
		)
	}
}

// seenRecently records the request ID and reports whether it was already
// seen inside the dedup window.
func (s *Service) seenRecently(requestID string) bool {
	now := time.Now()

	s.dedupMu.Lock()
	defer s.dedupMu.Unlock()

	for id, seen := range s.dedup {
		if now.Sub(seen) > dedupWindow {
			delete(s.dedup, id)
		}
	}

	if seen, ok := s.dedup[requestID]; ok && now.Sub(seen) <= dedupWindow {
		return true
	}
	s.dedup[requestID] = now
	return false
}
