// Package order implements checkout and the order lifecycle over the keyed
// store.
package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MyZenaa/pgpbl-jamubae/internal/domain"
	"github.com/MyZenaa/pgpbl-jamubae/internal/geo"
	"github.com/MyZenaa/pgpbl-jamubae/internal/store"
	apperrors "github.com/MyZenaa/pgpbl-jamubae/pkg/errors"
)

// KeyPrefix is the store directory orders live under.
const KeyPrefix = "orders"

// Checkout validation failures, in the order they are checked.
var (
	ErrMissingName     = apperrors.InvalidInput("customer name is required")
	ErrMissingPhone    = apperrors.InvalidInput("customer phone is required")
	ErrEmptyCart       = apperrors.InvalidInput("cart is empty")
	ErrMissingAddress  = apperrors.InvalidInput("delivery address is required")
	ErrMissingLocation = apperrors.InvalidInput("delivery location is required")

	// ErrOrderLocked rejects edits once an order has shipped.
	ErrOrderLocked = apperrors.Conflict("order can no longer be edited")
)

// Config carries the store identity used for pickup orders and shipping
// quotes.
type Config struct {
	StoreName         string
	Origin            geo.Coordinate
	ShippingRatePerKm int64
}

// Publisher emits order domain events. Event failures never fail the write.
type Publisher interface {
	OrderCreated(ctx context.Context, order *domain.Order) error
	OrderUpdated(ctx context.Context, order *domain.Order) error
	OrderStatusChanged(ctx context.Context, orderID string, from, to domain.Status) error
	OrderDeleted(ctx context.Context, orderID string) error
}

// Carts is the slice of the cart service checkout needs.
type Carts interface {
	Items(ctx context.Context) ([]domain.LineItem, error)
	Clear(ctx context.Context) error
}

// CheckoutInput holds the customer form submitted at checkout.
type CheckoutInput struct {
	CustomerName  string         `json:"customer_name"`
	CustomerPhone string         `json:"customer_phone"`
	Method        domain.Method  `json:"method"`
	Address       string         `json:"address"`
	Coordinate    geo.Coordinate `json:"coordinate"`
	Note          string         `json:"note"`
}

// EditInput replaces the editable content of an order. The whole form is
// resubmitted, so every field is the new value.
type EditInput struct {
	CustomerName  string            `json:"customer_name"`
	CustomerPhone string            `json:"customer_phone"`
	Items         []domain.LineItem `json:"items"`
	Method        domain.Method     `json:"method"`
	Address       string            `json:"address"`
	Coordinate    geo.Coordinate    `json:"coordinate"`
	Note          string            `json:"note"`
}

// Service implements checkout and order lifecycle operations.
type Service struct {
	store    store.KeyedStore
	carts    Carts
	producer Publisher
	cfg      Config
	logger   *slog.Logger
}

// NewService creates a new order service.
func NewService(st store.KeyedStore, carts Carts, producer Publisher, cfg Config, logger *slog.Logger) *Service {
	return &Service{
		store:    st,
		carts:    carts,
		producer: producer,
		cfg:      cfg,
		logger:   logger,
	}
}

// Checkout validates the form, snapshots the cart into a new pending order,
// and clears the cart. A clear failure leaves the order in place; the next
// reconcile pass finishes the job.
func (s *Service) Checkout(ctx context.Context, input CheckoutInput) (*domain.Order, error) {
	if strings.TrimSpace(input.CustomerName) == "" {
		return nil, ErrMissingName
	}
	if strings.TrimSpace(input.CustomerPhone) == "" {
		return nil, ErrMissingPhone
	}

	items, err := s.carts.Items(ctx)
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	fulfillment, err := s.buildFulfillment(input.Method, input.Address, input.Coordinate)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := &domain.Order{
		CustomerName:  strings.TrimSpace(input.CustomerName),
		CustomerPhone: strings.TrimSpace(input.CustomerPhone),
		Items:         domain.CloneItems(items),
		Subtotal:      domain.ComputeSubtotal(items),
		Fulfillment:   fulfillment,
		Status:        domain.StatusPending,
		Note:          input.Note,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	id, err := s.store.CreateWithGeneratedID(ctx, KeyPrefix, order)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	order.ID = id

	if err := s.carts.Clear(ctx); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear cart after checkout",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
	}

	if err := s.producer.OrderCreated(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.created event",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order placed",
		slog.String("order_id", id),
		slog.String("method", string(order.Fulfillment.Method)),
		slog.Int64("grand_total", order.GrandTotal()),
	)

	return order, nil
}

// Get returns one order by ID.
func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	data, err := s.store.Get(ctx, KeyPrefix+"/"+id)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return decodeOrder(KeyPrefix+"/"+id, data)
}

// List returns all orders in creation order.
func (s *Service) List(ctx context.Context) ([]domain.Order, error) {
	entries, err := s.store.List(ctx, KeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return DecodeOrders(entries)
}

// Advance moves the order to its next stage. Completed orders are left
// untouched and returned as is.
func (s *Service) Advance(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if order.Status.Terminal() {
		return order, nil
	}

	from := order.Status
	to := from.Next()
	now := time.Now().UTC()

	err = s.store.Update(ctx, KeyPrefix+"/"+id, map[string]any{
		"status":     to,
		"updated_at": now,
	})
	if err != nil {
		return nil, fmt.Errorf("advance order: %w", err)
	}
	order.Status = to
	order.UpdatedAt = now

	if err := s.producer.OrderStatusChanged(ctx, id, from, to); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.status_changed event",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order advanced",
		slog.String("order_id", id),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)

	return order, nil
}

// Edit replaces the content of an order that has not shipped yet. Subtotal
// and the shipping quote are recomputed from the submitted form, never
// trusted from it.
func (s *Service) Edit(ctx context.Context, id string, input EditInput) (*domain.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.Editable() {
		return nil, ErrOrderLocked
	}

	if strings.TrimSpace(input.CustomerName) == "" {
		return nil, ErrMissingName
	}
	if strings.TrimSpace(input.CustomerPhone) == "" {
		return nil, ErrMissingPhone
	}
	if len(input.Items) == 0 {
		return nil, ErrEmptyCart
	}

	fulfillment, err := s.buildFulfillment(input.Method, input.Address, input.Coordinate)
	if err != nil {
		return nil, err
	}

	order.CustomerName = strings.TrimSpace(input.CustomerName)
	order.CustomerPhone = strings.TrimSpace(input.CustomerPhone)
	order.Items = domain.CloneItems(input.Items)
	order.Subtotal = domain.ComputeSubtotal(input.Items)
	order.Fulfillment = fulfillment
	order.Note = input.Note
	order.UpdatedAt = time.Now().UTC()

	if err := s.store.Set(ctx, KeyPrefix+"/"+id, order); err != nil {
		return nil, fmt.Errorf("save edited order: %w", err)
	}

	if err := s.producer.OrderUpdated(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.updated event",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order edited",
		slog.String("order_id", id),
		slog.Int64("grand_total", order.GrandTotal()),
	)

	return order, nil
}

// Delete removes an order.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	if err := s.store.Remove(ctx, KeyPrefix+"/"+id); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	if err := s.producer.OrderDeleted(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.deleted event",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order deleted",
		slog.String("order_id", id),
	)

	return nil
}

// Watch streams one order to fn. After a delete fn receives nil.
func (s *Service) Watch(id string, fn func(*domain.Order)) (store.Subscription, error) {
	key := KeyPrefix + "/" + id
	return s.store.Subscribe(key, func(entries []store.Entry) {
		if len(entries) == 0 {
			fn(nil)
			return
		}
		order, err := decodeOrder(entries[0].Key, entries[0].Value)
		if err != nil {
			s.logger.Error("failed to decode order snapshot",
				slog.String("order_id", id),
				slog.String("error", err.Error()),
			)
			return
		}
		fn(order)
	})
}

// WatchAll streams the full order list to fn.
func (s *Service) WatchAll(fn func([]domain.Order)) (store.Subscription, error) {
	return s.store.Subscribe(KeyPrefix, func(entries []store.Entry) {
		orders, err := DecodeOrders(entries)
		if err != nil {
			s.logger.Error("failed to decode orders snapshot",
				slog.String("error", err.Error()),
			)
			return
		}
		fn(orders)
	})
}

func (s *Service) buildFulfillment(method domain.Method, address string, dest geo.Coordinate) (domain.Fulfillment, error) {
	switch method {
	case domain.MethodDelivery:
		if strings.TrimSpace(address) == "" {
			return domain.Fulfillment{}, ErrMissingAddress
		}
		if dest.IsZero() {
			return domain.Fulfillment{}, ErrMissingLocation
		}
		quote := geo.ComputeShipping(s.cfg.Origin, dest, s.cfg.ShippingRatePerKm)
		return domain.Fulfillment{
			Method: domain.MethodDelivery,
			Delivery: &domain.Delivery{
				Address:      strings.TrimSpace(address),
				Coordinate:   dest,
				DistanceKm:   quote.DistanceKm,
				ShippingCost: quote.Cost,
			},
		}, nil

	default:
		// Anything that is not delivery is a pickup at the store counter.
		return domain.Fulfillment{
			Method: domain.MethodPickup,
			Pickup: &domain.Pickup{
				StoreName:       s.cfg.StoreName,
				StoreCoordinate: s.cfg.Origin,
			},
		}, nil
	}
}

// DecodeOrders converts raw store entries into orders.
func DecodeOrders(entries []store.Entry) ([]domain.Order, error) {
	orders := make([]domain.Order, 0, len(entries))
	for _, entry := range entries {
		order, err := decodeOrder(entry.Key, entry.Value)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, nil
}

// decodeOrder unmarshals a stored order. The ID comes from the key, and a
// document written before the status field existed reads as pending.
func decodeOrder(key string, data []byte) (*domain.Order, error) {
	var order domain.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("decode order %s: %w", key, err)
	}

	if i := strings.LastIndexByte(key, '/'); i >= 0 {
		order.ID = key[i+1:]
	} else {
		order.ID = key
	}
	if order.Status == "" {
		order.Status = domain.StatusPending
	}
	return &order, nil
}
