// Package event publishes shop domain events to Kafka.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MyZenaa/pgpbl-jamubae/internal/domain"
	pkgkafka "github.com/MyZenaa/pgpbl-jamubae/pkg/kafka"
)

// Kafka topics for cart and order domain events.
var (
	TopicCartUpdated        = pkgkafka.Topic("cart", "updated")
	TopicCartCleared        = pkgkafka.Topic("cart", "cleared")
	TopicOrderCreated       = pkgkafka.Topic("order", "created")
	TopicOrderUpdated       = pkgkafka.Topic("order", "updated")
	TopicOrderStatusChanged = pkgkafka.Topic("order", "status_changed")
	TopicOrderDeleted       = pkgkafka.Topic("order", "deleted")
)

// Aggregate type constants.
const (
	AggregateTypeCart  = "cart"
	AggregateTypeOrder = "order"
)

// The shop runs a single shared cart, so cart events carry a fixed aggregate ID.
const cartAggregateID = "cart"

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	Items     []CartItemData `json:"items"`
	ItemCount int            `json:"item_count"`
	Subtotal  int64          `json:"subtotal"`
}

// CartItemData is the item payload within cart events.
type CartItemData struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
}

// OrderData is the payload for order.created and order.updated events.
type OrderData struct {
	OrderID       string `json:"order_id"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	Method        string `json:"method"`
	Status        string `json:"status"`
	Subtotal      int64  `json:"subtotal"`
	ShippingCost  int64  `json:"shipping_cost"`
	GrandTotal    int64  `json:"grand_total"`
	ItemCount     int    `json:"item_count"`
}

// StatusChangedData is the payload for an order.status_changed event.
type StatusChangedData struct {
	OrderID string `json:"order_id"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// DeletedData is the payload for an order.deleted event.
type DeletedData struct {
	OrderID string `json:"order_id"`
}

// Producer publishes shop domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates an event producer for the shop service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// CartUpdated publishes a cart.updated event with the full cart contents.
func (p *Producer) CartUpdated(ctx context.Context, items []domain.LineItem) error {
	payload := CartUpdatedData{
		Items:    make([]CartItemData, len(items)),
		Subtotal: domain.ComputeSubtotal(items),
	}
	for i, item := range items {
		payload.Items[i] = CartItemData{
			ProductID: item.ID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
		}
		payload.ItemCount += item.Quantity
	}

	return p.publish(ctx, TopicCartUpdated, cartAggregateID, AggregateTypeCart, payload)
}

// CartCleared publishes a cart.cleared event.
func (p *Producer) CartCleared(ctx context.Context) error {
	return p.publish(ctx, TopicCartCleared, cartAggregateID, AggregateTypeCart, struct{}{})
}

// OrderCreated publishes an order.created event.
func (p *Producer) OrderCreated(ctx context.Context, order *domain.Order) error {
	return p.publish(ctx, TopicOrderCreated, order.ID, AggregateTypeOrder, orderData(order))
}

// OrderUpdated publishes an order.updated event after an edit.
func (p *Producer) OrderUpdated(ctx context.Context, order *domain.Order) error {
	return p.publish(ctx, TopicOrderUpdated, order.ID, AggregateTypeOrder, orderData(order))
}

// OrderStatusChanged publishes an order.status_changed event.
func (p *Producer) OrderStatusChanged(ctx context.Context, orderID string, from, to domain.Status) error {
	data := StatusChangedData{
		OrderID: orderID,
		From:    string(from),
		To:      string(to),
	}
	return p.publish(ctx, TopicOrderStatusChanged, orderID, AggregateTypeOrder, data)
}

// OrderDeleted publishes an order.deleted event.
func (p *Producer) OrderDeleted(ctx context.Context, orderID string) error {
	return p.publish(ctx, TopicOrderDeleted, orderID, AggregateTypeOrder, DeletedData{OrderID: orderID})
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published domain event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)

	return nil
}

func orderData(order *domain.Order) OrderData {
	itemCount := 0
	for _, item := range order.Items {
		itemCount += item.Quantity
	}

	return OrderData{
		OrderID:       order.ID,
		CustomerName:  order.CustomerName,
		CustomerPhone: order.CustomerPhone,
		Method:        string(order.Fulfillment.Method),
		Status:        string(order.Status),
		Subtotal:      order.Subtotal,
		ShippingCost:  order.Fulfillment.ShippingCost(),
		GrandTotal:    order.GrandTotal(),
		ItemCount:     itemCount,
	}
}
