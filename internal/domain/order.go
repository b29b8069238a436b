package domain

import (
	"time"

	"github.com/MyZenaa/pgpbl-jamubae/internal/geo"
)

// Status is the order fulfillment stage. Orders move strictly forward:
// pending, processing, shipped, completed.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is one of the four known stages.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusCompleted:
		return true
	}
	return false
}

// Next returns the following stage. Completed is terminal and returns itself,
// so advancing a finished order is a no-op.
func (s Status) Next() Status {
	switch s {
	case StatusPending:
		return StatusProcessing
	case StatusProcessing:
		return StatusShipped
	case StatusShipped:
		return StatusCompleted
	default:
		return StatusCompleted
	}
}

// Terminal reports whether no further transition exists.
func (s Status) Terminal() bool {
	return s == StatusCompleted
}

// Editable reports whether order content may still be changed. Once an order
// has shipped its contents are locked.
func (s Status) Editable() bool {
	return s == StatusPending || s == StatusProcessing
}

// Method distinguishes how an order is handed to the customer.
type Method string

const (
	MethodPickup   Method = "pickup"
	MethodDelivery Method = "delivery"
)

// Pickup holds the store the customer collects from.
type Pickup struct {
	StoreName       string         `json:"store_name"`
	StoreCoordinate geo.Coordinate `json:"store_coordinate"`
}

// Delivery holds the destination and the shipping quote computed for it.
type Delivery struct {
	Address      string         `json:"address"`
	Coordinate   geo.Coordinate `json:"coordinate"`
	DistanceKm   float64        `json:"distance_km"`
	ShippingCost int64          `json:"shipping_cost"`
}

// Fulfillment is a tagged union: Method selects which of Pickup or Delivery
// is populated. Callers dispatch on Method, never on pointer presence.
type Fulfillment struct {
	Method   Method    `json:"method"`
	Pickup   *Pickup   `json:"pickup,omitempty"`
	Delivery *Delivery `json:"delivery,omitempty"`
}

// ShippingCost returns the delivery charge, zero for pickup orders.
func (f Fulfillment) ShippingCost() int64 {
	if f.Method == MethodDelivery && f.Delivery != nil {
		return f.Delivery.ShippingCost
	}
	return 0
}

// Order is a placed order. Items is a snapshot taken at checkout and never
// aliases the live cart. Subtotal is always the sum over its own Items.
type Order struct {
	ID            string      `json:"id"`
	CustomerName  string      `json:"customer_name"`
	CustomerPhone string      `json:"customer_phone"`
	Items         []LineItem  `json:"items"`
	Subtotal      int64       `json:"subtotal"`
	Fulfillment   Fulfillment `json:"fulfillment"`
	Status        Status      `json:"status"`
	Note          string      `json:"note,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// GrandTotal is the subtotal plus shipping for delivery orders.
func (o *Order) GrandTotal() int64 {
	return o.Subtotal + o.Fulfillment.ShippingCost()
}
