package domain

import "time"

// LineItem is a single product entry in the cart or in an order snapshot.
// Price is in whole Rupiah. Quantity is at least 1 while the entry exists;
// entries with quantity zero or below are removed, never stored.
type LineItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"`
	Quantity  int       `json:"quantity"`
	Image     string    `json:"image,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ComputeSubtotal sums price times quantity over the given items.
func ComputeSubtotal(items []LineItem) int64 {
	var total int64
	for _, item := range items {
		total += item.Price * int64(item.Quantity)
	}
	return total
}

// CloneItems returns a deep copy so order snapshots never alias live cart
// slices.
func CloneItems(items []LineItem) []LineItem {
	cloned := make([]LineItem, len(items))
	copy(cloned, items)
	return cloned
}
