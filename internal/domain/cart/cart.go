package cart

import (
	"github.com/bookverse/storefront/pkg/money"
)

// LineItem is one book-quantity pairing inside a cart.
//
// Invariants maintained by the Store: no two line items share a BookID, and
// Quantity is always >= 1.
type LineItem struct {
	BookID    string
	Title     string
	UnitPrice money.Amount
	Quantity  int
	ImageURL  string
}

// Snapshot is an immutable copy of cart state taken at a point in time.
// Checkout totals are computed from a snapshot so that ongoing cart mutation
// cannot change the amount presented to the payment gateway.
type Snapshot []LineItem

// ItemCount returns the total quantity across all line items.
func (s Snapshot) ItemCount() int {
	total := 0
	for _, item := range s {
		total += item.Quantity
	}
	return total
}

// Subtotal returns the sum of unit price times quantity across all line
// items. It is always recomputed, never cached.
func (s Snapshot) Subtotal() money.Amount {
	var sum money.Amount
	for _, item := range s {
		sum += item.UnitPrice.Mul(item.Quantity)
	}
	return sum
}

// Empty reports whether the snapshot has no line items.
func (s Snapshot) Empty() bool {
	return len(s) == 0
}
