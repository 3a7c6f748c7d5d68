// Package domain holds the storefront order model: the Order entity and its
// items, the status graph, and the error taxonomy shared by every component.
//
// An Order is one entity for its whole life. The same record is the
// customer's cart while Status == CART and a placed order afterwards; Kind
// makes that discriminant explicit so a placed order can never be treated as
// still mutable.
package domain

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Order number display format, carried over from the backend's convention:
// "#BAKE-<2000+id>".
const (
	orderNumberPrefix = "BAKE-"
	orderNumberBase   = 2000
)

// MaxItemNoteLen bounds per-item customization notes. The server stays
// authoritative; the client rejects longer notes before submission.
const MaxItemNoteLen = 50

// Kind is the tagged discriminant over an Order's double duty.
type Kind string

const (
	KindCart   Kind = "cart"
	KindPlaced Kind = "placed"
)

// Order is a customer order or shopping cart.
type Order struct {
	ID          int64
	Status      Status
	Items       []OrderItem
	AddressID   int64 // 0 until checkout persists one
	DeliveryAt  *time.Time
	Notes       string
	TotalPrice  decimal.Decimal
	DeliveryFee decimal.Decimal
	Deleted     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time

	StatusLog    []StatusLogEntry
	Transactions []Transaction
}

// Kind reports whether this order is still the customer's mutable cart.
func (o *Order) Kind() Kind {
	if o.Status == StatusCart {
		return KindCart
	}
	return KindPlaced
}

// Number renders the display order number, e.g. "#BAKE-2047".
func (o *Order) Number() string {
	return "#" + orderNumberPrefix + strconv.FormatInt(orderNumberBase+o.ID, 10)
}

// Item returns the item with the given id, or nil.
func (o *Order) Item(itemID int64) *OrderItem {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return &o.Items[i]
		}
	}
	return nil
}

// Recalculate rederives TotalPrice from the items plus the delivery fee.
// The total is never edited independently of item changes.
func (o *Order) Recalculate() {
	total := decimal.Zero
	for i := range o.Items {
		total = total.Add(o.Items[i].Subtotal())
	}
	o.TotalPrice = total.Add(o.DeliveryFee)
}

// Clone returns a deep copy of the order, used by optimistic commands to
// snapshot the last known-good state before a mutation.
func (o *Order) Clone() *Order {
	cp := *o
	cp.Items = append([]OrderItem(nil), o.Items...)
	cp.StatusLog = append([]StatusLogEntry(nil), o.StatusLog...)
	cp.Transactions = append([]Transaction(nil), o.Transactions...)
	if o.DeliveryAt != nil {
		at := *o.DeliveryAt
		cp.DeliveryAt = &at
	}
	return &cp
}

// Cart is the mutable view of an Order in CART status. Mutation APIs take a
// *Cart; everything else works on Order, so the type system keeps placed
// orders read-only.
type Cart struct {
	*Order
}

// AsCart narrows an order to its mutable cart view, or fails with
// ErrOrderNotMutable.
func (o *Order) AsCart() (*Cart, error) {
	if o.Status != StatusCart {
		return nil, ErrOrderNotMutable
	}
	return &Cart{Order: o}, nil
}

// OrderItem is one line of an order: a product variant at a quantity, with
// the unit price snapshotted at mutation time. UnitPrice is recomputed by the
// price engine on every cart mutation and frozen the instant the parent
// order leaves CART.
type OrderItem struct {
	ID        int64
	ProductID int64
	VariantID int64 // size variant; 0 when the product has no sizes
	FlavorID  int64 // 0 when the product has no flavors
	Quantity  int
	Notes     string
	UnitPrice decimal.Decimal
}

// Subtotal is quantity × unit price.
func (it *OrderItem) Subtotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// Address is a delivery address owned by a user. Carts reference an address
// by id only; the value is bound at checkout.
type Address struct {
	ID        int64
	Label     string
	Recipient string
	Line      string
	City      string
	Phone     string
}

// TransactionStatus is the outcome of one payment attempt.
type TransactionStatus string

const (
	TransactionPending TransactionStatus = "PENDING"
	TransactionSuccess TransactionStatus = "SUCCESS"
	TransactionFailed  TransactionStatus = "FAILED"
)

// Transaction is one payment attempt against an order.
type Transaction struct {
	ID         int64
	OrderID    int64
	Amount     decimal.Decimal
	Status     TransactionStatus
	GatewayRef string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// StatusLogEntry is one accepted transition in an order's append-only status
// history, ordered oldest-first. Entries are never mutated or removed.
type StatusLogEntry struct {
	Timestamp time.Time
	NewStatus Status
	Actor     Actor
	Note      string
}
