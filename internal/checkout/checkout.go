// Package checkout turns the active cart into a payable order. The flow is
// a short compensated pipeline: validate everything locally, persist the
// delivery details, then ask the collaborator to open a payment intent. A
// failure at any point leaves the order a mutable cart with nothing staged.
package checkout

import (
	"context"
	"time"

	"github.com/bakehouse/storefront-go/internal/domain"
)

// MinLeadTime is the shortest notice the bakery accepts for a delivery slot.
const MinLeadTime = 3 * time.Hour

// Backend is the slice of the collaborator API checkout needs.
type Backend interface {
	Addresses(ctx context.Context) ([]domain.Address, error)
	SetDeliveryDetails(ctx context.Context, orderID, addressID int64, deliveryAt time.Time, notes string) (*domain.Order, error)
	InitiatePayment(ctx context.Context, orderID int64) (string, error)
}

// CartCache is the locally cached active-cart view. A successful checkout
// consumes the cart, so the cache is dropped and the next fetch returns the
// customer's next cart. May be nil when no view is held.
type CartCache interface {
	Reset()
}

// Service drives the checkout pipeline.
type Service struct {
	backend Backend
	carts   CartCache
	now     func() time.Time
}

func NewService(b Backend, carts CartCache) *Service {
	return &Service{backend: b, carts: carts, now: time.Now}
}

// Request carries the customer's checkout choices.
type Request struct {
	AddressID  int64
	DeliveryAt time.Time
	Notes      string
}

// Result is a successful checkout: the order now awaiting payment and the
// gateway URL the customer is redirected to.
type Result struct {
	Order      *domain.Order
	PaymentURL string
}

// Checkout validates the request, persists the delivery details on the cart
// and initiates payment. On success the order is PENDING_PAYMENT and the
// caller redirects to the returned URL; the final payment outcome arrives
// out of band and is observed through order tracking. On failure the cart is
// untouched and the customer can retry.
func (s *Service) Checkout(ctx context.Context, cart *domain.Cart, req Request) (*Result, error) {
	if len(cart.Items) == 0 {
		return nil, &domain.ValidationError{Field: "cart", Reason: "is empty"}
	}
	if cart.Status != domain.StatusCart {
		return nil, domain.ErrOrderNotMutable
	}
	if req.DeliveryAt.Before(s.now().Add(MinLeadTime)) {
		return nil, &domain.ValidationError{Field: "delivery_datetime", Reason: "needs at least 3 hours notice"}
	}
	if err := s.checkAddressOwnership(ctx, req.AddressID); err != nil {
		return nil, err
	}

	persist := &persistDeliveryStep{backend: s.backend, cart: cart, req: req}
	pay := &initiatePaymentStep{backend: s.backend, orderID: cart.ID}

	pipeline := &orchestrator{steps: []step{persist, pay}}
	if err := pipeline.run(ctx); err != nil {
		return nil, err
	}

	order := persist.persisted
	status, err := domain.Transition(order.Status, domain.StatusPendingPayment)
	if err != nil {
		return nil, err
	}
	order.Status = status
	order.StatusLog = append(order.StatusLog, domain.StatusLogEntry{
		Timestamp: s.now(),
		NewStatus: status,
		Actor:     domain.ActorCustomer,
	})
	cart.Status = status

	// The cart is consumed; whoever caches the active-cart view must not
	// keep serving this order as mutable.
	if s.carts != nil {
		s.carts.Reset()
	}

	return &Result{Order: order, PaymentURL: pay.paymentURL}, nil
}

// checkAddressOwnership confirms the chosen address is one of the
// customer's own. The collaborator enforces this too; checking here keeps a
// stale or forged id from staging anything.
func (s *Service) checkAddressOwnership(ctx context.Context, addressID int64) error {
	if addressID == 0 {
		return &domain.ValidationError{Field: "address_id", Reason: "is required"}
	}
	addrs, err := s.backend.Addresses(ctx)
	if err != nil {
		return err
	}
	for _, a := range addrs {
		if a.ID == addressID {
			return nil
		}
	}
	return &domain.ValidationError{Field: "address_id", Reason: "does not belong to the customer"}
}

// persistDeliveryStep writes the address, slot and notes onto the cart. Its
// compensation restores the cart's previous staging so a failed payment
// initiation leaves nothing behind.
type persistDeliveryStep struct {
	backend Backend
	cart    *domain.Cart
	req     Request

	prevAddressID  int64
	prevDeliveryAt *time.Time
	prevNotes      string
	persisted      *domain.Order
}

func (st *persistDeliveryStep) name() string { return "persist_delivery_details" }

func (st *persistDeliveryStep) execute(ctx context.Context) error {
	st.prevAddressID = st.cart.AddressID
	st.prevDeliveryAt = st.cart.DeliveryAt
	st.prevNotes = st.cart.Notes

	order, err := st.backend.SetDeliveryDetails(ctx, st.cart.ID, st.req.AddressID, st.req.DeliveryAt, st.req.Notes)
	if err != nil {
		return err
	}
	st.persisted = order

	st.cart.AddressID = st.req.AddressID
	at := st.req.DeliveryAt
	st.cart.DeliveryAt = &at
	st.cart.Notes = st.req.Notes
	return nil
}

func (st *persistDeliveryStep) compensate(ctx context.Context) error {
	st.cart.AddressID = st.prevAddressID
	st.cart.DeliveryAt = st.prevDeliveryAt
	st.cart.Notes = st.prevNotes
	return nil
}

// initiatePaymentStep opens the payment intent. It is the last step, so its
// compensation has nothing to undo.
type initiatePaymentStep struct {
	backend Backend
	orderID int64

	paymentURL string
}

func (st *initiatePaymentStep) name() string { return "initiate_payment" }

func (st *initiatePaymentStep) execute(ctx context.Context) error {
	url, err := st.backend.InitiatePayment(ctx, st.orderID)
	if err != nil {
		return err
	}
	st.paymentURL = url
	return nil
}

func (st *initiatePaymentStep) compensate(ctx context.Context) error { return nil }
