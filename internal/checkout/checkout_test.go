package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bakehouse/storefront-go/internal/domain"
)

type fakeBackend struct {
	addresses []domain.Address

	persistErr error
	payErr     error
	paymentURL string

	persistCalls int
	payCalls     int
	persisted    Request
}

func (f *fakeBackend) Addresses(ctx context.Context) ([]domain.Address, error) {
	return f.addresses, nil
}

func (f *fakeBackend) SetDeliveryDetails(ctx context.Context, orderID, addressID int64, deliveryAt time.Time, notes string) (*domain.Order, error) {
	f.persistCalls++
	if f.persistErr != nil {
		return nil, f.persistErr
	}
	f.persisted = Request{AddressID: addressID, DeliveryAt: deliveryAt, Notes: notes}
	at := deliveryAt
	return &domain.Order{
		ID:         orderID,
		Status:     domain.StatusCart,
		AddressID:  addressID,
		DeliveryAt: &at,
		Notes:      notes,
		TotalPrice: decimal.NewFromInt(300000),
	}, nil
}

func (f *fakeBackend) InitiatePayment(ctx context.Context, orderID int64) (string, error) {
	f.payCalls++
	if f.payErr != nil {
		return "", f.payErr
	}
	return f.paymentURL, nil
}

func testCart() *domain.Cart {
	return &domain.Cart{Order: &domain.Order{
		ID:     7,
		Status: domain.StatusCart,
		Items:  []domain.OrderItem{{ID: 1, ProductID: 3, Quantity: 2, UnitPrice: decimal.NewFromInt(150000)}},
	}}
}

func newService(f *fakeBackend, now time.Time) *Service {
	svc := NewService(f, nil)
	svc.now = func() time.Time { return now }
	return svc
}

func TestCheckoutHappyPath(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	f := &fakeBackend{
		addresses:  []domain.Address{{ID: 12, Label: "home"}},
		paymentURL: "https://pay.example/intent/abc",
	}
	svc := newService(f, now)

	res, err := svc.Checkout(context.Background(), testCart(), Request{
		AddressID:  12,
		DeliveryAt: now.Add(4 * time.Hour),
		Notes:      "ring the bell",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/intent/abc", res.PaymentURL)
	assert.Equal(t, domain.StatusPendingPayment, res.Order.Status)
	require.NotEmpty(t, res.Order.StatusLog)
	last := res.Order.StatusLog[len(res.Order.StatusLog)-1]
	assert.Equal(t, domain.StatusPendingPayment, last.NewStatus)
	assert.Equal(t, domain.ActorCustomer, last.Actor)
	assert.Equal(t, "ring the bell", f.persisted.Notes)
}

func TestCheckoutRejectsShortNoticeBeforeAnyCall(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	f := &fakeBackend{addresses: []domain.Address{{ID: 12}}}
	svc := newService(f, now)

	_, err := svc.Checkout(context.Background(), testCart(), Request{
		AddressID:  12,
		DeliveryAt: now.Add(2 * time.Hour),
	})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "delivery_datetime", verr.Field)
	assert.Zero(t, f.persistCalls)
	assert.Zero(t, f.payCalls)
}

func TestCheckoutRejectsForeignAddress(t *testing.T) {
	now := time.Now()
	f := &fakeBackend{addresses: []domain.Address{{ID: 12}}}
	svc := newService(f, now)

	_, err := svc.Checkout(context.Background(), testCart(), Request{
		AddressID:  99,
		DeliveryAt: now.Add(4 * time.Hour),
	})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "address_id", verr.Field)
	assert.Zero(t, f.persistCalls)
}

func TestCheckoutRejectsEmptyCart(t *testing.T) {
	f := &fakeBackend{}
	svc := newService(f, time.Now())

	cart := testCart()
	cart.Items = nil
	_, err := svc.Checkout(context.Background(), cart, Request{AddressID: 12, DeliveryAt: time.Now().Add(4 * time.Hour)})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "cart", verr.Field)
}

type fakeCartCache struct{ resets int }

func (f *fakeCartCache) Reset() { f.resets++ }

func TestCheckoutConsumesCartView(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	f := &fakeBackend{
		addresses:  []domain.Address{{ID: 12}},
		paymentURL: "https://pay.example/intent/abc",
	}
	cache := &fakeCartCache{}
	svc := NewService(f, cache)
	svc.now = func() time.Time { return now }

	cart := testCart()
	_, err := svc.Checkout(context.Background(), cart, Request{AddressID: 12, DeliveryAt: now.Add(4 * time.Hour)})
	require.NoError(t, err)

	// The cached active-cart view is dropped and the consumed order can
	// never be checked out again.
	assert.Equal(t, 1, cache.resets)
	assert.Equal(t, domain.StatusPendingPayment, cart.Status)
	_, err = svc.Checkout(context.Background(), cart, Request{AddressID: 12, DeliveryAt: now.Add(4 * time.Hour)})
	assert.ErrorIs(t, err, domain.ErrOrderNotMutable)
}

func TestFailedCheckoutKeepsCartView(t *testing.T) {
	now := time.Now()
	f := &fakeBackend{
		addresses: []domain.Address{{ID: 12}},
		payErr:    &domain.NetworkError{Op: "pay", Err: context.DeadlineExceeded},
	}
	cache := &fakeCartCache{}
	svc := NewService(f, cache)
	svc.now = func() time.Time { return now }

	cart := testCart()
	_, err := svc.Checkout(context.Background(), cart, Request{AddressID: 12, DeliveryAt: now.Add(4 * time.Hour)})
	require.Error(t, err)
	assert.Zero(t, cache.resets)
	assert.Equal(t, domain.StatusCart, cart.Status)
}

func TestPaymentFailureCompensatesStagedDelivery(t *testing.T) {
	now := time.Now()
	f := &fakeBackend{
		addresses: []domain.Address{{ID: 12}},
		payErr:    &domain.NetworkError{Op: "pay", Err: context.DeadlineExceeded},
	}
	svc := newService(f, now)

	cart := testCart()
	_, err := svc.Checkout(context.Background(), cart, Request{
		AddressID:  12,
		DeliveryAt: now.Add(4 * time.Hour),
		Notes:      "leave at door",
	})
	require.Error(t, err)

	// The order is still a mutable cart with nothing staged on it.
	assert.Equal(t, domain.StatusCart, cart.Status)
	assert.Zero(t, cart.AddressID)
	assert.Nil(t, cart.DeliveryAt)
	assert.Empty(t, cart.Notes)
	assert.Equal(t, 1, f.persistCalls)
	assert.Equal(t, 1, f.payCalls)
}

func TestPaymentURLContractViolationRollsBack(t *testing.T) {
	now := time.Now()
	f := &fakeBackend{
		addresses: []domain.Address{{ID: 12}},
		payErr:    &domain.IntegrationError{Op: "initiate payment", Detail: "response carries no payment_url"},
	}
	svc := newService(f, now)

	cart := testCart()
	_, err := svc.Checkout(context.Background(), cart, Request{AddressID: 12, DeliveryAt: now.Add(4 * time.Hour)})
	var ierr *domain.IntegrationError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, domain.StatusCart, cart.Status)
	assert.Zero(t, cart.AddressID)
}
