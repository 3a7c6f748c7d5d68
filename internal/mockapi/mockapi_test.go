package mockapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bakehouse/storefront-go/internal/backend"
	"github.com/bakehouse/storefront-go/internal/cart"
	"github.com/bakehouse/storefront-go/internal/checkout"
	"github.com/bakehouse/storefront-go/internal/domain"
	"github.com/bakehouse/storefront-go/internal/gateway"
)

// harness runs the real client stack against the mock backend.
type harness struct {
	store   *Store
	client  *backend.Client
	session *gateway.Session
	baseURL string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := NewStore()
	srv := httptest.NewServer(NewRouter(NewHandler(store)))
	t.Cleanup(srv.Close)

	session, err := gateway.NewSession(context.Background(), srv.URL, gateway.NewMemoryStore(), srv.Client())
	require.NoError(t, err)
	require.NoError(t, session.Login(context.Background(), "demo", "demo"))

	return &harness{
		store:   store,
		client:  backend.New(srv.URL, session, 5*time.Second),
		session: session,
		baseURL: srv.URL,
	}
}

// postJSON fires a raw authorized request at the mock, used for the
// endpoints the storefront itself never calls (the simulated gateway
// webhook).
func postJSON(t *testing.T, h *harness, path string, body, out any) error {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, h.baseURL+path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+h.session.AccessToken())
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return json.NewDecoder(resp.Body).Decode(out)
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

func TestFullPurchaseFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	carts := cart.NewService(h.client)
	c, err := carts.AddItem(ctx, cart.AddItemInput{ProductID: 3, VariantID: 32, Quantity: 2})
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	// 150000 base + 50000 modifier, times two.
	assert.True(t, c.TotalPrice.Equal(decimal.NewFromInt(400000)), "total %s", c.TotalPrice)

	checkouts := checkout.NewService(h.client, carts)
	res, err := checkouts.Checkout(ctx, c, checkout.Request{
		AddressID:  12,
		DeliveryAt: time.Now().Add(5 * time.Hour),
		Notes:      "birthday candles please",
	})
	require.NoError(t, err)
	assert.Contains(t, res.PaymentURL, "https://pay.mock.local/intent/")
	assert.Equal(t, domain.StatusPendingPayment, res.Order.Status)

	// Gateway confirms out of band; the order becomes PROCESSING.
	var dto map[string]any
	err = postJSON(t, h, "/orders/"+itoa(res.Order.ID)+"/confirm-payment/", map[string]bool{"success": true}, &dto)
	require.NoError(t, err)

	order, err := h.client.Order(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, order.Status)
	require.Len(t, order.Transactions, 1)
	assert.Equal(t, domain.TransactionSuccess, order.Transactions[0].Status)
	require.Len(t, order.StatusLog, 2)
	assert.Equal(t, domain.ActorGateway, order.StatusLog[1].Actor)
}

func TestCheckoutReleasesActiveCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	carts := cart.NewService(h.client)
	c, err := carts.AddItem(ctx, cart.AddItemInput{ProductID: 3, Quantity: 1})
	require.NoError(t, err)

	res, err := checkout.NewService(h.client, carts).Checkout(ctx, c, checkout.Request{
		AddressID:  12,
		DeliveryAt: time.Now().Add(5 * time.Hour),
	})
	require.NoError(t, err)

	// The consumed order must not be served as the active cart anymore; the
	// next fetch returns a fresh, empty cart.
	active, err := carts.Active(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, res.Order.ID, active.ID)
	assert.Equal(t, domain.StatusCart, active.Status)
	assert.Empty(t, active.Items)
}

func TestFailedPaymentLeavesOrderAwaitingPayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	carts := cart.NewService(h.client)
	c, err := carts.AddItem(ctx, cart.AddItemInput{ProductID: 5, Quantity: 1})
	require.NoError(t, err)

	res, err := checkout.NewService(h.client, carts).Checkout(ctx, c, checkout.Request{
		AddressID:  12,
		DeliveryAt: time.Now().Add(5 * time.Hour),
	})
	require.NoError(t, err)

	var dto map[string]any
	require.NoError(t, postJSON(t, h, "/orders/"+itoa(res.Order.ID)+"/confirm-payment/", map[string]bool{"success": false}, &dto))

	order, err := h.client.Order(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingPayment, order.Status)
	require.Len(t, order.Transactions, 1)
	assert.Equal(t, domain.TransactionFailed, order.Transactions[0].Status)
}

func TestExpiredAccessTokenIsRefreshedTransparently(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.client.ActiveCart(ctx)
	require.NoError(t, err)

	h.store.ExpireAccess()

	// The next call hits a 401, refreshes once and succeeds.
	c, err := h.client.ActiveCart(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCart, c.Status)
}

func TestGatewayDeclinesOversizedIntent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	carts := cart.NewService(h.client)
	c, err := carts.AddItem(ctx, cart.AddItemInput{ProductID: 3, Quantity: 100})
	require.NoError(t, err)

	_, err = checkout.NewService(h.client, carts).Checkout(ctx, c, checkout.Request{
		AddressID:  12,
		DeliveryAt: time.Now().Add(5 * time.Hour),
	})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)

	// The order is still a mutable cart after the decline.
	fresh, err := h.client.ActiveCart(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCart, fresh.Status)
}

func TestReorderCopiesDeliveredOrderAtCurrentPrices(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	carts := cart.NewService(h.client)
	c, err := carts.AddItem(ctx, cart.AddItemInput{ProductID: 3, Quantity: 1})
	require.NoError(t, err)
	res, err := checkout.NewService(h.client, carts).Checkout(ctx, c, checkout.Request{
		AddressID:  12,
		DeliveryAt: time.Now().Add(5 * time.Hour),
	})
	require.NoError(t, err)
	orderID := res.Order.ID

	// Walk the order to DELIVERED through the admin bulk surface.
	var dto map[string]any
	require.NoError(t, postJSON(t, h, "/orders/"+itoa(orderID)+"/confirm-payment/", map[string]bool{"success": true}, &dto))
	for _, status := range []domain.Status{domain.StatusShipped, domain.StatusDelivered} {
		_, err := h.client.BulkUpdateStatus(ctx, []int64{orderID}, status)
		require.NoError(t, err)
	}

	// Raise the price, then reorder: the copied line uses today's price.
	h.store.mu.Lock()
	h.store.products[3].BasePrice = decimal.NewFromInt(175000)
	h.store.mu.Unlock()

	newCart, err := h.client.Reorder(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, newCart.Items, 1)
	assert.True(t, newCart.Items[0].UnitPrice.Equal(decimal.NewFromInt(175000)))
}

func TestBulkOperationsReportPartialOutcome(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// One PROCESSING order and one DELIVERED order.
	ids := make([]int64, 0, 2)
	for i := 0; i < 2; i++ {
		c, err := cart.NewService(h.client).AddItem(ctx, cart.AddItemInput{ProductID: 5, Quantity: 1})
		require.NoError(t, err)
		res, err := checkout.NewService(h.client, nil).Checkout(ctx, c, checkout.Request{
			AddressID:  12,
			DeliveryAt: time.Now().Add(5 * time.Hour),
		})
		require.NoError(t, err)
		var dto map[string]any
		require.NoError(t, postJSON(t, h, "/orders/"+itoa(res.Order.ID)+"/confirm-payment/", map[string]bool{"success": true}, &dto))
		ids = append(ids, res.Order.ID)
	}
	_, err := h.client.BulkUpdateStatus(ctx, ids[1:], domain.StatusShipped)
	require.NoError(t, err)
	_, err = h.client.BulkUpdateStatus(ctx, ids[1:], domain.StatusDelivered)
	require.NoError(t, err)

	res, err := h.client.BulkUpdateStatus(ctx, ids, domain.StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, 1, res.UpdatedCount)
	assert.Equal(t, []int64{ids[1]}, res.FailedIDs)
}
