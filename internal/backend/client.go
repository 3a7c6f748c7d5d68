// Package backend is the typed HTTP client for the storefront's
// collaborator API. It owns the wire contract: DTO shapes, URL layout and
// the mapping from HTTP failures onto the domain error taxonomy. All
// authenticated traffic flows through the gateway transport, so callers
// never see a 401 that a token refresh could have absorbed.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bakehouse/storefront-go/internal/domain"
	"github.com/bakehouse/storefront-go/internal/gateway"
	"github.com/bakehouse/storefront-go/internal/pkg/requestid"
)

// ErrNotFound reports that the requested resource does not exist or is not
// visible to the current session.
var ErrNotFound = errors.New("backend: resource not found")

// Client talks to the collaborator API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a client whose transport attaches request ids and bearer
// tokens, and retries exactly once after a shared token refresh.
func New(baseURL string, session *gateway.Session, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: timeout,
			Transport: &gateway.Transport{
				Session: session,
				Base:    &requestid.Transport{},
			},
		},
	}
}

// ActiveCart fetches the customer's cart, creating one server-side if none
// exists.
func (c *Client) ActiveCart(ctx context.Context) (*domain.Cart, error) {
	var dto orderDTO
	if err := c.do(ctx, http.MethodGet, "/orders/cart/", nil, &dto); err != nil {
		return nil, err
	}
	return dto.toDomain().AsCart()
}

// Product fetches the catalog entry the cart needs for pricing and variant
// validation.
func (c *Client) Product(ctx context.Context, productID int64) (*Product, error) {
	var dto productDTO
	path := fmt.Sprintf("/products/%d/", productID)
	if err := c.do(ctx, http.MethodGet, path, nil, &dto); err != nil {
		return nil, err
	}
	return dto.toDomain(), nil
}

// AddCartItem adds a line to the cart and returns the updated cart.
func (c *Client) AddCartItem(ctx context.Context, productID, variantID, flavorID int64, quantity int, notes string) (*domain.Cart, error) {
	req := addItemRequest{
		ProductID:   productID,
		SizeVariant: variantID,
		Flavor:      flavorID,
		Quantity:    quantity,
		Notes:       notes,
	}
	var dto orderDTO
	if err := c.do(ctx, http.MethodPost, "/orders/cart/items/", req, &dto); err != nil {
		return nil, err
	}
	return dto.toDomain().AsCart()
}

// UpdateItemQuantity changes a cart line's quantity and returns the updated
// cart.
func (c *Client) UpdateItemQuantity(ctx context.Context, itemID int64, quantity int) (*domain.Cart, error) {
	var dto orderDTO
	path := fmt.Sprintf("/orders/cart/items/%d/", itemID)
	if err := c.do(ctx, http.MethodPatch, path, quantityRequest{Quantity: quantity}, &dto); err != nil {
		return nil, err
	}
	return dto.toDomain().AsCart()
}

// UpdateItemNote replaces a cart line's customization note.
func (c *Client) UpdateItemNote(ctx context.Context, itemID int64, notes string) (*domain.Cart, error) {
	var dto orderDTO
	path := fmt.Sprintf("/orders/cart/items/%d/", itemID)
	if err := c.do(ctx, http.MethodPatch, path, noteRequest{Notes: notes}, &dto); err != nil {
		return nil, err
	}
	return dto.toDomain().AsCart()
}

// RemoveItem deletes a cart line. Removing a line that is already gone is
// not an error; the cart returned is nil in that case and the caller keeps
// its local view.
func (c *Client) RemoveItem(ctx context.Context, itemID int64) (*domain.Cart, error) {
	var dto orderDTO
	path := fmt.Sprintf("/orders/cart/items/%d/", itemID)
	err := c.do(ctx, http.MethodDelete, path, nil, &dto)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return dto.toDomain().AsCart()
}

// Addresses lists the customer's saved delivery addresses.
func (c *Client) Addresses(ctx context.Context) ([]domain.Address, error) {
	var dtos []addressDTO
	if err := c.do(ctx, http.MethodGet, "/auth/addresses/", nil, &dtos); err != nil {
		return nil, err
	}
	addrs := make([]domain.Address, 0, len(dtos))
	for i := range dtos {
		addrs = append(addrs, dtos[i].toDomain())
	}
	return addrs, nil
}

// SetDeliveryDetails persists the checkout's address, slot and notes on the
// cart. The order stays a cart until payment is initiated.
func (c *Client) SetDeliveryDetails(ctx context.Context, orderID, addressID int64, deliveryAt time.Time, notes string) (*domain.Order, error) {
	req := checkoutRequest{AddressID: addressID, DeliveryDatetime: deliveryAt, Notes: notes}
	var dto orderDTO
	path := fmt.Sprintf("/orders/%d/", orderID)
	if err := c.do(ctx, http.MethodPatch, path, req, &dto); err != nil {
		return nil, err
	}
	return dto.toDomain(), nil
}

// InitiatePayment asks the collaborator to open a payment intent for the
// order and returns the redirect URL. A success response without a URL is a
// broken contract, not a payable order.
func (c *Client) InitiatePayment(ctx context.Context, orderID int64) (string, error) {
	var resp paymentInitiationResponse
	path := fmt.Sprintf("/orders/%d/pay/", orderID)
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return "", err
	}
	if resp.PaymentURL == "" {
		return "", &domain.IntegrationError{Op: "initiate payment", Detail: "response carries no payment_url"}
	}
	return resp.PaymentURL, nil
}

// Order fetches one order with its status history and transactions.
func (c *Client) Order(ctx context.Context, orderID int64) (*domain.Order, error) {
	var dto orderDTO
	path := fmt.Sprintf("/orders/%d/", orderID)
	if err := c.do(ctx, http.MethodGet, path, nil, &dto); err != nil {
		return nil, err
	}
	return dto.toDomain(), nil
}

// Orders lists the customer's orders, newest first.
func (c *Client) Orders(ctx context.Context) ([]*domain.Order, error) {
	var dtos []orderDTO
	if err := c.do(ctx, http.MethodGet, "/orders/", nil, &dtos); err != nil {
		return nil, err
	}
	orders := make([]*domain.Order, 0, len(dtos))
	for i := range dtos {
		orders = append(orders, dtos[i].toDomain())
	}
	return orders, nil
}

// Reorder copies a past order's lines into the active cart at current
// prices and returns the cart.
func (c *Client) Reorder(ctx context.Context, orderID int64) (*domain.Cart, error) {
	var dto orderDTO
	path := fmt.Sprintf("/orders/%d/reorder/", orderID)
	if err := c.do(ctx, http.MethodPost, path, nil, &dto); err != nil {
		return nil, err
	}
	return dto.toDomain().AsCart()
}

// AdminOrders lists all orders for the admin surface, soft-deleted ones
// excluded.
func (c *Client) AdminOrders(ctx context.Context) ([]*domain.Order, error) {
	var dtos []orderDTO
	if err := c.do(ctx, http.MethodGet, "/admin/orders/list/", nil, &dtos); err != nil {
		return nil, err
	}
	orders := make([]*domain.Order, 0, len(dtos))
	for i := range dtos {
		orders = append(orders, dtos[i].toDomain())
	}
	return orders, nil
}

// BulkUpdateStatus moves a batch of orders to the given status. Partial
// outcomes are reported, never collapsed into a single failure.
func (c *Client) BulkUpdateStatus(ctx context.Context, orderIDs []int64, status domain.Status) (BulkResult, error) {
	req := bulkStatusRequest{OrderIDs: orderIDs, Status: string(status)}
	var resp bulkResponse
	if err := c.do(ctx, http.MethodPost, "/admin/orders/bulk-update-status/", req, &resp); err != nil {
		return BulkResult{}, err
	}
	return BulkResult{UpdatedCount: resp.UpdatedCount, FailedIDs: resp.FailedIDs}, nil
}

// BulkSoftDelete hides a batch of orders from listings without destroying
// their records.
func (c *Client) BulkSoftDelete(ctx context.Context, orderIDs []int64) (BulkResult, error) {
	req := bulkDeleteRequest{OrderIDs: orderIDs}
	var resp bulkResponse
	if err := c.do(ctx, http.MethodPost, "/admin/orders/bulk-delete-orders/", req, &resp); err != nil {
		return BulkResult{}, err
	}
	return BulkResult{UpdatedCount: resp.DeletedCount, FailedIDs: resp.FailedIDs}, nil
}

// ToggleWishlist flips a product's wishlist membership and returns the
// server's resulting state.
func (c *Client) ToggleWishlist(ctx context.Context, productID int64) (bool, error) {
	req := struct {
		ProductID int64 `json:"product_id"`
	}{ProductID: productID}
	var resp wishlistToggleResponse
	if err := c.do(ctx, http.MethodPost, "/wishlist/toggle/", req, &resp); err != nil {
		return false, err
	}
	return resp.InWishlist, nil
}

// do performs one round trip and maps the outcome onto the domain error
// taxonomy.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, domain.ErrSessionExpired) {
			return domain.ErrSessionExpired
		}
		return &domain.NetworkError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &domain.IntegrationError{Op: method + " " + path, Detail: "undecodable response body: " + err.Error()}
		}
		return nil
	}

	return c.mapFailure(method, path, resp)
}

func (c *Client) mapFailure(method, path string, resp *http.Response) error {
	var envelope errorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &envelope)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return domain.ErrSessionExpired
	case http.StatusNotFound:
		return ErrNotFound
	}

	switch envelope.Error {
	case "order_not_mutable":
		return domain.ErrOrderNotMutable
	case "invalid_transition":
		return &domain.ValidationError{Field: "status", Reason: envelope.Message}
	case "validation_error":
		return &domain.ValidationError{Field: "request", Reason: envelope.Message}
	}

	if resp.StatusCode == http.StatusBadRequest {
		reason := envelope.Message
		if reason == "" {
			reason = string(raw)
		}
		return &domain.ValidationError{Field: "request", Reason: reason}
	}

	detail := envelope.Message
	if detail == "" {
		detail = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
	return &domain.IntegrationError{Op: method + " " + path, Detail: detail}
}
