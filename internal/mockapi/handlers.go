package mockapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bakehouse/storefront-go/internal/checkout"
	"github.com/bakehouse/storefront-go/internal/domain"
)

// Handler serves the mock backend's HTTP surface.
type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// --- auth ---

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Refresh  string `json:"refresh"`
}

type tokenResponse struct {
	Access  string `json:"access,omitempty"`
	Refresh string `json:"refresh,omitempty"`
}

func (h *Handler) IssueTokens(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	access, refresh, ok := h.store.login(req.Username, req.Password)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "unknown username or password")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Access: access, Refresh: refresh})
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	access, ok := h.store.refreshAccess(req.Refresh)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_refresh", "refresh token is not valid")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Access: access})
}

// requireAuth rejects requests whose bearer token is not the current access
// token.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !h.store.validAccess(token) {
			writeError(w, http.StatusUnauthorized, "invalid_token", "access token expired or missing")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- catalog ---

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	p, ok := h.store.products[id]
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "no such product")
		return
	}
	writeJSON(w, http.StatusOK, productToDTO(p))
}

// --- addresses ---

func (h *Handler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	out := make([]map[string]any, 0, len(h.store.addresses))
	for _, a := range h.store.addresses {
		out = append(out, addressToDTO(a))
	}
	writeJSON(w, http.StatusOK, out)
}

// --- cart ---

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	writeJSON(w, http.StatusOK, orderToDTO(h.store.activeCart()))
}

type addItemRequest struct {
	ProductID   int64  `json:"product_id"`
	SizeVariant int64  `json:"size_variant"`
	Flavor      int64  `json:"flavor"`
	Quantity    int    `json:"quantity"`
	Notes       string `json:"notes"`
}

func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.Quantity < 1 {
		writeError(w, http.StatusBadRequest, "validation_error", "quantity must be at least 1")
		return
	}
	if len(req.Notes) > domain.MaxItemNoteLen {
		writeError(w, http.StatusBadRequest, "validation_error", "notes exceed the length limit")
		return
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	p, ok := h.store.products[req.ProductID]
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "no such product")
		return
	}
	if req.SizeVariant != 0 && !hasVariant(p, req.SizeVariant) {
		writeError(w, http.StatusBadRequest, "validation_error", "size variant does not belong to the product")
		return
	}
	price := h.store.unitPrice(p, req.SizeVariant)

	cart := h.store.activeCart()
	merged := false
	for i := range cart.Items {
		it := &cart.Items[i]
		if it.ProductID == req.ProductID && it.VariantID == req.SizeVariant && it.FlavorID == req.Flavor {
			it.Quantity += req.Quantity
			it.UnitPrice = price
			merged = true
			break
		}
	}
	if !merged {
		h.store.nextItemID++
		cart.Items = append(cart.Items, domain.OrderItem{
			ID:        h.store.nextItemID,
			ProductID: req.ProductID,
			VariantID: req.SizeVariant,
			FlavorID:  req.Flavor,
			Quantity:  req.Quantity,
			Notes:     req.Notes,
			UnitPrice: price,
		})
	}
	h.repriceLocked(cart)
	writeJSON(w, http.StatusOK, orderToDTO(cart))
}

type itemPatchRequest struct {
	Quantity *int    `json:"quantity"`
	Notes    *string `json:"notes"`
}

func (h *Handler) PatchCartItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	var req itemPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	cart := h.store.activeCart()
	it := cart.Item(itemID)
	if it == nil {
		writeError(w, http.StatusNotFound, "not_found", "item is not in the cart")
		return
	}
	if req.Quantity != nil {
		if *req.Quantity < 1 {
			writeError(w, http.StatusBadRequest, "validation_error", "quantity must be at least 1")
			return
		}
		it.Quantity = *req.Quantity
	}
	if req.Notes != nil {
		if len(*req.Notes) > domain.MaxItemNoteLen {
			writeError(w, http.StatusBadRequest, "validation_error", "notes exceed the length limit")
			return
		}
		it.Notes = *req.Notes
	}
	h.repriceLocked(cart)
	writeJSON(w, http.StatusOK, orderToDTO(cart))
}

func (h *Handler) DeleteCartItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	cart := h.store.activeCart()
	if cart.Item(itemID) == nil {
		writeError(w, http.StatusNotFound, "not_found", "item is not in the cart")
		return
	}
	kept := cart.Items[:0:0]
	for _, it := range cart.Items {
		if it.ID != itemID {
			kept = append(kept, it)
		}
	}
	cart.Items = kept
	h.repriceLocked(cart)
	writeJSON(w, http.StatusOK, orderToDTO(cart))
}

// repriceLocked recomputes every line at current catalog prices and the
// order total. Caller must hold the store lock.
func (h *Handler) repriceLocked(o *domain.Order) {
	for i := range o.Items {
		it := &o.Items[i]
		p, ok := h.store.products[it.ProductID]
		if !ok {
			continue
		}
		it.UnitPrice = h.store.unitPrice(p, it.VariantID)
	}
	o.Recalculate()
	o.UpdatedAt = h.store.now().UTC()
}

// --- checkout ---

type checkoutPatchRequest struct {
	AddressID        int64      `json:"address_id"`
	DeliveryDatetime *time.Time `json:"delivery_datetime"`
	Notes            string     `json:"notes"`
}

func (h *Handler) PatchOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	var req checkoutPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	o, ok := h.store.orders[orderID]
	if !ok || o.Deleted {
		writeError(w, http.StatusNotFound, "not_found", "no such order")
		return
	}
	if o.Status != domain.StatusCart {
		writeError(w, http.StatusConflict, "order_not_mutable", "order is "+string(o.Status))
		return
	}
	if req.AddressID != 0 && !h.ownsAddress(req.AddressID) {
		writeError(w, http.StatusBadRequest, "validation_error", "address does not belong to the customer")
		return
	}
	if req.DeliveryDatetime != nil && req.DeliveryDatetime.Before(h.store.now().Add(checkout.MinLeadTime)) {
		writeError(w, http.StatusBadRequest, "validation_error", "delivery needs at least 3 hours notice")
		return
	}

	if req.AddressID != 0 {
		o.AddressID = req.AddressID
	}
	if req.DeliveryDatetime != nil {
		at := req.DeliveryDatetime.UTC()
		o.DeliveryAt = &at
	}
	if req.Notes != "" {
		o.Notes = req.Notes
	}
	o.UpdatedAt = h.store.now().UTC()
	writeJSON(w, http.StatusOK, orderToDTO(o))
}

func (h *Handler) ownsAddress(id int64) bool {
	for _, a := range h.store.addresses {
		if a.ID == id {
			return true
		}
	}
	return false
}

func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	o, ok := h.store.orders[orderID]
	if !ok || o.Deleted {
		writeError(w, http.StatusNotFound, "not_found", "no such order")
		return
	}
	if o.Status != domain.StatusCart {
		writeError(w, http.StatusConflict, "order_not_mutable", "order is "+string(o.Status))
		return
	}
	if len(o.Items) == 0 {
		writeError(w, http.StatusBadRequest, "validation_error", "cart is empty")
		return
	}
	if o.AddressID == 0 || o.DeliveryAt == nil {
		writeError(w, http.StatusBadRequest, "validation_error", "delivery details are not set")
		return
	}
	if o.TotalPrice.GreaterThan(DeclineCeiling) {
		slog.Warn("mock gateway declined intent", "order_id", o.ID, "amount", o.TotalPrice.String())
		writeError(w, http.StatusBadRequest, "validation_error", "amount exceeds the gateway limit")
		return
	}

	tx := h.store.newTransaction(o)
	if err := h.store.logTransition(o, domain.StatusPendingPayment, domain.ActorCustomer, ""); err != nil {
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"payment_url": "https://pay.mock.local/intent/" + tx.GatewayRef,
	})
}

type paymentResultRequest struct {
	Success bool `json:"success"`
}

// ConfirmPayment simulates the gateway webhook. Success moves the order to
// PROCESSING; failure records the failed attempt and leaves the order in
// PENDING_PAYMENT so the customer can try again.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	var req paymentResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	o, ok := h.store.orders[orderID]
	if !ok || o.Status != domain.StatusPendingPayment || len(o.Transactions) == 0 {
		writeError(w, http.StatusConflict, "invalid_transition", "order is not awaiting payment")
		return
	}
	tx := &o.Transactions[len(o.Transactions)-1]
	tx.UpdatedAt = h.store.now().UTC()
	if !req.Success {
		tx.Status = domain.TransactionFailed
		writeJSON(w, http.StatusOK, orderToDTO(o))
		return
	}
	tx.Status = domain.TransactionSuccess
	if err := h.store.logTransition(o, domain.StatusProcessing, domain.ActorGateway, "payment confirmed"); err != nil {
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, orderToDTO(o))
}

// --- tracking ---

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	o, ok := h.store.orders[orderID]
	if !ok || o.Deleted {
		writeError(w, http.StatusNotFound, "not_found", "no such order")
		return
	}
	writeJSON(w, http.StatusOK, orderToDTO(o))
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	out := make([]map[string]any, 0, len(h.store.orders))
	for _, o := range h.store.orders {
		if !o.Deleted {
			out = append(out, orderToDTO(o))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) Reorder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	src, ok := h.store.orders[orderID]
	if !ok || src.Deleted {
		writeError(w, http.StatusNotFound, "not_found", "no such order")
		return
	}
	if !src.Status.Terminal() {
		writeError(w, http.StatusBadRequest, "validation_error", "only finished orders can be reordered")
		return
	}

	cart := h.store.activeCart()
	for _, it := range src.Items {
		p, ok := h.store.products[it.ProductID]
		if !ok {
			continue // product retired since the original order
		}
		price := h.store.unitPrice(p, it.VariantID)
		merged := false
		for i := range cart.Items {
			line := &cart.Items[i]
			if line.ProductID == it.ProductID && line.VariantID == it.VariantID && line.FlavorID == it.FlavorID {
				line.Quantity += it.Quantity
				line.UnitPrice = price
				merged = true
				break
			}
		}
		if !merged {
			h.store.nextItemID++
			cart.Items = append(cart.Items, domain.OrderItem{
				ID:        h.store.nextItemID,
				ProductID: it.ProductID,
				VariantID: it.VariantID,
				FlavorID:  it.FlavorID,
				Quantity:  it.Quantity,
				Notes:     it.Notes,
				UnitPrice: price,
			})
		}
	}
	h.repriceLocked(cart)
	writeJSON(w, http.StatusOK, orderToDTO(cart))
}

// --- admin ---

func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	h.ListOrders(w, r)
}

type bulkStatusRequest struct {
	OrderIDs []int64 `json:"order_ids"`
	Status   string  `json:"status"`
}

func (h *Handler) BulkUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req bulkStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	target := domain.Status(req.Status)
	if !target.Valid() || target == domain.StatusCart {
		writeError(w, http.StatusBadRequest, "validation_error", "not a valid target status")
		return
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	updated := 0
	var failed []int64
	for _, id := range req.OrderIDs {
		o, ok := h.store.orders[id]
		if !ok || o.Deleted {
			failed = append(failed, id)
			continue
		}
		if err := h.store.logTransition(o, target, domain.ActorAdmin, "bulk update"); err != nil {
			failed = append(failed, id)
			continue
		}
		updated++
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"detail":        strconv.Itoa(updated) + " orders updated",
		"updated_count": updated,
		"failed_ids":    failed,
	})
}

type bulkDeleteRequest struct {
	OrderIDs []int64 `json:"order_ids"`
}

func (h *Handler) BulkDeleteOrders(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	deleted := 0
	var failed []int64
	for _, id := range req.OrderIDs {
		o, ok := h.store.orders[id]
		if !ok || o.Deleted {
			failed = append(failed, id)
			continue
		}
		o.Deleted = true
		deleted++
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"detail":        strconv.Itoa(deleted) + " orders deleted",
		"deleted_count": deleted,
		"failed_ids":    failed,
	})
}

// --- wishlist ---

type wishlistRequest struct {
	ProductID int64 `json:"product_id"`
}

func (h *Handler) ToggleWishlist(w http.ResponseWriter, r *http.Request) {
	var req wishlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	if _, ok := h.store.products[req.ProductID]; !ok {
		writeError(w, http.StatusNotFound, "not_found", "no such product")
		return
	}
	h.store.wishlist[req.ProductID] = !h.store.wishlist[req.ProductID]
	writeJSON(w, http.StatusOK, map[string]bool{"in_wishlist": h.store.wishlist[req.ProductID]})
}

// --- helpers ---

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": code, "message": msg})
}

func hasVariant(p *product, id int64) bool {
	for _, v := range p.Variants {
		if v.ID == id {
			return true
		}
	}
	return false
}

func orderToDTO(o *domain.Order) map[string]any {
	items := make([]map[string]any, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, map[string]any{
			"id":             it.ID,
			"product_id":     it.ProductID,
			"size_variant":   it.VariantID,
			"flavor":         it.FlavorID,
			"quantity":       it.Quantity,
			"notes":          it.Notes,
			"price_at_order": it.UnitPrice.String(),
		})
	}
	logs := make([]map[string]any, 0, len(o.StatusLog))
	for _, l := range o.StatusLog {
		logs = append(logs, map[string]any{
			"timestamp":  l.Timestamp,
			"new_status": string(l.NewStatus),
			"changed_by": string(l.Actor),
			"notes":      l.Note,
		})
	}
	txs := make([]map[string]any, 0, len(o.Transactions))
	for _, tx := range o.Transactions {
		txs = append(txs, map[string]any{
			"id":                   tx.ID,
			"order_id":             tx.OrderID,
			"amount":               tx.Amount.String(),
			"status":               string(tx.Status),
			"gateway_reference_id": tx.GatewayRef,
			"created_at":           tx.CreatedAt,
			"updated_at":           tx.UpdatedAt,
		})
	}
	dto := map[string]any{
		"id":           o.ID,
		"order_number": o.Number(),
		"status":       string(o.Status),
		"items":        items,
		"address_id":   o.AddressID,
		"notes":        o.Notes,
		"total_price":  o.TotalPrice.String(),
		"delivery_fee": o.DeliveryFee.String(),
		"is_deleted":   o.Deleted,
		"created_at":   o.CreatedAt,
		"updated_at":   o.UpdatedAt,
		"status_logs":  logs,
		"transactions": txs,
	}
	if o.DeliveryAt != nil {
		dto["delivery_datetime"] = o.DeliveryAt
	}
	return dto
}

func addressToDTO(a domain.Address) map[string]any {
	return map[string]any{
		"id":        a.ID,
		"label":     a.Label,
		"recipient": a.Recipient,
		"line":      a.Line,
		"city":      a.City,
		"phone":     a.Phone,
	}
}

func productToDTO(p *product) map[string]any {
	variants := make([]map[string]any, 0, len(p.Variants))
	for _, v := range p.Variants {
		variants = append(variants, map[string]any{
			"id":                  v.ID,
			"size_name":           v.SizeName,
			"price_modifier":      v.PriceModifier.String(),
			"estimated_weight_kg": v.WeightKG.String(),
		})
	}
	dto := map[string]any{
		"id":                    p.ID,
		"name":                  p.Name,
		"base_price":            p.BasePrice.String(),
		"price_type":            string(p.PriceType),
		"schedule_sale_enabled": p.Sale.Scheduled,
		"sale_price":            p.Sale.SalePrice.String(),
		"size_variants":         variants,
		"flavor_ids":            p.FlavorIDs,
	}
	if p.Sale.Scheduled {
		dto["sale_start_date"] = p.Sale.Start
		dto["sale_end_date"] = p.Sale.End
	}
	return dto
}
