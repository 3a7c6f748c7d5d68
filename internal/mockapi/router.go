package mockapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the mock backend's routes. The auth endpoints are open;
// everything else requires the current access token.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/auth/token/", handler.IssueTokens)
	r.Post("/auth/token/refresh/", handler.RefreshToken)

	r.Group(func(r chi.Router) {
		r.Use(handler.requireAuth)

		r.Get("/auth/addresses/", handler.ListAddresses)
		r.Get("/products/{id}/", handler.GetProduct)

		r.Get("/orders/cart/", handler.GetCart)
		r.Post("/orders/cart/items/", handler.AddCartItem)
		r.Patch("/orders/cart/items/{id}/", handler.PatchCartItem)
		r.Delete("/orders/cart/items/{id}/", handler.DeleteCartItem)

		r.Get("/orders/", handler.ListOrders)
		r.Get("/orders/{id}/", handler.GetOrder)
		r.Patch("/orders/{id}/", handler.PatchOrder)
		r.Post("/orders/{id}/pay/", handler.Pay)
		r.Post("/orders/{id}/confirm-payment/", handler.ConfirmPayment)
		r.Post("/orders/{id}/reorder/", handler.Reorder)

		r.Get("/admin/orders/list/", handler.AdminListOrders)
		r.Post("/admin/orders/bulk-update-status/", handler.BulkUpdateStatus)
		r.Post("/admin/orders/bulk-delete-orders/", handler.BulkDeleteOrders)

		r.Post("/wishlist/toggle/", handler.ToggleWishlist)
	})

	return r
}
