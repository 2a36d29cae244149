package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/storefront/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware шлюза.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/items", h.AddCartItem)
			r.Patch("/items/{productID}", h.UpdateCartItem)
			r.Delete("/items/{productID}", h.RemoveCartItem)
		})

		r.Get("/session", h.GetSession)
		r.Post("/session", h.Login)
		r.Delete("/session", h.Logout)

		r.Post("/users/register", h.Register)
		r.Get("/products", h.ListProducts)
		r.Get("/products/{id}", h.GetProduct)
		r.Get("/notifications", h.Notifications)

		r.Group(func(r chi.Router) {
			r.Use(h.guard.RequireSession)

			r.Post("/checkout", h.Checkout)
			r.Get("/orders/my", h.MyOrders)
			r.Get("/orders/{id}", h.GetOrder)
			r.Get("/orders/{id}/payment", h.GetPayment)
			r.Post("/orders/{id}/payment/verify", h.VerifyPayment)
			r.Post("/users/change-password", h.ChangePassword)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.guard.RequireAdmin)

			r.Get("/orders", h.AdminOrders)
			r.Patch("/orders/{id}/status", h.AdminUpdateOrderStatus)
			r.Delete("/orders/{id}", h.AdminDeleteOrder)
			r.Get("/users", h.AdminUsers)
			r.Patch("/users/{id}", h.AdminUpdateUser)
			r.Delete("/users/{id}", h.AdminDeleteUser)
			r.Post("/products", h.AdminCreateProduct)
			r.Patch("/products/{id}", h.AdminUpdateProduct)
			r.Delete("/products/{id}", h.AdminDeleteProduct)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
