package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/storefront-system/internal/middleware"
)

func pathParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// SetupRouter настраивает HTTP-маршруты и middleware сервиса витрины.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.Login)

		r.Get("/settings", h.GetSettings)
		r.Get("/products", h.GetProducts)
		r.Post("/orders", h.SubmitOrder)

		r.Get("/loyalty", h.GetLoyalty)
		r.Post("/loyalty/redeem", h.RedeemLoyalty)
		r.Get("/loyalty/config", h.GetLoyaltyConfig)

		r.Group(func(r chi.Router) {
			r.Use(h.adminAuth.Middleware)

			r.Post("/change-password", h.ChangePassword)
			r.Post("/settings", h.UpdateSettings)

			r.Post("/products", h.SaveProduct)
			r.Post("/products/reorder", h.ReorderProducts)
			r.Delete("/products/{id}", h.DeleteProduct)

			r.Get("/orders", h.GetOrders)
			r.Delete("/orders/{id}", h.DeleteOrder)
			r.Delete("/orders", h.ClearOrders)

			r.Post("/loyalty/config", h.UpdateLoyaltyConfig)

			r.Get("/clients", h.GetClients)
			r.Post("/clients/{id}/points", h.AdjustClientPoints)

			r.Post("/upload", h.Upload)
			r.Get("/files", h.Files)
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
