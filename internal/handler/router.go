package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/mmeshcher/storebot-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса магазина.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/users/identify", h.Identify)
			r.Get("/users/me", h.Me)
			r.Post("/users/me/locale", h.SetLocale)
			r.Get("/users/me/stats", h.Statistics)
			r.Get("/users/me/topups", h.TopUpHistory)

			r.Get("/products", h.ListProducts)
			r.Get("/payments/{method}", h.PaymentInstructions)

			r.Post("/orders", h.PlaceOrder)
			r.Post("/orders/{orderID}/delivery", h.Deliver)

			r.Post("/topups", h.RequestTopUp)

			r.Post("/intents", h.ResolveIntent)

			r.Route("/admin", func(r chi.Router) {
				r.Get("/topups", h.PendingTopUps)
				r.Post("/topups/{requestID}/approve", h.ApproveTopUp)
				r.Post("/topups/{requestID}/reject", h.RejectTopUp)
				r.Post("/products", h.AddProduct)
				r.Post("/products/{productID}/units", h.AddUnits)
				r.Post("/users/{chatID}/ban", h.BanUser)
			})
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
