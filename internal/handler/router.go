package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	custommiddleware "github.com/avydigital/avyboost/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса AVYboost.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	if len(h.allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.allowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/user/register", h.Register)
		r.Post("/user/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/user/profile", h.GetProfile)

			r.Get("/wallet/balance", h.GetBalance)
			r.Get("/wallet/transactions", h.GetTransactions)
			r.Post("/wallet/recharge", h.Recharge)
			r.Get("/wallet/recharge/{reference}", h.CheckRecharge)

			r.Post("/orders", h.CreateOrder)
			r.Get("/orders", h.GetOrders)
			r.Get("/orders/events", h.StreamOrders)
			r.Post("/orders/{id}/cancel", h.CancelOrder)
			r.Post("/orders/sync", h.SyncOrders)

			r.Get("/admin/balances", h.GetAdminBalances)
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
