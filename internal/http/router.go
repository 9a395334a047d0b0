package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/idempotency"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	Cart        CartService
	Checkout    CheckoutService
	Orders      OrderService
	Verifier    TokenVerifier
	Idempotency idempotency.Guard
	// Health reports whether backing stores are reachable; nil means always healthy.
	Health             func(ctx context.Context) error
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	Log                *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	guard := cfg.Idempotency
	if guard == nil {
		guard = idempotency.Noop{}
	}

	cartHandler := NewCartHandler(cfg.Cart, cfg.RequestTimeout, cfg.Log)
	ordersHandler := NewOrdersHandler(cfg.Checkout, cfg.Orders, cfg.RequestTimeout, cfg.Log)

	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(cfg.Log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(MaxBodySize(cfg.MaxRequestBodySize))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(r.Context()); err != nil {
				cfg.Log.WarnContext(r.Context(), "health check failed", "err", err)
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Verifier))

		r.Route("/cart", func(r chi.Router) {
			r.Post("/", cartHandler.AddItem)
			r.Delete("/", cartHandler.DecreaseItem)
			r.Post("/remove-all", cartHandler.RemoveItem)
			r.Get("/view", cartHandler.ViewCart)
			r.Post("/most-popular", ordersHandler.MostPopular)
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(Idempotent(guard, "checkout", cfg.Log)).Post("/order", ordersHandler.PlaceOrder)
			r.Get("/status", ordersHandler.ListOrders)
			r.Post("/cancel", ordersHandler.CancelOrder)
		})
	})

	return otelhttp.NewHandler(r, "storefront",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
