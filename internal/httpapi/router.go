// Package httpapi is the HTTP transport of the shop.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/templateshop/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Deps struct {
	Carts         CartService
	Checkout      CheckoutService
	Orders        OrderService
	Downloads     DownloadGate
	Entitlements  EntitlementLister
	Catalog       AvailabilityChecker
	Webhooks      WebhookReconciler
	// Ready reports whether backing stores are reachable; nil means always ready.
	Ready         func(ctx context.Context) error
	Authenticator *Authenticator
	Metrics       *metrics.Metrics
	Log           *slog.Logger
}

type Options struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

func NewRouter(d Deps, opts Options) http.Handler {
	carts := NewCartHandler(d.Carts, d.Log)
	checkoutH := NewCheckoutHandler(d.Checkout, d.Log)
	orders := NewOrderHandler(d.Orders, d.Log)
	library := NewLibraryHandler(d.Downloads, d.Entitlements, d.Catalog, d.Log)
	webhooks := NewWebhookHandler(d.Webhooks, d.Log)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(d.Metrics.Middleware)
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}
	if opts.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSize(opts.MaxRequestBodySize))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(r.Context()); err != nil {
				d.Log.WarnContext(r.Context(), "readiness check failed", "error", err)
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Post("/webhooks/payments", webhooks.Payments)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(d.Authenticator.Middleware)

		r.Get("/products/{productID}/availability", library.Availability)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", carts.GetCart)
			r.Delete("/", carts.ClearCart)
			r.Post("/items", carts.AddItem)
			r.Put("/items/{productID}", carts.UpdateQuantity)
			r.Delete("/items/{productID}", carts.RemoveItem)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireUser)

			r.Post("/checkout", checkoutH.CreateSession)

			r.Post("/orders", orders.Register)
			r.Get("/orders", orders.List)
			r.Get("/orders/{orderID}", orders.Get)

			r.Get("/entitlements", library.ListEntitlements)
			r.Post("/downloads", library.RequestDownload)
		})
	})

	return r
}
