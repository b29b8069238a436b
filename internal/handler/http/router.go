// Package http wires the shop's REST and SSE endpoints onto a chi router.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MyZenaa/pgpbl-jamubae/internal/cart"
	"github.com/MyZenaa/pgpbl-jamubae/internal/geo"
	"github.com/MyZenaa/pgpbl-jamubae/internal/location"
	"github.com/MyZenaa/pgpbl-jamubae/internal/order"
	"github.com/MyZenaa/pgpbl-jamubae/pkg/health"
	"github.com/MyZenaa/pgpbl-jamubae/pkg/middleware"
)

// RouterConfig carries everything the router needs.
type RouterConfig struct {
	Carts         *cart.Service
	Orders        *order.Service
	Locations     *location.Client
	Health        *health.Handler
	StoreOrigin   geo.Coordinate
	ShippingRate  int64
	Logger        *slog.Logger
}

// NewRouter creates a chi router with all shop routes registered. Stream
// endpoints sit outside the request timeout so SSE connections can live as
// long as the client does.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(CORS)
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.PrometheusMetrics("shop"))
	r.Use(middleware.Tracing("shop"))
	r.Use(middleware.RequestLogger(cfg.Logger))

	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	cartHandler := NewCartHandler(cfg.Carts, cfg.Logger)
	orderHandler := NewOrderHandler(cfg.Orders, cfg.Logger)
	shippingHandler := NewShippingHandler(cfg.StoreOrigin, cfg.ShippingRate, cfg.Locations, cfg.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		// Long-lived streams, no timeout.
		r.Get("/cart/stream", cartHandler.StreamCart)
		r.Get("/orders/stream", orderHandler.StreamOrders)
		r.Get("/orders/{orderID}/stream", orderHandler.StreamOrder)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(30 * time.Second))
			r.Use(ContentTypeJSON)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Delete("/", cartHandler.ClearCart)

				r.Post("/items", cartHandler.UpsertItem)
				r.Put("/items/{productID}", cartHandler.SetQuantity)
				r.Delete("/items/{productID}", cartHandler.RemoveItem)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", orderHandler.Checkout)
				r.Get("/", orderHandler.ListOrders)

				r.Get("/{orderID}", orderHandler.GetOrder)
				r.Put("/{orderID}", orderHandler.EditOrder)
				r.Delete("/{orderID}", orderHandler.DeleteOrder)
				r.Post("/{orderID}/advance", orderHandler.AdvanceOrder)
			})

			r.Get("/shipping/quote", shippingHandler.Quote)
			r.Get("/location", shippingHandler.CurrentLocation)
		})
	})

	return r
}
