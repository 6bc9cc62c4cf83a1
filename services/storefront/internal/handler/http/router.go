package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gothglitter/storefront/pkg/health"
	"github.com/gothglitter/storefront/pkg/middleware"
	"github.com/gothglitter/storefront/services/storefront/internal/service"
)

// RouterConfig carries the HTTP-facing settings of the storefront.
type RouterConfig struct {
	AdminToken string
	CORS       middleware.CORSConfig
	Session    middleware.SessionConfig
	PprofCIDRs []string
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(
	inventoryService *service.InventoryService,
	cartService *service.CartService,
	paymentService *service.PaymentService,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing("storefront"))
	r.Use(middleware.PrometheusMetrics("storefront"))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	inventoryHandler := NewInventoryHandler(inventoryService, logger)
	cartHandler := NewCartHandler(cartService, logger)
	paymentHandler := NewPaymentHandler(paymentService, logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Session(cfg.Session))
		r.Use(middleware.RequestLogger(logger))
		r.Use(middleware.NoStore)

		r.Route("/inventory/{id}", func(r chi.Router) {
			r.Post("/reserve", inventoryHandler.Reserve)
			r.Post("/release", inventoryHandler.Release)
			r.Post("/unreserve", inventoryHandler.Release)
			r.Get("/available", inventoryHandler.Available)

			r.With(middleware.AdminToken(cfg.AdminToken, logger)).
				Post("/set", inventoryHandler.SetStock)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.Items)
			r.Post("/clear", cartHandler.Clear)
			r.Post("/touch", cartHandler.Touch)
			r.Get("/{id}/qty", cartHandler.Quantity)
			r.Post("/{id}/add", cartHandler.Add)
			r.Post("/{id}/remove", cartHandler.Remove)
		})

		r.Post("/create-payment-intent", paymentHandler.CreateIntent)
	})

	return r
}
