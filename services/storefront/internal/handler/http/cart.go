package http

import (
	"log/slog"
	"net/http"

	"github.com/gothglitter/storefront/pkg/httputil"
	"github.com/gothglitter/storefront/pkg/logger"
	"github.com/gothglitter/storefront/services/storefront/internal/service"
)

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service: svc,
		logger:  logger,
	}
}

// Items handles GET /api/cart
func (h *CartHandler) Items(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Items(r.Context(), logger.SessionIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, items)
}

// Quantity handles GET /api/cart/{id}/qty
func (h *CartHandler) Quantity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathProductID(w, r, h.logger)
	if !ok {
		return
	}
	qty, err := h.service.Quantity(r.Context(), logger.SessionIDFromContext(r.Context()), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, qty)
}

// Add handles POST /api/cart/{id}/add?qty=N
func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	id, ok := pathProductID(w, r, h.logger)
	if !ok {
		return
	}
	n, ok := httputil.ParseQuantity(w, r, "qty", 1)
	if !ok {
		return
	}
	qty, err := h.service.Add(r.Context(), logger.SessionIDFromContext(r.Context()), id, n)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, qty)
}

// Remove handles POST /api/cart/{id}/remove?qty=N
func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathProductID(w, r, h.logger)
	if !ok {
		return
	}
	n, ok := httputil.ParseQuantity(w, r, "qty", 1)
	if !ok {
		return
	}
	qty, err := h.service.Remove(r.Context(), logger.SessionIDFromContext(r.Context()), id, n)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, qty)
}

// Clear handles POST /api/cart/clear
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if _, err := h.service.Clear(r.Context(), logger.SessionIDFromContext(r.Context())); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, true)
}

// Touch handles POST /api/cart/touch
func (h *CartHandler) Touch(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Touch(r.Context(), logger.SessionIDFromContext(r.Context())); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, true)
}
