package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/gothglitter/storefront/pkg/errors"
	"github.com/gothglitter/storefront/pkg/httputil"
	"github.com/gothglitter/storefront/pkg/logger"
	"github.com/gothglitter/storefront/pkg/validator"
	"github.com/gothglitter/storefront/services/storefront/internal/service"
)

// InventoryHandler handles HTTP requests for inventory endpoints.
type InventoryHandler struct {
	service *service.InventoryService
	logger  *slog.Logger
}

// NewInventoryHandler creates a new inventory HTTP handler.
func NewInventoryHandler(svc *service.InventoryService, logger *slog.Logger) *InventoryHandler {
	return &InventoryHandler{
		service: svc,
		logger:  logger,
	}
}

// Reserve handles POST /api/inventory/{id}/reserve
func (h *InventoryHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	left, err := h.service.Reserve(r.Context(), logger.SessionIDFromContext(r.Context()), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, left)
}

// Release handles POST /api/inventory/{id}/release and its /unreserve alias.
func (h *InventoryHandler) Release(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	left, err := h.service.Release(r.Context(), logger.SessionIDFromContext(r.Context()), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, left)
}

// Available handles GET /api/inventory/{id}/available
func (h *InventoryHandler) Available(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	n, err := h.service.Available(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, n)
}

// SetStock handles POST /api/inventory/{id}/set?qty=N
func (h *InventoryHandler) SetStock(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	raw := r.URL.Query().Get("qty")
	qty, err := strconv.Atoi(raw)
	if err != nil || validator.Var(qty, "gte=0") != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput(fmt.Sprintf("qty must be a non-negative integer, got %q", raw)), h.logger)
		return
	}

	n, err := h.service.SetStock(r.Context(), id, qty)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, n)
}

// productID reads the {id} path parameter, writing a 400 when it is not a
// usable product key.
func (h *InventoryHandler) productID(w http.ResponseWriter, r *http.Request) (string, bool) {
	return pathProductID(w, r, h.logger)
}

func pathProductID(w http.ResponseWriter, r *http.Request, l *slog.Logger) (string, bool) {
	id := chi.URLParam(r, "id")
	if err := validator.Var(id, "required,productid"); err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput(fmt.Sprintf("invalid product id %q", id)), l)
		return "", false
	}
	return id, true
}
