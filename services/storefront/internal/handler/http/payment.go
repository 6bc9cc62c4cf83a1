package http

import (
	"log/slog"
	"net/http"

	"github.com/gothglitter/storefront/pkg/httputil"
	"github.com/gothglitter/storefront/pkg/logger"
	"github.com/gothglitter/storefront/pkg/validator"
	"github.com/gothglitter/storefront/services/storefront/internal/service"
)

// PaymentHandler handles HTTP requests for the payment relay.
type PaymentHandler struct {
	service *service.PaymentService
	logger  *slog.Logger
}

// NewPaymentHandler creates a new payment HTTP handler.
func NewPaymentHandler(svc *service.PaymentService, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: svc,
		logger:  logger,
	}
}

// CreateIntentRequest is the JSON request body for creating a payment intent.
// Amount is in minor units.
type CreateIntentRequest struct {
	Amount   int64  `json:"amount" validate:"required,gte=50"`
	Currency string `json:"currency" validate:"omitempty,currency"`
}

// CreateIntentResponse is what the browser's payment element needs.
type CreateIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
}

// CreateIntent handles POST /api/create-payment-intent
func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req CreateIntentRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	intent, err := h.service.CreateIntent(r.Context(), logger.SessionIDFromContext(r.Context()), req.Amount, req.Currency)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CreateIntentResponse{ClientSecret: intent.ClientSecret})
}
