package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pdflux-api/internal/domain"
	"pdflux-api/internal/http/middleware"
	"pdflux-api/internal/http/response"
	"pdflux-api/internal/service"
)

// webhookBodyLimit caps gateway webhook payloads.
const webhookBodyLimit = 1 << 20

type PaymentHandler struct {
	paymentSvc    *service.PaymentService
	webhookSecret string
}

func NewPaymentHandler(paymentSvc *service.PaymentService, webhookSecret string) *PaymentHandler {
	return &PaymentHandler{
		paymentSvc:    paymentSvc,
		webhookSecret: webhookSecret,
	}
}

func (h *PaymentHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user", nil)
		return
	}

	var req struct {
		Plan         string `json:"plan"`
		BillingCycle string `json:"billing_cycle"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}

	checkout, err := h.paymentSvc.Initialize(r.Context(), user.ID, domain.Plan(req.Plan), domain.BillingCycle(req.BillingCycle))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownPlan):
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "unknown plan or billing cycle", nil)
		case errors.Is(err, service.ErrGateway):
			response.Error(w, r, http.StatusBadGateway, "GATEWAY_ERROR", "payment gateway unavailable", nil)
		default:
			response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to initialize payment", nil)
		}
		return
	}

	response.JSON(w, r, http.StatusOK, checkout)
}

func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.UserFromContext(r.Context()); !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user", nil)
		return
	}

	reference := chi.URLParam(r, "reference")
	payment, err := h.paymentSvc.Reconcile(r.Context(), reference)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentNotFound):
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "payment not found", nil)
		case errors.Is(err, service.ErrGateway):
			response.Error(w, r, http.StatusBadGateway, "GATEWAY_ERROR", "payment gateway unavailable", nil)
		default:
			response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to verify payment", nil)
		}
		return
	}

	response.JSON(w, r, http.StatusOK, payment)
}

// Webhook handles gateway event deliveries. The signature covers the raw
// body, so the body is read before decoding. Deliveries for references we
// do not know are acknowledged so the gateway stops retrying them.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, webhookBodyLimit))
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "unreadable body", nil)
		return
	}

	signature := r.Header.Get("X-Paystack-Signature")
	if !service.ValidWebhookSignature(h.webhookSecret, body, signature) {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid webhook signature", nil)
		return
	}

	var event struct {
		Event string `json:"event"`
		Data  struct {
			Reference string `json:"reference"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid event payload", nil)
		return
	}

	if event.Event != "charge.success" || event.Data.Reference == "" {
		response.JSON(w, r, http.StatusOK, map[string]any{"received": true})
		return
	}

	if _, err := h.paymentSvc.Reconcile(r.Context(), event.Data.Reference); err != nil {
		if errors.Is(err, service.ErrPaymentNotFound) {
			response.JSON(w, r, http.StatusOK, map[string]any{"received": true})
			return
		}
		if errors.Is(err, service.ErrGateway) {
			response.Error(w, r, http.StatusBadGateway, "GATEWAY_ERROR", "payment gateway unavailable", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to process event", nil)
		return
	}

	response.JSON(w, r, http.StatusOK, map[string]any{"received": true})
}
