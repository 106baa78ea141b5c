package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/cutecleansoaps/api/internal/domain"
	"github.com/cutecleansoaps/api/internal/platform/httpx"
	"github.com/cutecleansoaps/api/internal/services"
)

// CheckoutHandlers serves the public storefront endpoints.
type CheckoutHandlers struct {
	checkout services.CheckoutService
}

// NewCheckoutHandlers constructs handlers for the storefront group.
func NewCheckoutHandlers(checkout services.CheckoutService) (*CheckoutHandlers, error) {
	if checkout == nil {
		return nil, errors.New("checkout handlers: checkout service is required")
	}
	return &CheckoutHandlers{checkout: checkout}, nil
}

// Routes registers the storefront endpoints.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	r.Post("/checkout-session", h.CreateCheckoutSession)
	r.Get("/order-summary", h.OrderSummary)
}

type checkoutSessionRequest struct {
	Items []struct {
		SoapID   string `json:"soapId"`
		Quantity int64  `json:"quantity"`
	} `json:"items"`
}

// CreateCheckoutSession exchanges a cart for a hosted payment page URL.
func (h *CheckoutHandlers) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := readLimitedBody(r, defaultMaxBodySize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request_body", "request body is empty or too large", http.StatusBadRequest))
		return
	}

	var req checkoutSessionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request_body", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	items := make([]domain.CheckoutItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.CheckoutItem{
			SoapID:   item.SoapID,
			Quantity: item.Quantity,
		})
	}

	session, err := h.checkout.CreateCheckoutSession(ctx, items)
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"sessionId": session.SessionID,
		"url":       session.URL,
	})
}

// OrderSummary returns the customer-facing view of a finalized order.
func (h *CheckoutHandlers) OrderSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("missing_session_id", "session_id query parameter is required", http.StatusBadRequest))
		return
	}

	summary, err := h.checkout.OrderSummary(ctx, sessionID)
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	items := make([]map[string]any, 0, len(summary.Items))
	for _, item := range summary.Items {
		items = append(items, map[string]any{
			"soapId":     item.SoapID,
			"name":       item.Name,
			"quantity":   item.Quantity,
			"unitAmount": item.UnitAmount,
		})
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"sessionId":        summary.SessionID,
		"confirmationCode": summary.ConfirmationCode,
		"amountTotal":      summary.AmountTotal,
		"currency":         summary.Currency,
		"status":           string(summary.Status),
		"items":            items,
		"createdAt":        formatTime(summary.CreatedAt),
	})
}

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_checkout_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutUnknownSoap):
		httpx.WriteError(ctx, w, httpx.NewError("unknown_soap", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutOutOfStock):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "no order for that checkout session", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_failed", "checkout is temporarily unavailable", http.StatusInternalServerError))
	}
}
