package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cutecleansoaps/api/internal/platform/httpx"
	"github.com/cutecleansoaps/api/internal/services"
)

const maxWebhookBodySize = defaultMaxBodySize

// WebhookHandlers receives payment provider callbacks.
type WebhookHandlers struct {
	fulfillment services.FulfillmentService
}

// NewWebhookHandlers constructs handlers for the /webhooks group.
func NewWebhookHandlers(fulfillment services.FulfillmentService) (*WebhookHandlers, error) {
	if fulfillment == nil {
		return nil, errors.New("webhook handlers: fulfillment service is required")
	}
	return &WebhookHandlers{fulfillment: fulfillment}, nil
}

// Routes registers the webhook endpoints.
func (h *WebhookHandlers) Routes(r chi.Router) {
	r.Post("/stripe", h.HandleStripe)
}

// HandleStripe processes one webhook delivery. The response code steers the
// provider's retry loop: 400 stops redelivery of unverifiable payloads, 200
// acknowledges handled and duplicate deliveries, 500 requests a retry.
func (h *WebhookHandlers) HandleStripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := readLimitedBody(r, maxWebhookBodySize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_webhook_body", "webhook body is empty or too large", http.StatusBadRequest))
		return
	}

	result, err := h.fulfillment.ProcessWebhook(ctx, payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, services.ErrWebhookSignature) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusBadRequest))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("webhook_processing_failed", "failed to process webhook delivery", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"received":  true,
		"handled":   result.Handled,
		"duplicate": result.Handled && !result.Applied,
	})
}
