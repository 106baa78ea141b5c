package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/cutecleansoaps/api/internal/domain"
	"github.com/cutecleansoaps/api/internal/platform/httpx"
	"github.com/cutecleansoaps/api/internal/services"
)

// AdminOrderHandlers serves the back-office order endpoints.
type AdminOrderHandlers struct {
	orders services.OrderAdminService
}

// NewAdminOrderHandlers constructs handlers for the /admin group.
func NewAdminOrderHandlers(orders services.OrderAdminService) (*AdminOrderHandlers, error) {
	if orders == nil {
		return nil, errors.New("admin order handlers: order admin service is required")
	}
	return &AdminOrderHandlers{orders: orders}, nil
}

// Routes registers the admin order endpoints.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	r.Get("/orders", h.ListOrders)
	r.Patch("/orders/{sessionID}", h.UpdateOrder)
}

// ListOrders returns orders newest first with cursor pagination.
func (h *AdminOrderHandlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	pager := domain.Pagination{
		PageToken: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_limit", "limit must be an integer", http.StatusBadRequest))
			return
		}
		pager.PageSize = limit
	}

	page, err := h.orders.ListOrders(ctx, pager)
	if err != nil {
		writeAdminOrderError(ctx, w, err)
		return
	}

	orders := make([]map[string]any, 0, len(page.Orders))
	for _, order := range page.Orders {
		orders = append(orders, orderResponse(order))
	}

	payload := map[string]any{
		"orders": orders,
	}
	if page.NextPageToken != "" {
		payload["nextCursor"] = page.NextPageToken
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

type updateOrderRequest struct {
	Status         *string `json:"status"`
	TrackingNumber *string `json:"trackingNumber"`
}

// UpdateOrder applies a partial status or tracking update to an order.
func (h *AdminOrderHandlers) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("missing_session_id", "order session id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, defaultMaxBodySize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request_body", "request body is empty or too large", http.StatusBadRequest))
		return
	}

	var req updateOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request_body", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	update := domain.StatusUpdate{TrackingNumber: req.TrackingNumber}
	if req.Status != nil {
		status, ok := domain.ParseOrderStatus(*req.Status)
		if !ok {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_status", "status must be one of paid, packing, shipped, delivered, canceled", http.StatusBadRequest))
			return
		}
		update.Status = &status
	}

	order, err := h.orders.UpdateOrder(ctx, sessionID, update)
	if err != nil {
		writeAdminOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse(order))
}

func writeAdminOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_order_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", "order changed concurrently; retry", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_update_failed", "order operation failed", http.StatusInternalServerError))
	}
}
