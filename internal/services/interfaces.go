package services

import (
	"context"
	"time"

	domain "github.com/cutecleansoaps/api/internal/domain"
)

// Event types published to the order events topic.
const (
	OrderEventCreated       = "order.created"
	OrderEventStatusChanged = "order.status_changed"
)

// OrderEventMessage is the payload published for order lifecycle events.
type OrderEventMessage struct {
	EventID    string    `json:"eventId"`
	Type       string    `json:"type"`
	SessionID  string    `json:"sessionId"`
	Status     string    `json:"status,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// OrderEventPublisher publishes order lifecycle events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEventMessage) (string, error)
}

// FulfillmentResult reports how a verified webhook delivery was handled.
type FulfillmentResult struct {
	// Handled is false for event types that do not drive finalization.
	Handled bool
	// Applied is false when the delivery was a duplicate of an already
	// finalized session.
	Applied bool
	Order   domain.Order
}

// FulfillmentService turns verified payment webhooks into finalized orders.
type FulfillmentService interface {
	// ProcessWebhook verifies the raw payload against the signature header and,
	// for completed checkout sessions, finalizes the order exactly once.
	ProcessWebhook(ctx context.Context, payload []byte, signature string) (FulfillmentResult, error)
}

// OrderAdminService exposes the back-office order workflow.
type OrderAdminService interface {
	ListOrders(ctx context.Context, pager domain.Pagination) (domain.OrderPage, error)
	UpdateOrder(ctx context.Context, sessionID string, update domain.StatusUpdate) (domain.Order, error)
}

// CheckoutSessionResult is the hosted payment page handed back to the storefront.
type CheckoutSessionResult struct {
	SessionID string
	URL       string
}

// OrderSummary is the customer-facing view of a finalized order.
type OrderSummary struct {
	SessionID        string
	ConfirmationCode string
	AmountTotal      int64
	Currency         string
	Status           domain.OrderStatus
	Items            []domain.OrderItem
	CreatedAt        time.Time
}

// CheckoutService creates hosted checkout sessions and serves order summaries.
type CheckoutService interface {
	CreateCheckoutSession(ctx context.Context, items []domain.CheckoutItem) (CheckoutSessionResult, error)
	OrderSummary(ctx context.Context, sessionID string) (OrderSummary, error)
}

// SystemService reports dependency health for readiness probes.
type SystemService interface {
	Health(ctx context.Context) (domain.SystemHealthReport, error)
}
