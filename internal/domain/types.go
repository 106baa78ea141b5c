package domain

import (
	"strings"
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// OrderStatus enumerates the fulfillment lifecycle of an order.
type OrderStatus string

const (
	// OrderStatusPaid is the initial status written when a checkout completes.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusPacking indicates the order is being prepared for shipment.
	OrderStatusPacking OrderStatus = "packing"
	// OrderStatusShipped indicates the order left the workshop; requires a tracking number.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates the carrier confirmed delivery.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCanceled indicates the order was canceled after payment.
	OrderStatusCanceled OrderStatus = "canceled"
)

// ParseOrderStatus validates and normalises a status string supplied by clients.
func ParseOrderStatus(value string) (OrderStatus, bool) {
	switch OrderStatus(strings.ToLower(strings.TrimSpace(value))) {
	case OrderStatusPaid:
		return OrderStatusPaid, true
	case OrderStatusPacking:
		return OrderStatusPacking, true
	case OrderStatusShipped:
		return OrderStatusShipped, true
	case OrderStatusDelivered:
		return OrderStatusDelivered, true
	case OrderStatusCanceled:
		return OrderStatusCanceled, true
	default:
		return "", false
	}
}

const (
	// TrackingNumberMinLen is the minimum accepted tracking number length.
	TrackingNumberMinLen = 8
	// TrackingNumberMaxLen is the maximum accepted tracking number length.
	TrackingNumberMaxLen = 40
)

// ValidTrackingNumber reports whether the supplied tracking number is acceptable for shipping.
func ValidTrackingNumber(value string) bool {
	trimmed := strings.TrimSpace(value)
	return len(trimmed) >= TrackingNumberMinLen && len(trimmed) <= TrackingNumberMaxLen
}

// ShippingAddress captures the shipping destination collected at checkout.
type ShippingAddress struct {
	Name       string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// OrderItem is a purchased line item resolved back to a catalog soap.
type OrderItem struct {
	SoapID     string
	Name       string
	Quantity   int64
	UnitAmount int64
}

// Order is the durable record created exactly once per completed checkout session.
type Order struct {
	SessionID           string
	PaymentIntentID     string
	AmountTotal         int64
	Currency            string
	CustomerEmail       string
	CustomerName        string
	Shipping            ShippingAddress
	Items               []OrderItem
	Status              OrderStatus
	TrackingNumber      string
	ShippedAt           *time.Time
	DeliveredAt         *time.Time
	ShippingEmailSentAt *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Product is a catalog soap with live stock and price.
type Product struct {
	ID          string
	Name        string
	PriceCents  int64
	Stock       int64
	Active      bool
	RatingAvg   float64
	RatingCount int64
}

// StockDemand is the quantity required from a single catalog soap.
type StockDemand struct {
	SoapID   string
	Quantity int64
}

// CheckoutItem is a cart entry submitted to session creation.
type CheckoutItem struct {
	SoapID   string
	Quantity int64
}

// OrderPage is one page of an order listing plus the continuation token.
type OrderPage struct {
	Orders        []Order
	NextPageToken string
}

// StatusUpdate carries the admin-requested mutation for an order.
type StatusUpdate struct {
	Status         *OrderStatus
	TrackingNumber *string
}

// HealthStatus enumerates dependency health states.
type HealthStatus string

const (
	// HealthStatusOK indicates the dependency responded normally.
	HealthStatusOK HealthStatus = "ok"
	// HealthStatusDegraded indicates the dependency responded with errors.
	HealthStatusDegraded HealthStatus = "degraded"
	// HealthStatusError indicates the dependency failed or timed out.
	HealthStatusError HealthStatus = "error"
)

// SystemHealthCheck captures the outcome of a single dependency probe.
type SystemHealthCheck struct {
	Status    HealthStatus
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency probes into an overall status.
type SystemHealthReport struct {
	Status      HealthStatus
	Checks      map[string]SystemHealthCheck
	GeneratedAt time.Time
}
