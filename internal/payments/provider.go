package payments

import (
	"context"
	"errors"
)

// EventTypeCheckoutCompleted is the only webhook event type that drives order finalization.
const EventTypeCheckoutCompleted = "checkout.session.completed"

// ErrInvalidSignature is returned when a webhook payload fails signature verification.
var ErrInvalidSignature = errors.New("payments: invalid webhook signature")

// CheckoutLineItem describes a single line item to include in a checkout session.
type CheckoutLineItem struct {
	SoapID     string
	Name       string
	Quantity   int64
	UnitAmount int64
}

// CheckoutSessionRequest captures the payload required to create a checkout session.
type CheckoutSessionRequest struct {
	Currency       string
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
	Items          []CheckoutLineItem
}

// CheckoutSession represents the PSP session returned to the client.
type CheckoutSession struct {
	ID  string
	URL string
}

// ShippingDetails carries the shipping destination collected by the PSP.
type ShippingDetails struct {
	Name       string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// CheckoutCompletedEvent is the normalised payload of a completed checkout session.
type CheckoutCompletedEvent struct {
	SessionID       string
	PaymentIntentID string
	AmountTotal     int64
	Currency        string
	CustomerEmail   string
	CustomerName    string
	Shipping        ShippingDetails
}

// WebhookEvent is a verified webhook delivery. Checkout is populated only for
// checkout.session.completed events.
type WebhookEvent struct {
	ID       string
	Type     string
	Checkout *CheckoutCompletedEvent
}

// ResolvedLineItem is a purchased line item resolved against the PSP, carrying
// the catalog id from product metadata. SoapID is empty when the metadata is missing.
type ResolvedLineItem struct {
	SoapID     string
	Name       string
	Quantity   int64
	UnitAmount int64
}

// Provider defines the contract for the payment provider adapter.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error)
	// VerifyWebhook authenticates the raw payload against the signature header
	// and returns the parsed event. ErrInvalidSignature wraps all verification failures.
	VerifyWebhook(payload []byte, signature string) (WebhookEvent, error)
	// SessionLineItems fetches the line items of a checkout session with
	// product metadata expanded.
	SessionLineItems(ctx context.Context, sessionID string) ([]ResolvedLineItem, error)
}
