package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

// StripeLogger defines the logging contract for Stripe provider operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type stripeLineItemLister func(params *stripe.CheckoutSessionListLineItemsParams) ([]*stripe.LineItem, error)

type stripeEventConstructor func(payload []byte, header string, secret string) (stripe.Event, error)

type stripeClients struct {
	sessions       stripeSessionAPI
	listLineItems  stripeLineItemLister
	constructEvent stripeEventConstructor
}

// StripeProviderConfig configures the StripeProvider.
type StripeProviderConfig struct {
	APIKey        string
	WebhookSecret string
	Backends      *stripe.Backends
	Logger        StripeLogger
	Clients       *stripeClients
}

// StripeProvider implements the Provider interface using Stripe APIs.
type StripeProvider struct {
	api           stripeClients
	webhookSecret string
	logger        StripeLogger
}

// NewStripeProvider constructs a Stripe Provider using the given configuration.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Clients == nil {
		return nil, errors.New("stripe: api key is required")
	}

	var clients stripeClients
	if cfg.Clients != nil {
		clients = *cfg.Clients
	} else {
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{
			sessions: sc.CheckoutSessions,
			listLineItems: func(params *stripe.CheckoutSessionListLineItemsParams) ([]*stripe.LineItem, error) {
				iter := sc.CheckoutSessions.ListLineItems(params)
				var items []*stripe.LineItem
				for iter.Next() {
					items = append(items, iter.LineItem())
				}
				if err := iter.Err(); err != nil {
					return nil, err
				}
				return items, nil
			},
		}
	}
	if clients.constructEvent == nil {
		clients.constructEvent = webhook.ConstructEvent
	}
	if clients.sessions == nil || clients.listLineItems == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeProvider{
		api:           clients,
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		logger:        logger,
	}, nil
}

// CreateCheckoutSession creates a Stripe Checkout session carrying the catalog
// id of every soap in product metadata.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error) {
	if p == nil {
		return CheckoutSession{}, errors.New("stripe: provider is nil")
	}
	if len(req.Items) == 0 {
		return CheckoutSession{}, errors.New("stripe: at least one line item is required")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		PaymentMethodTypes: stripe.StringSlice([]string{
			string(stripe.PaymentMethodTypeCard),
		}),
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice([]string{"US"}),
		},
	}

	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}

	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "usd"
	}

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items))
	for _, item := range req.Items {
		line := &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(max64(item.Quantity, 1)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(item.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
					Metadata: map[string]string{
						"soapId": item.SoapID,
					},
				},
			},
		}
		lineItems = append(lineItems, line)
	}
	params.LineItems = lineItems

	session, err := p.api.sessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}

	p.logger(ctx, "payments.stripe.session.created", map[string]any{
		"sessionId": session.ID,
		"currency":  session.Currency,
		"lineItems": len(req.Items),
	})

	return CheckoutSession{
		ID:  session.ID,
		URL: session.URL,
	}, nil
}

// VerifyWebhook authenticates the payload against the Stripe-Signature header.
func (p *StripeProvider) VerifyWebhook(payload []byte, signature string) (WebhookEvent, error) {
	if p == nil {
		return WebhookEvent{}, errors.New("stripe: provider is nil")
	}
	if p.webhookSecret == "" {
		return WebhookEvent{}, errors.New("stripe: webhook secret is not configured")
	}

	event, err := p.api.constructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := WebhookEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}
	if out.Type != EventTypeCheckoutCompleted {
		return out, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return WebhookEvent{}, fmt.Errorf("stripe: decode checkout session: %w", err)
	}

	checkout := &CheckoutCompletedEvent{
		SessionID:   session.ID,
		AmountTotal: session.AmountTotal,
		Currency:    strings.ToLower(string(session.Currency)),
	}
	if session.PaymentIntent != nil {
		checkout.PaymentIntentID = session.PaymentIntent.ID
	}
	if session.CustomerDetails != nil {
		checkout.CustomerEmail = session.CustomerDetails.Email
		checkout.CustomerName = session.CustomerDetails.Name
	}
	if session.ShippingDetails != nil {
		checkout.Shipping.Name = session.ShippingDetails.Name
		if addr := session.ShippingDetails.Address; addr != nil {
			checkout.Shipping.Line1 = addr.Line1
			checkout.Shipping.Line2 = addr.Line2
			checkout.Shipping.City = addr.City
			checkout.Shipping.State = addr.State
			checkout.Shipping.PostalCode = addr.PostalCode
			checkout.Shipping.Country = addr.Country
		}
	}
	out.Checkout = checkout
	return out, nil
}

// SessionLineItems lists a session's line items with product metadata expanded.
func (p *StripeProvider) SessionLineItems(ctx context.Context, sessionID string) ([]ResolvedLineItem, error) {
	if p == nil {
		return nil, errors.New("stripe: provider is nil")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, errors.New("stripe: session id is required")
	}

	params := &stripe.CheckoutSessionListLineItemsParams{
		Session: stripe.String(sessionID),
	}
	params.Context = ctx
	params.AddExpand("data.price.product")

	lines, err := p.api.listLineItems(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: list session line items: %w", err)
	}

	resolved := make([]ResolvedLineItem, 0, len(lines))
	for _, line := range lines {
		if line == nil {
			continue
		}
		item := ResolvedLineItem{
			Name:     line.Description,
			Quantity: line.Quantity,
		}
		if line.Price != nil {
			item.UnitAmount = line.Price.UnitAmount
			if product := line.Price.Product; product != nil {
				item.SoapID = strings.TrimSpace(product.Metadata["soapId"])
				if product.Name != "" {
					item.Name = product.Name
				}
			}
		}
		resolved = append(resolved, item)
	}

	p.logger(ctx, "payments.stripe.session.line_items", map[string]any{
		"sessionId": sessionID,
		"count":     len(resolved),
	})
	return resolved, nil
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
