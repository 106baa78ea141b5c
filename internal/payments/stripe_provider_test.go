package payments

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stripe/stripe-go/v78"
)

type stubSessionAPI struct {
	newFn func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

func (s *stubSessionAPI) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return s.newFn(params)
}

func TestStripeProviderCreateCheckoutSession(t *testing.T) {
	var captured *stripe.CheckoutSessionParams
	provider, err := NewStripeProvider(StripeProviderConfig{
		Clients: &stripeClients{
			sessions: &stubSessionAPI{newFn: func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
				captured = params
				return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/pay/cs_test_1"}, nil
			}},
			listLineItems: func(*stripe.CheckoutSessionListLineItemsParams) ([]*stripe.LineItem, error) {
				return nil, nil
			},
		},
		WebhookSecret: "whsec_test",
	})
	if err != nil {
		t.Fatalf("NewStripeProvider: %v", err)
	}

	session, err := provider.CreateCheckoutSession(context.Background(), CheckoutSessionRequest{
		Currency:       "usd",
		SuccessURL:     "https://shop.example.com/thanks",
		CancelURL:      "https://shop.example.com/cart",
		IdempotencyKey: "idem-1",
		Items: []CheckoutLineItem{
			{SoapID: "lavender-soap", Name: "Lavender Soap", Quantity: 2, UnitAmount: 800},
			{SoapID: "charcoal-soap", Name: "Charcoal Soap", Quantity: 1, UnitAmount: 900},
		},
	})
	if err != nil {
		t.Fatalf("CreateCheckoutSession: %v", err)
	}
	if session.ID != "cs_test_1" || session.URL == "" {
		t.Fatalf("unexpected session %#v", session)
	}

	if captured == nil {
		t.Fatal("expected session params to be captured")
	}
	if got := stripe.StringValue(captured.Mode); got != string(stripe.CheckoutSessionModePayment) {
		t.Fatalf("unexpected mode %q", got)
	}
	if len(captured.LineItems) != 2 {
		t.Fatalf("expected 2 line items, got %d", len(captured.LineItems))
	}
	first := captured.LineItems[0]
	if got := first.PriceData.ProductData.Metadata["soapId"]; got != "lavender-soap" {
		t.Fatalf("expected soapId metadata, got %q", got)
	}
	if stripe.Int64Value(first.PriceData.UnitAmount) != 800 {
		t.Fatalf("unexpected unit amount %d", stripe.Int64Value(first.PriceData.UnitAmount))
	}
	if stripe.Int64Value(first.Quantity) != 2 {
		t.Fatalf("unexpected quantity %d", stripe.Int64Value(first.Quantity))
	}
	if captured.ShippingAddressCollection == nil {
		t.Fatal("expected shipping address collection to be requested")
	}
}

func TestStripeProviderVerifyWebhookRejectsBadSignature(t *testing.T) {
	provider, err := NewStripeProvider(StripeProviderConfig{
		Clients: &stripeClients{
			sessions: &stubSessionAPI{newFn: func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
				return nil, errors.New("unused")
			}},
			listLineItems: func(*stripe.CheckoutSessionListLineItemsParams) ([]*stripe.LineItem, error) {
				return nil, nil
			},
			constructEvent: func([]byte, string, string) (stripe.Event, error) {
				return stripe.Event{}, errors.New("signature mismatch")
			},
		},
		WebhookSecret: "whsec_test",
	})
	if err != nil {
		t.Fatalf("NewStripeProvider: %v", err)
	}

	_, err = provider.VerifyWebhook([]byte(`{}`), "t=1,v1=bad")
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestStripeProviderVerifyWebhookParsesCheckoutSession(t *testing.T) {
	sessionJSON, err := json.Marshal(map[string]any{
		"id":             "cs_test_9",
		"amount_total":   1600,
		"currency":       "usd",
		"payment_intent": map[string]any{"id": "pi_test_9"},
		"customer_details": map[string]any{
			"email": "buyer@example.com",
			"name":  "Pat Buyer",
		},
		"shipping_details": map[string]any{
			"name": "Pat Buyer",
			"address": map[string]any{
				"line1":       "1 Soap Way",
				"city":        "Portland",
				"state":       "OR",
				"postal_code": "97201",
				"country":     "US",
			},
		},
	})
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}

	provider, err := NewStripeProvider(StripeProviderConfig{
		Clients: &stripeClients{
			sessions: &stubSessionAPI{newFn: func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
				return nil, errors.New("unused")
			}},
			listLineItems: func(*stripe.CheckoutSessionListLineItemsParams) ([]*stripe.LineItem, error) {
				return nil, nil
			},
			constructEvent: func(payload []byte, header, secret string) (stripe.Event, error) {
				if secret != "whsec_test" {
					return stripe.Event{}, errors.New("wrong secret")
				}
				return stripe.Event{
					ID:   "evt_1",
					Type: EventTypeCheckoutCompleted,
					Data: &stripe.EventData{Raw: sessionJSON},
				}, nil
			},
		},
		WebhookSecret: "whsec_test",
	})
	if err != nil {
		t.Fatalf("NewStripeProvider: %v", err)
	}

	event, err := provider.VerifyWebhook([]byte(`{}`), "t=1,v1=good")
	if err != nil {
		t.Fatalf("VerifyWebhook: %v", err)
	}
	if event.Type != EventTypeCheckoutCompleted || event.Checkout == nil {
		t.Fatalf("unexpected event %#v", event)
	}
	checkout := event.Checkout
	if checkout.SessionID != "cs_test_9" || checkout.PaymentIntentID != "pi_test_9" {
		t.Fatalf("unexpected identifiers %#v", checkout)
	}
	if checkout.AmountTotal != 1600 || checkout.Currency != "usd" {
		t.Fatalf("unexpected totals %#v", checkout)
	}
	if checkout.CustomerEmail != "buyer@example.com" {
		t.Fatalf("unexpected customer email %q", checkout.CustomerEmail)
	}
	if checkout.Shipping.City != "Portland" || checkout.Shipping.Country != "US" {
		t.Fatalf("unexpected shipping %#v", checkout.Shipping)
	}
}

func TestStripeProviderVerifyWebhookIgnoresOtherEvents(t *testing.T) {
	provider, err := NewStripeProvider(StripeProviderConfig{
		Clients: &stripeClients{
			sessions: &stubSessionAPI{newFn: func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
				return nil, errors.New("unused")
			}},
			listLineItems: func(*stripe.CheckoutSessionListLineItemsParams) ([]*stripe.LineItem, error) {
				return nil, nil
			},
			constructEvent: func([]byte, string, string) (stripe.Event, error) {
				return stripe.Event{ID: "evt_2", Type: "payment_intent.created"}, nil
			},
		},
		WebhookSecret: "whsec_test",
	})
	if err != nil {
		t.Fatalf("NewStripeProvider: %v", err)
	}

	event, err := provider.VerifyWebhook([]byte(`{}`), "t=1,v1=good")
	if err != nil {
		t.Fatalf("VerifyWebhook: %v", err)
	}
	if event.Checkout != nil {
		t.Fatalf("expected no checkout payload for %s", event.Type)
	}
}

func TestStripeProviderSessionLineItems(t *testing.T) {
	provider, err := NewStripeProvider(StripeProviderConfig{
		Clients: &stripeClients{
			sessions: &stubSessionAPI{newFn: func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
				return nil, errors.New("unused")
			}},
			listLineItems: func(params *stripe.CheckoutSessionListLineItemsParams) ([]*stripe.LineItem, error) {
				if stripe.StringValue(params.Session) != "cs_test_9" {
					return nil, errors.New("unexpected session id")
				}
				return []*stripe.LineItem{
					{
						Description: "Lavender Soap",
						Quantity:    2,
						Price: &stripe.Price{
							UnitAmount: 800,
							Product: &stripe.Product{
								Name:     "Lavender Soap",
								Metadata: map[string]string{"soapId": "lavender-soap"},
							},
						},
					},
					{
						Description: "Mystery Item",
						Quantity:    1,
						Price:       &stripe.Price{UnitAmount: 500, Product: &stripe.Product{}},
					},
				}, nil
			},
		},
		WebhookSecret: "whsec_test",
	})
	if err != nil {
		t.Fatalf("NewStripeProvider: %v", err)
	}

	items, err := provider.SessionLineItems(context.Background(), "cs_test_9")
	if err != nil {
		t.Fatalf("SessionLineItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].SoapID != "lavender-soap" || items[0].Quantity != 2 || items[0].UnitAmount != 800 {
		t.Fatalf("unexpected first item %#v", items[0])
	}
	if items[1].SoapID != "" {
		t.Fatalf("expected empty soap id for missing metadata, got %q", items[1].SoapID)
	}
}
