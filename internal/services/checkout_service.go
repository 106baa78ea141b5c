package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/cutecleansoaps/api/internal/domain"
	"github.com/cutecleansoaps/api/internal/payments"
	"github.com/cutecleansoaps/api/internal/repositories"
)

const (
	maxCheckoutLines       = 20
	maxCheckoutQuantity    = 10
	checkoutIdempotencyTag = "checkout_"
)

var (
	// ErrCheckoutInvalidInput signals the caller provided invalid data.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutUnknownSoap indicates a requested soap is missing or inactive.
	ErrCheckoutUnknownSoap = errors.New("checkout: unknown soap")
	// ErrCheckoutOutOfStock indicates a requested quantity exceeds availability.
	ErrCheckoutOutOfStock = errors.New("checkout: insufficient stock")
)

// CheckoutServiceDeps bundles collaborators required to construct the checkout service.
type CheckoutServiceDeps struct {
	Catalog          repositories.CatalogRepository
	Orders           repositories.OrderRepository
	Payments         payments.Provider
	SuccessURL       string
	CancelURL        string
	Currency         string
	ConfirmationSalt string
	Clock            func() time.Time
	IDGenerator      func() string
	Logger           func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	catalog    repositories.CatalogRepository
	orders     repositories.OrderRepository
	payments   payments.Provider
	successURL string
	cancelURL  string
	currency   string
	salt       string
	clock      func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
}

// NewCheckoutService wires dependencies into a concrete CheckoutService implementation.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("checkout service: catalog repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("checkout service: order repository is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("checkout service: payment provider is required")
	}
	if strings.TrimSpace(deps.SuccessURL) == "" || strings.TrimSpace(deps.CancelURL) == "" {
		return nil, errors.New("checkout service: success and cancel urls are required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &checkoutService{
		catalog:    deps.Catalog,
		orders:     deps.Orders,
		payments:   deps.Payments,
		successURL: strings.TrimSpace(deps.SuccessURL),
		cancelURL:  strings.TrimSpace(deps.CancelURL),
		currency:   strings.TrimSpace(deps.Currency),
		salt:       deps.ConfirmationSalt,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *checkoutService) CreateCheckoutSession(ctx context.Context, items []domain.CheckoutItem) (CheckoutSessionResult, error) {
	if len(items) == 0 {
		return CheckoutSessionResult{}, fmt.Errorf("%w: cart is empty", ErrCheckoutInvalidInput)
	}
	if len(items) > maxCheckoutLines {
		return CheckoutSessionResult{}, fmt.Errorf("%w: at most %d distinct soaps per checkout", ErrCheckoutInvalidInput, maxCheckoutLines)
	}

	seen := make(map[string]bool, len(items))
	lines := make([]payments.CheckoutLineItem, 0, len(items))
	for _, item := range items {
		soapID := strings.TrimSpace(item.SoapID)
		if soapID == "" {
			return CheckoutSessionResult{}, fmt.Errorf("%w: soap id is required", ErrCheckoutInvalidInput)
		}
		if seen[soapID] {
			return CheckoutSessionResult{}, fmt.Errorf("%w: duplicate soap %s", ErrCheckoutInvalidInput, soapID)
		}
		seen[soapID] = true
		if item.Quantity < 1 || item.Quantity > maxCheckoutQuantity {
			return CheckoutSessionResult{}, fmt.Errorf("%w: quantity for %s must be between 1 and %d", ErrCheckoutInvalidInput, soapID, maxCheckoutQuantity)
		}

		product, err := s.catalog.FindProduct(ctx, soapID)
		if err != nil {
			var repoErr repositories.RepositoryError
			if errors.As(err, &repoErr) && repoErr.IsNotFound() {
				return CheckoutSessionResult{}, fmt.Errorf("%w: %s", ErrCheckoutUnknownSoap, soapID)
			}
			return CheckoutSessionResult{}, fmt.Errorf("checkout: load soap %s: %w", soapID, err)
		}
		if !product.Active {
			return CheckoutSessionResult{}, fmt.Errorf("%w: %s", ErrCheckoutUnknownSoap, soapID)
		}
		if product.Stock < item.Quantity {
			return CheckoutSessionResult{}, fmt.Errorf("%w: %s has %d left", ErrCheckoutOutOfStock, soapID, product.Stock)
		}

		// Prices always come from the catalog, never from the client.
		lines = append(lines, payments.CheckoutLineItem{
			SoapID:     soapID,
			Name:       product.Name,
			Quantity:   item.Quantity,
			UnitAmount: product.PriceCents,
		})
	}

	session, err := s.payments.CreateCheckoutSession(ctx, payments.CheckoutSessionRequest{
		Currency:       s.currency,
		SuccessURL:     s.successURL,
		CancelURL:      s.cancelURL,
		IdempotencyKey: checkoutIdempotencyTag + s.newID(),
		Items:          lines,
	})
	if err != nil {
		return CheckoutSessionResult{}, fmt.Errorf("checkout: create session: %w", err)
	}

	s.logger(ctx, "checkout.session.created", map[string]any{
		"sessionId": session.ID,
		"lineItems": len(lines),
	})

	return CheckoutSessionResult{
		SessionID: session.ID,
		URL:       session.URL,
	}, nil
}

func (s *checkoutService) OrderSummary(ctx context.Context, sessionID string) (OrderSummary, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return OrderSummary{}, fmt.Errorf("%w: session id is required", ErrCheckoutInvalidInput)
	}

	order, err := s.orders.FindBySessionID(ctx, sessionID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return OrderSummary{}, fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		}
		return OrderSummary{}, fmt.Errorf("checkout: load order: %w", err)
	}

	return OrderSummary{
		SessionID:        order.SessionID,
		ConfirmationCode: domain.ConfirmationCode(order.SessionID, s.salt),
		AmountTotal:      order.AmountTotal,
		Currency:         order.Currency,
		Status:           order.Status,
		Items:            order.Items,
		CreatedAt:        order.CreatedAt,
	}, nil
}
