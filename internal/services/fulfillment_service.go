package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/cutecleansoaps/api/internal/domain"
	"github.com/cutecleansoaps/api/internal/notifications"
	"github.com/cutecleansoaps/api/internal/payments"
	"github.com/cutecleansoaps/api/internal/repositories"
)

var (
	// ErrWebhookSignature indicates the delivery failed signature verification.
	ErrWebhookSignature = errors.New("fulfillment: invalid webhook signature")
	// ErrWebhookPayload indicates the verified payload is missing required data.
	ErrWebhookPayload = errors.New("fulfillment: unusable webhook payload")
)

// FulfillmentServiceDeps bundles collaborators required to construct the fulfillment service.
type FulfillmentServiceDeps struct {
	Orders           repositories.OrderRepository
	Payments         payments.Provider
	Mailer           notifications.Mailer
	Events           OrderEventPublisher
	OwnerRecipients  []string
	ConfirmationSalt string
	Clock            func() time.Time
	IDGenerator      func() string
	Logger           func(ctx context.Context, event string, fields map[string]any)
}

type fulfillmentService struct {
	orders          repositories.OrderRepository
	payments        payments.Provider
	mailer          notifications.Mailer
	events          OrderEventPublisher
	ownerRecipients []string
	salt            string
	clock           func() time.Time
	newID           func() string
	logger          func(context.Context, string, map[string]any)
}

// NewFulfillmentService wires dependencies into a concrete FulfillmentService implementation.
func NewFulfillmentService(deps FulfillmentServiceDeps) (FulfillmentService, error) {
	if deps.Orders == nil {
		return nil, errors.New("fulfillment service: order repository is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("fulfillment service: payment provider is required")
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

	return &fulfillmentService{
		orders:          deps.Orders,
		payments:        deps.Payments,
		mailer:          deps.Mailer,
		events:          deps.Events,
		ownerRecipients: deps.OwnerRecipients,
		salt:            deps.ConfirmationSalt,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *fulfillmentService) ProcessWebhook(ctx context.Context, payload []byte, signature string) (FulfillmentResult, error) {
	event, err := s.payments.VerifyWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			return FulfillmentResult{}, fmt.Errorf("%w: %v", ErrWebhookSignature, err)
		}
		return FulfillmentResult{}, err
	}

	if event.Checkout == nil {
		s.logger(ctx, "fulfillment.webhook.ignored", map[string]any{
			"eventId":   event.ID,
			"eventType": event.Type,
		})
		return FulfillmentResult{Handled: false}, nil
	}
	checkout := event.Checkout
	if strings.TrimSpace(checkout.SessionID) == "" {
		return FulfillmentResult{}, fmt.Errorf("%w: missing session id", ErrWebhookPayload)
	}

	lines, err := s.payments.SessionLineItems(ctx, checkout.SessionID)
	if err != nil {
		return FulfillmentResult{}, fmt.Errorf("fulfillment: resolve line items: %w", err)
	}

	items, demands := s.collapseLineItems(ctx, checkout.SessionID, lines)
	if len(demands) == 0 {
		return FulfillmentResult{}, fmt.Errorf("%w: no line items resolve to catalog soaps", ErrWebhookPayload)
	}

	now := s.clock()
	order := domain.Order{
		SessionID:       checkout.SessionID,
		PaymentIntentID: checkout.PaymentIntentID,
		AmountTotal:     checkout.AmountTotal,
		Currency:        checkout.Currency,
		CustomerEmail:   checkout.CustomerEmail,
		CustomerName:    checkout.CustomerName,
		Shipping: domain.ShippingAddress{
			Name:       checkout.Shipping.Name,
			Line1:      checkout.Shipping.Line1,
			Line2:      checkout.Shipping.Line2,
			City:       checkout.Shipping.City,
			State:      checkout.Shipping.State,
			PostalCode: checkout.Shipping.PostalCode,
			Country:    checkout.Shipping.Country,
		},
		Items:  items,
		Status: domain.OrderStatusPaid,
	}

	// Retried checkout sessions for the same payment share a payment intent,
	// so it makes the stronger idempotency key when present.
	markerID := strings.TrimSpace(checkout.PaymentIntentID)
	if markerID == "" {
		markerID = checkout.SessionID
	}

	result, err := s.orders.Finalize(ctx, repositories.FinalizeOrderRequest{
		MarkerID: markerID,
		Order:    order,
		Demands:  demands,
		Now:      now,
	})
	if err != nil {
		return FulfillmentResult{}, fmt.Errorf("fulfillment: finalize order: %w", err)
	}

	if !result.Applied {
		s.logger(ctx, "fulfillment.webhook.duplicate", map[string]any{
			"eventId":   event.ID,
			"sessionId": checkout.SessionID,
			"markerId":  markerID,
		})
		return FulfillmentResult{Handled: true, Applied: false}, nil
	}

	s.logger(ctx, "fulfillment.order.created", map[string]any{
		"eventId":     event.ID,
		"sessionId":   result.Order.SessionID,
		"amountTotal": result.Order.AmountTotal,
		"items":       len(result.Order.Items),
	})

	// The order is durable at this point. Email and event delivery are best
	// effort and must never surface an error that would make Stripe redeliver.
	s.sendOrderEmails(ctx, result.Order)
	s.publishEvent(ctx, OrderEventMessage{
		EventID:    s.newID(),
		Type:       OrderEventCreated,
		SessionID:  result.Order.SessionID,
		Status:     string(result.Order.Status),
		OccurredAt: now,
	})

	return FulfillmentResult{Handled: true, Applied: true, Order: result.Order}, nil
}

// collapseLineItems merges duplicate soaps into single stock demands and drops
// lines without catalog metadata.
func (s *fulfillmentService) collapseLineItems(ctx context.Context, sessionID string, lines []payments.ResolvedLineItem) ([]domain.OrderItem, []domain.StockDemand) {
	items := make([]domain.OrderItem, 0, len(lines))
	index := make(map[string]int, len(lines))

	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		soapID := strings.TrimSpace(line.SoapID)
		if soapID == "" {
			s.logger(ctx, "fulfillment.line_item.unresolved", map[string]any{
				"sessionId": sessionID,
				"name":      line.Name,
				"quantity":  line.Quantity,
			})
			continue
		}
		if i, ok := index[soapID]; ok {
			items[i].Quantity += line.Quantity
			continue
		}
		index[soapID] = len(items)
		items = append(items, domain.OrderItem{
			SoapID:     soapID,
			Name:       line.Name,
			Quantity:   line.Quantity,
			UnitAmount: line.UnitAmount,
		})
	}

	demands := make([]domain.StockDemand, 0, len(items))
	for _, item := range items {
		demands = append(demands, domain.StockDemand{SoapID: item.SoapID, Quantity: item.Quantity})
	}
	return items, demands
}

func (s *fulfillmentService) sendOrderEmails(ctx context.Context, order domain.Order) {
	if s.mailer == nil {
		return
	}

	if len(s.ownerRecipients) > 0 {
		msg := notifications.OwnerOrderEmail(order)
		msg.To = s.ownerRecipients
		if _, err := s.mailer.Send(ctx, msg); err != nil {
			s.logger(ctx, "fulfillment.email.owner_failed", map[string]any{
				"sessionId": order.SessionID,
				"error":     err.Error(),
			})
		}
	}

	if strings.TrimSpace(order.CustomerEmail) != "" {
		code := domain.ConfirmationCode(order.SessionID, s.salt)
		if _, err := s.mailer.Send(ctx, notifications.CustomerConfirmationEmail(order, code)); err != nil {
			s.logger(ctx, "fulfillment.email.confirmation_failed", map[string]any{
				"sessionId": order.SessionID,
				"error":     err.Error(),
			})
		}
	}
}

func (s *fulfillmentService) publishEvent(ctx context.Context, event OrderEventMessage) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "fulfillment.event.publish_failed", map[string]any{
			"eventId":   event.EventID,
			"type":      event.Type,
			"sessionId": event.SessionID,
			"error":     err.Error(),
		})
	}
}
