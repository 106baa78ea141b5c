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
	"github.com/cutecleansoaps/api/internal/platform/pagination"
	"github.com/cutecleansoaps/api/internal/repositories"
)

const (
	defaultOrderPageSize = 50
	maxOrderPageSize     = 200
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderConflict indicates concurrent updates collided.
	ErrOrderConflict = errors.New("order: conflict")
)

// OrderAdminServiceDeps bundles collaborators required to construct the order admin service.
type OrderAdminServiceDeps struct {
	Orders      repositories.OrderRepository
	Mailer      notifications.Mailer
	Events      OrderEventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderAdminService struct {
	orders repositories.OrderRepository
	mailer notifications.Mailer
	events OrderEventPublisher
	clock  func() time.Time
	newID  func() string
	logger func(context.Context, string, map[string]any)
}

// NewOrderAdminService wires dependencies into a concrete OrderAdminService implementation.
func NewOrderAdminService(deps OrderAdminServiceDeps) (OrderAdminService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order admin service: order repository is required")
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

	return &orderAdminService{
		orders: deps.Orders,
		mailer: deps.Mailer,
		events: deps.Events,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *orderAdminService) ListOrders(ctx context.Context, pager domain.Pagination) (domain.OrderPage, error) {
	pager.PageSize = pagination.ClampPageSize(pager.PageSize, defaultOrderPageSize, maxOrderPageSize)

	page, err := s.orders.List(ctx, pager)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidPageToken) {
			return domain.OrderPage{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
		}
		return domain.OrderPage{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderAdminService) UpdateOrder(ctx context.Context, sessionID string, update domain.StatusUpdate) (domain.Order, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Order{}, fmt.Errorf("%w: session id is required", ErrOrderInvalidInput)
	}
	if update.Status == nil && update.TrackingNumber == nil {
		return domain.Order{}, fmt.Errorf("%w: nothing to update", ErrOrderInvalidInput)
	}
	if update.TrackingNumber != nil {
		tracking := strings.TrimSpace(*update.TrackingNumber)
		if !domain.ValidTrackingNumber(tracking) {
			return domain.Order{}, fmt.Errorf("%w: tracking number must be %d to %d characters",
				ErrOrderInvalidInput, domain.TrackingNumberMinLen, domain.TrackingNumberMaxLen)
		}
		update.TrackingNumber = &tracking
	}

	now := s.clock()
	var previous domain.Order
	updated, err := s.orders.ApplyStatusUpdate(ctx, sessionID, func(current domain.Order) (domain.Order, error) {
		previous = current

		next := current
		if update.Status != nil {
			next.Status = *update.Status
		}
		if update.TrackingNumber != nil {
			next.TrackingNumber = *update.TrackingNumber
		}
		if next.Status == domain.OrderStatusShipped && strings.TrimSpace(next.TrackingNumber) == "" {
			return domain.Order{}, fmt.Errorf("%w: shipped orders require a tracking number", ErrOrderInvalidInput)
		}
		if next.Status == domain.OrderStatusShipped && next.ShippedAt == nil {
			next.ShippedAt = &now
		}
		if next.Status == domain.OrderStatusDelivered && next.DeliveredAt == nil {
			next.DeliveredAt = &now
		}
		next.UpdatedAt = now
		return next, nil
	})
	if err != nil {
		if errors.Is(err, ErrOrderInvalidInput) {
			return domain.Order{}, err
		}
		return domain.Order{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "orders.admin.updated", map[string]any{
		"sessionId":      updated.SessionID,
		"status":         string(updated.Status),
		"trackingNumber": updated.TrackingNumber,
	})

	if s.shouldSendShippingEmail(previous, updated) {
		s.sendShippingEmail(ctx, updated, now)
	}

	if previous.Status != updated.Status {
		s.publishStatusEvent(ctx, updated, now)
	}

	return updated, nil
}

// shouldSendShippingEmail gates the at-most-once shipping notification. It
// fires when the order newly enters shipped, or when a tracking number first
// lands on the order, and only while no prior email is recorded.
func (s *orderAdminService) shouldSendShippingEmail(previous, updated domain.Order) bool {
	if s.mailer == nil {
		return false
	}
	if updated.ShippingEmailSentAt != nil {
		return false
	}
	if strings.TrimSpace(updated.CustomerEmail) == "" {
		return false
	}
	newlyShipped := previous.Status != domain.OrderStatusShipped &&
		updated.Status == domain.OrderStatusShipped
	trackingArrived := strings.TrimSpace(previous.TrackingNumber) == "" &&
		strings.TrimSpace(updated.TrackingNumber) != ""
	return newlyShipped || trackingArrived
}

func (s *orderAdminService) sendShippingEmail(ctx context.Context, order domain.Order, now time.Time) {
	if _, err := s.mailer.Send(ctx, notifications.ShippingEmail(order)); err != nil {
		s.logger(ctx, "orders.admin.shipping_email_failed", map[string]any{
			"sessionId": order.SessionID,
			"error":     err.Error(),
		})
		return
	}
	if err := s.orders.MarkShippingEmailSent(ctx, order.SessionID, now); err != nil {
		s.logger(ctx, "orders.admin.shipping_email_stamp_failed", map[string]any{
			"sessionId": order.SessionID,
			"error":     err.Error(),
		})
	}
}

func (s *orderAdminService) publishStatusEvent(ctx context.Context, order domain.Order, now time.Time) {
	if s.events == nil {
		return
	}
	event := OrderEventMessage{
		EventID:    s.newID(),
		Type:       OrderEventStatusChanged,
		SessionID:  order.SessionID,
		Status:     string(order.Status),
		OccurredAt: now,
	}
	if _, err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "orders.admin.event_publish_failed", map[string]any{
			"eventId":   event.EventID,
			"sessionId": event.SessionID,
			"error":     err.Error(),
		})
	}
}

func (s *orderAdminService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var orderErr *repositories.OrderError
	if errors.As(err, &orderErr) {
		switch orderErr.Code {
		case repositories.OrderErrorNotFound:
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repositories.OrderErrorInvalidState:
			return fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
		}
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}
