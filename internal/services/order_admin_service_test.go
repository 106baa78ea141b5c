package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	domain "github.com/cutecleansoaps/api/internal/domain"
	"github.com/cutecleansoaps/api/internal/platform/pagination"
	"github.com/cutecleansoaps/api/internal/repositories"
)

func shippedCandidateOrder() domain.Order {
	return domain.Order{
		SessionID:     "cs_test_1",
		AmountTotal:   1600,
		Currency:      "usd",
		CustomerEmail: "buyer@example.com",
		CustomerName:  "Pat Buyer",
		Status:        domain.OrderStatusPacking,
		CreatedAt:     time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
	}
}

func applyAgainst(order domain.Order) func(context.Context, string, func(domain.Order) (domain.Order, error)) (domain.Order, error) {
	return func(_ context.Context, sessionID string, fn func(domain.Order) (domain.Order, error)) (domain.Order, error) {
		if sessionID != order.SessionID {
			return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorNotFound, "order not found", nil)
		}
		return fn(order)
	}
}

func TestListOrdersClampsPageSize(t *testing.T) {
	var seen []int
	orders := &fakeOrderRepository{
		listFn: func(_ context.Context, pager domain.Pagination) (domain.OrderPage, error) {
			seen = append(seen, pager.PageSize)
			return domain.OrderPage{}, nil
		},
	}
	svc, err := NewOrderAdminService(OrderAdminServiceDeps{Orders: orders})
	if err != nil {
		t.Fatalf("NewOrderAdminService: %v", err)
	}

	cases := []struct {
		requested int
		want      int
	}{
		{0, 50},
		{-3, 50},
		{25, 25},
		{500, 200},
	}
	for _, tc := range cases {
		if _, err := svc.ListOrders(context.Background(), domain.Pagination{PageSize: tc.requested}); err != nil {
			t.Fatalf("ListOrders(%d): %v", tc.requested, err)
		}
	}
	for i, tc := range cases {
		if seen[i] != tc.want {
			t.Errorf("requested %d: repository saw %d, want %d", tc.requested, seen[i], tc.want)
		}
	}
}

func TestListOrdersMapsInvalidPageToken(t *testing.T) {
	orders := &fakeOrderRepository{
		listFn: func(context.Context, domain.Pagination) (domain.OrderPage, error) {
			return domain.OrderPage{}, fmt.Errorf("%w: garbage", pagination.ErrInvalidPageToken)
		},
	}
	svc, err := NewOrderAdminService(OrderAdminServiceDeps{Orders: orders})
	if err != nil {
		t.Fatalf("NewOrderAdminService: %v", err)
	}

	_, err = svc.ListOrders(context.Background(), domain.Pagination{PageToken: "%%%"})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
	}
}

func TestUpdateOrderRequiresSomeChange(t *testing.T) {
	svc, err := NewOrderAdminService(OrderAdminServiceDeps{Orders: &fakeOrderRepository{}})
	if err != nil {
		t.Fatalf("NewOrderAdminService: %v", err)
	}

	_, err = svc.UpdateOrder(context.Background(), "cs_test_1", domain.StatusUpdate{})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
	}
}

func TestUpdateOrderRejectsShortTracking(t *testing.T) {
	svc, err := NewOrderAdminService(OrderAdminServiceDeps{Orders: &fakeOrderRepository{}})
	if err != nil {
		t.Fatalf("NewOrderAdminService: %v", err)
	}

	tracking := "SHORT"
	_, err = svc.UpdateOrder(context.Background(), "cs_test_1", domain.StatusUpdate{TrackingNumber: &tracking})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
	}
}

func TestUpdateOrderShippedRequiresTracking(t *testing.T) {
	orders := &fakeOrderRepository{applyFn: applyAgainst(shippedCandidateOrder())}
	svc, err := NewOrderAdminService(OrderAdminServiceDeps{Orders: orders})
	if err != nil {
		t.Fatalf("NewOrderAdminService: %v", err)
	}

	shipped := domain.OrderStatusShipped
	_, err = svc.UpdateOrder(context.Background(), "cs_test_1", domain.StatusUpdate{Status: &shipped})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
	}
}

func TestUpdateOrderShipsAndSendsEmailOnce(t *testing.T) {
	now := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)

	var stampedAt *time.Time
	orders := &fakeOrderRepository{
		applyFn: applyAgainst(shippedCandidateOrder()),
		markFn: func(_ context.Context, sessionID string, sentAt time.Time) error {
			if sessionID != "cs_test_1" {
				return fmt.Errorf("unexpected session %s", sessionID)
			}
			stampedAt = &sentAt
			return nil
		},
	}
	mailer := &fakeMailer{}
	events := &fakeEventPublisher{}

	svc, err := NewOrderAdminService(OrderAdminServiceDeps{
		Orders:      orders,
		Mailer:      mailer,
		Events:      events,
		Clock:       fixedClock(now),
		IDGenerator: sequenceIDs("01EVT1"),
	})
	if err != nil {
		t.Fatalf("NewOrderAdminService: %v", err)
	}

	shipped := domain.OrderStatusShipped
	tracking := "TRACK12345"
	updated, err := svc.UpdateOrder(context.Background(), "cs_test_1", domain.StatusUpdate{
		Status:         &shipped,
		TrackingNumber: &tracking,
	})
	if err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}
	if updated.Status != domain.OrderStatusShipped || updated.TrackingNumber != "TRACK12345" {
		t.Fatalf("unexpected order %#v", updated)
	}
	if !updated.UpdatedAt.Equal(now) {
		t.Fatalf("expected updatedAt %v, got %v", now, updated.UpdatedAt)
	}

	if len(mailer.sent) != 1 {
		t.Fatalf("expected one shipping email, got %d", len(mailer.sent))
	}
	if mailer.sent[0].To[0] != "buyer@example.com" {
		t.Fatalf("unexpected recipient %v", mailer.sent[0].To)
	}
	if stampedAt == nil || !stampedAt.Equal(now) {
		t.Fatalf("expected shipping email stamp at %v, got %v", now, stampedAt)
	}

	if len(events.published) != 1 || events.published[0].Type != OrderEventStatusChanged {
		t.Fatalf("expected status changed event, got %#v", events.published)
	}
	if events.published[0].Status != string(domain.OrderStatusShipped) {
		t.Fatalf("unexpected event status %q", events.published[0].Status)
	}
}

func TestUpdateOrderStampsShippedAt(t *testing.T) {
	now := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	orders := &fakeOrderRepository{applyFn: applyAgainst(shippedCandidateOrder())}

	svc, err := NewOrderAdminService(OrderAdminServiceDeps{Orders: orders, Clock: fixedClock(now)})
	if err != nil {
		t.Fatalf("NewOrderAdminService: %v", err)
	}

	shipped := domain.OrderStatusShipped
	tracking := "TRACK12345"
	updated, err := svc.UpdateOrder(context.Background(), "cs_test_1", domain.StatusUpdate{
		Status:         &shipped,
		TrackingNumber: &tracking,
	})
	if err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}
	if updated.ShippedAt == nil || !updated.ShippedAt.Equal(now) {
		t.Fatalf("expected shippedAt %v, got %v", now, updated.ShippedAt)
	}
	if updated.DeliveredAt != nil {
		t.Fatalf("expected no deliveredAt, got %v", updated.DeliveredAt)
	}
}

func TestUpdateOrderStampsDeliveredAtOnce(t *testing.T) {
	shippedAt := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	now := time.Date(2026, time.March, 18, 16, 30, 0, 0, time.UTC)

	order := shippedCandidateOrder()
	order.Status = domain.OrderStatusShipped
	order.TrackingNumber = "TRACK12345"
	order.ShippedAt = &shippedAt

	orders := &fakeOrderRepository{applyFn: applyAgainst(order)}
	svc, err := NewOrderAdminService(OrderAdminServiceDeps{Orders: orders, Clock: fixedClock(now)})
	if err != nil {
		t.Fatalf("NewOrderAdminService: %v", err)
	}

	delivered := domain.OrderStatusDelivered
	updated, err := svc.UpdateOrder(context.Background(), "cs_test_1", domain.StatusUpdate{Status: &delivered})
	if err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}
	if updated.DeliveredAt == nil || !updated.DeliveredAt.Equal(now) {
		t.Fatalf("expected deliveredAt %v, got %v", now, updated.DeliveredAt)
	}
	if updated.ShippedAt == nil || !updated.ShippedAt.Equal(shippedAt) {
		t.Fatalf("shippedAt changed: want %v, got %v", shippedAt, updated.ShippedAt)
	}
}

func TestUpdateOrderEmailsWhenTrackingAddedBeforeShipping(t *testing.T) {
	// Tracking sometimes lands while the order is still being packed.
	now := time.Date(2026, time.March, 13, 15, 0, 0, 0, time.UTC)
	orders := &fakeOrderRepository{applyFn: applyAgainst(shippedCandidateOrder())}
	mailer := &fakeMailer{}

	svc, err := NewOrderAdminService(OrderAdminServiceDeps{Orders: orders, Mailer: mailer, Clock: fixedClock(now)})
	if err != nil {
		t.Fatalf("NewOrderAdminService: %v", err)
	}

	tracking := "9400100000000000000000"
	updated, err := svc.UpdateOrder(context.Background(), "cs_test_1", domain.StatusUpdate{TrackingNumber: &tracking})
	if err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}
	if updated.Status != domain.OrderStatusPacking {
		t.Fatalf("unexpected status %q", updated.Status)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("expected one shipping email, got %d", len(mailer.sent))
	}
}

func TestUpdateOrderSkipsEmailWhenAlreadySent(t *testing.T) {
	sentAt := time.Date(2026, time.March, 12, 8, 0, 0, 0, time.UTC)
	order := shippedCandidateOrder()
	order.Status = domain.OrderStatusShipped
	order.TrackingNumber = "TRACK12345"
	order.ShippingEmailSentAt = &sentAt

	orders := &fakeOrderRepository{applyFn: applyAgainst(order)}
	mailer := &fakeMailer{}

	svc, err := NewOrderAdminService(OrderAdminServiceDeps{Orders: orders, Mailer: mailer})
	if err != nil {
		t.Fatalf("NewOrderAdminService: %v", err)
	}

	delivered := domain.OrderStatusDelivered
	if _, err := svc.UpdateOrder(context.Background(), "cs_test_1", domain.StatusUpdate{Status: &delivered}); err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("expected no email, got %d", len(mailer.sent))
	}
}

func TestUpdateOrderEmailsWhenTrackingArrivesAfterShipping(t *testing.T) {
	// The order was force-shipped without tracking in a previous migration.
	order := shippedCandidateOrder()
	order.Status = domain.OrderStatusShipped
	order.TrackingNumber = ""

	orders := &fakeOrderRepository{applyFn: applyAgainst(order)}
	mailer := &fakeMailer{}

	svc, err := NewOrderAdminService(OrderAdminServiceDeps{Orders: orders, Mailer: mailer})
	if err != nil {
		t.Fatalf("NewOrderAdminService: %v", err)
	}

	tracking := "TRACK12345"
	if _, err := svc.UpdateOrder(context.Background(), "cs_test_1", domain.StatusUpdate{TrackingNumber: &tracking}); err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("expected shipping email, got %d", len(mailer.sent))
	}
}

func TestUpdateOrderNoStatusChangeNoEvent(t *testing.T) {
	order := shippedCandidateOrder()
	orders := &fakeOrderRepository{applyFn: applyAgainst(order)}
	events := &fakeEventPublisher{}

	svc, err := NewOrderAdminService(OrderAdminServiceDeps{Orders: orders, Events: events})
	if err != nil {
		t.Fatalf("NewOrderAdminService: %v", err)
	}

	tracking := "TRACK12345"
	if _, err := svc.UpdateOrder(context.Background(), "cs_test_1", domain.StatusUpdate{TrackingNumber: &tracking}); err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}
	if len(events.published) != 0 {
		t.Fatalf("expected no event, got %#v", events.published)
	}
}

func TestUpdateOrderNotFound(t *testing.T) {
	orders := &fakeOrderRepository{
		applyFn: func(context.Context, string, func(domain.Order) (domain.Order, error)) (domain.Order, error) {
			return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorNotFound, "order not found", nil)
		},
	}
	svc, err := NewOrderAdminService(OrderAdminServiceDeps{Orders: orders})
	if err != nil {
		t.Fatalf("NewOrderAdminService: %v", err)
	}

	packing := domain.OrderStatusPacking
	_, err = svc.UpdateOrder(context.Background(), "cs_missing", domain.StatusUpdate{Status: &packing})
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}
