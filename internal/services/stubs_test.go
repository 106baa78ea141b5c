package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/cutecleansoaps/api/internal/domain"
	"github.com/cutecleansoaps/api/internal/notifications"
	"github.com/cutecleansoaps/api/internal/payments"
	"github.com/cutecleansoaps/api/internal/repositories"
)

type fakeOrderRepository struct {
	finalizeFn func(context.Context, repositories.FinalizeOrderRequest) (repositories.FinalizeOrderResult, error)
	findFn     func(context.Context, string) (domain.Order, error)
	listFn     func(context.Context, domain.Pagination) (domain.OrderPage, error)
	applyFn    func(context.Context, string, func(domain.Order) (domain.Order, error)) (domain.Order, error)
	markFn     func(context.Context, string, time.Time) error
}

func (f *fakeOrderRepository) Finalize(ctx context.Context, req repositories.FinalizeOrderRequest) (repositories.FinalizeOrderResult, error) {
	if f.finalizeFn != nil {
		return f.finalizeFn(ctx, req)
	}
	return repositories.FinalizeOrderResult{Applied: true, Order: req.Order}, nil
}

func (f *fakeOrderRepository) FindBySessionID(ctx context.Context, sessionID string) (domain.Order, error) {
	if f.findFn != nil {
		return f.findFn(ctx, sessionID)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (f *fakeOrderRepository) List(ctx context.Context, pager domain.Pagination) (domain.OrderPage, error) {
	if f.listFn != nil {
		return f.listFn(ctx, pager)
	}
	return domain.OrderPage{}, nil
}

func (f *fakeOrderRepository) ApplyStatusUpdate(ctx context.Context, sessionID string, fn func(domain.Order) (domain.Order, error)) (domain.Order, error) {
	if f.applyFn != nil {
		return f.applyFn(ctx, sessionID, fn)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (f *fakeOrderRepository) MarkShippingEmailSent(ctx context.Context, sessionID string, sentAt time.Time) error {
	if f.markFn != nil {
		return f.markFn(ctx, sessionID, sentAt)
	}
	return nil
}

type fakeCatalogRepository struct {
	findFn func(context.Context, string) (domain.Product, error)
}

func (f *fakeCatalogRepository) FindProduct(ctx context.Context, soapID string) (domain.Product, error) {
	if f.findFn != nil {
		return f.findFn(ctx, soapID)
	}
	return domain.Product{}, errors.New("not implemented")
}

type fakePaymentProvider struct {
	createFn    func(context.Context, payments.CheckoutSessionRequest) (payments.CheckoutSession, error)
	verifyFn    func([]byte, string) (payments.WebhookEvent, error)
	lineItemsFn func(context.Context, string) ([]payments.ResolvedLineItem, error)
}

func (f *fakePaymentProvider) CreateCheckoutSession(ctx context.Context, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error) {
	if f.createFn != nil {
		return f.createFn(ctx, req)
	}
	return payments.CheckoutSession{}, errors.New("not implemented")
}

func (f *fakePaymentProvider) VerifyWebhook(payload []byte, signature string) (payments.WebhookEvent, error) {
	if f.verifyFn != nil {
		return f.verifyFn(payload, signature)
	}
	return payments.WebhookEvent{}, errors.New("not implemented")
}

func (f *fakePaymentProvider) SessionLineItems(ctx context.Context, sessionID string) ([]payments.ResolvedLineItem, error) {
	if f.lineItemsFn != nil {
		return f.lineItemsFn(ctx, sessionID)
	}
	return nil, nil
}

type fakeMailer struct {
	sent   []notifications.Message
	sendFn func(context.Context, notifications.Message) (string, error)
}

func (f *fakeMailer) Send(ctx context.Context, msg notifications.Message) (string, error) {
	f.sent = append(f.sent, msg)
	if f.sendFn != nil {
		return f.sendFn(ctx, msg)
	}
	return "email_1", nil
}

type fakeEventPublisher struct {
	published []OrderEventMessage
	publishFn func(context.Context, OrderEventMessage) (string, error)
}

func (f *fakeEventPublisher) PublishOrderEvent(ctx context.Context, event OrderEventMessage) (string, error) {
	f.published = append(f.published, event)
	if f.publishFn != nil {
		return f.publishFn(ctx, event)
	}
	return "msg_1", nil
}

type fakeRepoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (f *fakeRepoError) Error() string       { return "repository error" }
func (f *fakeRepoError) IsNotFound() bool    { return f.notFound }
func (f *fakeRepoError) IsConflict() bool    { return f.conflict }
func (f *fakeRepoError) IsUnavailable() bool { return f.unavailable }

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sequenceIDs(ids ...string) func() string {
	i := 0
	return func() string {
		if i >= len(ids) {
			return "id_overflow"
		}
		id := ids[i]
		i++
		return id
	}
}
