package repositories

import (
	"context"
	"time"

	domain "github.com/cutecleansoaps/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// FinalizeOrderRequest bundles everything written by the single finalization transaction.
type FinalizeOrderRequest struct {
	// MarkerID keys the idempotency marker, preferring the payment intent id
	// over the session id so retried sessions for the same payment collapse.
	MarkerID string
	Order    domain.Order
	Demands  []domain.StockDemand
	Now      time.Time
}

// FinalizeOrderResult reports whether the transaction applied or detected a duplicate delivery.
type FinalizeOrderResult struct {
	Applied bool
	Order   domain.Order
}

// OrderRepository persists orders with exactly-once finalization semantics.
type OrderRepository interface {
	// Finalize runs the marker check, stock validation, stock decrement, and
	// order creation in one atomic transaction. A previously processed marker
	// yields Applied=false and no writes.
	Finalize(ctx context.Context, req FinalizeOrderRequest) (FinalizeOrderResult, error)
	FindBySessionID(ctx context.Context, sessionID string) (domain.Order, error)
	List(ctx context.Context, pager domain.Pagination) (domain.OrderPage, error)
	// ApplyStatusUpdate loads the order inside a transaction, applies fn to it,
	// and persists the result. fn errors abort the transaction.
	ApplyStatusUpdate(ctx context.Context, sessionID string, fn func(domain.Order) (domain.Order, error)) (domain.Order, error)
	// MarkShippingEmailSent records the at-most-once shipping email timestamp,
	// never overwriting an earlier one.
	MarkShippingEmailSent(ctx context.Context, sessionID string, sentAt time.Time) error
}

// CatalogRepository reads soap catalog and stock documents. Stock writes go
// through OrderRepository.Finalize so the decrement stays transactional.
type CatalogRepository interface {
	FindProduct(ctx context.Context, soapID string) (domain.Product, error)
}

// HealthRepository aggregates dependency probes for readiness reporting.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
