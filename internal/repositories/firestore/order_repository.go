package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/cutecleansoaps/api/internal/domain"
	pfirestore "github.com/cutecleansoaps/api/internal/platform/firestore"
	"github.com/cutecleansoaps/api/internal/platform/pagination"
	"github.com/cutecleansoaps/api/internal/repositories"
)

const (
	ordersCollection  = "orders"
	soapsCollection   = "soaps"
	markersCollection = "processedEvents"
)

type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[orderDocument]
	soaps    *pfirestore.BaseRepository[productDocument]
	markers  *pfirestore.BaseRepository[markerDocument]
}

func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil),
		soaps:    pfirestore.NewBaseRepository[productDocument](provider, soapsCollection, nil, nil),
		markers:  pfirestore.NewBaseRepository[markerDocument](provider, markersCollection, nil, nil),
	}, nil
}

type orderDocument struct {
	SessionID           string              `firestore:"sessionId"`
	PaymentIntentID     string              `firestore:"paymentIntentId"`
	AmountTotal         int64               `firestore:"amountTotal"`
	Currency            string              `firestore:"currency"`
	CustomerEmail       string              `firestore:"customerEmail"`
	CustomerName        string              `firestore:"customerName"`
	Shipping            shippingDocument    `firestore:"shipping"`
	Items               []orderItemDocument `firestore:"items"`
	Status              string              `firestore:"status"`
	TrackingNumber      string              `firestore:"trackingNumber"`
	ShippedAt           *time.Time          `firestore:"shippedAt"`
	DeliveredAt         *time.Time          `firestore:"deliveredAt"`
	ShippingEmailSentAt *time.Time          `firestore:"shippingEmailSentAt"`
	CreatedAt           time.Time           `firestore:"createdAt"`
	UpdatedAt           time.Time           `firestore:"updatedAt"`
}

type shippingDocument struct {
	Name       string `firestore:"name"`
	Line1      string `firestore:"line1"`
	Line2      string `firestore:"line2"`
	City       string `firestore:"city"`
	State      string `firestore:"state"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
}

type orderItemDocument struct {
	SoapID     string `firestore:"soapId"`
	Name       string `firestore:"name"`
	Quantity   int64  `firestore:"quantity"`
	UnitAmount int64  `firestore:"unitAmount"`
}

type markerDocument struct {
	SessionID   string    `firestore:"sessionId"`
	ProcessedAt time.Time `firestore:"processedAt"`
}

func newOrderDocument(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			SoapID:     item.SoapID,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitAmount: item.UnitAmount,
		})
	}
	return orderDocument{
		SessionID:       order.SessionID,
		PaymentIntentID: order.PaymentIntentID,
		AmountTotal:     order.AmountTotal,
		Currency:        order.Currency,
		CustomerEmail:   order.CustomerEmail,
		CustomerName:    order.CustomerName,
		Shipping: shippingDocument{
			Name:       order.Shipping.Name,
			Line1:      order.Shipping.Line1,
			Line2:      order.Shipping.Line2,
			City:       order.Shipping.City,
			State:      order.Shipping.State,
			PostalCode: order.Shipping.PostalCode,
			Country:    order.Shipping.Country,
		},
		Items:               items,
		Status:              string(order.Status),
		TrackingNumber:      order.TrackingNumber,
		ShippedAt:           order.ShippedAt,
		DeliveredAt:         order.DeliveredAt,
		ShippingEmailSentAt: order.ShippingEmailSentAt,
		CreatedAt:           order.CreatedAt.UTC(),
		UpdatedAt:           order.UpdatedAt.UTC(),
	}
}

func (d orderDocument) toDomain(sessionID string) domain.Order {
	if strings.TrimSpace(d.SessionID) != "" {
		sessionID = d.SessionID
	}
	items := make([]domain.OrderItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, domain.OrderItem{
			SoapID:     item.SoapID,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitAmount: item.UnitAmount,
		})
	}
	return domain.Order{
		SessionID:       sessionID,
		PaymentIntentID: d.PaymentIntentID,
		AmountTotal:     d.AmountTotal,
		Currency:        d.Currency,
		CustomerEmail:   d.CustomerEmail,
		CustomerName:    d.CustomerName,
		Shipping: domain.ShippingAddress{
			Name:       d.Shipping.Name,
			Line1:      d.Shipping.Line1,
			Line2:      d.Shipping.Line2,
			City:       d.Shipping.City,
			State:      d.Shipping.State,
			PostalCode: d.Shipping.PostalCode,
			Country:    d.Shipping.Country,
		},
		Items:               items,
		Status:              domain.OrderStatus(d.Status),
		TrackingNumber:      d.TrackingNumber,
		ShippedAt:           d.ShippedAt,
		DeliveredAt:         d.DeliveredAt,
		ShippingEmailSentAt: d.ShippingEmailSentAt,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}

// Finalize converts one webhook delivery into at most one order. The marker
// read happens first and all reads complete before any write is buffered, as
// Firestore transactions require.
func (r *OrderRepository) Finalize(ctx context.Context, req repositories.FinalizeOrderRequest) (repositories.FinalizeOrderResult, error) {
	if r == nil || r.provider == nil {
		return repositories.FinalizeOrderResult{}, errors.New("order repository not initialised")
	}
	if strings.TrimSpace(req.MarkerID) == "" {
		return repositories.FinalizeOrderResult{}, errors.New("order finalize: marker id is required")
	}
	if strings.TrimSpace(req.Order.SessionID) == "" {
		return repositories.FinalizeOrderResult{}, errors.New("order finalize: session id is required")
	}
	if len(req.Demands) == 0 {
		return repositories.FinalizeOrderResult{}, errors.New("order finalize: at least one stock demand is required")
	}

	now := req.Now.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}
	order := req.Order
	order.Status = domain.OrderStatusPaid
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	var result repositories.FinalizeOrderResult
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		markerRef, err := r.markers.DocumentRef(ctx, req.MarkerID)
		if err != nil {
			return err
		}

		if _, err := tx.Get(markerRef); err == nil {
			result = repositories.FinalizeOrderResult{Applied: false}
			return nil
		} else if status.Code(err) != codes.NotFound {
			return err
		}

		type stockRead struct {
			demand    domain.StockDemand
			ref       *firestore.DocumentRef
			remaining int64
		}
		reads := make([]stockRead, 0, len(req.Demands))
		for _, demand := range req.Demands {
			soapID := strings.TrimSpace(demand.SoapID)
			if soapID == "" {
				return repositories.NewOrderError(repositories.OrderErrorStockNotFound, "order finalize: soap id is required", nil)
			}
			if demand.Quantity <= 0 {
				return repositories.NewOrderError(repositories.OrderErrorUnknown, fmt.Sprintf("order finalize: quantity for %s must be > 0", soapID), nil)
			}

			soapRef, err := r.soaps.DocumentRef(ctx, soapID)
			if err != nil {
				return err
			}
			snap, err := tx.Get(soapRef)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					return repositories.NewOrderError(repositories.OrderErrorStockNotFound, fmt.Sprintf("stock %s not found", soapID), err)
				}
				return err
			}
			var soapDoc productDocument
			if err := snap.DataTo(&soapDoc); err != nil {
				return fmt.Errorf("decode soap %s: %w", soapID, err)
			}
			if soapDoc.Stock < demand.Quantity {
				return repositories.NewOrderError(repositories.OrderErrorInsufficientStock, fmt.Sprintf("insufficient stock for %s", soapID), nil)
			}
			reads = append(reads, stockRead{
				demand:    demand,
				ref:       soapRef,
				remaining: soapDoc.Stock - demand.Quantity,
			})
		}

		if err := tx.Create(markerRef, markerDocument{
			SessionID:   order.SessionID,
			ProcessedAt: now,
		}); err != nil {
			return err
		}
		for _, read := range reads {
			if err := tx.Update(read.ref, []firestore.Update{
				{Path: "stock", Value: read.remaining},
				{Path: "updatedAt", Value: now},
			}); err != nil {
				return err
			}
		}

		orderRef, err := r.orders.DocumentRef(ctx, order.SessionID)
		if err != nil {
			return err
		}
		if err := tx.Create(orderRef, newOrderDocument(order)); err != nil {
			return err
		}

		result = repositories.FinalizeOrderResult{Applied: true, Order: order}
		return nil
	})
	if err != nil {
		return repositories.FinalizeOrderResult{}, wrapOrderError("orders.finalize", err)
	}
	return result, nil
}

func (r *OrderRepository) FindBySessionID(ctx context.Context, sessionID string) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	doc, err := r.orders.Get(ctx, sessionID)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// List returns orders newest first with an opaque continuation token.
func (r *OrderRepository) List(ctx context.Context, pager domain.Pagination) (domain.OrderPage, error) {
	if r == nil || r.orders == nil {
		return domain.OrderPage{}, errors.New("order repository not initialised")
	}

	pageSize := pager.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}

	cursor, err := pagination.DecodeToken(pager.PageToken)
	if err != nil {
		return domain.OrderPage{}, err
	}
	startAfter, err := decodeOrderCursor(cursor)
	if err != nil {
		return domain.OrderPage{}, err
	}

	docs, err := r.orders.Query(ctx, func(query firestore.Query) firestore.Query {
		query = query.
			OrderBy("createdAt", firestore.Desc).
			OrderBy(firestore.DocumentID, firestore.Desc)
		if startAfter != nil {
			query = query.StartAfter(startAfter.createdAt, startAfter.sessionID)
		}
		return query.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.OrderPage{}, err
	}

	page := domain.OrderPage{}
	hasMore := len(docs) > pageSize
	if hasMore {
		docs = docs[:pageSize]
	}
	for _, doc := range docs {
		page.Orders = append(page.Orders, doc.Data.toDomain(doc.ID))
	}
	if hasMore && len(page.Orders) > 0 {
		last := page.Orders[len(page.Orders)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{
			StartAfter: []any{last.CreatedAt.UTC().Format(time.RFC3339Nano), last.SessionID},
		})
		if err != nil {
			return domain.OrderPage{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

type orderCursor struct {
	createdAt time.Time
	sessionID string
}

func decodeOrderCursor(cursor pagination.Cursor) (*orderCursor, error) {
	if len(cursor.StartAfter) == 0 {
		return nil, nil
	}
	if len(cursor.StartAfter) != 2 {
		return nil, pagination.ErrInvalidPageToken
	}
	rawTime, ok := cursor.StartAfter[0].(string)
	if !ok {
		return nil, pagination.ErrInvalidPageToken
	}
	createdAt, err := time.Parse(time.RFC3339Nano, rawTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pagination.ErrInvalidPageToken, err)
	}
	sessionID, ok := cursor.StartAfter[1].(string)
	if !ok || strings.TrimSpace(sessionID) == "" {
		return nil, pagination.ErrInvalidPageToken
	}
	return &orderCursor{createdAt: createdAt, sessionID: sessionID}, nil
}

// ApplyStatusUpdate performs a transactional read-modify-write on the order document.
func (r *OrderRepository) ApplyStatusUpdate(ctx context.Context, sessionID string, fn func(domain.Order) (domain.Order, error)) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if strings.TrimSpace(sessionID) == "" {
		return domain.Order{}, errors.New("order update: session id is required")
	}
	if fn == nil {
		return domain.Order{}, errors.New("order update: mutation function is required")
	}

	var updated domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef, err := r.orders.DocumentRef(ctx, sessionID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(orderRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewOrderError(repositories.OrderErrorNotFound, fmt.Sprintf("order %s not found", sessionID), err)
			}
			return err
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode order %s: %w", sessionID, err)
		}

		next, err := fn(doc.toDomain(sessionID))
		if err != nil {
			return err
		}
		next.SessionID = sessionID

		if err := tx.Set(orderRef, newOrderDocument(next)); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return domain.Order{}, wrapOrderError("orders.update", err)
	}
	return updated, nil
}

// MarkShippingEmailSent stamps the shipping notification time exactly once.
func (r *OrderRepository) MarkShippingEmailSent(ctx context.Context, sessionID string, sentAt time.Time) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("order update: session id is required")
	}

	sentAt = sentAt.UTC()
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef, err := r.orders.DocumentRef(ctx, sessionID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(orderRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewOrderError(repositories.OrderErrorNotFound, fmt.Sprintf("order %s not found", sessionID), err)
			}
			return err
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode order %s: %w", sessionID, err)
		}
		if doc.ShippingEmailSentAt != nil {
			return nil
		}
		return tx.Update(orderRef, []firestore.Update{
			{Path: "shippingEmailSentAt", Value: sentAt},
			{Path: "updatedAt", Value: sentAt},
		})
	})
	return wrapOrderError("orders.markShippingEmailSent", err)
}

func wrapOrderError(op string, err error) error {
	if err == nil {
		return nil
	}
	var orderErr *repositories.OrderError
	if errors.As(err, &orderErr) {
		if orderErr.Op == "" {
			orderErr.Op = op
		}
		return orderErr
	}
	return pfirestore.WrapError(op, err)
}
