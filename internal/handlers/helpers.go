package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	domain "github.com/cutecleansoaps/api/internal/domain"
)

const defaultMaxBodySize = 1 << 20 // 1 MiB

var (
	errEmptyBody    = errors.New("request body is empty")
	errBodyTooLarge = errors.New("request body exceeds size limit")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = defaultMaxBodySize
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func orderResponse(order domain.Order) map[string]any {
	items := make([]map[string]any, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, map[string]any{
			"soapId":     item.SoapID,
			"name":       item.Name,
			"quantity":   item.Quantity,
			"unitAmount": item.UnitAmount,
		})
	}

	payload := map[string]any{
		"sessionId":       order.SessionID,
		"paymentIntentId": order.PaymentIntentID,
		"amountTotal":     order.AmountTotal,
		"currency":        order.Currency,
		"customerEmail":   order.CustomerEmail,
		"customerName":    order.CustomerName,
		"shipping": map[string]any{
			"name":       order.Shipping.Name,
			"line1":      order.Shipping.Line1,
			"line2":      order.Shipping.Line2,
			"city":       order.Shipping.City,
			"state":      order.Shipping.State,
			"postalCode": order.Shipping.PostalCode,
			"country":    order.Shipping.Country,
		},
		"items":          items,
		"status":         string(order.Status),
		"trackingNumber": order.TrackingNumber,
		"createdAt":      formatTime(order.CreatedAt),
		"updatedAt":      formatTime(order.UpdatedAt),
	}
	if order.ShippedAt != nil {
		payload["shippedAt"] = formatTime(*order.ShippedAt)
	}
	if order.DeliveredAt != nil {
		payload["deliveredAt"] = formatTime(*order.DeliveredAt)
	}
	if order.ShippingEmailSentAt != nil {
		payload["shippingEmailSentAt"] = formatTime(*order.ShippingEmailSentAt)
	}
	return payload
}
