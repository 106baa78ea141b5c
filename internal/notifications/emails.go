package notifications

import (
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/cutecleansoaps/api/internal/domain"
)

// Customer-supplied strings (names, addresses, tracking numbers) pass through
// this policy before they are interpolated into email HTML.
var sanitizer = bluemonday.StrictPolicy()

func sanitize(s string) string {
	return sanitizer.Sanitize(strings.TrimSpace(s))
}

var currencySymbols = map[string]string{
	"USD": "$",
	"CAD": "$",
	"AUD": "$",
	"EUR": "€",
	"GBP": "£",
}

// FormatAmount renders a minor-unit amount as a currency string, e.g. "$16.00 USD".
// Currencies without a known symbol render as the bare amount plus the code.
func FormatAmount(amount int64, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "USD"
	}
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%s%d.%02d %s", sign, currencySymbols[currency], amount/100, amount%100, currency)
}

func itemRows(items []domain.OrderItem) string {
	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b,
			"<tr><td>%s</td><td>%d</td><td>%s</td></tr>",
			sanitize(item.Name),
			item.Quantity,
			FormatAmount(item.UnitAmount*item.Quantity, ""),
		)
	}
	return b.String()
}

func addressLines(addr domain.ShippingAddress) string {
	parts := make([]string, 0, 5)
	for _, line := range []string{
		addr.Name,
		addr.Line1,
		addr.Line2,
		strings.TrimSpace(fmt.Sprintf("%s %s %s", addr.City, addr.State, addr.PostalCode)),
		addr.Country,
	} {
		if line = sanitize(line); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, "<br>")
}

// OwnerOrderEmail composes the new-order notification for the shop owner.
func OwnerOrderEmail(order domain.Order) Message {
	var b strings.Builder
	b.WriteString("<h2>New order</h2>")
	fmt.Fprintf(&b, "<p>Session <code>%s</code></p>", sanitize(order.SessionID))
	fmt.Fprintf(&b, "<p>Customer: %s &lt;%s&gt;</p>", sanitize(order.CustomerName), sanitize(order.CustomerEmail))
	b.WriteString("<table><tr><th>Item</th><th>Qty</th><th>Total</th></tr>")
	b.WriteString(itemRows(order.Items))
	b.WriteString("</table>")
	fmt.Fprintf(&b, "<p>Order total: <strong>%s</strong></p>", FormatAmount(order.AmountTotal, order.Currency))
	if lines := addressLines(order.Shipping); lines != "" {
		fmt.Fprintf(&b, "<p>Ship to:<br>%s</p>", lines)
	}

	return Message{
		Subject: fmt.Sprintf("New order %s", FormatAmount(order.AmountTotal, order.Currency)),
		HTML:    b.String(),
	}
}

// CustomerConfirmationEmail composes the order confirmation sent to the buyer.
func CustomerConfirmationEmail(order domain.Order, confirmationCode string) Message {
	name := sanitize(order.CustomerName)
	if name == "" {
		name = "there"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<h2>Thanks for your order, %s!</h2>", name)
	fmt.Fprintf(&b, "<p>Your confirmation code is <strong>%s</strong>. Keep it handy if you need to reach us about this order.</p>", sanitize(confirmationCode))
	b.WriteString("<table><tr><th>Item</th><th>Qty</th><th>Total</th></tr>")
	b.WriteString(itemRows(order.Items))
	b.WriteString("</table>")
	fmt.Fprintf(&b, "<p>Order total: <strong>%s</strong></p>", FormatAmount(order.AmountTotal, order.Currency))
	if lines := addressLines(order.Shipping); lines != "" {
		fmt.Fprintf(&b, "<p>Shipping to:<br>%s</p>", lines)
	}
	b.WriteString("<p>We'll email you again once your soaps ship.</p>")

	return Message{
		To:      []string{order.CustomerEmail},
		Subject: "Your Cute Clean Soaps order is confirmed",
		HTML:    b.String(),
	}
}

// ShippingEmail composes the one-time shipped notification for the buyer.
func ShippingEmail(order domain.Order) Message {
	name := sanitize(order.CustomerName)
	if name == "" {
		name = "there"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<h2>Good news, %s!</h2>", name)
	b.WriteString("<p>Your order is on its way.</p>")
	if tracking := sanitize(order.TrackingNumber); tracking != "" {
		fmt.Fprintf(&b, "<p>Tracking number: <strong>%s</strong></p>", tracking)
	}
	if lines := addressLines(order.Shipping); lines != "" {
		fmt.Fprintf(&b, "<p>Shipping to:<br>%s</p>", lines)
	}

	return Message{
		To:      []string{order.CustomerEmail},
		Subject: "Your Cute Clean Soaps order has shipped",
		HTML:    b.String(),
	}
}
