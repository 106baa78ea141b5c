package notifications

import (
	"context"
	"errors"
	"strings"
)

// ErrNoRecipients is returned when a message has no destination addresses.
var ErrNoRecipients = errors.New("notifications: no recipients")

// Message is a single outbound email.
type Message struct {
	From    string
	To      []string
	Subject string
	HTML    string
}

// Mailer defines the contract for sending transactional email. Send returns
// the provider-assigned delivery id when available.
type Mailer interface {
	Send(ctx context.Context, msg Message) (string, error)
}

func normalizeRecipients(to []string) []string {
	out := make([]string, 0, len(to))
	for _, addr := range to {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		out = append(out, addr)
	}
	return out
}
