package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v2"
)

// MailerLogger defines the logging contract for mail delivery.
type MailerLogger func(ctx context.Context, event string, fields map[string]any)

type resendEmailAPI interface {
	SendWithContext(ctx context.Context, req *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendMailerConfig configures the ResendMailer.
type ResendMailerConfig struct {
	APIKey      string
	DefaultFrom string
	Logger      MailerLogger
	Emails      resendEmailAPI
}

// ResendMailer sends transactional email through the Resend API.
type ResendMailer struct {
	emails      resendEmailAPI
	defaultFrom string
	logger      MailerLogger
}

// NewResendMailer constructs a Resend-backed Mailer.
func NewResendMailer(cfg ResendMailerConfig) (*ResendMailer, error) {
	emails := cfg.Emails
	if emails == nil {
		apiKey := strings.TrimSpace(cfg.APIKey)
		if apiKey == "" {
			return nil, errors.New("resend: api key is required")
		}
		emails = resend.NewClient(apiKey).Emails
	}

	defaultFrom := strings.TrimSpace(cfg.DefaultFrom)
	if defaultFrom == "" {
		return nil, errors.New("resend: default from address is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &ResendMailer{
		emails:      emails,
		defaultFrom: defaultFrom,
		logger:      logger,
	}, nil
}

// Send delivers a single message. The configured default sender is used when
// the message does not carry one.
func (m *ResendMailer) Send(ctx context.Context, msg Message) (string, error) {
	if m == nil {
		return "", errors.New("resend: mailer is nil")
	}

	to := normalizeRecipients(msg.To)
	if len(to) == 0 {
		return "", ErrNoRecipients
	}

	from := strings.TrimSpace(msg.From)
	if from == "" {
		from = m.defaultFrom
	}

	resp, err := m.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    from,
		To:      to,
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		return "", fmt.Errorf("resend: send email: %w", err)
	}

	m.logger(ctx, "notifications.email.sent", map[string]any{
		"deliveryId": resp.Id,
		"recipients": len(to),
		"subject":    msg.Subject,
	})
	return resp.Id, nil
}
