package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/resend/resend-go/v2"
)

const defaultSendTimeout = 10 * time.Second

// Sender delivers one HTML email. Implementations must not retry.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender writes emails to the log for ENV=local, OTP codes included.
type LogSender struct {
	logger *slog.Logger
}

func (s *LogSender) Send(_ context.Context, to, subject, body string) error {
	s.logger.Info("email (local dev)", "to", to, "subject", subject, "body", body)
	return nil
}

// ResendSender delivers through the Resend API.
type ResendSender struct {
	client  *resend.Client
	from    string
	timeout time.Duration
}

func NewResendSender(client *resend.Client, from string) *ResendSender {
	return &ResendSender{client: client, from: from, timeout: defaultSendTimeout}
}

func (s *ResendSender) Send(ctx context.Context, to, subject, body string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Html:    body,
		// A unique ref keeps mail clients from threading successive codes.
		Headers: map[string]string{"X-Entity-Ref-ID": uuid.NewString()},
	}
	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("resend %q: %w", subject, err)
	}
	if sent == nil || sent.Id == "" {
		return fmt.Errorf("resend %q: empty message id", subject)
	}
	return nil
}

// NewSender returns a LogSender for ENV=local, ResendSender otherwise.
func NewSender(env, apiKey, from string, logger *slog.Logger) Sender {
	if env == "local" {
		return &LogSender{logger: logger.With("component", "email")}
	}
	return NewResendSender(resend.NewClient(apiKey), from)
}
