package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/ErlanBelekov/account-service/internal/email"
	"github.com/ErlanBelekov/account-service/internal/metrics"
)

// notifier sends templated mail either as a required step of a flow or best-effort.
type notifier struct {
	sender email.Sender
	logger *slog.Logger
}

// required returns domain.ErrNotificationFailed when the mail could not be sent.
func (n notifier) required(ctx context.Context, to string, m email.Message) error {
	if err := n.sender.Send(ctx, to, m.Subject, m.Body); err != nil {
		metrics.EmailsSentTotal.WithLabelValues(m.Template, "failed").Inc()
		n.logger.ErrorContext(ctx, "send email", "template", m.Template, "error", err)
		return fmt.Errorf("%w: %s: %w", domain.ErrNotificationFailed, m.Template, err)
	}
	metrics.EmailsSentTotal.WithLabelValues(m.Template, "sent").Inc()
	return nil
}

// bestEffort logs and drops delivery failures.
func (n notifier) bestEffort(ctx context.Context, to string, m email.Message) {
	if err := n.sender.Send(ctx, to, m.Subject, m.Body); err != nil {
		metrics.EmailsSentTotal.WithLabelValues(m.Template, "failed").Inc()
		n.logger.WarnContext(ctx, "send email (best effort)", "template", m.Template, "error", err)
		return
	}
	metrics.EmailsSentTotal.WithLabelValues(m.Template, "sent").Inc()
}
