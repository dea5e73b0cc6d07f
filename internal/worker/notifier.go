package worker

import (
	"context"
	"fmt"
	"strings"

	"stockledger/internal/dto"

	"github.com/rs/zerolog/log"
)

// EmailNotifier queues an alert email when order lines fail to apply.
type EmailNotifier struct {
	dispatcher *Dispatcher
	to         []string
}

// NewEmailNotifier returns nil when no recipient is configured.
func NewEmailNotifier(dispatcher *Dispatcher, alertEmail string) *EmailNotifier {
	if alertEmail == "" || dispatcher == nil {
		return nil
	}
	var to []string
	for _, addr := range strings.Split(alertEmail, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	return &EmailNotifier{dispatcher: dispatcher, to: to}
}

func (n *EmailNotifier) NotifyOrderFailure(ctx context.Context, report *dto.OrderReport) {
	payload := EmailJobPayload{
		To:      n.to,
		Subject: fmt.Sprintf("Stock update failed for order %s", report.OrderRef),
		Body:    FailureBody(report),
	}
	if err := n.dispatcher.EnqueueEmail(ctx, payload); err != nil {
		log.Error().Err(err).Str("order_ref", report.OrderRef).Msg("notifier: failed to enqueue alert")
	}
}

// FailureBody renders the failed lines of a report as plain text.
func FailureBody(report *dto.OrderReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order %s (%s): %d line(s) could not be applied.\n\n", report.OrderRef, report.Action, report.Failed)
	for _, l := range report.Lines {
		if l.Outcome != dto.OutcomeFailed {
			continue
		}
		code := l.Code
		if code == "" {
			code = "-"
		}
		fmt.Fprintf(&b, "- line %s, code %s: %s\n", l.LineRef, code, l.Error)
	}
	b.WriteString("\nThe event will be retried when it is redelivered.\n")
	return b.String()
}
