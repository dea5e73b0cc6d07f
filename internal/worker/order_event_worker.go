package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"stockledger/internal/dto"
	"stockledger/internal/service"

	"github.com/rs/zerolog/log"
)

// OrderEventWorker applies queued order events. Processing is idempotent per
// order line, so a retried event only re-attempts the lines that failed.
type OrderEventWorker struct {
	svc service.OrderEventService
}

func NewOrderEventWorker(svc service.OrderEventService) *OrderEventWorker {
	return &OrderEventWorker{svc: svc}
}

func (w *OrderEventWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var ev dto.OrderEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return fmt.Errorf("order_event_worker: invalid payload: %w: %w", ErrPermanent, err)
	}
	return w.Apply(ctx, ev)
}

// Apply runs one event through the processor and turns a partial failure
// into an error so the caller retries it.
func (w *OrderEventWorker) Apply(ctx context.Context, ev dto.OrderEvent) error {
	report, err := w.svc.Process(ctx, ev)
	if errors.Is(err, service.ErrInvalidQuantity) || errors.Is(err, service.ErrInvalidReference) {
		return fmt.Errorf("order_event_worker: %w: %w", ErrPermanent, err)
	}
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		return fmt.Errorf("order %s: %d of %d lines failed", report.OrderRef, report.Failed, len(report.Lines))
	}
	log.Debug().Str("event_id", ev.EventID).Str("order_ref", report.OrderRef).Msg("order_event_worker: event applied")
	return nil
}

// HandleSQS adapts Apply to the SQS consumer. Malformed and permanently
// failing messages are acknowledged so they stop redelivering.
func (w *OrderEventWorker) HandleSQS(ctx context.Context, body string) error {
	err := w.Process(ctx, json.RawMessage(body))
	if errors.Is(err, ErrPermanent) {
		log.Error().Err(err).Msg("order_event_worker: dropping SQS message")
		return nil
	}
	return err
}
