package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stockledger/internal/dto"
	"stockledger/internal/model"
	"stockledger/internal/repository"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Notifier receives a summary when lines of an order event fail. Delivery is
// best effort.
type Notifier interface {
	NotifyOrderFailure(ctx context.Context, report *dto.OrderReport)
}

// OrderStatuses names the order system statuses that trigger stock changes.
type OrderStatuses struct {
	Ship   string
	Return string
}

// OrderEventService applies order lifecycle events to the ledger exactly once
// per (order, line, stock code). Repeated events are silent no-ops; a failing
// line is reported and does not stop the other lines.
type OrderEventService interface {
	// Process dispatches on the event type.
	Process(ctx context.Context, ev dto.OrderEvent) (*dto.OrderReport, error)
	HandleShipped(ctx context.Context, order dto.Order) (*dto.OrderReport, error)
	HandleReturned(ctx context.Context, order dto.Order) (*dto.OrderReport, error)
	HandleStatusChanged(ctx context.Context, order dto.Order, oldStatus, newStatus string) (*dto.OrderReport, error)
}

type orderEventService struct {
	db       *gorm.DB
	ledger   LedgerService
	mappings MappingService
	tracker  TrackerService
	notifier Notifier // optional
	statuses OrderStatuses
}

func NewOrderEventService(
	db *gorm.DB,
	ledger LedgerService,
	mappings MappingService,
	tracker TrackerService,
	notifier Notifier,
	statuses OrderStatuses,
) OrderEventService {
	return &orderEventService{
		db:       db,
		ledger:   ledger,
		mappings: mappings,
		tracker:  tracker,
		notifier: notifier,
		statuses: statuses,
	}
}

// errAlreadyClaimed rolls back a line transaction whose tracking row was
// claimed by an earlier or concurrent delivery of the same event.
var errAlreadyClaimed = errors.New("transition already applied")

const (
	actionShipped  = "shipped"
	actionReturned = "returned"
)

func (s *orderEventService) Process(ctx context.Context, ev dto.OrderEvent) (*dto.OrderReport, error) {
	switch ev.Type {
	case dto.OrderEventShipped:
		return s.HandleShipped(ctx, ev.Order)
	case dto.OrderEventReturned:
		return s.HandleReturned(ctx, ev.Order)
	case dto.OrderEventStatusChanged:
		return s.HandleStatusChanged(ctx, ev.Order, ev.OldStatus, ev.NewStatus)
	}
	return nil, fmt.Errorf("event type %q: %w", ev.Type, ErrInvalidQuantity)
}

func (s *orderEventService) HandleStatusChanged(ctx context.Context, order dto.Order, oldStatus, newStatus string) (*dto.OrderReport, error) {
	switch {
	case newStatus != "" && newStatus == s.statuses.Ship:
		return s.HandleShipped(ctx, order)
	case newStatus != "" && newStatus == s.statuses.Return:
		return s.HandleReturned(ctx, order)
	}
	log.Debug().Str("order_ref", order.Ref).Str("old_status", oldStatus).Str("new_status", newStatus).
		Msg("order_events: status change ignored")
	return &dto.OrderReport{OrderRef: order.Ref, Lines: []dto.LineOutcome{}}, nil
}

// ── Shipment ─────────────────────────────────────────────────────────────────

func (s *orderEventService) HandleShipped(ctx context.Context, order dto.Order) (*dto.OrderReport, error) {
	if strings.TrimSpace(order.Ref) == "" {
		return nil, fmt.Errorf("order ref is required: %w", ErrInvalidQuantity)
	}
	rows, err := s.tracker.RecordsForOrder(ctx, order.Ref)
	if err != nil {
		return nil, err
	}
	// A line counts as shipped under whichever code it left with, so a
	// remap between deliveries does not ship it twice.
	shipped := make(map[string]string, len(rows))
	for _, r := range rows {
		if r.ShippedProcessed {
			shipped[r.OrderLineRef] = r.Code
		}
	}

	report := &dto.OrderReport{OrderRef: order.Ref, Action: actionShipped, Lines: make([]dto.LineOutcome, 0, len(order.Lines))}
	for _, line := range order.Lines {
		report.Lines = append(report.Lines, s.shipLine(ctx, order.Ref, line, shipped))
	}
	s.finish(ctx, report)
	return report, nil
}

func (s *orderEventService) shipLine(ctx context.Context, orderRef string, line dto.OrderLine, shipped map[string]string) dto.LineOutcome {
	out := dto.LineOutcome{LineRef: line.Ref}
	if line.Quantity <= 0 {
		out.Outcome = dto.OutcomeSkippedEmpty
		return out
	}
	if code, ok := shipped[line.Ref]; ok {
		out.Code = code
		out.Outcome = dto.OutcomeSkippedDuplicate
		return out
	}

	sc, err := s.mappings.Resolve(ctx, line.ProductRef, line.VariantRef)
	if err != nil {
		return failed(out, err)
	}
	if sc == nil {
		out.Outcome = dto.OutcomeSkippedUnmapped
		return out
	}
	out.Code = sc.Code

	key := repository.TrackingKey{OrderRef: orderRef, OrderLineRef: line.Ref, StockCodeID: sc.ID}
	done, err := s.tracker.IsShippedProcessed(ctx, key)
	if err != nil {
		return failed(out, err)
	}
	if done {
		out.Outcome = dto.OutcomeSkippedDuplicate
		return out
	}

	label := lineLabel(line, sc)
	var res *AdjustResult
	err = runTx(ctx, s.db, func(tx *gorm.DB) error {
		claimed, err := s.tracker.ClaimShipmentTx(tx, key, sc.Code, line.Quantity)
		if err != nil {
			return err
		}
		if !claimed {
			return errAlreadyClaimed
		}
		res, err = s.ledger.AdjustTx(tx, AdjustParams{
			StockCodeID: sc.ID,
			Quantity:    line.Quantity,
			Kind:        model.ChangeOrderShipped,
			Comment:     fmt.Sprintf("Order #%s shipped - %s x %d", orderRef, label, line.Quantity),
			OrderRef:    orderRef,
		})
		return err
	})
	if errors.Is(err, errAlreadyClaimed) {
		out.Outcome = dto.OutcomeSkippedDuplicate
		return out
	}
	if err != nil {
		return failed(out, classify("ship line", err))
	}

	out.Outcome = dto.OutcomeApplied
	out.StockBefore, out.StockAfter = &res.StockBefore, &res.StockAfter
	out.Note = fmt.Sprintf("Stock reduced for %s (Code: %s) by %d", label, sc.Code, line.Quantity)
	return out
}

// ── Return ───────────────────────────────────────────────────────────────────

// HandleReturned drives off the order's tracking rows, which already name the
// stock code and quantity that shipped. Without any rows it falls back to the
// order lines, which can only return what was recorded as shipped.
func (s *orderEventService) HandleReturned(ctx context.Context, order dto.Order) (*dto.OrderReport, error) {
	if strings.TrimSpace(order.Ref) == "" {
		return nil, fmt.Errorf("order ref is required: %w", ErrInvalidQuantity)
	}
	rows, err := s.tracker.RecordsForOrder(ctx, order.Ref)
	if err != nil {
		return nil, err
	}

	report := &dto.OrderReport{OrderRef: order.Ref, Action: actionReturned}
	if len(rows) > 0 {
		report.Lines = make([]dto.LineOutcome, 0, len(rows))
		for i := range rows {
			report.Lines = append(report.Lines, s.returnTracked(ctx, &rows[i]))
		}
	} else {
		report.Lines = make([]dto.LineOutcome, 0, len(order.Lines))
		for _, line := range order.Lines {
			report.Lines = append(report.Lines, s.returnLine(ctx, order.Ref, line))
		}
	}
	s.finish(ctx, report)
	return report, nil
}

func (s *orderEventService) returnTracked(ctx context.Context, row *model.OrderTracking) dto.LineOutcome {
	out := dto.LineOutcome{LineRef: row.OrderLineRef, Code: row.Code}
	if !row.ShippedProcessed {
		out.Outcome = dto.OutcomeSkippedUnshipped
		return out
	}
	if row.ReturnProcessed {
		out.Outcome = dto.OutcomeSkippedDuplicate
		return out
	}
	key := repository.TrackingKey{OrderRef: row.OrderRef, OrderLineRef: row.OrderLineRef, StockCodeID: row.StockCodeID}
	comment := fmt.Sprintf("Order #%s returned - Code: %s x %d", row.OrderRef, row.Code, row.Quantity)
	return s.applyReturn(ctx, out, key, row.Quantity, comment)
}

func (s *orderEventService) returnLine(ctx context.Context, orderRef string, line dto.OrderLine) dto.LineOutcome {
	out := dto.LineOutcome{LineRef: line.Ref}
	if line.Quantity <= 0 {
		out.Outcome = dto.OutcomeSkippedEmpty
		return out
	}
	sc, err := s.mappings.Resolve(ctx, line.ProductRef, line.VariantRef)
	if err != nil {
		return failed(out, err)
	}
	if sc == nil {
		out.Outcome = dto.OutcomeSkippedUnmapped
		return out
	}
	out.Code = sc.Code

	key := repository.TrackingKey{OrderRef: orderRef, OrderLineRef: line.Ref, StockCodeID: sc.ID}
	shipped, err := s.tracker.IsShippedProcessed(ctx, key)
	if err != nil {
		return failed(out, err)
	}
	if !shipped {
		out.Outcome = dto.OutcomeSkippedUnshipped
		return out
	}
	comment := fmt.Sprintf("Order #%s returned - %s x %d", orderRef, lineLabel(line, sc), line.Quantity)
	return s.applyReturn(ctx, out, key, line.Quantity, comment)
}

func (s *orderEventService) applyReturn(ctx context.Context, out dto.LineOutcome, key repository.TrackingKey, qty int, comment string) dto.LineOutcome {
	var res *AdjustResult
	err := runTx(ctx, s.db, func(tx *gorm.DB) error {
		claimed, err := s.tracker.ClaimReturnTx(tx, key)
		if err != nil {
			return err
		}
		if !claimed {
			return errAlreadyClaimed
		}
		res, err = s.ledger.AdjustTx(tx, AdjustParams{
			StockCodeID: key.StockCodeID,
			Quantity:    qty,
			Kind:        model.ChangeOrderReturned,
			Comment:     comment,
			OrderRef:    key.OrderRef,
		})
		return err
	})
	if errors.Is(err, errAlreadyClaimed) {
		out.Outcome = dto.OutcomeSkippedDuplicate
		return out
	}
	if err != nil {
		return failed(out, classify("return line", err))
	}
	out.Outcome = dto.OutcomeApplied
	out.StockBefore, out.StockAfter = &res.StockBefore, &res.StockAfter
	out.Note = fmt.Sprintf("Stock restored for Code: %s by %d", out.Code, qty)
	return out
}

// ── Reporting ────────────────────────────────────────────────────────────────

func (s *orderEventService) finish(ctx context.Context, report *dto.OrderReport) {
	applied := 0
	for _, l := range report.Lines {
		switch l.Outcome {
		case dto.OutcomeFailed:
			report.Failed++
			log.Error().Str("order_ref", report.OrderRef).Str("line_ref", l.LineRef).Str("code", l.Code).
				Str("action", report.Action).Str("error", l.Error).Msg("order_events: line failed")
		case dto.OutcomeApplied:
			applied++
		}
	}
	log.Info().Str("order_ref", report.OrderRef).Str("action", report.Action).
		Int("lines", len(report.Lines)).Int("applied", applied).Int("failed", report.Failed).
		Msg("order_events: processed")

	if report.Failed > 0 && s.notifier != nil {
		s.notifier.NotifyOrderFailure(ctx, report)
	}
}

func failed(out dto.LineOutcome, err error) dto.LineOutcome {
	out.Outcome = dto.OutcomeFailed
	out.Error = err.Error()
	return out
}

// lineLabel names the line in comments: the order's item name, else the
// stock code's name, else the code itself.
func lineLabel(line dto.OrderLine, sc *model.StockCode) string {
	switch {
	case strings.TrimSpace(line.Name) != "":
		return line.Name
	case sc.Name != "":
		return sc.Name
	}
	return sc.Code
}
