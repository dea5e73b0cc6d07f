package service

import (
	"context"
	"errors"
	"time"

	"stockledger/internal/dto"
	"stockledger/internal/model"
	"stockledger/internal/repository"

	"gorm.io/gorm"
)

// TrackerService records which order-driven adjustments were applied, one
// row per (order, line, stock code). Rows move forward only: shipped, then
// returned.
type TrackerService interface {
	IsShippedProcessed(ctx context.Context, key repository.TrackingKey) (bool, error)
	IsReturnProcessed(ctx context.Context, key repository.TrackingKey) (bool, error)

	// MarkShipped and MarkReturned report whether this call made the transition.
	MarkShipped(ctx context.Context, key repository.TrackingKey, code string, quantity int) (bool, error)
	MarkReturned(ctx context.Context, key repository.TrackingKey) (bool, error)

	// ClaimShipmentTx and ClaimReturnTx are the transactional forms used
	// together with the ledger adjustment.
	ClaimShipmentTx(tx *gorm.DB, key repository.TrackingKey, code string, quantity int) (bool, error)
	ClaimReturnTx(tx *gorm.DB, key repository.TrackingKey) (bool, error)

	ListForOrder(ctx context.Context, orderRef string) ([]dto.TrackingResponse, error)
	RecordsForOrder(ctx context.Context, orderRef string) ([]model.OrderTracking, error)
}

type trackerService struct {
	repo repository.TrackingRepository
	now  func() time.Time
}

func NewTrackerService(repo repository.TrackingRepository) TrackerService {
	return &trackerService{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

func (s *trackerService) find(ctx context.Context, key repository.TrackingKey) (*model.OrderTracking, error) {
	t, err := s.repo.Find(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistence("tracking lookup", err)
	}
	return t, nil
}

func (s *trackerService) IsShippedProcessed(ctx context.Context, key repository.TrackingKey) (bool, error) {
	t, err := s.find(ctx, key)
	if err != nil || t == nil {
		return false, err
	}
	return t.ShippedProcessed, nil
}

func (s *trackerService) IsReturnProcessed(ctx context.Context, key repository.TrackingKey) (bool, error) {
	t, err := s.find(ctx, key)
	if err != nil || t == nil {
		return false, err
	}
	return t.ReturnProcessed, nil
}

func (s *trackerService) MarkShipped(ctx context.Context, key repository.TrackingKey, code string, quantity int) (bool, error) {
	var claimed bool
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		claimed, err = s.ClaimShipmentTx(tx, key, code, quantity)
		return err
	})
	return claimed, err
}

func (s *trackerService) MarkReturned(ctx context.Context, key repository.TrackingKey) (bool, error) {
	var claimed bool
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		claimed, err = s.ClaimReturnTx(tx, key)
		return err
	})
	return claimed, err
}

func (s *trackerService) ClaimShipmentTx(tx *gorm.DB, key repository.TrackingKey, code string, quantity int) (bool, error) {
	claimed, err := s.repo.ClaimShipmentTx(tx, &model.OrderTracking{
		OrderRef:     key.OrderRef,
		OrderLineRef: key.OrderLineRef,
		StockCodeID:  key.StockCodeID,
		Code:         code,
		Quantity:     quantity,
	}, s.now())
	if err != nil {
		return false, persistence("claim shipment", err)
	}
	return claimed, nil
}

func (s *trackerService) ClaimReturnTx(tx *gorm.DB, key repository.TrackingKey) (bool, error) {
	claimed, err := s.repo.ClaimReturnTx(tx, key, s.now())
	if err != nil {
		return false, persistence("claim return", err)
	}
	return claimed, nil
}

func (s *trackerService) RecordsForOrder(ctx context.Context, orderRef string) ([]model.OrderTracking, error) {
	rows, err := s.repo.ListByOrder(ctx, orderRef)
	if err != nil {
		return nil, persistence("list tracking", err)
	}
	return rows, nil
}

func (s *trackerService) ListForOrder(ctx context.Context, orderRef string) ([]dto.TrackingResponse, error) {
	rows, err := s.RecordsForOrder(ctx, orderRef)
	if err != nil {
		return nil, err
	}
	out := make([]dto.TrackingResponse, len(rows))
	for i := range rows {
		out[i] = toTrackingResponse(&rows[i])
	}
	return out, nil
}

func toTrackingResponse(t *model.OrderTracking) dto.TrackingResponse {
	r := dto.TrackingResponse{
		OrderRef:         t.OrderRef,
		OrderLineRef:     t.OrderLineRef,
		StockCodeID:      t.StockCodeID.String(),
		Code:             t.Code,
		Quantity:         t.Quantity,
		ShippedProcessed: t.ShippedProcessed,
		ReturnProcessed:  t.ReturnProcessed,
	}
	if t.ShippedAt != nil {
		s := t.ShippedAt.UTC().Format(time.RFC3339)
		r.ShippedAt = &s
	}
	if t.ReturnedAt != nil {
		s := t.ReturnedAt.UTC().Format(time.RFC3339)
		r.ReturnedAt = &s
	}
	return r
}
