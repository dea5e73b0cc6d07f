package repository

import (
	"context"
	"time"

	"stockledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HistoryFilter defines filters for listing stock history entries.
// DateFrom is inclusive, DateTo exclusive; callers widen a day range
// before building the filter.
type HistoryFilter struct {
	StockCodeID *uuid.UUID
	Code        string
	Kind        string
	OrderRef    string
	DateFrom    *time.Time
	DateTo      *time.Time
	Page        int
	Limit       int
}

type HistoryRepository interface {
	CreateTx(tx *gorm.DB, e *model.StockHistoryEntry) error
	List(ctx context.Context, filter HistoryFilter) ([]model.StockHistoryEntry, int64, error)
	// ListAll ignores paging and returns at most max rows, newest first.
	ListAll(ctx context.Context, filter HistoryFilter, max int) ([]model.StockHistoryEntry, error)
	LatestForCode(ctx context.Context, stockCodeID uuid.UUID) (*model.StockHistoryEntry, error)
}

type historyRepo struct{ db *gorm.DB }

func NewHistoryRepository(db *gorm.DB) HistoryRepository { return &historyRepo{db: db} }

func (r *historyRepo) CreateTx(tx *gorm.DB, e *model.StockHistoryEntry) error {
	return tx.Create(e).Error
}

func (r *historyRepo) filtered(ctx context.Context, filter HistoryFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.StockHistoryEntry{})
	if filter.StockCodeID != nil {
		q = q.Where("stock_code_id = ?", *filter.StockCodeID)
	}
	if filter.Code != "" {
		q = q.Where("code = ?", filter.Code)
	}
	if filter.Kind != "" {
		q = q.Where("change_kind = ?", filter.Kind)
	}
	if filter.OrderRef != "" {
		q = q.Where("order_ref = ?", filter.OrderRef)
	}
	if filter.DateFrom != nil {
		q = q.Where("created_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		q = q.Where("created_at < ?", *filter.DateTo)
	}
	return q
}

func (r *historyRepo) List(ctx context.Context, filter HistoryFilter) ([]model.StockHistoryEntry, int64, error) {
	q := r.filtered(ctx, filter)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := normalizePage(filter.Page, filter.Limit)
	var entries []model.StockHistoryEntry
	err := q.Order("created_at DESC, id DESC").Offset((page - 1) * limit).Limit(limit).Find(&entries).Error
	return entries, total, err
}

func (r *historyRepo) ListAll(ctx context.Context, filter HistoryFilter, max int) ([]model.StockHistoryEntry, error) {
	var entries []model.StockHistoryEntry
	err := r.filtered(ctx, filter).Order("created_at DESC, id DESC").Limit(max).Find(&entries).Error
	return entries, err
}

func (r *historyRepo) LatestForCode(ctx context.Context, stockCodeID uuid.UUID) (*model.StockHistoryEntry, error) {
	var e model.StockHistoryEntry
	err := r.db.WithContext(ctx).
		Where("stock_code_id = ?", stockCodeID).
		Order("created_at DESC, id DESC").
		Take(&e).Error
	if err != nil {
		return nil, translate(err)
	}
	return &e, nil
}
