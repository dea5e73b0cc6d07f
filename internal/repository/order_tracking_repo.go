package repository

import (
	"context"
	"time"

	"stockledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TrackingKey identifies one order-line transition target.
type TrackingKey struct {
	OrderRef     string
	OrderLineRef string
	StockCodeID  uuid.UUID
}

type TrackingRepository interface {
	Find(ctx context.Context, key TrackingKey) (*model.OrderTracking, error)
	ListByOrder(ctx context.Context, orderRef string) ([]model.OrderTracking, error)

	// ClaimShipmentTx inserts or flips the row to shipped. It reports true
	// only for the caller that performed the transition.
	ClaimShipmentTx(tx *gorm.DB, rec *model.OrderTracking, at time.Time) (bool, error)
	// ClaimReturnTx flips a shipped, not yet returned row to returned.
	// It reports false when no such row exists.
	ClaimReturnTx(tx *gorm.DB, key TrackingKey, at time.Time) (bool, error)

	DB() *gorm.DB
}

type trackingRepo struct{ db *gorm.DB }

func NewTrackingRepository(db *gorm.DB) TrackingRepository { return &trackingRepo{db: db} }

func (r *trackingRepo) Find(ctx context.Context, key TrackingKey) (*model.OrderTracking, error) {
	var t model.OrderTracking
	err := r.db.WithContext(ctx).
		Where("order_ref = ? AND order_line_ref = ? AND stock_code_id = ?", key.OrderRef, key.OrderLineRef, key.StockCodeID).
		Take(&t).Error
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *trackingRepo) ListByOrder(ctx context.Context, orderRef string) ([]model.OrderTracking, error) {
	var rows []model.OrderTracking
	err := r.db.WithContext(ctx).
		Where("order_ref = ?", orderRef).
		Order("created_at ASC, order_line_ref ASC").
		Find(&rows).Error
	return rows, err
}

func (r *trackingRepo) ClaimShipmentTx(tx *gorm.DB, rec *model.OrderTracking, at time.Time) (bool, error) {
	rec.ShippedProcessed = true
	rec.ShippedAt = &at
	res := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "order_ref"}, {Name: "order_line_ref"}, {Name: "stock_code_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"shipped_processed": true,
			"shipped_at":        at,
			"quantity":          rec.Quantity,
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Eq{Column: clause.Column{Table: rec.TableName(), Name: "shipped_processed"}, Value: false},
		}},
	}).Create(rec)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *trackingRepo) ClaimReturnTx(tx *gorm.DB, key TrackingKey, at time.Time) (bool, error) {
	res := tx.Model(&model.OrderTracking{}).
		Where("order_ref = ? AND order_line_ref = ? AND stock_code_id = ?", key.OrderRef, key.OrderLineRef, key.StockCodeID).
		Where("shipped_processed = ? AND return_processed = ?", true, false).
		Updates(map[string]interface{}{
			"return_processed": true,
			"returned_at":      at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *trackingRepo) DB() *gorm.DB { return r.db }
