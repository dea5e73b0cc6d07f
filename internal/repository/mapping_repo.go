package repository

import (
	"context"

	"stockledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MappingRepository interface {
	// Upsert inserts m unless the same (code, product, variant) triple
	// already exists, in which case the stored row is returned and created
	// is false.
	Upsert(ctx context.Context, m *model.Mapping) (stored *model.Mapping, created bool, err error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Mapping, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByStockCodeTx(tx *gorm.DB, stockCodeID uuid.UUID) error
	ListByStockCode(ctx context.Context, stockCodeID uuid.UUID) ([]model.Mapping, error)

	// CodesForVariant and CodesForProduct return every stock code mapped to
	// the reference, earliest mapping first.
	CodesForVariant(ctx context.Context, variantRef int64) ([]model.StockCode, error)
	CodesForProduct(ctx context.Context, productRef int64) ([]model.StockCode, error)
}

type mappingRepo struct{ db *gorm.DB }

func NewMappingRepository(db *gorm.DB) MappingRepository { return &mappingRepo{db: db} }

func (r *mappingRepo) Upsert(ctx context.Context, m *model.Mapping) (*model.Mapping, bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stock_code_id"}, {Name: "product_ref"}, {Name: "variant_ref"}},
			DoNothing: true,
		}).
		Create(m)
	if res.Error != nil {
		return nil, false, translate(res.Error)
	}
	if res.RowsAffected == 1 {
		return m, true, nil
	}

	var existing model.Mapping
	err := r.db.WithContext(ctx).
		Where("stock_code_id = ? AND product_ref = ? AND variant_ref = ?", m.StockCodeID, m.ProductRef, m.VariantRef).
		Take(&existing).Error
	if err != nil {
		return nil, false, translate(err)
	}
	return &existing, false, nil
}

func (r *mappingRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Mapping, error) {
	var m model.Mapping
	if err := r.db.WithContext(ctx).Take(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (r *mappingRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&model.Mapping{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mappingRepo) DeleteByStockCodeTx(tx *gorm.DB, stockCodeID uuid.UUID) error {
	return tx.Where("stock_code_id = ?", stockCodeID).Delete(&model.Mapping{}).Error
}

func (r *mappingRepo) ListByStockCode(ctx context.Context, stockCodeID uuid.UUID) ([]model.Mapping, error) {
	var mappings []model.Mapping
	err := r.db.WithContext(ctx).
		Where("stock_code_id = ?", stockCodeID).
		Order("created_at ASC, id ASC").
		Find(&mappings).Error
	return mappings, err
}

func (r *mappingRepo) CodesForVariant(ctx context.Context, variantRef int64) ([]model.StockCode, error) {
	return r.codesWhere(ctx, "mappings.variant_ref = ?", variantRef)
}

func (r *mappingRepo) CodesForProduct(ctx context.Context, productRef int64) ([]model.StockCode, error) {
	return r.codesWhere(ctx, "mappings.product_ref = ? AND mappings.variant_ref = ?", productRef, model.NoVariant)
}

func (r *mappingRepo) codesWhere(ctx context.Context, where string, args ...interface{}) ([]model.StockCode, error) {
	var codes []model.StockCode
	err := r.db.WithContext(ctx).
		Joins("JOIN mappings ON mappings.stock_code_id = stock_codes.id").
		Where(where, args...).
		Order("mappings.created_at ASC, mappings.id ASC").
		Find(&codes).Error
	return codes, err
}
