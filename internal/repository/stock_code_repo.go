package repository

import (
	"context"
	"strings"
	"time"

	"stockledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockCodeFilter defines search, sort and paging for the stock code listing.
type StockCodeFilter struct {
	Search string
	SortBy string // code | name | quantity
	Order  string // asc | desc
	Page   int
	Limit  int
}

var stockCodeSortColumns = map[string]string{
	"code":     "code",
	"name":     "name",
	"quantity": "current_quantity",
}

// StockCodeRepository defines the data access contract for stock codes.
// Methods suffixed with Tx run inside a caller-owned transaction.
type StockCodeRepository interface {
	CreateTx(tx *gorm.DB, s *model.StockCode) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.StockCode, error)
	FindByCode(ctx context.Context, code string) (*model.StockCode, error)
	List(ctx context.Context, filter StockCodeFilter) ([]model.StockCode, int64, error)
	UpdateName(ctx context.Context, id uuid.UUID, name string) error

	// LockTx reads the row with SELECT ... FOR UPDATE.
	LockTx(tx *gorm.DB, id uuid.UUID) (*model.StockCode, error)
	// SetQuantityTx writes after only if the stored quantity still equals
	// before. It reports false when another writer got there first.
	SetQuantityTx(tx *gorm.DB, id uuid.UUID, before, after int) (bool, error)
	DeleteTx(tx *gorm.DB, id uuid.UUID) error

	// DB exposes the underlying *gorm.DB so services can open transactions.
	DB() *gorm.DB
}

type stockCodeRepo struct{ db *gorm.DB }

func NewStockCodeRepository(db *gorm.DB) StockCodeRepository { return &stockCodeRepo{db: db} }

func (r *stockCodeRepo) CreateTx(tx *gorm.DB, s *model.StockCode) error {
	return translate(tx.Create(s).Error)
}

func (r *stockCodeRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.StockCode, error) {
	var s model.StockCode
	if err := r.db.WithContext(ctx).Take(&s, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *stockCodeRepo) FindByCode(ctx context.Context, code string) (*model.StockCode, error) {
	var s model.StockCode
	if err := r.db.WithContext(ctx).Take(&s, "code = ?", code).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *stockCodeRepo) List(ctx context.Context, filter StockCodeFilter) ([]model.StockCode, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.StockCode{})
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		q = q.Where("LOWER(code) LIKE ? OR LOWER(name) LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := stockCodeSortColumns[filter.SortBy]
	if !ok {
		column = "code"
	}
	desc := strings.EqualFold(filter.Order, "desc")

	page, limit := normalizePage(filter.Page, filter.Limit)
	var codes []model.StockCode
	err := q.Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: desc}).
		Order("id").
		Offset((page - 1) * limit).Limit(limit).
		Find(&codes).Error
	return codes, total, err
}

func (r *stockCodeRepo) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	res := r.db.WithContext(ctx).Model(&model.StockCode{}).Where("id = ?", id).Update("name", name)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *stockCodeRepo) LockTx(tx *gorm.DB, id uuid.UUID) (*model.StockCode, error) {
	var s model.StockCode
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&s, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *stockCodeRepo) SetQuantityTx(tx *gorm.DB, id uuid.UUID, before, after int) (bool, error) {
	res := tx.Model(&model.StockCode{}).
		Where("id = ? AND current_quantity = ?", id, before).
		Updates(map[string]interface{}{
			"current_quantity": after,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *stockCodeRepo) DeleteTx(tx *gorm.DB, id uuid.UUID) error {
	res := tx.Delete(&model.StockCode{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *stockCodeRepo) DB() *gorm.DB { return r.db }
