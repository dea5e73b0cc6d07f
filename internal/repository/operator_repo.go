package repository

import (
	"context"

	"stockledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OperatorRepository interface {
	Create(ctx context.Context, o *model.Operator) error
	FindByUsername(ctx context.Context, username string) (*model.Operator, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Operator, error)
	List(ctx context.Context, includeInactive bool) ([]model.Operator, error)
	Update(ctx context.Context, o *model.Operator) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

type operatorRepo struct{ db *gorm.DB }

func NewOperatorRepository(db *gorm.DB) OperatorRepository { return &operatorRepo{db: db} }

func (r *operatorRepo) Create(ctx context.Context, o *model.Operator) error {
	return translate(r.db.WithContext(ctx).Create(o).Error)
}

// FindByUsername accepts the username or, case-insensitively, the email.
func (r *operatorRepo) FindByUsername(ctx context.Context, username string) (*model.Operator, error) {
	var o model.Operator
	err := r.db.WithContext(ctx).
		Where("(username = ? OR LOWER(email) = LOWER(?)) AND active = ?", username, username, true).
		Take(&o).Error
	if err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (r *operatorRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Operator, error) {
	var o model.Operator
	if err := r.db.WithContext(ctx).Take(&o, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (r *operatorRepo) List(ctx context.Context, includeInactive bool) ([]model.Operator, error) {
	q := r.db.WithContext(ctx).Order("username")
	if !includeInactive {
		q = q.Where("active = ?", true)
	}
	var ops []model.Operator
	err := q.Find(&ops).Error
	return ops, err
}

func (r *operatorRepo) Update(ctx context.Context, o *model.Operator) error {
	return translate(r.db.WithContext(ctx).Save(o).Error)
}

func (r *operatorRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	res := r.db.WithContext(ctx).Model(&model.Operator{}).Where("id = ?", id).Update("active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
