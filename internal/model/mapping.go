package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NoVariant marks a product-level mapping (not tied to a specific variant).
const NoVariant int64 = 0

// Mapping links a StockCode to one catalog product or product variant.
// The triple (StockCodeID, ProductRef, VariantRef) is unique.
type Mapping struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	StockCodeID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_mapping_unique,priority:1"`
	ProductRef  int64     `gorm:"not null;index;uniqueIndex:idx_mapping_unique,priority:2"`
	VariantRef  int64     `gorm:"not null;default:0;index;uniqueIndex:idx_mapping_unique,priority:3"`
	CreatedAt   time.Time
}

func (m *Mapping) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// IsVariantLevel reports whether the mapping targets a specific variant.
func (m *Mapping) IsVariantLevel() bool { return m.VariantRef != NoVariant }
