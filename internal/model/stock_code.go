package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockCode is one internally tracked inventory unit, independent of the
// catalog's own product identifiers. Code is unique and never changes once
// created; CurrentQuantity may go negative (oversell stays visible).
type StockCode struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	Code            string    `gorm:"size:100;uniqueIndex;not null"`
	Name            string    `gorm:"size:255;not null;default:''"`
	CurrentQuantity int       `gorm:"not null;default:0"`
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Mappings []Mapping `gorm:"foreignKey:StockCodeID;constraint:OnDelete:CASCADE"`
}

// BeforeCreate assigns the primary key client-side so the same model works on
// Postgres and on SQLite test databases.
func (s *StockCode) BeforeCreate(_ *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
