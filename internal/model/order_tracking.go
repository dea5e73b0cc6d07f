package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderTracking marks which order-driven adjustments were already applied for
// one (order, order line, stock code) triple. A row only moves forward:
// shipped first, then returned.
type OrderTracking struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderRef         string    `gorm:"size:64;not null;index;uniqueIndex:idx_order_line_code,priority:1"`
	OrderLineRef     string    `gorm:"size:64;not null;uniqueIndex:idx_order_line_code,priority:2"`
	StockCodeID      uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_order_line_code,priority:3"`
	Code             string    `gorm:"size:100;not null"`
	Quantity         int       `gorm:"not null"`
	ShippedProcessed bool      `gorm:"not null;default:false"`
	ReturnProcessed  bool      `gorm:"not null;default:false"`
	ShippedAt        *time.Time
	ReturnedAt       *time.Time
	CreatedAt        time.Time
}

// TableName keeps the relation name singular like the other audit tables.
func (OrderTracking) TableName() string { return "order_tracking" }

func (t *OrderTracking) BeforeCreate(_ *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
