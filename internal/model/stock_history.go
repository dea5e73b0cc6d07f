package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChangeKind classifies a stock history entry.
type ChangeKind string

const (
	ChangeAdd           ChangeKind = "add"
	ChangeRemove        ChangeKind = "remove"
	ChangeOrderShipped  ChangeKind = "order_shipped"
	ChangeOrderReturned ChangeKind = "order_returned"
)

// Valid reports whether k is one of the known change kinds.
func (k ChangeKind) Valid() bool {
	switch k {
	case ChangeAdd, ChangeRemove, ChangeOrderShipped, ChangeOrderReturned:
		return true
	}
	return false
}

// Sign is +1 for kinds that increase stock and -1 for kinds that decrease it.
func (k ChangeKind) Sign() int {
	if k == ChangeAdd || k == ChangeOrderReturned {
		return 1
	}
	return -1
}

// StockHistoryEntry is one immutable record of a quantity change.
// Rows are never updated or deleted, and they outlive the StockCode they
// reference: Code is a snapshot kept for display after deletion.
type StockHistoryEntry struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	StockCodeID uuid.UUID  `gorm:"type:uuid;not null;index"`
	Code        string     `gorm:"size:100;not null;index"`
	ChangeKind  ChangeKind `gorm:"type:varchar(20);not null;index"`
	Quantity    int        `gorm:"not null"` // always a non-negative magnitude
	StockBefore int        `gorm:"not null"`
	StockAfter  int        `gorm:"not null"`
	OrderRef    *string    `gorm:"size:64;index"`
	Comment     string     `gorm:"type:text;not null;default:''"`
	ActorID     *uuid.UUID `gorm:"type:uuid"`
	CreatedAt   time.Time  `gorm:"index"`
}

// TableName overrides GORM's default pluralization.
func (StockHistoryEntry) TableName() string { return "stock_history" }

func (e *StockHistoryEntry) BeforeCreate(_ *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
