package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryItem tracks sellable stock per product. Stock decrements and sold
// increments are always paired; cancellation reverses both.
type InventoryItem struct {
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	Stock     int       `gorm:"column:stock;not null;default:0"`
	Sold      int       `gorm:"column:sold;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
