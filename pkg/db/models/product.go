package models

import (
	"time"

	"github.com/google/uuid"
)

// Product represents a catalog listing. Pricing snapshots are taken from it at
// cart-add time; later price changes never alter existing carts or orders.
type Product struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SKU       string         `gorm:"column:sku;not null;uniqueIndex:ux_products_sku"`
	Title     string         `gorm:"column:title;not null"`
	Price     int64          `gorm:"column:price;not null"`
	IsActive  bool           `gorm:"column:is_active;not null;default:true"`
	Inventory *InventoryItem `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
