package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OrderItem is the frozen copy of a cart line at purchase time. Unit prices
// are the add-to-cart snapshots, never the live catalog price.
type OrderItem struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID         *uuid.UUID      `gorm:"column:product_id;type:uuid"`
	CustomDescription *string         `gorm:"column:custom_description"`
	Title             string          `gorm:"column:title;not null"`
	Quantity          int             `gorm:"column:quantity;not null"`
	UnitPrice         int64           `gorm:"column:unit_price;not null"`
	LineTotal         int64           `gorm:"column:line_total;not null"`
	Size              *string         `gorm:"column:size"`
	Color             *string         `gorm:"column:color"`
	Customization     json.RawMessage `gorm:"column:customization;type:jsonb"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
}
