package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CartItem is one line in a cart. ProductID is nil for custom print jobs that
// have no catalog listing; those carry their own description and skip the
// inventory ledger entirely.
type CartItem struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID            uuid.UUID       `gorm:"column:cart_id;type:uuid;not null;index"`
	ProductID         *uuid.UUID      `gorm:"column:product_id;type:uuid"`
	CustomDescription *string         `gorm:"column:custom_description"`
	Title             string          `gorm:"column:title;not null"`
	Quantity          int             `gorm:"column:quantity;not null"`
	UnitPrice         int64           `gorm:"column:unit_price;not null"`
	Size              *string         `gorm:"column:size"`
	Color             *string         `gorm:"column:color"`
	Customization     json.RawMessage `gorm:"column:customization;type:jsonb"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
