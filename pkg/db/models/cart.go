package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/printforge/printforge-backend/pkg/enums"
)

// Cart is the single active cart for a customer. It is soft-cleared after a
// successful checkout rather than deleted.
type Cart struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID uuid.UUID        `gorm:"column:customer_id;type:uuid;not null;uniqueIndex:ux_carts_customer"`
	Status     enums.CartStatus `gorm:"column:status;type:text;not null;default:'active'"`
	CouponCode *string          `gorm:"column:coupon_code"`
	Subtotal   int64            `gorm:"column:subtotal;not null;default:0"`
	Tax        int64            `gorm:"column:tax;not null;default:0"`
	Shipping   int64            `gorm:"column:shipping;not null;default:0"`
	Discount   int64            `gorm:"column:discount;not null;default:0"`
	Total      int64            `gorm:"column:total;not null;default:0"`
	Items      []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
