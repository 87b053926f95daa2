package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/printforge/printforge-backend/pkg/enums"
)

// Coupon carries the redeemable discount definition. UsedCount only ever
// increases; cancellation never hands a redemption back.
type Coupon struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code           string           `gorm:"column:code;not null;uniqueIndex:ux_coupons_code"`
	DiscountType   enums.CouponType `gorm:"column:discount_type;type:text;not null"`
	DiscountValue  int64            `gorm:"column:discount_value;not null"`
	MaxDiscount    *int64           `gorm:"column:max_discount"`
	MinOrderAmount int64            `gorm:"column:min_order_amount;not null;default:0"`
	UsageLimit     *int             `gorm:"column:usage_limit"`
	UsedCount      int              `gorm:"column:used_count;not null;default:0"`
	ValidFrom      time.Time        `gorm:"column:valid_from;not null"`
	ValidTo        time.Time        `gorm:"column:valid_to;not null"`
	IsActive       bool             `gorm:"column:is_active;not null;default:true"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
