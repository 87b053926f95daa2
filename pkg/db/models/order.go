package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/printforge/printforge-backend/pkg/enums"
	"github.com/printforge/printforge-backend/pkg/types"
)

// Order is the transactional record created once payment is verified. It is
// append-only apart from the state-machine fields below.
type Order struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber        string              `gorm:"column:order_number;not null;uniqueIndex:ux_orders_number"`
	CustomerID         uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index"`
	Status             enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'confirmed'"`
	PaymentStatus      enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	PaymentMethod      enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	PaymentRef         string              `gorm:"column:payment_ref;not null;uniqueIndex:ux_orders_payment_ref"`
	Subtotal           int64               `gorm:"column:subtotal;not null"`
	Tax                int64               `gorm:"column:tax;not null"`
	Shipping           int64               `gorm:"column:shipping;not null"`
	Discount           int64               `gorm:"column:discount;not null;default:0"`
	Total              int64               `gorm:"column:total;not null"`
	CouponCode         *string             `gorm:"column:coupon_code"`
	ShippingAddress    types.Address       `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	TrackingNumber     *string             `gorm:"column:tracking_number"`
	CancellationReason *string             `gorm:"column:cancellation_reason"`
	RefundAmount       *int64              `gorm:"column:refund_amount"`
	ShippedAt          *time.Time          `gorm:"column:shipped_at"`
	DeliveredAt        *time.Time          `gorm:"column:delivered_at"`
	CancelledAt        *time.Time          `gorm:"column:cancelled_at"`
	RefundedAt         *time.Time          `gorm:"column:refunded_at"`
	Items              []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
