package payloads

import (
	"github.com/google/uuid"

	"github.com/printforge/printforge-backend/pkg/enums"
)

// OrderCreatedEvent is emitted after checkout persists a paid order.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	CustomerID  uuid.UUID `json:"customer_id"`
	Total       int64     `json:"total"`
	ItemCount   int       `json:"item_count"`
	CouponCode  *string   `json:"coupon_code,omitempty"`
}

// OrderStatusChangedEvent is emitted on every state-machine transition.
type OrderStatusChangedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	OrderNumber    string            `json:"order_number"`
	CustomerID     uuid.UUID         `json:"customer_id"`
	FromStatus     enums.OrderStatus `json:"from_status"`
	ToStatus       enums.OrderStatus `json:"to_status"`
	TrackingNumber *string           `json:"tracking_number,omitempty"`
	Reason         *string           `json:"reason,omitempty"`
	RefundAmount   *int64            `json:"refund_amount,omitempty"`
}
