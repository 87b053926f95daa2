package controllers

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/printforge/printforge-backend/pkg/db/models"
	"github.com/printforge/printforge-backend/pkg/types"
)

type cartItemResponse struct {
	ID                uuid.UUID       `json:"id"`
	ProductID         *uuid.UUID      `json:"product_id,omitempty"`
	CustomDescription *string         `json:"custom_description,omitempty"`
	Title             string          `json:"title"`
	Quantity          int             `json:"quantity"`
	UnitPrice         int64           `json:"unit_price"`
	Size              *string         `json:"size,omitempty"`
	Color             *string         `json:"color,omitempty"`
	Customization     json.RawMessage `json:"customization,omitempty"`
}

type cartResponse struct {
	ID         uuid.UUID          `json:"id"`
	CustomerID uuid.UUID          `json:"customer_id"`
	Status     string             `json:"status"`
	CouponCode *string            `json:"coupon_code,omitempty"`
	Subtotal   int64              `json:"subtotal"`
	Tax        int64              `json:"tax"`
	Shipping   int64              `json:"shipping"`
	Discount   int64              `json:"discount"`
	Total      int64              `json:"total"`
	Items      []cartItemResponse `json:"items"`
}

func newCartResponse(cart *models.Cart) cartResponse {
	items := make([]cartItemResponse, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, cartItemResponse{
			ID:                item.ID,
			ProductID:         item.ProductID,
			CustomDescription: item.CustomDescription,
			Title:             item.Title,
			Quantity:          item.Quantity,
			UnitPrice:         item.UnitPrice,
			Size:              item.Size,
			Color:             item.Color,
			Customization:     item.Customization,
		})
	}
	return cartResponse{
		ID:         cart.ID,
		CustomerID: cart.CustomerID,
		Status:     string(cart.Status),
		CouponCode: cart.CouponCode,
		Subtotal:   cart.Subtotal,
		Tax:        cart.Tax,
		Shipping:   cart.Shipping,
		Discount:   cart.Discount,
		Total:      cart.Total,
		Items:      items,
	}
}

type orderItemResponse struct {
	ID                uuid.UUID  `json:"id"`
	ProductID         *uuid.UUID `json:"product_id,omitempty"`
	CustomDescription *string    `json:"custom_description,omitempty"`
	Title             string     `json:"title"`
	Quantity          int        `json:"quantity"`
	UnitPrice         int64      `json:"unit_price"`
	LineTotal         int64      `json:"line_total"`
	Size              *string    `json:"size,omitempty"`
	Color             *string    `json:"color,omitempty"`
}

type orderResponse struct {
	ID                 uuid.UUID           `json:"id"`
	OrderNumber        string              `json:"order_number"`
	CustomerID         uuid.UUID           `json:"customer_id"`
	Status             string              `json:"status"`
	PaymentStatus      string              `json:"payment_status"`
	PaymentMethod      string              `json:"payment_method"`
	PaymentRef         string              `json:"payment_ref"`
	Subtotal           int64               `json:"subtotal"`
	Tax                int64               `json:"tax"`
	Shipping           int64               `json:"shipping"`
	Discount           int64               `json:"discount"`
	Total              int64               `json:"total"`
	CouponCode         *string             `json:"coupon_code,omitempty"`
	ShippingAddress    types.Address       `json:"shipping_address"`
	TrackingNumber     *string             `json:"tracking_number,omitempty"`
	CancellationReason *string             `json:"cancellation_reason,omitempty"`
	RefundAmount       *int64              `json:"refund_amount,omitempty"`
	ShippedAt          *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt        *time.Time          `json:"delivered_at,omitempty"`
	CancelledAt        *time.Time          `json:"cancelled_at,omitempty"`
	RefundedAt         *time.Time          `json:"refunded_at,omitempty"`
	Items              []orderItemResponse `json:"items"`
	CreatedAt          time.Time           `json:"created_at"`
}

func newOrderResponse(order *models.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ID:                item.ID,
			ProductID:         item.ProductID,
			CustomDescription: item.CustomDescription,
			Title:             item.Title,
			Quantity:          item.Quantity,
			UnitPrice:         item.UnitPrice,
			LineTotal:         item.LineTotal,
			Size:              item.Size,
			Color:             item.Color,
		})
	}
	return orderResponse{
		ID:                 order.ID,
		OrderNumber:        order.OrderNumber,
		CustomerID:         order.CustomerID,
		Status:             string(order.Status),
		PaymentStatus:      string(order.PaymentStatus),
		PaymentMethod:      string(order.PaymentMethod),
		PaymentRef:         order.PaymentRef,
		Subtotal:           order.Subtotal,
		Tax:                order.Tax,
		Shipping:           order.Shipping,
		Discount:           order.Discount,
		Total:              order.Total,
		CouponCode:         order.CouponCode,
		ShippingAddress:    order.ShippingAddress,
		TrackingNumber:     order.TrackingNumber,
		CancellationReason: order.CancellationReason,
		RefundAmount:       order.RefundAmount,
		ShippedAt:          order.ShippedAt,
		DeliveredAt:        order.DeliveredAt,
		CancelledAt:        order.CancelledAt,
		RefundedAt:         order.RefundedAt,
		Items:              items,
		CreatedAt:          order.CreatedAt,
	}
}

func newOrderListResponse(orders []models.Order, nextCursor *string) map[string]any {
	records := make([]orderResponse, 0, len(orders))
	for i := range orders {
		records = append(records, newOrderResponse(&orders[i]))
	}
	return map[string]any{
		"orders":      records,
		"next_cursor": nextCursor,
	}
}

type couponResponse struct {
	ID             uuid.UUID `json:"id"`
	Code           string    `json:"code"`
	DiscountType   string    `json:"discount_type"`
	DiscountValue  int64     `json:"discount_value"`
	MaxDiscount    *int64    `json:"max_discount,omitempty"`
	MinOrderAmount int64     `json:"min_order_amount"`
	UsageLimit     *int      `json:"usage_limit,omitempty"`
	UsedCount      int       `json:"used_count"`
	ValidFrom      time.Time `json:"valid_from"`
	ValidTo        time.Time `json:"valid_to"`
	IsActive       bool      `json:"is_active"`
}

func newCouponResponse(coupon *models.Coupon) couponResponse {
	return couponResponse{
		ID:             coupon.ID,
		Code:           coupon.Code,
		DiscountType:   string(coupon.DiscountType),
		DiscountValue:  coupon.DiscountValue,
		MaxDiscount:    coupon.MaxDiscount,
		MinOrderAmount: coupon.MinOrderAmount,
		UsageLimit:     coupon.UsageLimit,
		UsedCount:      coupon.UsedCount,
		ValidFrom:      coupon.ValidFrom,
		ValidTo:        coupon.ValidTo,
		IsActive:       coupon.IsActive,
	}
}

type notificationResponse struct {
	ID        uuid.UUID  `json:"id"`
	Kind      string     `json:"kind"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func newNotificationListResponse(rows []models.Notification) []notificationResponse {
	records := make([]notificationResponse, 0, len(rows))
	for _, row := range rows {
		records = append(records, notificationResponse{
			ID:        row.ID,
			Kind:      string(row.Kind),
			Title:     row.Title,
			Body:      row.Body,
			ReadAt:    row.ReadAt,
			CreatedAt: row.CreatedAt,
		})
	}
	return records
}
