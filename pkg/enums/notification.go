package enums

// NotificationKind labels persisted customer notifications.
type NotificationKind string

const (
	NotificationOrderConfirmed NotificationKind = "order_confirmed"
	NotificationOrderCancelled NotificationKind = "order_cancelled"
	NotificationOrderShipped   NotificationKind = "order_shipped"
	NotificationOrderDelivered NotificationKind = "order_delivered"
	NotificationOrderRefunded  NotificationKind = "order_refunded"
)
