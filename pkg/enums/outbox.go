package enums

// OutboxEventType names the domain events written through the outbox.
type OutboxEventType string

const (
	EventOrderCreated   OutboxEventType = "order.created"
	EventOrderCancelled OutboxEventType = "order.cancelled"
	EventOrderShipped   OutboxEventType = "order.shipped"
	EventOrderDelivered OutboxEventType = "order.delivered"
	EventOrderRefunded  OutboxEventType = "order.refunded"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderCancelled,
	EventOrderShipped,
	EventOrderDelivered,
	EventOrderRefunded,
}

// IsValid reports whether the value is a known OutboxEventType.
func (o OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
)
