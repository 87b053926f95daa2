package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/printforge/printforge-backend/pkg/db/models"
	"github.com/printforge/printforge-backend/pkg/enums"
	"github.com/printforge/printforge-backend/pkg/logger"
	"github.com/printforge/printforge-backend/pkg/outbox"
	"github.com/printforge/printforge-backend/pkg/outbox/payloads"
)

// Consumer turns published order events into persisted customer
// notifications and a best-effort external send.
type Consumer struct {
	repo   Repository
	sender Sender
	logg   *logger.Logger
}

// NewConsumer builds an event consumer. A nil sender falls back to NopSender.
func NewConsumer(repo Repository, sender Sender, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if sender == nil {
		sender = NopSender{}
	}
	return &Consumer{repo: repo, sender: sender, logg: logg}, nil
}

// Handle processes one outbox event. Returning an error leaves the event
// unpublished so the dispatcher retries it later.
func (c *Consumer) Handle(ctx context.Context, event models.OutboxEvent) error {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	notification, err := buildNotification(event.EventType, envelope.Data)
	if err != nil {
		return err
	}
	if notification == nil {
		return nil
	}

	if _, err := c.repo.Create(ctx, notification); err != nil {
		return fmt.Errorf("persist notification: %w", err)
	}

	// external send is best-effort: the persisted row is the system of record
	msg := Message{
		CustomerID: notification.CustomerID.String(),
		Subject:    notification.Title,
		Body:       notification.Body,
	}
	if err := c.sender.Send(ctx, msg); err != nil && c.logg != nil {
		c.logg.Error(ctx, "notification send failed", err)
	}
	return nil
}

func buildNotification(eventType enums.OutboxEventType, data json.RawMessage) (*models.Notification, error) {
	switch eventType {
	case enums.EventOrderCreated:
		var payload payloads.OrderCreatedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("decode order created payload: %w", err)
		}
		return &models.Notification{
			ID:         uuid.New(),
			CustomerID: payload.CustomerID,
			Kind:       enums.NotificationOrderConfirmed,
			Title:      "Order confirmed",
			Body:       fmt.Sprintf("Your order %s has been confirmed. Total: %d.", payload.OrderNumber, payload.Total),
		}, nil

	case enums.EventOrderCancelled, enums.EventOrderShipped, enums.EventOrderDelivered, enums.EventOrderRefunded:
		var payload payloads.OrderStatusChangedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("decode status payload: %w", err)
		}
		kind, title, body := statusNotification(eventType, payload)
		return &models.Notification{
			ID:         uuid.New(),
			CustomerID: payload.CustomerID,
			Kind:       kind,
			Title:      title,
			Body:       body,
		}, nil

	default:
		// unknown events are acknowledged, not retried forever
		return nil, nil
	}
}

func statusNotification(eventType enums.OutboxEventType, payload payloads.OrderStatusChangedEvent) (enums.NotificationKind, string, string) {
	switch eventType {
	case enums.EventOrderCancelled:
		body := fmt.Sprintf("Your order %s has been cancelled.", payload.OrderNumber)
		if payload.Reason != nil {
			body = fmt.Sprintf("Your order %s has been cancelled: %s.", payload.OrderNumber, *payload.Reason)
		}
		return enums.NotificationOrderCancelled, "Order cancelled", body
	case enums.EventOrderShipped:
		body := fmt.Sprintf("Your order %s is on its way.", payload.OrderNumber)
		if payload.TrackingNumber != nil {
			body = fmt.Sprintf("Your order %s is on its way. Tracking: %s.", payload.OrderNumber, *payload.TrackingNumber)
		}
		return enums.NotificationOrderShipped, "Order shipped", body
	case enums.EventOrderDelivered:
		return enums.NotificationOrderDelivered, "Order delivered",
			fmt.Sprintf("Your order %s has been delivered.", payload.OrderNumber)
	default:
		body := fmt.Sprintf("Your order %s has been refunded.", payload.OrderNumber)
		if payload.RefundAmount != nil {
			body = fmt.Sprintf("Your order %s has been refunded. Amount: %d.", payload.OrderNumber, *payload.RefundAmount)
		}
		return enums.NotificationOrderRefunded, "Order refunded", body
	}
}
