package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printforge/printforge-backend/internal/inventory"
	"github.com/printforge/printforge-backend/pkg/db/models"
	"github.com/printforge/printforge-backend/pkg/enums"
	pkgerrors "github.com/printforge/printforge-backend/pkg/errors"
	"github.com/printforge/printforge-backend/pkg/outbox"
	"github.com/printforge/printforge-backend/pkg/outbox/payloads"
	"github.com/printforge/printforge-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Actor identifies who requested a transition.
type Actor struct {
	ID   uuid.UUID
	Role enums.UserRole
}

// CancelInput carries the data for a customer or admin cancellation.
type CancelInput struct {
	OrderID uuid.UUID
	Reason  string
	Actor   Actor
}

// ShipInput marks an order shipped with its tracking number.
type ShipInput struct {
	OrderID        uuid.UUID
	TrackingNumber string
	Actor          Actor
}

// DeliverInput marks an order delivered.
type DeliverInput struct {
	OrderID uuid.UUID
	Actor   Actor
}

// RefundInput refunds a delivered order, or any non-terminal order when the
// actor is an admin.
type RefundInput struct {
	OrderID uuid.UUID
	Amount  *int64
	Actor   Actor
}

// Service exposes order reads and the state-machine transitions.
type Service interface {
	GetForActor(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params, filters ListFilters) (*OrderList, error)
	Cancel(ctx context.Context, input CancelInput) (*models.Order, error)
	Ship(ctx context.Context, input ShipInput) (*models.Order, error)
	Deliver(ctx context.Context, input DeliverInput) (*models.Order, error)
	Refund(ctx context.Context, input RefundInput) (*models.Order, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outboxSvc}, nil
}

func (s *service) GetForActor(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	order, err := s.loadOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorizeActor(order, actor); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) ListForCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params, filters ListFilters) (*OrderList, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	list, err := s.repo.ListByCustomer(ctx, customerID, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

// Cancel is allowed only while the order is pending or confirmed: past that
// point the goods may already have left the warehouse, so reversing the
// inventory ledger would corrupt it. The release runs in the same transaction
// as the status change.
func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Actor.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	var cancelled *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if err := authorizeActor(order, input.Actor); err != nil {
			return err
		}

		if order.Status != enums.OrderStatusPending && order.Status != enums.OrderStatusConfirmed {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order in status %q cannot be cancelled", order.Status))
		}

		for _, item := range order.Items {
			if item.ProductID == nil {
				continue
			}
			if err := inventory.Release(ctx, tx, *item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		now := time.Now()
		updates := map[string]any{
			"status": enums.OrderStatusCancelled,
		}
		if order.CancelledAt == nil {
			updates["cancelled_at"] = now
		}
		reason := input.Reason
		if reason != "" {
			updates["cancellation_reason"] = reason
		}
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}

		from := order.Status
		order.Status = enums.OrderStatusCancelled
		if order.CancelledAt == nil {
			order.CancelledAt = &now
		}
		if reason != "" {
			order.CancellationReason = &reason
		}
		cancelled = order

		return s.emitStatusEvent(ctx, tx, enums.EventOrderCancelled, order, from, statusEventExtras{Reason: order.CancellationReason}, input.Actor)
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// Ship moves any non-terminal, non-delivered order to shipped and records the
// tracking number. Repeating the call with the order already shipped is a
// no-op.
func (s *service) Ship(ctx context.Context, input ShipInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.TrackingNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking number required")
	}
	if err := requireAdmin(input.Actor); err != nil {
		return nil, err
	}

	var shipped *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if order.Status == enums.OrderStatusShipped {
			shipped = order
			return nil
		}
		if order.Status.IsTerminal() || order.Status == enums.OrderStatusDelivered {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order in status %q cannot be shipped", order.Status))
		}

		now := time.Now()
		updates := map[string]any{
			"status":          enums.OrderStatusShipped,
			"tracking_number": input.TrackingNumber,
		}
		if order.ShippedAt == nil {
			updates["shipped_at"] = now
		}
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}

		from := order.Status
		order.Status = enums.OrderStatusShipped
		order.TrackingNumber = &input.TrackingNumber
		if order.ShippedAt == nil {
			order.ShippedAt = &now
		}
		shipped = order

		return s.emitStatusEvent(ctx, tx, enums.EventOrderShipped, order, from, statusEventExtras{TrackingNumber: order.TrackingNumber}, input.Actor)
	})
	if err != nil {
		return nil, err
	}
	return shipped, nil
}

// Deliver marks the order delivered. deliveredAt is written once; repeated
// deliveries keep the first timestamp.
func (s *service) Deliver(ctx context.Context, input DeliverInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if err := requireAdmin(input.Actor); err != nil {
		return nil, err
	}

	var delivered *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if order.Status == enums.OrderStatusDelivered {
			delivered = order
			return nil
		}
		if order.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order in status %q cannot be delivered", order.Status))
		}

		updates := map[string]any{
			"status": enums.OrderStatusDelivered,
		}
		now := time.Now()
		if order.DeliveredAt == nil {
			updates["delivered_at"] = now
		}
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}

		from := order.Status
		order.Status = enums.OrderStatusDelivered
		if order.DeliveredAt == nil {
			order.DeliveredAt = &now
		}
		delivered = order

		return s.emitStatusEvent(ctx, tx, enums.EventOrderDelivered, order, from, statusEventExtras{}, input.Actor)
	})
	if err != nil {
		return nil, err
	}
	return delivered, nil
}

// Refund is reachable from delivered, or from any non-terminal state for an
// admin override. The refund amount defaults to the order total.
func (s *service) Refund(ctx context.Context, input RefundInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if err := requireAdmin(input.Actor); err != nil {
		return nil, err
	}
	if input.Amount != nil && *input.Amount < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must not be negative")
	}

	var refunded *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if order.Status == enums.OrderStatusRefunded {
			refunded = order
			return nil
		}
		if order.Status == enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cancelled orders cannot be refunded")
		}

		amount := order.Total
		if input.Amount != nil {
			amount = *input.Amount
		}
		if amount > order.Total {
			return pkgerrors.New(pkgerrors.CodeValidation, "refund amount exceeds order total")
		}

		updates := map[string]any{
			"status":         enums.OrderStatusRefunded,
			"payment_status": enums.PaymentStatusRefunded,
			"refund_amount":  amount,
		}
		now := time.Now()
		if order.RefundedAt == nil {
			updates["refunded_at"] = now
		}
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}

		from := order.Status
		order.Status = enums.OrderStatusRefunded
		order.PaymentStatus = enums.PaymentStatusRefunded
		order.RefundAmount = &amount
		if order.RefundedAt == nil {
			order.RefundedAt = &now
		}
		refunded = order

		return s.emitStatusEvent(ctx, tx, enums.EventOrderRefunded, order, from, statusEventExtras{RefundAmount: order.RefundAmount}, input.Actor)
	})
	if err != nil {
		return nil, err
	}
	return refunded, nil
}

func (s *service) loadOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

type statusEventExtras struct {
	TrackingNumber *string
	Reason         *string
	RefundAmount   *int64
}

func (s *service) emitStatusEvent(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, order *models.Order, from enums.OrderStatus, extras statusEventExtras, actor Actor) error {
	actorID := actor.ID
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{CustomerID: &actorID, Role: actor.Role.String()},
		Data: payloads.OrderStatusChangedEvent{
			OrderID:        order.ID,
			OrderNumber:    order.OrderNumber,
			CustomerID:     order.CustomerID,
			FromStatus:     from,
			ToStatus:       order.Status,
			TrackingNumber: extras.TrackingNumber,
			Reason:         extras.Reason,
			RefundAmount:   extras.RefundAmount,
		},
	})
}

func authorizeActor(order *models.Order, actor Actor) error {
	if actor.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if actor.Role == enums.UserRoleAdmin {
		return nil
	}
	if order.CustomerID != actor.ID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to customer")
	}
	return nil
}

func requireAdmin(actor Actor) error {
	if actor.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if actor.Role != enums.UserRoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return nil
}
