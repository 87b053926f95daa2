package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printforge/printforge-backend/internal/cart"
	"github.com/printforge/printforge-backend/internal/inventory"
	"github.com/printforge/printforge-backend/internal/orders"
	"github.com/printforge/printforge-backend/internal/payments"
	"github.com/printforge/printforge-backend/pkg/db"
	"github.com/printforge/printforge-backend/pkg/db/models"
	"github.com/printforge/printforge-backend/pkg/enums"
	pkgerrors "github.com/printforge/printforge-backend/pkg/errors"
	"github.com/printforge/printforge-backend/pkg/logger"
	"github.com/printforge/printforge-backend/pkg/metrics"
	"github.com/printforge/printforge-backend/pkg/outbox"
	"github.com/printforge/printforge-backend/pkg/outbox/payloads"
	"github.com/printforge/printforge-backend/pkg/types"
)

const orderNumberAttempts = 3

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Input carries a verified-payment checkout request.
type Input struct {
	CustomerID      uuid.UUID
	OrderRef        string
	PaymentRef      string
	Signature       string
	PaymentMethod   enums.PaymentMethod
	ShippingAddress types.Address
}

// Service turns a priced cart into a paid order, all-or-nothing.
type Service interface {
	PlaceOrder(ctx context.Context, input Input) (*models.Order, error)
}

type service struct {
	cartRepo    cart.Repository
	orderRepo   orders.Repository
	tx          txRunner
	verifier    payments.Verifier
	outbox      outboxPublisher
	locker      cart.Locker
	metrics     *metrics.CheckoutMetrics
	logg        *logger.Logger
	orderPrefix string
}

// NewService builds the checkout orchestrator with the required dependencies.
func NewService(cartRepo cart.Repository, orderRepo orders.Repository, tx txRunner, verifier payments.Verifier, outboxSvc outboxPublisher, locker cart.Locker, checkoutMetrics *metrics.CheckoutMetrics, logg *logger.Logger, orderPrefix string) (Service, error) {
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("payment verifier required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if locker == nil {
		return nil, fmt.Errorf("cart locker required")
	}
	if orderPrefix == "" {
		orderPrefix = "PF"
	}
	return &service{
		cartRepo:    cartRepo,
		orderRepo:   orderRepo,
		tx:          tx,
		verifier:    verifier,
		outbox:      outboxSvc,
		locker:      locker,
		metrics:     checkoutMetrics,
		logg:        logg,
		orderPrefix: orderPrefix,
	}, nil
}

// PlaceOrder runs the checkout sequence: verify the payment signature, freeze
// the cart lines, reserve stock for every catalog line, persist the order as
// confirmed/paid, clear the cart, and queue the confirmation event. All DB
// steps share one transaction; re-delivery of the same payment_ref returns
// the order created the first time.
func (s *service) PlaceOrder(ctx context.Context, input Input) (*models.Order, error) {
	started := time.Now()
	order, err := s.placeOrder(ctx, input)
	if err != nil {
		s.metrics.ObserveFailure(failureReason(err), time.Since(started))
		return nil, err
	}
	s.metrics.ObserveSuccess(time.Since(started))
	return order, nil
}

func (s *service) placeOrder(ctx context.Context, input Input) (*models.Order, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if missing := input.ShippingAddress.Validate(); len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("shipping address incomplete: missing %v", missing)).
			WithDetails(map[string]any{"missing": missing})
	}

	// trust gate: nothing below runs on an unverified claim
	if err := s.verifier.Verify(input.OrderRef, input.PaymentRef, input.Signature); err != nil {
		return nil, err
	}

	if existing, err := s.orderRepo.FindByPaymentRef(ctx, input.PaymentRef); err == nil {
		return existing, nil
	} else if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check payment reference")
	}

	scope := "cart:" + input.CustomerID.String()
	token, err := s.locker.AcquireLock(ctx, scope)
	if err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := s.locker.ReleaseLock(ctx, scope, token); releaseErr != nil && s.logg != nil {
			s.logg.Warn(ctx, "releasing cart lock failed")
		}
	}()

	var placed *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		orderRepo := s.orderRepo.WithTx(tx)

		activeCart, err := cartRepo.FindActiveByCustomer(ctx, input.CustomerID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if len(activeCart.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		requests := reservationRequests(activeCart.Items)
		results, err := inventory.ReserveAll(ctx, tx, requests)
		if err != nil {
			return err
		}
		for _, res := range results {
			if !res.Reserved {
				return pkgerrors.New(pkgerrors.CodeInsufficientStock, res.Reason).
					WithDetails(map[string]any{"product_id": res.ProductID.String()})
			}
		}

		order, err := s.createOrder(ctx, orderRepo, activeCart, input)
		if err != nil {
			return err
		}

		if err := cartRepo.Clear(ctx, activeCart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}

		placed = order
		customerID := input.CustomerID
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{CustomerID: &customerID, Role: enums.UserRoleCustomer.String()},
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				CustomerID:  order.CustomerID,
				Total:       order.Total,
				ItemCount:   len(order.Items),
				CouponCode:  order.CouponCode,
			},
		})
	})
	if err != nil {
		// duplicate webhook racing past the read above: surface the winner
		if db.IsUniqueViolation(err, "payment_ref") {
			existing, findErr := s.orderRepo.FindByPaymentRef(ctx, input.PaymentRef)
			if findErr == nil {
				return existing, nil
			}
		}
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithOrderNumber(ctx, placed.OrderNumber)
		s.logg.Info(logCtx, "order placed")
	}
	return placed, nil
}

func (s *service) createOrder(ctx context.Context, orderRepo orders.Repository, activeCart *models.Cart, input Input) (*models.Order, error) {
	items := freezeItems(activeCart.Items)

	var lastErr error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		number, err := orders.GenerateOrderNumber(s.orderPrefix, time.Now())
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
		}

		order := &models.Order{
			ID:              uuid.New(),
			OrderNumber:     number,
			CustomerID:      activeCart.CustomerID,
			Status:          enums.OrderStatusConfirmed,
			PaymentStatus:   enums.PaymentStatusPaid,
			PaymentMethod:   input.PaymentMethod,
			PaymentRef:      input.PaymentRef,
			Subtotal:        activeCart.Subtotal,
			Tax:             activeCart.Tax,
			Shipping:        activeCart.Shipping,
			Discount:        activeCart.Discount,
			Total:           activeCart.Total,
			CouponCode:      activeCart.CouponCode,
			ShippingAddress: input.ShippingAddress,
			Items:           items,
		}

		created, err := orderRepo.Create(ctx, order)
		if err == nil {
			return created, nil
		}
		if db.IsUniqueViolation(err, "order_number") {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, lastErr, "order number collisions exhausted retries")
}

func reservationRequests(items []models.CartItem) []inventory.ReservationRequest {
	requests := make([]inventory.ReservationRequest, 0, len(items))
	for _, item := range items {
		if item.ProductID == nil {
			// custom print jobs carry no catalog stock
			continue
		}
		requests = append(requests, inventory.ReservationRequest{
			LineID:    item.ID,
			ProductID: *item.ProductID,
			Qty:       item.Quantity,
		})
	}
	return requests
}

func freezeItems(items []models.CartItem) []models.OrderItem {
	frozen := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		frozen = append(frozen, models.OrderItem{
			ID:                uuid.New(),
			ProductID:         item.ProductID,
			CustomDescription: item.CustomDescription,
			Title:             item.Title,
			Quantity:          item.Quantity,
			UnitPrice:         item.UnitPrice,
			LineTotal:         item.UnitPrice * int64(item.Quantity),
			Size:              item.Size,
			Color:             item.Color,
			Customization:     item.Customization,
		})
	}
	return frozen
}

func failureReason(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return string(typed.Code())
	}
	return "internal"
}
