package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printforge/printforge-backend/internal/catalog"
	"github.com/printforge/printforge-backend/internal/coupons"
	"github.com/printforge/printforge-backend/internal/pricing"
	"github.com/printforge/printforge-backend/pkg/db/models"
	pkgerrors "github.com/printforge/printforge-backend/pkg/errors"
	"github.com/printforge/printforge-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// AddItemInput describes a catalog or custom line to add. Exactly one of
// ProductID and CustomDescription must be set.
type AddItemInput struct {
	CustomerID        uuid.UUID
	ProductID         *uuid.UUID
	CustomDescription *string
	CustomTitle       string
	CustomUnitPrice   int64
	Quantity          int
	Size              *string
	Color             *string
	Customization     json.RawMessage
}

// UpdateItemInput changes the quantity of an existing line.
type UpdateItemInput struct {
	CustomerID uuid.UUID
	ItemID     uuid.UUID
	Quantity   int
}

// Service owns all cart mutations. Every mutation reprices the cart through
// the pricing engine and runs under the per-customer lock.
type Service interface {
	Get(ctx context.Context, customerID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, input AddItemInput) (*models.Cart, error)
	UpdateItem(ctx context.Context, input UpdateItemInput) (*models.Cart, error)
	RemoveItem(ctx context.Context, customerID, itemID uuid.UUID) (*models.Cart, error)
	ApplyCoupon(ctx context.Context, customerID uuid.UUID, code string) (*models.Cart, error)
	RemoveCoupon(ctx context.Context, customerID uuid.UUID) (*models.Cart, error)
}

type service struct {
	repo    Repository
	catalog catalog.Repository
	coupons coupons.Service
	cpRepo  coupons.Repository
	tx      txRunner
	locker  Locker
	policy  pricing.Policy
	logg    *logger.Logger
}

// NewService builds a cart service with the required dependencies.
func NewService(repo Repository, catalogRepo catalog.Repository, couponSvc coupons.Service, couponRepo coupons.Repository, tx txRunner, locker Locker, policy pricing.Policy, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if couponSvc == nil {
		return nil, fmt.Errorf("coupon service required")
	}
	if couponRepo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if locker == nil {
		return nil, fmt.Errorf("cart locker required")
	}
	return &service{
		repo:    repo,
		catalog: catalogRepo,
		coupons: couponSvc,
		cpRepo:  couponRepo,
		tx:      tx,
		locker:  locker,
		policy:  policy,
		logg:    logg,
	}, nil
}

func (s *service) Get(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	cart, err := s.repo.FindActiveByCustomer(ctx, customerID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return &models.Cart{CustomerID: customerID, Items: []models.CartItem{}}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

func (s *service) AddItem(ctx context.Context, input AddItemInput) (*models.Cart, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if (input.ProductID == nil) == (input.CustomDescription == nil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "exactly one of product id and custom description required")
	}
	if input.CustomDescription != nil && input.CustomUnitPrice <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "custom items need a positive unit price")
	}

	return s.withCartLock(ctx, input.CustomerID, func(ctx context.Context) (*models.Cart, error) {
		item := models.CartItem{
			ID:                uuid.New(),
			ProductID:         input.ProductID,
			CustomDescription: input.CustomDescription,
			Title:             input.CustomTitle,
			Quantity:          input.Quantity,
			UnitPrice:         input.CustomUnitPrice,
			Size:              input.Size,
			Color:             input.Color,
			Customization:     input.Customization,
		}

		if input.ProductID != nil {
			product, err := s.catalog.FindActiveByID(ctx, *input.ProductID)
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
				}
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
			}
			// snapshot price at add time
			item.Title = product.Title
			item.UnitPrice = product.Price
		}

		var updated *models.Cart
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			cart, err := s.loadOrCreateCart(ctx, repo, input.CustomerID)
			if err != nil {
				return err
			}
			item.CartID = cart.ID
			if _, err := repo.AddItem(ctx, &item); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add cart item")
			}
			updated, err = s.reprice(ctx, tx, repo, cart.CustomerID)
			return err
		})
		if err != nil {
			return nil, err
		}
		return updated, nil
	})
}

func (s *service) UpdateItem(ctx context.Context, input UpdateItemInput) (*models.Cart, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	return s.withCartLock(ctx, input.CustomerID, func(ctx context.Context) (*models.Cart, error) {
		var updated *models.Cart
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			cart, err := s.loadCart(ctx, repo, input.CustomerID)
			if err != nil {
				return err
			}
			item, err := repo.FindItem(ctx, cart.ID, input.ItemID)
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
			}
			if err := repo.UpdateItemQuantity(ctx, item.ID, input.Quantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
			}
			updated, err = s.reprice(ctx, tx, repo, cart.CustomerID)
			return err
		})
		if err != nil {
			return nil, err
		}
		return updated, nil
	})
}

func (s *service) RemoveItem(ctx context.Context, customerID, itemID uuid.UUID) (*models.Cart, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}

	return s.withCartLock(ctx, customerID, func(ctx context.Context) (*models.Cart, error) {
		var updated *models.Cart
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			cart, err := s.loadCart(ctx, repo, customerID)
			if err != nil {
				return err
			}
			item, err := repo.FindItem(ctx, cart.ID, itemID)
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
			}
			if err := repo.RemoveItem(ctx, item.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
			}
			updated, err = s.reprice(ctx, tx, repo, cart.CustomerID)
			return err
		})
		if err != nil {
			return nil, err
		}
		return updated, nil
	})
}

// ApplyCoupon validates the code against the cart's pre-discount total and
// redeems it immediately, locking in the discount before any charge happens.
// A later cancellation never hands the redemption back.
func (s *service) ApplyCoupon(ctx context.Context, customerID uuid.UUID, code string) (*models.Cart, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}

	return s.withCartLock(ctx, customerID, func(ctx context.Context) (*models.Cart, error) {
		var updated *models.Cart
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			cart, err := s.loadCart(ctx, repo, customerID)
			if err != nil {
				return err
			}
			if len(cart.Items) == 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "cannot apply a coupon to an empty cart")
			}
			if cart.CouponCode != nil {
				return pkgerrors.New(pkgerrors.CodeConflict, "a coupon is already applied; remove it first")
			}

			base := pricing.Compute(s.policy, cartLines(cart.Items), 0)
			coupon, err := s.coupons.Validate(ctx, code, base.Total, time.Now())
			if err != nil {
				return err
			}
			if err := s.coupons.Redeem(ctx, tx, coupon.Code); err != nil {
				return err
			}

			discount := coupons.ComputeDiscount(coupon, base.Total)
			quote := pricing.Compute(s.policy, cartLines(cart.Items), discount)
			if err := repo.UpdateTotals(ctx, cart.ID, &coupon.Code, quote.Subtotal, quote.Tax, quote.Shipping, quote.Discount, quote.Total); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart totals")
			}

			updated, err = repo.FindActiveByCustomer(ctx, customerID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return updated, nil
	})
}

func (s *service) RemoveCoupon(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}

	return s.withCartLock(ctx, customerID, func(ctx context.Context) (*models.Cart, error) {
		var updated *models.Cart
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			cart, err := s.loadCart(ctx, repo, customerID)
			if err != nil {
				return err
			}
			if cart.CouponCode == nil {
				updated = cart
				return nil
			}

			quote := pricing.Compute(s.policy, cartLines(cart.Items), 0)
			if err := repo.UpdateTotals(ctx, cart.ID, nil, quote.Subtotal, quote.Tax, quote.Shipping, quote.Discount, quote.Total); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart totals")
			}

			updated, err = repo.FindActiveByCustomer(ctx, customerID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return updated, nil
	})
}

func (s *service) withCartLock(ctx context.Context, customerID uuid.UUID, fn func(ctx context.Context) (*models.Cart, error)) (*models.Cart, error) {
	scope := "cart:" + customerID.String()
	token, err := s.locker.AcquireLock(ctx, scope)
	if err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := s.locker.ReleaseLock(ctx, scope, token); releaseErr != nil && s.logg != nil {
			s.logg.Warn(ctx, "releasing cart lock failed")
		}
	}()
	return fn(ctx)
}

func (s *service) loadCart(ctx context.Context, repo Repository, customerID uuid.UUID) (*models.Cart, error) {
	cart, err := repo.FindActiveByCustomer(ctx, customerID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart is empty")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

func (s *service) loadOrCreateCart(ctx context.Context, repo Repository, customerID uuid.UUID) (*models.Cart, error) {
	cart, err := repo.FindActiveByCustomer(ctx, customerID)
	if err == nil {
		return cart, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	created, err := repo.Create(ctx, &models.Cart{ID: uuid.New(), CustomerID: customerID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return created, nil
}

// reprice recomputes the cart totals from its items. A previously applied
// coupon keeps its discount as long as it still exists; the redemption is not
// re-validated because it was consumed at apply time.
func (s *service) reprice(ctx context.Context, tx *gorm.DB, repo Repository, customerID uuid.UUID) (*models.Cart, error) {
	cart, err := repo.FindActiveByCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
	}

	lines := cartLines(cart.Items)
	base := pricing.Compute(s.policy, lines, 0)

	couponCode := cart.CouponCode
	var discount int64
	if couponCode != nil {
		coupon, err := s.cpRepo.WithTx(tx).FindByCode(ctx, *couponCode)
		switch {
		case err == gorm.ErrRecordNotFound:
			couponCode = nil
		case err != nil:
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load applied coupon")
		default:
			discount = coupons.ComputeDiscount(coupon, base.Total)
		}
	}

	quote := pricing.Compute(s.policy, lines, discount)
	if err := repo.UpdateTotals(ctx, cart.ID, couponCode, quote.Subtotal, quote.Tax, quote.Shipping, quote.Discount, quote.Total); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart totals")
	}

	cart.CouponCode = couponCode
	cart.Subtotal = quote.Subtotal
	cart.Tax = quote.Tax
	cart.Shipping = quote.Shipping
	cart.Discount = quote.Discount
	cart.Total = quote.Total
	return cart, nil
}

func cartLines(items []models.CartItem) []pricing.Line {
	lines := make([]pricing.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, pricing.Line{UnitPrice: item.UnitPrice, Quantity: item.Quantity})
	}
	return lines
}
