package coupons

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/printforge/printforge-backend/pkg/db/models"
	"github.com/printforge/printforge-backend/pkg/enums"
	pkgerrors "github.com/printforge/printforge-backend/pkg/errors"
)

var codeFormatRe = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_-]{2,31}$`)

// NormalizeCode upper-cases and trims a coupon code. Codes are stored and
// matched in this canonical form.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCodeFormat reports whether a normalized code is acceptable.
func ValidCodeFormat(code string) bool {
	return codeFormatRe.MatchString(code)
}

// Service validates and redeems coupons.
type Service interface {
	Validate(ctx context.Context, code string, cartTotal int64, now time.Time) (*models.Coupon, error)
	Redeem(ctx context.Context, tx *gorm.DB, code string) error
}

type service struct {
	repo Repository
}

// NewService builds a coupon service with the required dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupons repository required")
	}
	return &service{repo: repo}, nil
}

// Validate checks redeemability against the cart total at the given instant.
// Each rejection reason is distinct so callers can surface it verbatim.
func (s *service) Validate(ctx context.Context, code string, cartTotal int64, now time.Time) (*models.Coupon, error) {
	normalized := NormalizeCode(code)
	if !codeFormatRe.MatchString(normalized) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code format is invalid")
	}

	coupon, err := s.repo.FindByCode(ctx, normalized)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found or inactive")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	if !coupon.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found or inactive")
	}
	if now.Before(coupon.ValidFrom) || now.After(coupon.ValidTo) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "coupon is outside its validity window")
	}
	if coupon.UsageLimit != nil && coupon.UsedCount >= *coupon.UsageLimit {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "coupon usage limit exceeded")
	}
	if cartTotal < coupon.MinOrderAmount {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("cart total is below the coupon minimum of %d", coupon.MinOrderAmount))
	}
	return coupon, nil
}

// Redeem consumes one use of the coupon. The underlying update is conditional
// so a race between concurrent redemptions cannot exceed the usage limit.
func (s *service) Redeem(ctx context.Context, tx *gorm.DB, code string) error {
	repo := s.repo
	if tx != nil {
		repo = repo.WithTx(tx)
	}
	redeemed, err := repo.RedeemOnce(ctx, code)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redeem coupon")
	}
	if !redeemed {
		return pkgerrors.New(pkgerrors.CodeConflict, "coupon usage limit exceeded")
	}
	return nil
}

// ComputeDiscount resolves the discount amount for the pre-discount cart
// total. Percentage coupons are clamped to their max-discount cap; fixed
// coupons can never exceed the order value.
func ComputeDiscount(coupon *models.Coupon, cartTotal int64) int64 {
	if coupon == nil || cartTotal <= 0 {
		return 0
	}
	switch coupon.DiscountType {
	case enums.CouponTypePercentage:
		discount := decimal.NewFromInt(cartTotal).
			Mul(decimal.NewFromInt(coupon.DiscountValue)).
			Div(decimal.NewFromInt(100)).
			Round(0).
			IntPart()
		if coupon.MaxDiscount != nil && discount > *coupon.MaxDiscount {
			discount = *coupon.MaxDiscount
		}
		if discount > cartTotal {
			discount = cartTotal
		}
		return discount
	case enums.CouponTypeFixed:
		if coupon.DiscountValue > cartTotal {
			return cartTotal
		}
		return coupon.DiscountValue
	default:
		return 0
	}
}
