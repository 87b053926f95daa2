package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/printforge/printforge-backend/api/responses"
	"github.com/printforge/printforge-backend/api/validators"
	"github.com/printforge/printforge-backend/internal/coupons"
	"github.com/printforge/printforge-backend/pkg/db/models"
	"github.com/printforge/printforge-backend/pkg/enums"
	pkgerrors "github.com/printforge/printforge-backend/pkg/errors"
	"github.com/printforge/printforge-backend/pkg/logger"
	"github.com/printforge/printforge-backend/pkg/pagination"
)

type createCouponRequest struct {
	Code           string    `json:"code" validate:"required,min=3,max=32"`
	DiscountType   string    `json:"discount_type" validate:"required,oneof=percentage fixed"`
	DiscountValue  int64     `json:"discount_value" validate:"required,gt=0"`
	MaxDiscount    *int64    `json:"max_discount" validate:"omitempty,gt=0"`
	MinOrderAmount int64     `json:"min_order_amount" validate:"min=0"`
	UsageLimit     *int      `json:"usage_limit" validate:"omitempty,gt=0"`
	ValidFrom      time.Time `json:"valid_from" validate:"required"`
	ValidTo        time.Time `json:"valid_to" validate:"required"`
}

// AdminCouponCreate registers a new coupon.
func AdminCouponCreate(repo coupons.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		code := coupons.NormalizeCode(payload.Code)
		if !coupons.ValidCodeFormat(code) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "coupon code must be 3-32 characters of A-Z, 0-9, dash or underscore"))
			return
		}
		if !payload.ValidTo.After(payload.ValidFrom) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "valid_to must be after valid_from"))
			return
		}

		discountType, err := enums.ParseCouponType(payload.DiscountType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount type"))
			return
		}
		if discountType == enums.CouponTypePercentage && payload.DiscountValue > 100 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "percentage discount cannot exceed 100"))
			return
		}

		record, err := repo.Create(r.Context(), &models.Coupon{
			ID:             uuid.New(),
			Code:           code,
			DiscountType:   discountType,
			DiscountValue:  payload.DiscountValue,
			MaxDiscount:    payload.MaxDiscount,
			MinOrderAmount: payload.MinOrderAmount,
			UsageLimit:     payload.UsageLimit,
			ValidFrom:      payload.ValidFrom,
			ValidTo:        payload.ValidTo,
			IsActive:       true,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newCouponResponse(record))
	}
}

// AdminCouponList pages through all coupons, newest first.
func AdminCouponList(repo coupons.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		records, nextCursor, err := repo.List(r.Context(), pagination.Params{
			Limit:  limit,
			Cursor: validators.ParseQueryString(r, "cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]couponResponse, 0, len(records))
		for i := range records {
			items = append(items, newCouponResponse(&records[i]))
		}
		responses.WriteSuccess(w, map[string]any{
			"coupons":     items,
			"next_cursor": nextCursor,
		})
	}
}

type updateCouponRequest struct {
	MaxDiscount    *int64     `json:"max_discount" validate:"omitempty,gt=0"`
	MinOrderAmount *int64     `json:"min_order_amount" validate:"omitempty,min=0"`
	UsageLimit     *int       `json:"usage_limit" validate:"omitempty,gt=0"`
	ValidTo        *time.Time `json:"valid_to"`
	IsActive       *bool      `json:"is_active"`
}

// AdminCouponUpdate patches the mutable coupon fields. The code, type and
// value are frozen once the coupon exists.
func AdminCouponUpdate(repo coupons.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		couponID, err := validators.ParsePathUUID(chi.URLParam(r, "couponID"), "couponID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateCouponRequest
		if decodeErr := validators.DecodeJSONBody(r, &payload); decodeErr != nil {
			responses.WriteError(r.Context(), logg, w, decodeErr)
			return
		}

		updates := map[string]any{}
		if payload.MaxDiscount != nil {
			updates["max_discount"] = *payload.MaxDiscount
		}
		if payload.MinOrderAmount != nil {
			updates["min_order_amount"] = *payload.MinOrderAmount
		}
		if payload.UsageLimit != nil {
			updates["usage_limit"] = *payload.UsageLimit
		}
		if payload.ValidTo != nil {
			updates["valid_to"] = *payload.ValidTo
		}
		if payload.IsActive != nil {
			updates["is_active"] = *payload.IsActive
		}
		if len(updates) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "no updatable fields provided"))
			return
		}

		if err := repo.Update(r.Context(), couponID, updates); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := repo.FindByID(r.Context(), couponID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCouponResponse(record))
	}
}

// AdminCouponDelete removes a coupon. Orders that already redeemed it keep
// their recorded discount.
func AdminCouponDelete(repo coupons.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		couponID, err := validators.ParsePathUUID(chi.URLParam(r, "couponID"), "couponID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := repo.Delete(r.Context(), couponID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
