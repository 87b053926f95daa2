package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/printforge/printforge-backend/api/middleware"
	"github.com/printforge/printforge-backend/api/responses"
	"github.com/printforge/printforge-backend/api/validators"
	checkoutsvc "github.com/printforge/printforge-backend/internal/checkout"
	"github.com/printforge/printforge-backend/pkg/enums"
	pkgerrors "github.com/printforge/printforge-backend/pkg/errors"
	"github.com/printforge/printforge-backend/pkg/logger"
	"github.com/printforge/printforge-backend/pkg/types"
)

type checkoutRequest struct {
	OrderRef        string        `json:"order_ref" validate:"required"`
	PaymentRef      string        `json:"payment_ref" validate:"required"`
	Signature       string        `json:"signature" validate:"required"`
	PaymentMethod   string        `json:"payment_method" validate:"required"`
	ShippingAddress types.Address `json:"shipping_address" validate:"required"`
}

// Checkout turns the customer's priced cart into a paid order.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID := middleware.CustomerIDFromContext(r.Context())
		if customerID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer context missing"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		order, err := svc.PlaceOrder(r.Context(), checkoutsvc.Input{
			CustomerID:      customerID,
			OrderRef:        payload.OrderRef,
			PaymentRef:      payload.PaymentRef,
			Signature:       payload.Signature,
			PaymentMethod:   method,
			ShippingAddress: payload.ShippingAddress,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}
