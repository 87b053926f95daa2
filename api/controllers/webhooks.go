package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/printforge/printforge-backend/api/responses"
	"github.com/printforge/printforge-backend/api/validators"
	checkoutsvc "github.com/printforge/printforge-backend/internal/checkout"
	"github.com/printforge/printforge-backend/pkg/enums"
	pkgerrors "github.com/printforge/printforge-backend/pkg/errors"
	"github.com/printforge/printforge-backend/pkg/logger"
	"github.com/printforge/printforge-backend/pkg/types"
)

type paymentWebhookRequest struct {
	CustomerID      uuid.UUID     `json:"customer_id" validate:"required"`
	OrderRef        string        `json:"order_ref" validate:"required"`
	PaymentRef      string        `json:"payment_ref" validate:"required"`
	Signature       string        `json:"signature" validate:"required"`
	PaymentMethod   string        `json:"payment_method" validate:"required"`
	ShippingAddress types.Address `json:"shipping_address" validate:"required"`
}

// PaymentWebhook handles the gateway's server-to-server confirmation. It runs
// the same signed checkout path as the customer-facing endpoint, so a webhook
// that races the customer's own confirmation settles on the same order.
func PaymentWebhook(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload paymentWebhookRequest
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
			CustomerID:      payload.CustomerID,
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

		responses.WriteSuccess(w, map[string]any{
			"order_id":     order.ID,
			"order_number": order.OrderNumber,
			"status":       string(order.Status),
		})
	}
}
