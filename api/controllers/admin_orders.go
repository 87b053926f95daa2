package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/printforge/printforge-backend/api/responses"
	"github.com/printforge/printforge-backend/api/validators"
	ordersvc "github.com/printforge/printforge-backend/internal/orders"
	"github.com/printforge/printforge-backend/pkg/logger"
)

type shipOrderRequest struct {
	TrackingNumber string `json:"tracking_number" validate:"required,min=3,max=64"`
}

// AdminOrderShip marks a confirmed order as shipped.
func AdminOrderShip(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderID"), "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload shipOrderRequest
		if decodeErr := validators.DecodeJSONBody(r, &payload); decodeErr != nil {
			responses.WriteError(r.Context(), logg, w, decodeErr)
			return
		}

		order, err := svc.Ship(r.Context(), ordersvc.ShipInput{
			OrderID:        orderID,
			TrackingNumber: payload.TrackingNumber,
			Actor:          actorFromContext(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// AdminOrderDeliver marks a shipped order as delivered.
func AdminOrderDeliver(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderID"), "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Deliver(r.Context(), ordersvc.DeliverInput{
			OrderID: orderID,
			Actor:   actorFromContext(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

type refundOrderRequest struct {
	Amount *int64 `json:"amount" validate:"omitempty,gt=0"`
}

// AdminOrderRefund refunds an order, defaulting to the full total.
func AdminOrderRefund(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderID"), "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload refundOrderRequest
		if decodeErr := validators.DecodeJSONBody(r, &payload); decodeErr != nil {
			responses.WriteError(r.Context(), logg, w, decodeErr)
			return
		}

		order, err := svc.Refund(r.Context(), ordersvc.RefundInput{
			OrderID: orderID,
			Amount:  payload.Amount,
			Actor:   actorFromContext(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}
