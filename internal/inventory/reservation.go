package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	pkgerrors "github.com/printforge/printforge-backend/pkg/errors"
)

// ReservationRequest asks for stock against one catalog product. Lines without
// a catalog product never reach the ledger.
type ReservationRequest struct {
	LineID    uuid.UUID
	ProductID uuid.UUID
	Qty       int
}

// ReservationResult reports the per-line outcome of a reservation attempt.
type ReservationResult struct {
	LineID    uuid.UUID
	ProductID uuid.UUID
	Qty       int
	Reserved  bool
	Reason    string
}

// Reserve atomically moves qty units from stock to sold. The conditional
// update serializes concurrent reservations on the same product so stock can
// never go negative. A false return means insufficient stock.
func Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (bool, error) {
	if qty <= 0 {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be positive")
	}
	if tx == nil {
		return false, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory reserve")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE inventory_items
		SET stock = stock - ?,
			sold = sold + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND stock >= ?
	`, qty, qty, productID, qty)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve inventory")
	}
	return res.RowsAffected == 1, nil
}

// Release returns qty units from sold back to stock, used on cancellation.
// Sold is guarded so an unpaired release cannot drive it negative.
func Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory release")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE inventory_items
		SET stock = stock + ?,
			sold = CASE WHEN sold >= ? THEN sold - ? ELSE 0 END,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ?
	`, qty, qty, qty, productID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release inventory")
	}
	return nil
}

// ReserveAll attempts every reservation in order and compensates on the first
// failure: previously reserved lines are released before the error result is
// returned, so a multi-line checkout is all-or-nothing.
func ReserveAll(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) ([]ReservationResult, error) {
	results := make([]ReservationResult, 0, len(requests))

	for i, req := range requests {
		reserved, err := Reserve(ctx, tx, req.ProductID, req.Qty)
		if err != nil {
			if rbErr := rollbackReservations(ctx, tx, results); rbErr != nil {
				return nil, rbErr
			}
			return nil, err
		}

		result := ReservationResult{
			LineID:    req.LineID,
			ProductID: req.ProductID,
			Qty:       req.Qty,
			Reserved:  reserved,
		}
		if !reserved {
			result.Reason = fmt.Sprintf("insufficient stock for product %s", req.ProductID)
			if rbErr := rollbackReservations(ctx, tx, results); rbErr != nil {
				return nil, rbErr
			}
			results = append(results, result)
			for _, rest := range requests[i+1:] {
				results = append(results, ReservationResult{
					LineID:    rest.LineID,
					ProductID: rest.ProductID,
					Qty:       rest.Qty,
					Reserved:  false,
					Reason:    "skipped after earlier failure",
				})
			}
			return results, nil
		}
		results = append(results, result)
	}

	return results, nil
}

func rollbackReservations(ctx context.Context, tx *gorm.DB, reserved []ReservationResult) error {
	var failures error
	for _, res := range reserved {
		if !res.Reserved {
			continue
		}
		if err := Release(ctx, tx, res.ProductID, res.Qty); err != nil {
			failures = multierr.Append(failures, err)
		}
	}
	return failures
}
