package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printforge/printforge-backend/pkg/db/models"
)

// Repository defines persistence operations for carts and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindActiveByCustomer(ctx context.Context, customerID uuid.UUID) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) (*models.Cart, error)
	AddItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error)
	FindItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error)
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error
	RemoveItem(ctx context.Context, itemID uuid.UUID) error
	UpdateTotals(ctx context.Context, cartID uuid.UUID, couponCode *string, subtotal, tax, shipping, discount, total int64) error
	Clear(ctx context.Context, cartID uuid.UUID) error
}

// Locker serializes cart mutations per customer.
type Locker interface {
	AcquireLock(ctx context.Context, scope string) (string, error)
	ReleaseLock(ctx context.Context, scope, token string) error
}
