package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/printforge/printforge-backend/pkg/db/models"
	pkgerrors "github.com/printforge/printforge-backend/pkg/errors"
)

func newInventoryTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	schema := `
CREATE TABLE IF NOT EXISTS inventory_items (
  product_id TEXT PRIMARY KEY,
  stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
  sold INTEGER NOT NULL DEFAULT 0 CHECK (sold >= 0),
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func loadItem(t *testing.T, db *gorm.DB, productID uuid.UUID) models.InventoryItem {
	t.Helper()
	var item models.InventoryItem
	require.NoError(t, db.First(&item, "product_id = ?", productID).Error)
	return item
}

func TestReserveDecrementsStockAndIncrementsSold(t *testing.T) {
	db := newInventoryTestDB(t)
	ctx := context.Background()
	product := uuid.New()
	require.NoError(t, db.Create(&models.InventoryItem{ProductID: product, Stock: 5}).Error)

	ok, err := Reserve(ctx, db, product, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	item := loadItem(t, db, product)
	assert.Equal(t, 2, item.Stock)
	assert.Equal(t, 3, item.Sold)
}

func TestReserveRejectsInsufficientStock(t *testing.T) {
	db := newInventoryTestDB(t)
	ctx := context.Background()
	product := uuid.New()
	require.NoError(t, db.Create(&models.InventoryItem{ProductID: product, Stock: 3}).Error)

	ok, err := Reserve(ctx, db, product, 5)
	require.NoError(t, err)
	assert.False(t, ok)

	item := loadItem(t, db, product)
	assert.Equal(t, 3, item.Stock)
	assert.Equal(t, 0, item.Sold)
}

func TestReserveRejectsInvalidQty(t *testing.T) {
	db := newInventoryTestDB(t)
	product := uuid.New()
	require.NoError(t, db.Create(&models.InventoryItem{ProductID: product, Stock: 3}).Error)

	_, err := Reserve(context.Background(), db, product, 0)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestReleasePairsWithReserve(t *testing.T) {
	db := newInventoryTestDB(t)
	ctx := context.Background()
	product := uuid.New()
	require.NoError(t, db.Create(&models.InventoryItem{ProductID: product, Stock: 10}).Error)

	ok, err := Reserve(ctx, db, product, 4)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, Release(ctx, db, product, 4))

	item := loadItem(t, db, product)
	assert.Equal(t, 10, item.Stock)
	assert.Equal(t, 0, item.Sold)
}

func TestReleaseClampsSoldAtZero(t *testing.T) {
	db := newInventoryTestDB(t)
	ctx := context.Background()
	product := uuid.New()
	require.NoError(t, db.Create(&models.InventoryItem{ProductID: product, Stock: 1, Sold: 1}).Error)

	require.NoError(t, Release(ctx, db, product, 3))

	item := loadItem(t, db, product)
	assert.Equal(t, 4, item.Stock)
	assert.Equal(t, 0, item.Sold)
}

func TestReserveAllSucceedsAcrossProducts(t *testing.T) {
	db := newInventoryTestDB(t)
	ctx := context.Background()
	productA := uuid.New()
	productB := uuid.New()
	require.NoError(t, db.Create(&models.InventoryItem{ProductID: productA, Stock: 5}).Error)
	require.NoError(t, db.Create(&models.InventoryItem{ProductID: productB, Stock: 2}).Error)

	results, err := ReserveAll(ctx, db, []ReservationRequest{
		{LineID: uuid.New(), ProductID: productA, Qty: 3},
		{LineID: uuid.New(), ProductID: productB, Qty: 2},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Reserved)
	assert.True(t, results[1].Reserved)

	assert.Equal(t, 2, loadItem(t, db, productA).Stock)
	assert.Equal(t, 0, loadItem(t, db, productB).Stock)
}

func TestReserveAllCompensatesOnFailure(t *testing.T) {
	db := newInventoryTestDB(t)
	ctx := context.Background()
	productA := uuid.New()
	productB := uuid.New()
	require.NoError(t, db.Create(&models.InventoryItem{ProductID: productA, Stock: 5}).Error)
	require.NoError(t, db.Create(&models.InventoryItem{ProductID: productB, Stock: 1}).Error)

	results, err := ReserveAll(ctx, db, []ReservationRequest{
		{LineID: uuid.New(), ProductID: productA, Qty: 3},
		{LineID: uuid.New(), ProductID: productB, Qty: 2},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Reserved)
	assert.False(t, results[1].Reserved)
	assert.NotEmpty(t, results[1].Reason)

	// both products back to their initial state
	itemA := loadItem(t, db, productA)
	assert.Equal(t, 5, itemA.Stock)
	assert.Equal(t, 0, itemA.Sold)
	itemB := loadItem(t, db, productB)
	assert.Equal(t, 1, itemB.Stock)
	assert.Equal(t, 0, itemB.Sold)
}

func TestReserveConcurrentNeverOversells(t *testing.T) {
	db := newInventoryTestDB(t)
	ctx := context.Background()
	product := uuid.New()
	require.NoError(t, db.Create(&models.InventoryItem{ProductID: product, Stock: 5}).Error)

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			ok, err := Reserve(ctx, db, product, 1)
			if err != nil {
				t.Error(err)
				done <- false
				return
			}
			done <- ok
		}()
	}

	succeeded := 0
	for i := 0; i < 10; i++ {
		if <-done {
			succeeded++
		}
	}
	assert.Equal(t, 5, succeeded)

	item := loadItem(t, db, product)
	assert.Equal(t, 0, item.Stock)
	assert.Equal(t, 5, item.Sold)
}
