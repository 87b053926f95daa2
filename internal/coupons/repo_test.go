package coupons

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/printforge/printforge-backend/pkg/db/models"
	"github.com/printforge/printforge-backend/pkg/enums"
	"github.com/printforge/printforge-backend/pkg/pagination"
)

func setupCouponsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:coupons_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	schema := `
CREATE TABLE IF NOT EXISTS coupons (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  discount_type TEXT NOT NULL,
  discount_value INTEGER NOT NULL,
  max_discount INTEGER,
  min_order_amount INTEGER NOT NULL DEFAULT 0,
  usage_limit INTEGER,
  used_count INTEGER NOT NULL DEFAULT 0,
  valid_from DATETIME NOT NULL,
  valid_to DATETIME NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func seedCoupon(t *testing.T, db *gorm.DB, coupon models.Coupon) models.Coupon {
	t.Helper()
	if coupon.ID == uuid.Nil {
		coupon.ID = uuid.New()
	}
	require.NoError(t, db.Create(&coupon).Error)
	return coupon
}

func activeWindow() (time.Time, time.Time) {
	now := time.Now()
	return now.Add(-time.Hour), now.Add(time.Hour)
}

func TestRepositoryFindByCodeNormalizes(t *testing.T) {
	db := setupCouponsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	from, to := activeWindow()
	seedCoupon(t, db, models.Coupon{
		Code:          "SAVE10",
		DiscountType:  enums.CouponTypePercentage,
		DiscountValue: 10,
		ValidFrom:     from,
		ValidTo:       to,
		IsActive:      true,
	})

	coupon, err := repo.FindByCode(ctx, "  save10 ")
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", coupon.Code)

	_, err = repo.FindByCode(ctx, "MISSING")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryRedeemOnceRespectsLimit(t *testing.T) {
	db := setupCouponsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	limit := 2
	from, to := activeWindow()
	seedCoupon(t, db, models.Coupon{
		Code:          "LIMITED",
		DiscountType:  enums.CouponTypeFixed,
		DiscountValue: 50,
		UsageLimit:    &limit,
		ValidFrom:     from,
		ValidTo:       to,
		IsActive:      true,
	})

	for i := 0; i < limit; i++ {
		ok, err := repo.RedeemOnce(ctx, "LIMITED")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := repo.RedeemOnce(ctx, "LIMITED")
	require.NoError(t, err)
	assert.False(t, ok)

	var stored models.Coupon
	require.NoError(t, db.First(&stored, "code = ?", "LIMITED").Error)
	assert.Equal(t, limit, stored.UsedCount)
}

func TestRepositoryRedeemOnceUnlimited(t *testing.T) {
	db := setupCouponsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	from, to := activeWindow()
	seedCoupon(t, db, models.Coupon{
		Code:          "FOREVER",
		DiscountType:  enums.CouponTypeFixed,
		DiscountValue: 10,
		ValidFrom:     from,
		ValidTo:       to,
		IsActive:      true,
	})

	for i := 0; i < 5; i++ {
		ok, err := repo.RedeemOnce(ctx, "FOREVER")
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestRepositoryRedeemOnceConcurrent(t *testing.T) {
	db := setupCouponsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	limit := 5
	attempts := 20
	from, to := activeWindow()
	seedCoupon(t, db, models.Coupon{
		Code:          "RACE",
		DiscountType:  enums.CouponTypeFixed,
		DiscountValue: 25,
		UsageLimit:    &limit,
		ValidFrom:     from,
		ValidTo:       to,
		IsActive:      true,
	})

	var wg sync.WaitGroup
	results := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.RedeemOnce(ctx, "RACE")
			if err != nil {
				t.Error(err)
				results <- false
				return
			}
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for ok := range results {
		if ok {
			succeeded++
		}
	}
	assert.Equal(t, limit, succeeded)

	var stored models.Coupon
	require.NoError(t, db.First(&stored, "code = ?", "RACE").Error)
	assert.Equal(t, limit, stored.UsedCount)
}

func TestRepositoryListPaginates(t *testing.T) {
	db := setupCouponsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	from, to := activeWindow()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		coupon := models.Coupon{
			ID:            uuid.New(),
			Code:          "BULK" + uuid.NewString()[:8],
			DiscountType:  enums.CouponTypeFixed,
			DiscountValue: 10,
			ValidFrom:     from,
			ValidTo:       to,
			IsActive:      true,
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(&coupon).Error)
	}

	page, next, err := repo.List(ctx, pagination.Params{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)
	require.NotNil(t, next)

	rest, last, err := repo.List(ctx, pagination.Params{Limit: 2, Cursor: *next})
	require.NoError(t, err)
	assert.Len(t, rest, 1)
	assert.Nil(t, last)
}
