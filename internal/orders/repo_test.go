package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/printforge/printforge-backend/pkg/db"
	"github.com/printforge/printforge-backend/pkg/db/models"
	"github.com/printforge/printforge-backend/pkg/enums"
	"github.com/printforge/printforge-backend/pkg/pagination"
	"github.com/printforge/printforge-backend/pkg/types"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	statements := []string{`
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  customer_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'confirmed',
  payment_status TEXT NOT NULL DEFAULT 'pending',
  payment_method TEXT NOT NULL,
  payment_ref TEXT NOT NULL UNIQUE,
  subtotal INTEGER NOT NULL,
  tax INTEGER NOT NULL,
  shipping INTEGER NOT NULL,
  discount INTEGER NOT NULL DEFAULT 0,
  total INTEGER NOT NULL,
  coupon_code TEXT,
  shipping_address TEXT,
  tracking_number TEXT,
  cancellation_reason TEXT,
  refund_amount INTEGER,
  shipped_at DATETIME,
  delivered_at DATETIME,
  cancelled_at DATETIME,
  refunded_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT,
  custom_description TEXT,
  title TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price INTEGER NOT NULL,
  line_total INTEGER NOT NULL,
  size TEXT,
  color TEXT,
  customization TEXT,
  created_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS inventory_items (
  product_id TEXT PRIMARY KEY,
  stock INTEGER NOT NULL DEFAULT 0,
  sold INTEGER NOT NULL DEFAULT 0,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`}
	for _, stmt := range statements {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

func testAddress() types.Address {
	return types.Address{
		Name:       "Priya Kumar",
		Line1:      "14 Lakeview Road",
		City:       "Pune",
		State:      "MH",
		PostalCode: "411001",
		Country:    "IN",
		Phone:      "9999999999",
	}
}

func buildOrder(customerID uuid.UUID, number, paymentRef string) *models.Order {
	return &models.Order{
		ID:              uuid.New(),
		OrderNumber:     number,
		CustomerID:      customerID,
		Status:          enums.OrderStatusConfirmed,
		PaymentStatus:   enums.PaymentStatusPaid,
		PaymentMethod:   enums.PaymentMethodCard,
		PaymentRef:      paymentRef,
		Subtotal:        1198,
		Tax:             216,
		Shipping:        0,
		Total:           1414,
		ShippingAddress: testAddress(),
		Items: []models.OrderItem{
			{
				ID:        uuid.New(),
				Title:     "Galaxy Mug",
				Quantity:  2,
				UnitPrice: 599,
				LineTotal: 1198,
			},
		},
	}
}

func TestRepositoryCreateAndFind(t *testing.T) {
	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	customerID := uuid.New()

	created, err := repo.Create(ctx, buildOrder(customerID, "PF-1", "pay_1"))
	require.NoError(t, err)

	byID, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "PF-1", byID.OrderNumber)
	require.Len(t, byID.Items, 1)
	assert.Equal(t, int64(599), byID.Items[0].UnitPrice)

	byRef, err := repo.FindByPaymentRef(ctx, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byRef.ID)

	byNumber, err := repo.FindByOrderNumber(ctx, "PF-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byNumber.ID)
}

func TestRepositoryRejectsDuplicatePaymentRef(t *testing.T) {
	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	customerID := uuid.New()

	_, err := repo.Create(ctx, buildOrder(customerID, "PF-1", "pay_dup"))
	require.NoError(t, err)

	_, err = repo.Create(ctx, buildOrder(customerID, "PF-2", "pay_dup"))
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err, ""))
}

func TestRepositoryListByCustomerPaginatesAndFilters(t *testing.T) {
	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	customerID := uuid.New()
	otherCustomer := uuid.New()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		order := buildOrder(customerID, "PF-A"+uuid.NewString()[:6], "pay_a"+uuid.NewString()[:6])
		order.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if i == 2 {
			order.Status = enums.OrderStatusCancelled
		}
		require.NoError(t, conn.Create(order).Error)
	}
	require.NoError(t, conn.Create(buildOrder(otherCustomer, "PF-B1", "pay_b1")).Error)

	page, err := repo.ListByCustomer(ctx, customerID, pagination.Params{Limit: 2}, ListFilters{})
	require.NoError(t, err)
	assert.Len(t, page.Orders, 2)
	require.NotNil(t, page.NextCursor)

	rest, err := repo.ListByCustomer(ctx, customerID, pagination.Params{Limit: 2, Cursor: *page.NextCursor}, ListFilters{})
	require.NoError(t, err)
	assert.Len(t, rest.Orders, 1)
	assert.Nil(t, rest.NextCursor)

	cancelled := enums.OrderStatusCancelled
	filtered, err := repo.ListByCustomer(ctx, customerID, pagination.Params{}, ListFilters{Status: &cancelled})
	require.NoError(t, err)
	assert.Len(t, filtered.Orders, 1)
}

func TestGenerateOrderNumberFormat(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 30, 45, 0, time.UTC)

	number, err := GenerateOrderNumber("PF", now)
	require.NoError(t, err)
	assert.Regexp(t, `^PF-20260901123045-[0-9A-Z]{6}$`, number)

	again, err := GenerateOrderNumber("PF", now)
	require.NoError(t, err)
	assert.NotEqual(t, number, again)

	_, err = GenerateOrderNumber("  ", now)
	assert.Error(t, err)
}
