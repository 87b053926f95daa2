package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	cartsvc "github.com/printforge/printforge-backend/internal/cart"
	"github.com/printforge/printforge-backend/internal/catalog"
	checkoutsvc "github.com/printforge/printforge-backend/internal/checkout"
	"github.com/printforge/printforge-backend/internal/coupons"
	"github.com/printforge/printforge-backend/internal/notifications"
	ordersvc "github.com/printforge/printforge-backend/internal/orders"
	"github.com/printforge/printforge-backend/internal/payments"
	"github.com/printforge/printforge-backend/internal/pricing"
	pkgauth "github.com/printforge/printforge-backend/pkg/auth"
	"github.com/printforge/printforge-backend/pkg/config"
	"github.com/printforge/printforge-backend/pkg/db"
	"github.com/printforge/printforge-backend/pkg/db/models"
	"github.com/printforge/printforge-backend/pkg/enums"
	"github.com/printforge/printforge-backend/pkg/logger"
	"github.com/printforge/printforge-backend/pkg/outbox"
)

const (
	testJWTSecret     = "router-test-secret"
	testWebhookSecret = "router-webhook-secret"
)

var routerSchema = []string{`
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  sku TEXT NOT NULL UNIQUE,
  title TEXT NOT NULL,
  price INTEGER NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS inventory_items (
  product_id TEXT PRIMARY KEY,
  stock INTEGER NOT NULL DEFAULT 0,
  sold INTEGER NOT NULL DEFAULT 0,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS carts (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL DEFAULT 'active',
  coupon_code TEXT,
  subtotal INTEGER NOT NULL DEFAULT 0,
  tax INTEGER NOT NULL DEFAULT 0,
  shipping INTEGER NOT NULL DEFAULT 0,
  discount INTEGER NOT NULL DEFAULT 0,
  total INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  product_id TEXT,
  custom_description TEXT,
  title TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price INTEGER NOT NULL,
  size TEXT,
  color TEXT,
  customization TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`, `
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
);`, `
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
);`, `
CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  title TEXT NOT NULL,
  body TEXT NOT NULL,
  read_at DATETIME,
  created_at DATETIME
);`}

type noopLocker struct{}

func (noopLocker) AcquireLock(ctx context.Context, scope string) (string, error) {
	return "token", nil
}

func (noopLocker) ReleaseLock(ctx context.Context, scope, token string) error { return nil }

func routerTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            testJWTSecret,
			Issuer:            "printforge-test",
			ExpirationMinutes: 15,
		},
		Pricing: config.PricingConfig{TaxRatePercent: 18, FreeShippingThreshold: 999, FlatShippingFee: 49},
		Orders:  config.OrdersConfig{NumberPrefix: "PF"},
	}
}

func newRouterHarness(t *testing.T) (http.Handler, *gorm.DB, *config.Config) {
	t.Helper()

	dsn := "file:router_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	for _, stmt := range routerSchema {
		require.NoError(t, conn.Exec(stmt).Error)
	}

	cfg := routerTestConfig()
	logg := logger.New(logger.Options{ServiceName: "router-test", Level: zerolog.ErrorLevel, Output: io.Discard})
	dbClient := db.NewWithConn(conn)

	catalogRepo := catalog.NewRepository(conn)
	cartRepo := cartsvc.NewRepository(conn)
	couponsRepo := coupons.NewRepository(conn)
	ordersRepo := ordersvc.NewRepository(conn)
	notificationsRepo := notifications.NewRepository(conn)
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), nil)

	couponsService, err := coupons.NewService(couponsRepo)
	require.NoError(t, err)

	cartService, err := cartsvc.NewService(
		cartRepo, catalogRepo, couponsService, couponsRepo,
		dbClient, noopLocker{}, pricing.PolicyFromConfig(cfg.Pricing), nil,
	)
	require.NoError(t, err)

	verifier, err := payments.NewVerifier(testWebhookSecret)
	require.NoError(t, err)

	checkoutService, err := checkoutsvc.NewService(
		cartRepo, ordersRepo, dbClient, verifier, outboxSvc,
		noopLocker{}, nil, nil, cfg.Orders.NumberPrefix,
	)
	require.NoError(t, err)

	ordersService, err := ordersvc.NewService(ordersRepo, dbClient, outboxSvc)
	require.NoError(t, err)

	handler := NewRouter(Deps{
		Config:            cfg,
		Logger:            logg,
		DBPinger:          dbClient,
		RedisClient:       nil,
		CartService:       cartService,
		CheckoutService:   checkoutService,
		OrdersService:     ordersService,
		CouponsRepo:       couponsRepo,
		NotificationsRepo: notificationsRepo,
	})
	return handler, conn, cfg
}

func mintToken(t *testing.T, cfg *config.Config, customerID uuid.UUID, role enums.UserRole) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		CustomerID: customerID,
		Role:       role,
	})
	require.NoError(t, err)
	return token
}

func seedRouterProduct(t *testing.T, conn *gorm.DB, price int64, stock int) uuid.UUID {
	t.Helper()
	product := models.Product{
		ID:       uuid.New(),
		SKU:      "SKU-" + uuid.NewString()[:8],
		Title:    "Nebula Poster",
		Price:    price,
		IsActive: true,
	}
	require.NoError(t, conn.Create(&product).Error)
	require.NoError(t, conn.Create(&models.InventoryItem{ProductID: product.ID, Stock: stock}).Error)
	return product.ID
}

func doJSON(handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthLive(t *testing.T) {
	handler, _, _ := newRouterHarness(t)
	rec := doJSON(handler, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-PrintForge-Env"))
}

func TestCartRequiresAuth(t *testing.T) {
	handler, _, _ := newRouterHarness(t)
	rec := doJSON(handler, http.MethodGet, "/api/v1/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCartFetchEmpty(t *testing.T) {
	handler, _, cfg := newRouterHarness(t)
	token := mintToken(t, cfg, uuid.New(), enums.UserRoleCustomer)

	rec := doJSON(handler, http.MethodGet, "/api/v1/cart", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data struct {
			Total int64            `json:"total"`
			Items []map[string]any `json:"items"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Zero(t, envelope.Data.Total)
	assert.Empty(t, envelope.Data.Items)
}

func TestAddItemThenCheckout(t *testing.T) {
	handler, conn, cfg := newRouterHarness(t)
	customerID := uuid.New()
	token := mintToken(t, cfg, customerID, enums.UserRoleCustomer)
	productID := seedRouterProduct(t, conn, 599, 10)

	rec := doJSON(handler, http.MethodPost, "/api/v1/cart/items", token, map[string]any{
		"product_id": productID,
		"quantity":   2,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	orderRef := "ord_" + uuid.NewString()[:8]
	paymentRef := "pay_" + uuid.NewString()[:8]
	rec = doJSON(handler, http.MethodPost, "/api/v1/checkout", token, map[string]any{
		"order_ref":      orderRef,
		"payment_ref":    paymentRef,
		"signature":      payments.Sign([]byte(testWebhookSecret), orderRef, paymentRef),
		"payment_method": "card",
		"shipping_address": map[string]string{
			"name":        "Asha Rao",
			"line1":       "12 Rath Street",
			"city":        "Pune",
			"state":       "MH",
			"postal_code": "411001",
			"country":     "IN",
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var envelope struct {
		Data struct {
			OrderNumber string `json:"order_number"`
			Status      string `json:"status"`
			Total       int64  `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Contains(t, envelope.Data.OrderNumber, "PF-")
	assert.Equal(t, "confirmed", envelope.Data.Status)
	assert.Equal(t, int64(1414), envelope.Data.Total)

	// bad signature is rejected with 402
	orderRef2 := "ord_" + uuid.NewString()[:8]
	rec = doJSON(handler, http.MethodPost, "/api/v1/checkout", token, map[string]any{
		"order_ref":      orderRef2,
		"payment_ref":    "pay_" + uuid.NewString()[:8],
		"signature":      "deadbeef",
		"payment_method": "card",
		"shipping_address": map[string]string{
			"name":        "Asha Rao",
			"line1":       "12 Rath Street",
			"city":        "Pune",
			"state":       "MH",
			"postal_code": "411001",
			"country":     "IN",
		},
	})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestPaymentWebhookSettlesSameOrder(t *testing.T) {
	handler, conn, cfg := newRouterHarness(t)
	customerID := uuid.New()
	token := mintToken(t, cfg, customerID, enums.UserRoleCustomer)
	productID := seedRouterProduct(t, conn, 450, 5)

	rec := doJSON(handler, http.MethodPost, "/api/v1/cart/items", token, map[string]any{
		"product_id": productID,
		"quantity":   1,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	orderRef := "ord_" + uuid.NewString()[:8]
	paymentRef := "pay_" + uuid.NewString()[:8]
	payload := map[string]any{
		"customer_id":    customerID,
		"order_ref":      orderRef,
		"payment_ref":    paymentRef,
		"signature":      payments.Sign([]byte(testWebhookSecret), orderRef, paymentRef),
		"payment_method": "wallet",
		"shipping_address": map[string]string{
			"name":        "Asha Rao",
			"line1":       "12 Rath Street",
			"city":        "Pune",
			"state":       "MH",
			"postal_code": "411001",
			"country":     "IN",
		},
	}

	// webhook needs no bearer token
	rec = doJSON(handler, http.MethodPost, "/api/v1/webhooks/payment", "", payload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var first struct {
		Data struct {
			OrderID     uuid.UUID `json:"order_id"`
			OrderNumber string    `json:"order_number"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))

	// redelivery of the same payment_ref settles on the order created first
	rec = doJSON(handler, http.MethodPost, "/api/v1/webhooks/payment", "", payload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), first.Data.OrderNumber)

	var orderCount int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&orderCount).Error)
	assert.Equal(t, int64(1), orderCount)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	handler, _, cfg := newRouterHarness(t)
	customerToken := mintToken(t, cfg, uuid.New(), enums.UserRoleCustomer)
	adminToken := mintToken(t, cfg, uuid.New(), enums.UserRoleAdmin)

	rec := doJSON(handler, http.MethodGet, "/api/v1/admin/coupons", customerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(handler, http.MethodGet, "/api/v1/admin/coupons", adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminCouponCreateAndList(t *testing.T) {
	handler, _, cfg := newRouterHarness(t)
	adminToken := mintToken(t, cfg, uuid.New(), enums.UserRoleAdmin)

	rec := doJSON(handler, http.MethodPost, "/api/v1/admin/coupons", adminToken, map[string]any{
		"code":           "welcome10",
		"discount_type":  "percentage",
		"discount_value": 10,
		"max_discount":   100,
		"valid_from":     time.Now().Add(-time.Hour).Format(time.RFC3339),
		"valid_to":       time.Now().Add(24 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"WELCOME10"`)

	rec = doJSON(handler, http.MethodGet, "/api/v1/admin/coupons?limit=10", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"WELCOME10"`)
}

func TestOrderCancelEndpoint(t *testing.T) {
	handler, conn, cfg := newRouterHarness(t)
	customerID := uuid.New()
	token := mintToken(t, cfg, customerID, enums.UserRoleCustomer)
	productID := seedRouterProduct(t, conn, 250, 10)

	rec := doJSON(handler, http.MethodPost, "/api/v1/cart/items", token, map[string]any{
		"product_id": productID,
		"quantity":   1,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	orderRef := "ord_" + uuid.NewString()[:8]
	paymentRef := "pay_" + uuid.NewString()[:8]
	rec = doJSON(handler, http.MethodPost, "/api/v1/checkout", token, map[string]any{
		"order_ref":      orderRef,
		"payment_ref":    paymentRef,
		"signature":      payments.Sign([]byte(testWebhookSecret), orderRef, paymentRef),
		"payment_method": "upi",
		"shipping_address": map[string]string{
			"name":        "Asha Rao",
			"line1":       "12 Rath Street",
			"city":        "Pune",
			"state":       "MH",
			"postal_code": "411001",
			"country":     "IN",
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Data struct {
			ID uuid.UUID `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(handler, http.MethodPost, fmt.Sprintf("/api/v1/orders/%s/cancel", created.Data.ID), token, map[string]any{
		"reason": "ordered by mistake",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"cancelled"`)

	// stock restored
	var inventory models.InventoryItem
	require.NoError(t, conn.First(&inventory, "product_id = ?", productID).Error)
	assert.Equal(t, 10, inventory.Stock)
}
