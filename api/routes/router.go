package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/printforge/printforge-backend/api/controllers"
	"github.com/printforge/printforge-backend/api/middleware"
	cartsvc "github.com/printforge/printforge-backend/internal/cart"
	checkoutsvc "github.com/printforge/printforge-backend/internal/checkout"
	"github.com/printforge/printforge-backend/internal/coupons"
	"github.com/printforge/printforge-backend/internal/notifications"
	ordersvc "github.com/printforge/printforge-backend/internal/orders"
	"github.com/printforge/printforge-backend/pkg/config"
	"github.com/printforge/printforge-backend/pkg/db"
	"github.com/printforge/printforge-backend/pkg/logger"
	pkgredis "github.com/printforge/printforge-backend/pkg/redis"
)

// Deps carries everything the router needs wired in by cmd/api.
type Deps struct {
	Config            *config.Config
	Logger            *logger.Logger
	DBPinger          db.Pinger
	RedisClient       *pkgredis.Client
	CartService       cartsvc.Service
	CheckoutService   checkoutsvc.Service
	OrdersService     ordersvc.Service
	CouponsRepo       coupons.Repository
	NotificationsRepo notifications.Repository
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	var idemStore pkgredis.IdempotencyStore
	var limiter pkgredis.Counter
	if deps.RedisClient != nil {
		idemStore = deps.RedisClient
		limiter = deps.RedisClient
	}
	webhookPolicy := middleware.NewRateLimitPolicy("webhook", time.Minute, 120)

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DBPinger, deps.RedisClient))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Use(middleware.RateLimit(webhookPolicy, limiter, logg))
		r.Use(middleware.Idempotency(idemStore, logg))
		r.Post("/payment", controllers.PaymentWebhook(deps.CheckoutService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(deps.CartService, logg))
			r.Post("/items", controllers.CartAddItem(deps.CartService, logg))
			r.Patch("/items/{itemID}", controllers.CartUpdateItem(deps.CartService, logg))
			r.Delete("/items/{itemID}", controllers.CartRemoveItem(deps.CartService, logg))
			r.Post("/coupon", controllers.CartApplyCoupon(deps.CartService, logg))
			r.Delete("/coupon", controllers.CartRemoveCoupon(deps.CartService, logg))
		})

		r.Post("/checkout", controllers.Checkout(deps.CheckoutService, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersList(deps.OrdersService, logg))
			r.Get("/{orderID}", controllers.OrderDetail(deps.OrdersService, logg))
			r.Post("/{orderID}/cancel", controllers.OrderCancel(deps.OrdersService, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.NotificationsList(deps.NotificationsRepo, logg))
			r.Post("/{notificationID}/read", controllers.NotificationMarkRead(deps.NotificationsRepo, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(logg))

			r.Route("/orders", func(r chi.Router) {
				r.Post("/{orderID}/ship", controllers.AdminOrderShip(deps.OrdersService, logg))
				r.Post("/{orderID}/deliver", controllers.AdminOrderDeliver(deps.OrdersService, logg))
				r.Post("/{orderID}/refund", controllers.AdminOrderRefund(deps.OrdersService, logg))
			})

			r.Route("/coupons", func(r chi.Router) {
				r.Get("/", controllers.AdminCouponList(deps.CouponsRepo, logg))
				r.Post("/", controllers.AdminCouponCreate(deps.CouponsRepo, logg))
				r.Patch("/{couponID}", controllers.AdminCouponUpdate(deps.CouponsRepo, logg))
				r.Delete("/{couponID}", controllers.AdminCouponDelete(deps.CouponsRepo, logg))
			})
		})
	})

	return r
}
