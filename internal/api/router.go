package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"kidsclub-backend/config"
	"kidsclub-backend/internal/billing"
	"kidsclub-backend/internal/checkin"
	"kidsclub-backend/internal/mw"
	"kidsclub-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.Config, s store.Store, svc *checkin.Service, conn billing.Connector) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, svc, conn, cfg.Notify.Push.PublicKey, cfg.Billing.Currency)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), 5, cfg.Server.RequestIPHeader)

	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 10*time.Minute)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/children", handler.CreateChild)
		api.GET("/children", handler.ListChildren)
		api.GET("/children/:id", handler.GetChild)
		api.GET("/children/barcode/:barcode", handler.GetChildByBarcode)

		api.POST("/rooms", handler.CreateRoom)
		api.GET("/rooms", handler.ListRooms)
		api.GET("/rooms/:id", handler.GetRoom)

		api.POST("/packages", handler.CreatePackage)
		api.GET("/packages", handler.ListPackages)

		api.POST("/subscriptions", handler.CreateSubscription)
		api.GET("/subscriptions", handler.ListSubscriptions)
		api.GET("/subscriptions/:id", handler.GetSubscription)
		api.POST("/subscriptions/:id/confirm", handler.ConfirmSubscription)

		api.POST("/checkins", handler.RequestCheckin)
		api.GET("/checkins/active", caching, handler.ListActiveCheckins)
		api.GET("/checkins/:id", handler.GetCheckin)
		api.POST("/checkins/:id/verify-otp", handler.VerifyCheckinOTP)
		api.POST("/checkins/:id/resend-otp", handler.ResendCheckinOTP)
		api.POST("/checkins/:id/checkout", handler.RequestCheckout)
		api.POST("/checkins/:id/confirm-payment", handler.ConfirmPayment)
		api.POST("/checkins/:id/verify-checkout-otp", handler.VerifyCheckoutOTP)
		api.POST("/checkins/:id/resend-checkout-otp", handler.ResendCheckoutOTP)
		api.POST("/checkins/:id/cancel", handler.CancelCheckin)

		api.GET("/dashboard/stats", caching, handler.DashboardStats)

		api.PUT("/push_subscriptions", handler.PutPushSubscription)
		api.DELETE("/push_subscriptions", handler.DeletePushSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
