package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/voucher/internal/config"
	"github.com/example/voucher/internal/handlers"
	"github.com/example/voucher/internal/middleware"
	"github.com/example/voucher/internal/services"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config) {
	memberService := services.NewMemberService(db)
	couponService := services.NewCouponService(db, memberService)
	merchantService := services.NewMerchantService(db, memberService)
	lineService := services.NewLineService(cfg.LineVerifyURL, cfg.LineChannelID)
	notifyService := services.NewLineNotifyService(cfg.LinePushURL, cfg.LinePushToken)

	authHandler := handlers.NewAuthHandler(cfg, memberService, lineService)
	couponHandler := handlers.NewCouponHandler(db, couponService, merchantService, notifyService)
	merchantHandler := handlers.NewMerchantHandler(merchantService, couponService)
	adminHandler := handlers.NewAdminHandler(db)

	api := app.Group("/api/v1")

	// Token exchange
	api.Post("/auth/line/exchange", authHandler.Exchange)

	// Member-token protected routes
	protected := api.Group("", middleware.AuthMiddleware(cfg))

	protected.Post("/coupons/claim", couponHandler.Claim)
	protected.Post("/coupons/redeem", couponHandler.Redeem)
	protected.Get("/coupons/mine", couponHandler.Mine)

	protected.Post("/merchants/bind", merchantHandler.Bind)
	protected.Get("/merchants/coupons", merchantHandler.ListCoupons)

	// Admin routes
	admin := api.Group("/admin", middleware.AdminAuthMiddleware(cfg.AdminKeyHash))

	admin.Post("/campaigns", adminHandler.CreateCampaign)
	admin.Get("/campaigns", adminHandler.ListCampaigns)
	admin.Post("/merchants", adminHandler.CreateMerchant)
	admin.Get("/merchants", adminHandler.ListMerchants)
	admin.Post("/coupons/issue", adminHandler.IssueCoupons)
	admin.Get("/stats", adminHandler.Stats)
}
