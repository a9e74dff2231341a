package router

import (
	"log/slog"
	"net/http"

	"campus_market/internal/admin"
	"campus_market/internal/auth"
	"campus_market/internal/cleanup"
	"campus_market/internal/config"
	"campus_market/internal/httpx"
	"campus_market/internal/middleware"
	"campus_market/internal/notify"
	"campus_market/internal/order"
	"campus_market/internal/shop"
	"campus_market/internal/upload"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	rd "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps 路由依赖；RDB 为 nil 时限流、缓存与登出吊销降级关闭。
type Deps struct {
	Config config.AppConfig
	Log    *slog.Logger
	DB     *gorm.DB
	RDB    *rd.Client

	Tokens    *auth.TokenIssuer
	Resolver  *auth.Resolver
	Logins    *auth.Authenticator
	Registrar *auth.Registrar

	Orders        *order.Service
	Notifications *notify.Service
	Shops         *shop.Service
	Admin         *admin.Service
	Uploads       *upload.Store
	Sweeper       *cleanup.Sweeper
}

// Setup 注册全部 HTTP 路由。
func Setup(r *gin.Engine, d Deps) {
	httpx.UseJSONFieldNames()

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})
	r.GET("/api/health", health(d))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.Static("/uploads", d.Uploads.Dir())

	authed := middleware.Authenticate(d.Tokens, d.Resolver, d.RDB)
	cfg := d.Config

	// 会话
	r.POST("/api/auth/login", login(d))
	r.POST("/api/auth/register", middleware.RedisRateLimit(d.RDB, "register", cfg.OrderRateLimit, cfg.OrderRateWindow), register(d))
	r.POST("/api/auth/complete-shop", authed, completeShop(d))
	r.POST("/api/auth/logout", authed, logout(d))
	r.GET("/api/me", authed, me(d))
	r.GET("/api/colleges", listColleges(d.DB))
	r.GET("/api/shops/:id", shopDetail(d.Shops))

	// 订单
	api := r.Group("/api", authed)
	api.POST("/orders", middleware.RedisRateLimit(d.RDB, "orders", cfg.OrderRateLimit, cfg.OrderRateWindow), createOrder(d.Orders))
	api.GET("/orders", listOrders(d.Orders))
	api.GET("/orders/:id", getOrder(d.Orders))
	api.PATCH("/orders/:id", transitionOrder(d.Orders))
	api.GET("/orders/:id/timeline", orderTimeline(d.Orders))

	// 通知
	api.GET("/notifications", listNotifications(d.Notifications))
	api.PATCH("/notifications/read-all", markAllNotificationsRead(d.Notifications))
	api.PATCH("/notifications/:id/read", markNotificationRead(d.Notifications))

	// 店铺 / 商品
	api.GET("/shops/nearby", nearbyShops(d.Shops))
	api.GET("/shop", shopProfile(d.Shops))
	api.PATCH("/shop", updateShopProfile(d.Shops))
	api.GET("/shop/colleges", shopColleges(d.Shops))
	api.PUT("/shop/colleges", setShopColleges(d.Shops))
	api.GET("/shop/products", listProducts(d.Shops))
	api.POST("/shop/products", createProduct(d.Shops))
	api.PATCH("/shop/products/:id", updateProduct(d.Shops))

	// 支付凭证上传
	api.POST("/upload", middleware.RedisRateLimit(d.RDB, "upload", cfg.OrderRateLimit, cfg.OrderRateWindow), uploadProof(d.Uploads))

	// 管理员
	adm := api.Group("/admin", middleware.RequireAdmin())
	adm.GET("/shops", adminListShops(d.Admin))
	adm.PATCH("/shops/:id/approve", approveShop(d.Admin))
	adm.PATCH("/shops/:id/reject", rejectShop(d.Admin))
	adm.PATCH("/users/:id/ban", setUserBanned(d.Admin, true))
	adm.PATCH("/users/:id/unban", setUserBanned(d.Admin, false))
	adm.PATCH("/products/:id", setProductBanned(d.Admin))
	adm.GET("/colleges", adminListColleges(d.Admin))
	adm.POST("/colleges", createCollege(d.Admin))
	adm.DELETE("/colleges/:id", deleteCollege(d.Admin))

	// 定时清理（外部 cron 触发）
	r.GET("/api/cron/cleanup", cronCleanup(d.Sweeper, cfg.CronSecret))
}
