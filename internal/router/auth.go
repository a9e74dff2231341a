package router

import (
	"log/slog"
	"net/http"
	"time"

	"campus_market/internal/apperr"
	"campus_market/internal/auth"
	"campus_market/internal/httpx"
	"campus_market/internal/middleware"
	"campus_market/internal/model"
	rediskey "campus_market/pkg/redis"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// login 邮箱或手机号 + 密码登录。
func login(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Login    string `json:"login" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			httpx.Error(c, httpx.BindError(err))
			return
		}
		u, err := d.Logins.Login(c.Request.Context(), req.Login, req.Password)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		if u.IsBanned {
			httpx.Error(c, apperr.Forbidden("account is banned"))
			return
		}
		startSession(c, d, u.ID)
	}
}

// register 注册成功后直接登录，响应与 login 相同。
func register(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req auth.RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			httpx.Error(c, httpx.BindError(err))
			return
		}
		u, err := d.Registrar.Register(c.Request.Context(), req)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		d.Log.InfoContext(c.Request.Context(), "user registered", slog.String("user_id", u.ID), slog.String("role", string(u.Role)))
		startSession(c, d, u.ID)
	}
}

// completeShop 已注册但还没有店铺的店主补交开店资料。
func completeShop(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var app auth.ShopApplication
		if err := c.ShouldBindJSON(&app); err != nil {
			httpx.Error(c, httpx.BindError(err))
			return
		}
		shop, err := d.Registrar.CompleteShop(c.Request.Context(), middleware.SessionFrom(c), app)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, shop)
	}
}

// startSession 签发令牌，同时写 Cookie 并在响应体返回（供 Bearer 使用）。
func startSession(c *gin.Context, d Deps, userID string) {
	token, claims, err := d.Tokens.Issue(userID)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	sess, err := d.Resolver.Resolve(c.Request.Context(), userID)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, token, int(d.Tokens.TTL()/time.Second), "/", "", d.Config.AppEnv != "dev", true)
	httpx.OK(c, gin.H{
		"token":     token,
		"expiresAt": claims.ExpiresAt.Time,
		"user":      sess,
	})
}

// logout 吊销当前令牌直到其自然过期。
func logout(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := middleware.ClaimsFrom(c); ok && d.RDB != nil && claims.ExpiresAt != nil {
			ttl := time.Until(claims.ExpiresAt.Time)
			if err := rediskey.RevokeSession(c.Request.Context(), d.RDB, claims.ID, ttl); err != nil {
				// Redis 不可用时仍清 Cookie 并返回成功，令牌靠自然过期兜底
				d.Log.WarnContext(c.Request.Context(), "revoke session failed",
					slog.String("token_id", claims.ID), slog.Any("err", err))
			}
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(auth.CookieName, "", -1, "/", "", d.Config.AppEnv != "dev", true)
		httpx.OK(c, gin.H{"ok": true})
	}
}

func me(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := middleware.SessionFrom(c)
		unread, err := d.Notifications.UnreadCount(c.Request.Context(), sess.UserID)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, gin.H{"user": sess, "unreadNotifications": unread})
	}
}

// listColleges 注册与下单页用的校区列表，无需登录。
func listColleges(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var list []model.College
		if err := db.WithContext(c.Request.Context()).Order("name").Find(&list).Error; err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, list)
	}
}
