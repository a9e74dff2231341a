package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"campus_market/internal/apperr"
	"campus_market/internal/auth"
	"campus_market/internal/httpx"
	rediskey "campus_market/pkg/redis"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
)

const (
	sessionKey = "campus.session"
	claimsKey  = "campus.claims"
)

// Authenticate 解析会话令牌（Cookie 优先，其次 Bearer），加载最新用户状态后写入上下文。
// rdb 为 nil 时不检查登出吊销。
func Authenticate(issuer *auth.TokenIssuer, resolver *auth.Resolver, rdb *rd.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c.Request)
		if token == "" {
			httpx.Abort(c, apperr.Unauthorized("login required"))
			return
		}
		claims, err := issuer.Parse(token)
		if err != nil {
			httpx.Abort(c, apperr.Unauthorized("session is invalid or expired"))
			return
		}

		if rdb != nil {
			revoked, err := rediskey.IsSessionRevoked(c.Request.Context(), rdb, claims.ID)
			if err != nil {
				// Redis 出错时放行（降级策略），令牌本身仍有过期时间兜底
				slog.WarnContext(c.Request.Context(), "session revocation check failed", slog.Any("err", err))
			} else if revoked {
				httpx.Abort(c, apperr.Unauthorized("session has been logged out"))
				return
			}
		}

		sess, err := resolver.Resolve(c.Request.Context(), claims.UserID)
		if err != nil {
			httpx.Abort(c, err)
			return
		}
		sess.TokenID = claims.ID

		c.Set(sessionKey, sess)
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireAdmin 需挂在 Authenticate 之后。
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := auth.RequireAdmin(SessionFrom(c)); err != nil {
			httpx.Abort(c, err)
			return
		}
		c.Next()
	}
}

// SessionFrom 取当前请求的会话；未认证时返回零值。
func SessionFrom(c *gin.Context) auth.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return auth.Session{}
	}
	s, _ := v.(auth.Session)
	return s
}

func ClaimsFrom(c *gin.Context) (auth.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return auth.Claims{}, false
	}
	claims, ok := v.(auth.Claims)
	return claims, ok
}

func TokenFromRequest(r *http.Request) string {
	if ck, err := r.Cookie(auth.CookieName); err == nil && ck.Value != "" {
		return ck.Value
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
