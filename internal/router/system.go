package router

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"campus_market/internal/apperr"
	"campus_market/internal/auth"
	"campus_market/internal/cleanup"
	"campus_market/internal/httpx"
	"campus_market/internal/middleware"
	"campus_market/internal/upload"

	"github.com/gin-gonic/gin"
)

// health 检查数据库与 Redis 连通性。
func health(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		status := gin.H{"db": "ok", "redis": "disabled"}
		code := http.StatusOK

		sqlDB, err := d.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			status["db"] = "down"
			code = http.StatusServiceUnavailable
		}
		if d.RDB != nil {
			status["redis"] = "ok"
			if err := d.RDB.Ping(ctx).Err(); err != nil {
				status["redis"] = "down"
				code = http.StatusServiceUnavailable
			}
		}
		c.JSON(code, gin.H{"code": 0, "data": status})
	}
}

// uploadProof multipart 字段 file；返回 {"url": "/uploads/<uuid>.<ext>"}。
func uploadProof(store *upload.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := auth.RequireActive(middleware.SessionFrom(c)); err != nil {
			httpx.Error(c, err)
			return
		}
		// 为 multipart 头部预留 1MB
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, store.MaxBytes()+1<<20)

		fh, err := c.FormFile("file")
		if err != nil {
			httpx.Error(c, apperr.Field("file", "required (multipart field \"file\")"))
			return
		}
		f, err := fh.Open()
		if err != nil {
			httpx.Error(c, err)
			return
		}
		defer f.Close()

		url, err := store.Save(f, fh.Size)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, gin.H{"url": url})
	}
}

// cronCleanup 需 Authorization: Bearer <CRON_SECRET>；未配置密钥时接口关闭。
func cronCleanup(sweeper *cleanup.Sweeper, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			httpx.Error(c, apperr.Unauthorized("invalid cron secret"))
			return
		}
		n, err := sweeper.Sweep(c.Request.Context())
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, gin.H{"ok": true, "deleted": n})
	}
}
