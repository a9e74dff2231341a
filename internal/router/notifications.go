package router

import (
	"strconv"

	"campus_market/internal/apperr"
	"campus_market/internal/auth"
	"campus_market/internal/httpx"
	"campus_market/internal/middleware"
	"campus_market/internal/notify"

	"github.com/gin-gonic/gin"
)

// listNotifications ?unreadOnly=true 只看未读。
func listNotifications(svc *notify.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := middleware.SessionFrom(c)
		if err := auth.RequireActive(sess); err != nil {
			httpx.Error(c, err)
			return
		}
		unreadOnly := false
		if v := c.Query("unreadOnly"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				httpx.Error(c, apperr.Field("unreadOnly", "must be true or false"))
				return
			}
			unreadOnly = b
		}
		list, err := svc.List(c.Request.Context(), sess.UserID, unreadOnly)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, list)
	}
}

func markNotificationRead(svc *notify.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := middleware.SessionFrom(c)
		if err := auth.RequireActive(sess); err != nil {
			httpx.Error(c, err)
			return
		}
		if err := svc.MarkRead(c.Request.Context(), sess.UserID, c.Param("id")); err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, gin.H{"ok": true})
	}
}

func markAllNotificationsRead(svc *notify.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := middleware.SessionFrom(c)
		if err := auth.RequireActive(sess); err != nil {
			httpx.Error(c, err)
			return
		}
		n, err := svc.MarkAllRead(c.Request.Context(), sess.UserID)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, gin.H{"updated": n})
	}
}
