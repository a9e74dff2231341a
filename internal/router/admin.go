package router

import (
	"campus_market/internal/admin"
	"campus_market/internal/httpx"
	"campus_market/internal/middleware"

	"github.com/gin-gonic/gin"
)

// adminListShops ?status=pending|approved
func adminListShops(svc *admin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.ListShops(c.Request.Context(), middleware.SessionFrom(c), c.Query("status"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, list)
	}
}

func approveShop(svc *admin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		shop, err := svc.ApproveShop(c.Request.Context(), middleware.SessionFrom(c), c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, shop)
	}
}

// rejectShop 拒绝即删除店铺及其全部订单。
func rejectShop(svc *admin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.RejectShop(c.Request.Context(), middleware.SessionFrom(c), c.Param("id")); err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, gin.H{"ok": true})
	}
}

func setUserBanned(svc *admin.Service, banned bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := svc.SetUserBanned(c.Request.Context(), middleware.SessionFrom(c), c.Param("id"), banned)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, u)
	}
}

// setProductBanned body: {"isBanned": true|false}
func setProductBanned(svc *admin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			IsBanned *bool `json:"isBanned" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			httpx.Error(c, httpx.BindError(err))
			return
		}
		p, err := svc.SetProductBanned(c.Request.Context(), middleware.SessionFrom(c), c.Param("id"), *req.IsBanned)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, p)
	}
}

func adminListColleges(svc *admin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.ListColleges(c.Request.Context(), middleware.SessionFrom(c))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, list)
	}
}

func createCollege(svc *admin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in admin.CollegeInput
		if err := c.ShouldBindJSON(&in); err != nil {
			httpx.Error(c, httpx.BindError(err))
			return
		}
		college, err := svc.CreateCollege(c.Request.Context(), middleware.SessionFrom(c), in)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, college)
	}
}

func deleteCollege(svc *admin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.DeleteCollege(c.Request.Context(), middleware.SessionFrom(c), c.Param("id")); err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, gin.H{"ok": true})
	}
}
