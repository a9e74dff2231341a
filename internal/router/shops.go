package router

import (
	"campus_market/internal/httpx"
	"campus_market/internal/middleware"
	"campus_market/internal/shop"

	"github.com/gin-gonic/gin"
)

// nearbyShops ?collegeId= 学生浏览可下单店铺。
func nearbyShops(svc *shop.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.Nearby(c.Request.Context(), middleware.SessionFrom(c), c.Query("collegeId"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, list)
	}
}

func listProducts(svc *shop.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.ListProducts(c.Request.Context(), middleware.SessionFrom(c))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, list)
	}
}

func createProduct(svc *shop.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in shop.ProductInput
		if err := c.ShouldBindJSON(&in); err != nil {
			httpx.Error(c, httpx.BindError(err))
			return
		}
		p, err := svc.CreateProduct(c.Request.Context(), middleware.SessionFrom(c), in)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, p)
	}
}

func updateProduct(svc *shop.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch shop.ProductPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			httpx.Error(c, httpx.BindError(err))
			return
		}
		p, err := svc.UpdateProduct(c.Request.Context(), middleware.SessionFrom(c), c.Param("id"), patch)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, p)
	}
}

// shopDetail 公开店铺页，无需登录。
func shopDetail(svc *shop.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := svc.Detail(c.Request.Context(), c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, s)
	}
}

func shopProfile(svc *shop.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := svc.Profile(c.Request.Context(), middleware.SessionFrom(c))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, p)
	}
}

func updateShopProfile(svc *shop.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch shop.ProfilePatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			httpx.Error(c, httpx.BindError(err))
			return
		}
		p, err := svc.UpdateProfile(c.Request.Context(), middleware.SessionFrom(c), patch)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, p)
	}
}

func shopColleges(svc *shop.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.Colleges(c.Request.Context(), middleware.SessionFrom(c))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, list)
	}
}

// setShopColleges body: {"collegeIds": [...]}，整体替换。
func setShopColleges(svc *shop.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			CollegeIDs []string `json:"collegeIds" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			httpx.Error(c, httpx.BindError(err))
			return
		}
		list, err := svc.SetColleges(c.Request.Context(), middleware.SessionFrom(c), req.CollegeIDs)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, list)
	}
}
