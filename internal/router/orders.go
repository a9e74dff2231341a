package router

import (
	"campus_market/internal/httpx"
	"campus_market/internal/middleware"
	"campus_market/internal/order"

	"github.com/gin-gonic/gin"
)

// createOrder 学生下单。
func createOrder(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req order.CreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.RecordOrderOperation("create", false)
			httpx.Error(c, httpx.BindError(err))
			return
		}
		o, err := svc.CreateOrder(c.Request.Context(), middleware.SessionFrom(c), req)
		middleware.RecordOrderOperation("create", err == nil)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, order.NewView(*o, middleware.SessionFrom(c)))
	}
}

// listOrders ?role=student|shop_owner|admin，缺省按会话角色。
func listOrders(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.List(c.Request.Context(), middleware.SessionFrom(c), c.Query("role"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, list)
	}
}

func getOrder(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := svc.Get(c.Request.Context(), middleware.SessionFrom(c), c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, v)
	}
}

// transitionOrder 店主推进订单状态，body: {"status": "..."}。
func transitionOrder(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Status string `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			httpx.Error(c, httpx.BindError(err))
			return
		}
		sess := middleware.SessionFrom(c)
		o, err := svc.RequestTransition(c.Request.Context(), sess, c.Param("id"), req.Status)
		middleware.RecordOrderOperation(transitionLabel(req.Status), err == nil)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, order.NewView(*o, sess))
	}
}

func orderTimeline(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		events, err := svc.Timeline(c.Request.Context(), middleware.SessionFrom(c), c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, events)
	}
}

// transitionLabel 指标标签只用词表内的状态，避免客户端输入撑爆基数。
func transitionLabel(status string) string {
	if s, ok := order.ParseStatus(status); ok {
		return "transition:" + string(s)
	}
	return "transition:invalid"
}
