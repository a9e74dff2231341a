package order

import (
	"campus_market/internal/auth"
	"campus_market/internal/model"
)

// View 面向调用方的订单表示：OTP 按角色与状态决定是否可见。
type View struct {
	model.Order
	ShortID      string              `json:"shortId"`
	OTP          string              `json:"deliveryOtp,omitempty"`
	NextStatuses []model.OrderStatus `json:"nextStatuses,omitempty"`
}

func NewView(o model.Order, viewer auth.Session) View {
	v := View{Order: o, ShortID: ShortID(o.ID)}
	owner := viewer.Role == model.RoleShopOwner && viewer.ShopID != "" && viewer.ShopID == o.ShopID
	switch {
	case viewer.Role == model.RoleStudent && viewer.StudentID == o.StudentID:
		v.OTP = o.DeliveryOTP
	case owner && deliveryPhase(o.Status):
		v.OTP = o.DeliveryOTP
	case viewer.Admin():
		v.OTP = o.DeliveryOTP
	}
	if owner {
		v.NextStatuses = NextStatuses(o.Status)
	}
	return v
}
