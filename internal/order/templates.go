package order

import (
	"fmt"

	"campus_market/internal/model"

	"github.com/shopspring/decimal"
)

// ShortID 通知里展示的订单短号：id 末 6 位。
func ShortID(id string) string {
	if len(id) <= 6 {
		return id
	}
	return id[len(id)-6:]
}

type template struct {
	title string
	body  string // %s = 短号
}

// statusTemplates 发给学生的状态通知；preparing 不通知。
var statusTemplates = map[model.OrderStatus]template{
	model.StatusAccepted:        {"Order accepted", "Your order #%s has been accepted."},
	model.StatusDeclined:        {"Order declined", "Your order #%s was declined."},
	model.StatusOutForDelivery:  {"Order on the way", "Your order #%s is out for delivery. Get your OTP ready!"},
	model.StatusReachedLocation: {"Reached at location", "Your order #%s has reached the delivery location. Please collect your order!"},
	model.StatusDelivered:       {"Order delivered", "Your order #%s has been delivered. Thank you!"},
}

// statusMessage 返回目标状态对应的通知文案；ok=false 表示该状态不发通知。
func statusMessage(to model.OrderStatus, orderID string) (title, body string, ok bool) {
	t, ok := statusTemplates[to]
	if !ok {
		return "", "", false
	}
	return t.title, fmt.Sprintf(t.body, ShortID(orderID)), true
}

func newOrderMessage(orderID string, total decimal.Decimal) (title, body string) {
	return "New order", fmt.Sprintf("Order #%s - ₹%s. Check payment proof and accept/decline.", ShortID(orderID), total.StringFixed(2))
}
