// Package order 实现订单生命周期：下单、状态流转、通知副作用与配送 OTP。
package order

import "campus_market/internal/model"

// transitions 合法状态边；不在表里的一律 InvalidTransition。
var transitions = map[model.OrderStatus][]model.OrderStatus{
	model.StatusPendingAccept:   {model.StatusAccepted, model.StatusDeclined},
	model.StatusAccepted:        {model.StatusPreparing},
	model.StatusPreparing:       {model.StatusOutForDelivery},
	model.StatusOutForDelivery:  {model.StatusReachedLocation},
	model.StatusReachedLocation: {model.StatusDelivered},
	model.StatusDeclined:        nil,
	model.StatusDelivered:       nil,
}

// ParseStatus 校验状态是否在词表内。
func ParseStatus(s string) (model.OrderStatus, bool) {
	st := model.OrderStatus(s)
	_, ok := transitions[st]
	return st, ok
}

// NextStatuses 返回当前状态允许的下一状态；终态返回空。
func NextStatuses(from model.OrderStatus) []model.OrderStatus {
	next := transitions[from]
	out := make([]model.OrderStatus, len(next))
	copy(out, next)
	return out
}

func CanTransition(from, to model.OrderStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func IsTerminal(s model.OrderStatus) bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// deliveryPhase 店主从出餐配送开始可以看到 OTP。
func deliveryPhase(s model.OrderStatus) bool {
	switch s {
	case model.StatusOutForDelivery, model.StatusReachedLocation, model.StatusDelivered:
		return true
	}
	return false
}
