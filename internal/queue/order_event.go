package queue

import (
	"fmt"
	"strconv"
	"time"

	"campus_market/internal/model"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderEvent 是写入 Redis Stream / Kafka 的订单事件。
type OrderEvent struct {
	EventID     string            `json:"event_id"`
	OrderID     string            `json:"order_id"`
	Type        string            `json:"type"`
	FromStatus  model.OrderStatus `json:"from_status,omitempty"`
	ToStatus    model.OrderStatus `json:"to_status"`
	ActorUserID string            `json:"actor_user_id,omitempty"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

// Validate 做最小字段校验，防止消费者处理脏消息。
func (e OrderEvent) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if e.OrderID == "" {
		return fmt.Errorf("order_id is required")
	}
	switch e.Type {
	case EventOrderCreated, EventOrderStatusChanged:
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.ToStatus == "" {
		return fmt.Errorf("to_status is required")
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("occurred_at is required")
	}
	return nil
}

// streamValues 转成 XADD 字段。
func (e OrderEvent) streamValues() map[string]any {
	return map[string]any{
		"event_id":      e.EventID,
		"order_id":      e.OrderID,
		"type":          e.Type,
		"from_status":   string(e.FromStatus),
		"to_status":     string(e.ToStatus),
		"actor_user_id": e.ActorUserID,
		"occurred_at":   e.OccurredAt.UTC().UnixMilli(),
	}
}

func parseOrderEvent(values map[string]interface{}) (OrderEvent, error) {
	var ev OrderEvent
	var err error
	if ev.EventID, err = getStreamString(values, "event_id"); err != nil {
		return OrderEvent{}, err
	}
	if ev.OrderID, err = getStreamString(values, "order_id"); err != nil {
		return OrderEvent{}, err
	}
	if ev.Type, err = getStreamString(values, "type"); err != nil {
		return OrderEvent{}, err
	}
	toStatus, err := getStreamString(values, "to_status")
	if err != nil {
		return OrderEvent{}, err
	}
	ev.ToStatus = model.OrderStatus(toStatus)

	// 可选字段
	if from, err := getStreamString(values, "from_status"); err == nil {
		ev.FromStatus = model.OrderStatus(from)
	}
	if actor, err := getStreamString(values, "actor_user_id"); err == nil {
		ev.ActorUserID = actor
	}

	atStr, err := getStreamString(values, "occurred_at")
	if err != nil {
		return OrderEvent{}, err
	}
	ms, err := strconv.ParseInt(atStr, 10, 64)
	if err != nil {
		return OrderEvent{}, fmt.Errorf("invalid occurred_at %q", atStr)
	}
	ev.OccurredAt = time.UnixMilli(ms).UTC()

	if err := ev.Validate(); err != nil {
		return OrderEvent{}, err
	}
	return ev, nil
}

func getStreamString(values map[string]interface{}, key string) (string, error) {
	v, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing field %s", key)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float64:
		return strconv.FormatInt(int64(x), 10), nil
	default:
		return "", fmt.Errorf("unsupported field type %s: %T", key, v)
	}
}
