package model

import (
	"time"

	"gorm.io/gorm"
)

// Notification 站内通知，只由订单事件等副作用产生。
type Notification struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`

	UserID  string  `gorm:"size:36;not null;index" json:"userId"`
	OrderID *string `gorm:"size:36;index" json:"orderId,omitempty"`
	Title   string  `gorm:"size:128;not null" json:"title"`
	Body    string  `gorm:"size:512;not null" json:"body"`
	Read    bool    `gorm:"column:is_read;not null;default:false" json:"read"`
}

func (Notification) TableName() string { return "notifications" }

func (n *Notification) BeforeCreate(*gorm.DB) error {
	assignID(&n.ID)
	return nil
}

// OrderStatusEvent 订单时间线投影，由 Kafka 消费者异步写入；EventID 保证幂等。
type OrderStatusEvent struct {
	ID        uint      `gorm:"primarykey" json:"-"`
	CreatedAt time.Time `json:"-"`

	EventID     string      `gorm:"size:64;uniqueIndex;not null" json:"eventId"`
	OrderID     string      `gorm:"size:36;not null;index" json:"orderId"`
	Type        string      `gorm:"size:32;not null" json:"type"`
	FromStatus  OrderStatus `gorm:"size:32" json:"fromStatus,omitempty"`
	ToStatus    OrderStatus `gorm:"size:32;not null" json:"toStatus"`
	ActorUserID string      `gorm:"size:36" json:"actorUserId,omitempty"`
	OccurredAt  time.Time   `gorm:"not null;index" json:"occurredAt"`
}

func (OrderStatusEvent) TableName() string { return "order_status_events" }
