package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderStatus 订单状态，流转规则见 internal/order。
type OrderStatus string

const (
	StatusPendingAccept   OrderStatus = "pending_accept"
	StatusAccepted        OrderStatus = "accepted"
	StatusDeclined        OrderStatus = "declined"
	StatusPreparing       OrderStatus = "preparing"
	StatusOutForDelivery  OrderStatus = "out_for_delivery"
	StatusReachedLocation OrderStatus = "reached_location"
	StatusDelivered       OrderStatus = "delivered"
)

// Order 学生向一家店铺下的一笔订单。
// TotalAmount 与 DeliveryOTP 只在创建时写入，之后不再变更。
type Order struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	StudentID string      `gorm:"size:36;not null;index" json:"studentId"`
	ShopID    string      `gorm:"size:36;not null;index" json:"shopId"`
	CollegeID string      `gorm:"size:36;not null" json:"collegeId"`
	Status    OrderStatus `gorm:"size:32;not null;index" json:"status"`

	TotalAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"totalAmount"`
	DeliveryOTP     string          `gorm:"column:delivery_otp;size:4;not null" json:"-"`
	PaymentProofURL string          `gorm:"size:512;not null" json:"paymentProofUrl"`
	HostelBranch    string          `gorm:"size:128" json:"hostelBranch"`
	RollNo          *string         `gorm:"size:64" json:"rollNo,omitempty"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// OrderItem 下单时的商品快照，创建后不可变。
type OrderItem struct {
	ID      string `gorm:"primaryKey;size:36" json:"id"`
	OrderID string `gorm:"size:36;not null;index" json:"orderId"`

	ProductID string          `gorm:"size:36;not null;index" json:"productId"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
}

func (OrderItem) TableName() string { return "order_items" }

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}

// Subtotal = Price * Quantity
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
