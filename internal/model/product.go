package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Shop 店铺：需管理员审核通过且未封禁才对学生可见、可下单。
type Shop struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Name         string  `gorm:"size:128;not null" json:"name"`
	Description  string  `gorm:"size:512" json:"description"`
	Address      string  `gorm:"size:255" json:"address"`
	Phone        string  `gorm:"size:32" json:"phone"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	PhotoURL     string  `gorm:"size:512" json:"photoUrl"`
	UpiID        string  `gorm:"size:128" json:"upiId"`         // 学生转账用的收款账号
	PaymentQRURL string  `gorm:"size:512" json:"paymentQrUrl"` // 收款码图片
	IsApproved   bool    `gorm:"not null;default:false;index" json:"isApproved"`
	IsBanned     bool    `gorm:"not null;default:false;index" json:"isBanned"`
}

func (Shop) TableName() string { return "shops" }

func (s *Shop) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// ShopCollege 店铺服务的校区（多对多）。
type ShopCollege struct {
	ShopID    string `gorm:"primaryKey;size:36" json:"shopId"`
	CollegeID string `gorm:"primaryKey;size:36;index" json:"collegeId"`
}

func (ShopCollege) TableName() string { return "shop_colleges" }

// MissingColleges 返回 ids 中不存在的校区 id，保持入参顺序。
func MissingColleges(db *gorm.DB, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []string
	if err := db.Model(&College{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, err
	}
	ok := make(map[string]struct{}, len(found))
	for _, id := range found {
		ok[id] = struct{}{}
	}
	var missing []string
	for _, id := range ids {
		if _, hit := ok[id]; !hit {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// Product 商品；价格变动不影响已下单的 OrderItem 快照价。
type Product struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	ShopID   string          `gorm:"size:36;not null;index" json:"shopId"`
	Name     string          `gorm:"size:128;not null" json:"name"`
	Price    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	IsBanned bool            `gorm:"not null;default:false" json:"isBanned"`
}

func (Product) TableName() string { return "products" }

func (p *Product) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}
