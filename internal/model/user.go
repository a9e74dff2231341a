package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role 是用户在平台上的身份。
type Role string

const (
	RoleStudent   Role = "student"
	RoleShopOwner Role = "shop_owner"
	RoleAdmin     Role = "admin"
)

// User 登录主体；学生/店主的业务资料分别挂在 Student / ShopOwner 上。
type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Email    *string `gorm:"size:255;uniqueIndex" json:"email,omitempty"`
	Phone    *string `gorm:"size:32;uniqueIndex" json:"phone,omitempty"`
	Password string  `gorm:"size:255" json:"-"` // bcrypt
	Name     string  `gorm:"size:128" json:"name"`
	Role     Role    `gorm:"size:16;not null;default:student" json:"role"`
	IsAdmin  bool    `gorm:"not null;default:false" json:"isAdmin"`
	IsBanned bool    `gorm:"not null;default:false" json:"isBanned"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(*gorm.DB) error {
	assignID(&u.ID)
	return nil
}

// College 校区，学生注册时绑定一个。
type College struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	Name      string  `gorm:"size:128;uniqueIndex;not null" json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (College) TableName() string { return "colleges" }

func (c *College) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}

type Student struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	UserID       string `gorm:"size:36;uniqueIndex;not null" json:"userId"`
	CollegeID    string `gorm:"size:36;index;not null" json:"collegeId"`
	Section      string `gorm:"size:64" json:"section"`
	HostelBranch string `gorm:"size:128" json:"hostelBranch"`
	RollNo       string `gorm:"size:64" json:"rollNo"`
}

func (Student) TableName() string { return "students" }

func (s *Student) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// ShopOwner 一个店主最多管理一家店；ShopID 为空表示还未完成开店资料。
type ShopOwner struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	UserID string  `gorm:"size:36;uniqueIndex;not null" json:"userId"`
	ShopID *string `gorm:"size:36;uniqueIndex" json:"shopId,omitempty"`
}

func (ShopOwner) TableName() string { return "shop_owners" }

func (o *ShopOwner) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

func assignID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}
