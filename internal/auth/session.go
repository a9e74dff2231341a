package auth

import (
	"context"
	"errors"
	"fmt"

	"campus_market/internal/apperr"
	"campus_market/internal/model"

	"gorm.io/gorm"
)

// Session 是一次请求的调用方身份，显式传给每个业务操作。
type Session struct {
	UserID      string     `json:"id"`
	Name        string     `json:"name"`
	Role        model.Role `json:"role"`
	IsAdmin     bool       `json:"isAdmin"`
	IsBanned    bool       `json:"isBanned"`
	StudentID   string     `json:"studentId,omitempty"`
	CollegeID   string     `json:"collegeId,omitempty"`
	ShopOwnerID string     `json:"shopOwnerId,omitempty"`
	ShopID      string     `json:"shopId,omitempty"`

	// TokenID 用于登出时吊销令牌
	TokenID string `json:"-"`
}

func (s Session) Admin() bool { return s.IsAdmin || s.Role == model.RoleAdmin }

// Resolver 从用户表加载最新的角色与封禁状态。
type Resolver struct {
	db *gorm.DB
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

func (r *Resolver) Resolve(ctx context.Context, userID string) (Session, error) {
	db := r.db.WithContext(ctx)

	var u model.User
	if err := db.First(&u, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Session{}, apperr.Unauthorized("session user no longer exists")
		}
		return Session{}, fmt.Errorf("load user: %w", err)
	}
	s := Session{
		UserID:   u.ID,
		Name:     u.Name,
		Role:     u.Role,
		IsAdmin:  u.IsAdmin,
		IsBanned: u.IsBanned,
	}

	var st model.Student
	err := db.Where("user_id = ?", u.ID).Limit(1).Find(&st).Error
	if err != nil {
		return Session{}, fmt.Errorf("load student: %w", err)
	}
	s.StudentID, s.CollegeID = st.ID, st.CollegeID

	var so model.ShopOwner
	if err := db.Where("user_id = ?", u.ID).Limit(1).Find(&so).Error; err != nil {
		return Session{}, fmt.Errorf("load shop owner: %w", err)
	}
	s.ShopOwnerID = so.ID
	if so.ShopID != nil {
		s.ShopID = *so.ShopID
	}
	return s, nil
}
