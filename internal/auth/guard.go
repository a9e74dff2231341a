package auth

import (
	"campus_market/internal/apperr"
	"campus_market/internal/model"
)

// RequireStudent 下单等学生操作的前置校验。
func RequireStudent(s Session) error {
	if s.UserID == "" {
		return apperr.Unauthorized("login required")
	}
	if s.Role != model.RoleStudent || s.StudentID == "" {
		return apperr.Forbidden("student account required")
	}
	if s.IsBanned {
		return apperr.Forbidden("account is banned")
	}
	return nil
}

// RequireShopOwner 店主操作：封禁的店主同样拒绝。
func RequireShopOwner(s Session) error {
	if s.UserID == "" {
		return apperr.Unauthorized("login required")
	}
	if s.Role != model.RoleShopOwner {
		return apperr.Forbidden("shop owner account required")
	}
	if s.IsBanned {
		return apperr.Forbidden("account is banned")
	}
	if s.ShopID == "" {
		return apperr.Forbidden("shop registration is incomplete")
	}
	return nil
}

func RequireAdmin(s Session) error {
	if s.UserID == "" {
		return apperr.Unauthorized("login required")
	}
	if !s.Admin() {
		return apperr.Forbidden("admin only")
	}
	return nil
}

// RequireActive 任意已登录且未封禁的用户。
func RequireActive(s Session) error {
	if s.UserID == "" {
		return apperr.Unauthorized("login required")
	}
	if s.IsBanned {
		return apperr.Forbidden("account is banned")
	}
	return nil
}
