package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"campus_market/internal/apperr"
	"campus_market/internal/model"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var errBadCredentials = apperr.Unauthorized("invalid email/phone or password")

// HashPassword 以 bcrypt.DefaultCost 哈希密码。
func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Authenticator 校验登录凭证。
type Authenticator struct {
	db *gorm.DB
}

func NewAuthenticator(db *gorm.DB) *Authenticator {
	return &Authenticator{db: db}
}

// Login 支持邮箱或手机号登录；含 @ 视为邮箱。
func (a *Authenticator) Login(ctx context.Context, loginID, password string) (model.User, error) {
	loginID = strings.TrimSpace(loginID)
	if loginID == "" || password == "" {
		return model.User{}, apperr.Validation(map[string]string{"login": "email/phone and password required"})
	}

	column := "phone"
	if strings.Contains(loginID, "@") {
		column = "email"
	}

	var u model.User
	err := a.db.WithContext(ctx).Where(column+" = ?", loginID).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.User{}, errBadCredentials
		}
		return model.User{}, fmt.Errorf("load user: %w", err)
	}
	if u.Password == "" {
		return model.User{}, apperr.Unauthorized("this account has no password login")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return model.User{}, errBadCredentials
	}
	return u, nil
}
