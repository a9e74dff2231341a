package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"campus_market/internal/apperr"
	"campus_market/internal/model"

	"gorm.io/gorm"
)

// listLimit 通知列表最多返回条数
const listLimit = 50

// Message 一条待投递的站内通知。
type Message struct {
	UserID  string
	Title   string
	Body    string
	OrderID string
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Notify 持久化一条通知。
func (s *Service) Notify(ctx context.Context, m Message) error {
	if strings.TrimSpace(m.UserID) == "" || strings.TrimSpace(m.Title) == "" {
		return fmt.Errorf("notification needs a recipient and a title")
	}
	n := model.Notification{
		UserID: m.UserID,
		Title:  m.Title,
		Body:   m.Body,
	}
	if m.OrderID != "" {
		id := m.OrderID
		n.OrderID = &id
	}
	if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// List 返回用户最近的通知，新的在前。
func (s *Service) List(ctx context.Context, userID string, unreadOnly bool) ([]model.Notification, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var out []model.Notification
	if err := q.Order("created_at DESC").Limit(listLimit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return n, nil
}

// MarkRead 只能标记自己的通知；别人的通知按不存在处理。
func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	var n model.Notification
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&n).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("notification not found")
		}
		return fmt.Errorf("load notification: %w", err)
	}
	if n.Read {
		return nil
	}
	if err := s.db.WithContext(ctx).Model(&n).Update("is_read", true).Error; err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, fmt.Errorf("mark all read: %w", res.Error)
	}
	return res.RowsAffected, nil
}
