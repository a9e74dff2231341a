package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"campus_market/internal/apperr"
	"campus_market/internal/auth"
	"campus_market/internal/model"

	"gorm.io/gorm"
)

func (s *Service) ListColleges(ctx context.Context, sess auth.Session) ([]model.College, error) {
	if err := auth.RequireAdmin(sess); err != nil {
		return nil, err
	}
	out := []model.College{}
	if err := s.db.WithContext(ctx).Order("name").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list colleges: %w", err)
	}
	return out, nil
}

type CollegeInput struct {
	Name      string   `json:"name" binding:"required,max=128"`
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
}

func (s *Service) CreateCollege(ctx context.Context, sess auth.Session, in CollegeInput) (*model.College, error) {
	if err := auth.RequireAdmin(sess); err != nil {
		return nil, err
	}
	fields := map[string]string{}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		fields["name"] = "required"
	}
	if in.Latitude == nil || *in.Latitude < -90 || *in.Latitude > 90 {
		fields["latitude"] = "must be between -90 and 90"
	}
	if in.Longitude == nil || *in.Longitude < -180 || *in.Longitude > 180 {
		fields["longitude"] = "must be between -180 and 180"
	}
	if len(fields) > 0 {
		return nil, apperr.Validation(fields)
	}

	db := s.db.WithContext(ctx)
	var n int64
	if err := db.Model(&model.College{}).Where("name = ?", name).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("check college name: %w", err)
	}
	if n > 0 {
		return nil, apperr.Field("name", "college already exists")
	}
	c := model.College{Name: name, Latitude: *in.Latitude, Longitude: *in.Longitude}
	if err := db.Create(&c).Error; err != nil {
		return nil, fmt.Errorf("create college: %w", err)
	}
	return &c, nil
}

// DeleteCollege 仍被学生、店铺或订单引用的校区不能删除。
func (s *Service) DeleteCollege(ctx context.Context, sess auth.Session, collegeID string) error {
	if err := auth.RequireAdmin(sess); err != nil {
		return err
	}
	db := s.db.WithContext(ctx)
	var c model.College
	if err := db.First(&c, "id = ?", collegeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("college not found")
		}
		return fmt.Errorf("load college: %w", err)
	}

	for _, ref := range []any{&model.Student{}, &model.ShopCollege{}, &model.Order{}} {
		var n int64
		if err := db.Model(ref).Where("college_id = ?", c.ID).Count(&n).Error; err != nil {
			return fmt.Errorf("check college references: %w", err)
		}
		if n > 0 {
			return apperr.Field("id", "college is still used by students, shops or orders")
		}
	}
	if err := db.Delete(&model.College{}, "id = ?", c.ID).Error; err != nil {
		return fmt.Errorf("delete college: %w", err)
	}
	s.log.Info("college deleted", slog.String("college_id", c.ID), slog.String("admin_id", sess.UserID))
	return nil
}
