package shop

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"campus_market/internal/apperr"
	"campus_market/internal/auth"
	"campus_market/internal/model"

	"gorm.io/gorm"
)

// Profile 店主视角的店铺资料，含审核状态与服务校区。
type Profile struct {
	model.Shop
	Colleges []model.College `json:"colleges"`
}

func (s *Service) Profile(ctx context.Context, sess auth.Session) (*Profile, error) {
	if err := auth.RequireShopOwner(sess); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	var shop model.Shop
	if err := db.First(&shop, "id = ?", sess.ShopID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("shop not found")
		}
		return nil, fmt.Errorf("load shop: %w", err)
	}
	colleges, err := servedColleges(db, shop.ID)
	if err != nil {
		return nil, err
	}
	return &Profile{Shop: shop, Colleges: colleges}, nil
}

// ProfilePatch 为 nil 的字段保持不变；审核与封禁状态不可由店主修改。
type ProfilePatch struct {
	Name         *string  `json:"name" binding:"omitempty,max=128"`
	Description  *string  `json:"description" binding:"omitempty,max=512"`
	Address      *string  `json:"address" binding:"omitempty,max=255"`
	Phone        *string  `json:"phone" binding:"omitempty,max=32"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	PhotoURL     *string  `json:"photoUrl" binding:"omitempty,max=512"`
	UpiID        *string  `json:"upiId" binding:"omitempty,max=128"`
	PaymentQRURL *string  `json:"paymentQrUrl" binding:"omitempty,max=512"`
}

func (s *Service) UpdateProfile(ctx context.Context, sess auth.Session, patch ProfilePatch) (*Profile, error) {
	if err := auth.RequireShopOwner(sess); err != nil {
		return nil, err
	}

	fields := map[string]string{}
	updates := map[string]any{}
	if patch.Name != nil {
		if name := strings.TrimSpace(*patch.Name); name == "" {
			fields["name"] = "must not be empty"
		} else {
			updates["name"] = name
		}
	}
	if patch.Latitude != nil {
		if *patch.Latitude < -90 || *patch.Latitude > 90 {
			fields["latitude"] = "must be between -90 and 90"
		} else {
			updates["latitude"] = *patch.Latitude
		}
	}
	if patch.Longitude != nil {
		if *patch.Longitude < -180 || *patch.Longitude > 180 {
			fields["longitude"] = "must be between -180 and 180"
		} else {
			updates["longitude"] = *patch.Longitude
		}
	}
	for col, v := range map[string]*string{
		"description":    patch.Description,
		"address":        patch.Address,
		"phone":          patch.Phone,
		"photo_url":      patch.PhotoURL,
		"upi_id":         patch.UpiID,
		"payment_qr_url": patch.PaymentQRURL,
	} {
		if v != nil {
			updates[col] = strings.TrimSpace(*v)
		}
	}
	if len(fields) > 0 {
		return nil, apperr.Validation(fields)
	}

	if len(updates) > 0 {
		err := s.db.WithContext(ctx).Model(&model.Shop{}).Where("id = ?", sess.ShopID).Updates(updates).Error
		if err != nil {
			return nil, fmt.Errorf("update shop: %w", err)
		}
		s.InvalidateNearby(ctx)
	}
	return s.Profile(ctx, sess)
}

// Colleges 店主店铺当前服务的校区。
func (s *Service) Colleges(ctx context.Context, sess auth.Session) ([]model.College, error) {
	if err := auth.RequireShopOwner(sess); err != nil {
		return nil, err
	}
	return servedColleges(s.db.WithContext(ctx), sess.ShopID)
}

// SetColleges 整体替换服务校区；空列表表示暂停接单的覆盖范围。
func (s *Service) SetColleges(ctx context.Context, sess auth.Session, collegeIDs []string) ([]model.College, error) {
	if err := auth.RequireShopOwner(sess); err != nil {
		return nil, err
	}
	ids := auth.CleanIDs(collegeIDs)
	db := s.db.WithContext(ctx)

	missing, err := model.MissingColleges(db, ids)
	if err != nil {
		return nil, fmt.Errorf("check colleges: %w", err)
	}
	if len(missing) > 0 {
		return nil, apperr.Field("collegeIds", "college not found: "+missing[0])
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("shop_id = ?", sess.ShopID).Delete(&model.ShopCollege{}).Error; err != nil {
			return fmt.Errorf("clear shop colleges: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}
		links := make([]model.ShopCollege, 0, len(ids))
		for _, id := range ids {
			links = append(links, model.ShopCollege{ShopID: sess.ShopID, CollegeID: id})
		}
		if err := tx.Create(&links).Error; err != nil {
			return fmt.Errorf("create shop colleges: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.InvalidateNearby(ctx)
	return servedColleges(db, sess.ShopID)
}

// Detail 公开店铺页：只展示已审核且未封禁的店铺，否则按不存在处理。
func (s *Service) Detail(ctx context.Context, shopID string) (*NearbyShop, error) {
	db := s.db.WithContext(ctx)
	var shop model.Shop
	err := db.Where("id = ? AND is_approved = ? AND is_banned = ?", shopID, true, false).First(&shop).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("shop not found")
		}
		return nil, fmt.Errorf("load shop: %w", err)
	}
	out, err := s.assemble(db, []model.Shop{shop})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

func servedColleges(db *gorm.DB, shopID string) ([]model.College, error) {
	out := []model.College{}
	err := db.Joins("JOIN shop_colleges ON shop_colleges.college_id = colleges.id").
		Where("shop_colleges.shop_id = ?", shopID).
		Order("colleges.name").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("load shop colleges: %w", err)
	}
	return out, nil
}
