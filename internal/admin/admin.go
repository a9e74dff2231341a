// Package admin 管理员审核店铺、封禁用户与商品。
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"campus_market/internal/apperr"
	"campus_market/internal/auth"
	"campus_market/internal/cleanup"
	"campus_market/internal/model"

	"gorm.io/gorm"
)

// CacheInvalidator 店铺可见性变化后清理学生侧缓存（shop.Service）。
type CacheInvalidator interface {
	InvalidateNearby(ctx context.Context)
}

type Service struct {
	db    *gorm.DB
	files cleanup.FileRemover
	cache CacheInvalidator
	log   *slog.Logger
}

func NewService(db *gorm.DB, files cleanup.FileRemover, cache CacheInvalidator, log *slog.Logger) *Service {
	return &Service{db: db, files: files, cache: cache, log: log}
}

// ListShops status: pending / approved / 空表示全部。
func (s *Service) ListShops(ctx context.Context, sess auth.Session, status string) ([]model.Shop, error) {
	if err := auth.RequireAdmin(sess); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Order("created_at DESC")
	switch status {
	case "":
	case "pending":
		q = q.Where("is_approved = ?", false)
	case "approved":
		q = q.Where("is_approved = ?", true)
	default:
		return nil, apperr.Field("status", "must be pending or approved")
	}
	var out []model.Shop
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list shops: %w", err)
	}
	return out, nil
}

func (s *Service) ApproveShop(ctx context.Context, sess auth.Session, shopID string) (*model.Shop, error) {
	if err := auth.RequireAdmin(sess); err != nil {
		return nil, err
	}
	shop, err := s.loadShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	if !shop.IsApproved {
		if err := s.db.WithContext(ctx).Model(&shop).Update("is_approved", true).Error; err != nil {
			return nil, fmt.Errorf("approve shop: %w", err)
		}
		shop.IsApproved = true
		s.invalidate(ctx)
	}
	return &shop, nil
}

// RejectShop 删除店铺及其订单、商品与校区关联，店主解除绑定后可重新开店。
func (s *Service) RejectShop(ctx context.Context, sess auth.Session, shopID string) error {
	if err := auth.RequireAdmin(sess); err != nil {
		return err
	}
	shop, err := s.loadShop(ctx, shopID)
	if err != nil {
		return err
	}

	var orders []model.Order
	if err := s.db.WithContext(ctx).Select("id", "payment_proof_url").Where("shop_id = ?", shop.ID).Find(&orders).Error; err != nil {
		return fmt.Errorf("load shop orders: %w", err)
	}
	ids := make([]string, 0, len(orders))
	urls := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
		urls = append(urls, o.PaymentProofURL)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := cleanup.PurgeOrders(tx, ids); err != nil {
			return err
		}
		if err := tx.Where("shop_id = ?", shop.ID).Delete(&model.Product{}).Error; err != nil {
			return fmt.Errorf("delete products: %w", err)
		}
		if err := tx.Where("shop_id = ?", shop.ID).Delete(&model.ShopCollege{}).Error; err != nil {
			return fmt.Errorf("delete shop colleges: %w", err)
		}
		if err := tx.Model(&model.ShopOwner{}).Where("shop_id = ?", shop.ID).Update("shop_id", nil).Error; err != nil {
			return fmt.Errorf("unlink shop owner: %w", err)
		}
		if err := tx.Delete(&model.Shop{}, "id = ?", shop.ID).Error; err != nil {
			return fmt.Errorf("delete shop: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	cleanup.RemoveFiles(ctx, s.files, s.log, urls)
	s.invalidate(ctx)
	s.log.Info("shop rejected", slog.String("shop_id", shop.ID), slog.Int("orders_removed", len(ids)), slog.String("admin_id", sess.UserID))
	return nil
}

// SetUserBanned 封禁 / 解封用户；封禁立即生效，因为会话每次请求都重新加载用户状态。
func (s *Service) SetUserBanned(ctx context.Context, sess auth.Session, userID string, banned bool) (*model.User, error) {
	if err := auth.RequireAdmin(sess); err != nil {
		return nil, err
	}
	if userID == sess.UserID {
		return nil, apperr.Field("id", "cannot change your own ban status")
	}
	db := s.db.WithContext(ctx)
	var u model.User
	if err := db.First(&u, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if u.IsBanned != banned {
		if err := db.Model(&u).Update("is_banned", banned).Error; err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
		u.IsBanned = banned
	}
	return &u, nil
}

func (s *Service) SetProductBanned(ctx context.Context, sess auth.Session, productID string, banned bool) (*model.Product, error) {
	if err := auth.RequireAdmin(sess); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	var p model.Product
	if err := db.First(&p, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("product not found")
		}
		return nil, fmt.Errorf("load product: %w", err)
	}
	if p.IsBanned != banned {
		if err := db.Model(&p).Update("is_banned", banned).Error; err != nil {
			return nil, fmt.Errorf("update product: %w", err)
		}
		p.IsBanned = banned
		s.invalidate(ctx)
	}
	return &p, nil
}

func (s *Service) loadShop(ctx context.Context, shopID string) (model.Shop, error) {
	var shop model.Shop
	if err := s.db.WithContext(ctx).First(&shop, "id = ?", shopID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Shop{}, apperr.NotFound("shop not found")
		}
		return model.Shop{}, fmt.Errorf("load shop: %w", err)
	}
	return shop, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.InvalidateNearby(ctx)
	}
}
