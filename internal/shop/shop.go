// Package shop 学生侧店铺浏览（Redis 缓存）与店主商品管理。
package shop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"campus_market/internal/apperr"
	"campus_market/internal/auth"
	"campus_market/internal/model"
	rediskey "campus_market/pkg/redis"

	rd "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// NearbyShop 可下单店铺，附带服务校区与在售商品。
type NearbyShop struct {
	model.Shop
	Colleges []model.College `json:"colleges"`
	Products []model.Product `json:"products"`
}

type Service struct {
	db       *gorm.DB
	rdb      *rd.Client
	cacheTTL time.Duration
	log      *slog.Logger
}

// NewService rdb 为 nil 时不走缓存。
func NewService(db *gorm.DB, rdb *rd.Client, cacheTTL time.Duration, log *slog.Logger) *Service {
	return &Service{db: db, rdb: rdb, cacheTTL: cacheTTL, log: log}
}

// Nearby 返回服务某校区、已审核且未封禁的店铺。
func (s *Service) Nearby(ctx context.Context, sess auth.Session, collegeID string) ([]NearbyShop, error) {
	if err := auth.RequireStudent(sess); err != nil {
		return nil, err
	}
	collegeID = strings.TrimSpace(collegeID)
	if collegeID == "" {
		return nil, apperr.Field("collegeId", "required")
	}

	key := rediskey.NearbyShopsKey(collegeID)
	if s.rdb != nil {
		var cached []NearbyShop
		found, err := rediskey.GetJSON(ctx, s.rdb, key, &cached)
		if err != nil {
			s.log.Warn("nearby shops cache read failed", slog.String("college_id", collegeID), slog.Any("err", err))
		} else if found {
			return cached, nil
		}
	}

	out, err := s.loadNearby(ctx, collegeID)
	if err != nil {
		return nil, err
	}

	if s.rdb != nil {
		if err := rediskey.SetJSON(ctx, s.rdb, key, out, s.cacheTTL); err != nil {
			s.log.Warn("nearby shops cache write failed", slog.String("college_id", collegeID), slog.Any("err", err))
		}
	}
	return out, nil
}

func (s *Service) loadNearby(ctx context.Context, collegeID string) ([]NearbyShop, error) {
	db := s.db.WithContext(ctx)

	var college model.College
	if err := db.First(&college, "id = ?", collegeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("college not found")
		}
		return nil, fmt.Errorf("load college: %w", err)
	}

	var shopIDs []string
	if err := db.Model(&model.ShopCollege{}).Where("college_id = ?", collegeID).Pluck("shop_id", &shopIDs).Error; err != nil {
		return nil, fmt.Errorf("load shop colleges: %w", err)
	}
	out := []NearbyShop{}
	if len(shopIDs) == 0 {
		return out, nil
	}

	var shops []model.Shop
	if err := db.Where("id IN ? AND is_approved = ? AND is_banned = ?", shopIDs, true, false).
		Order("name").Find(&shops).Error; err != nil {
		return nil, fmt.Errorf("load shops: %w", err)
	}
	return s.assemble(db, shops)
}

// assemble 给店铺挂上服务校区与未封禁商品。
func (s *Service) assemble(db *gorm.DB, shops []model.Shop) ([]NearbyShop, error) {
	out := make([]NearbyShop, 0, len(shops))
	if len(shops) == 0 {
		return out, nil
	}
	ids := make([]string, 0, len(shops))
	for _, sh := range shops {
		ids = append(ids, sh.ID)
	}

	var products []model.Product
	if err := db.Where("shop_id IN ? AND is_banned = ?", ids, false).Order("name").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	var links []model.ShopCollege
	if err := db.Where("shop_id IN ?", ids).Find(&links).Error; err != nil {
		return nil, fmt.Errorf("load shop colleges: %w", err)
	}
	collegeIDs := make([]string, 0, len(links))
	for _, l := range links {
		collegeIDs = append(collegeIDs, l.CollegeID)
	}
	var colleges []model.College
	if len(collegeIDs) > 0 {
		if err := db.Where("id IN ?", collegeIDs).Order("name").Find(&colleges).Error; err != nil {
			return nil, fmt.Errorf("load colleges: %w", err)
		}
	}

	idx := make(map[string]int, len(shops))
	for i, sh := range shops {
		idx[sh.ID] = i
		out = append(out, NearbyShop{Shop: sh, Colleges: []model.College{}, Products: []model.Product{}})
	}
	for _, p := range products {
		out[idx[p.ShopID]].Products = append(out[idx[p.ShopID]].Products, p)
	}
	served := make(map[string][]string, len(ids))
	for _, l := range links {
		served[l.CollegeID] = append(served[l.CollegeID], l.ShopID)
	}
	for _, c := range colleges {
		for _, shopID := range served[c.ID] {
			out[idx[shopID]].Colleges = append(out[idx[shopID]].Colleges, c)
		}
	}
	return out, nil
}

// InvalidateNearby 店铺或商品变更后清空全部校区缓存。
func (s *Service) InvalidateNearby(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := rediskey.DeletePattern(ctx, s.rdb, rediskey.NearbyShopsPattern()); err != nil {
		s.log.Warn("nearby shops cache invalidation failed", slog.Any("err", err))
	}
}

// ListProducts 店主查看自己店铺的全部商品（含被封禁的）。
func (s *Service) ListProducts(ctx context.Context, sess auth.Session) ([]model.Product, error) {
	if err := auth.RequireShopOwner(sess); err != nil {
		return nil, err
	}
	var out []model.Product
	if err := s.db.WithContext(ctx).Where("shop_id = ?", sess.ShopID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

type ProductInput struct {
	Name  string          `json:"name" binding:"required,max=128"`
	Price decimal.Decimal `json:"price"`
}

func (s *Service) CreateProduct(ctx context.Context, sess auth.Session, in ProductInput) (*model.Product, error) {
	if err := auth.RequireShopOwner(sess); err != nil {
		return nil, err
	}
	fields := map[string]string{}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		fields["name"] = "required"
	}
	if !in.Price.IsPositive() {
		fields["price"] = "must be greater than 0"
	}
	if len(fields) > 0 {
		return nil, apperr.Validation(fields)
	}

	p := model.Product{ShopID: sess.ShopID, Name: name, Price: in.Price.Round(2)}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	s.InvalidateNearby(ctx)
	return &p, nil
}

// ProductPatch 为 nil 的字段保持不变。
type ProductPatch struct {
	Name  *string          `json:"name"`
	Price *decimal.Decimal `json:"price"`
}

// UpdateProduct 改价只影响之后的订单，已下单明细保留快照价。
func (s *Service) UpdateProduct(ctx context.Context, sess auth.Session, productID string, patch ProductPatch) (*model.Product, error) {
	if err := auth.RequireShopOwner(sess); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	var p model.Product
	if err := db.Where("id = ? AND shop_id = ?", productID, sess.ShopID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("product not found")
		}
		return nil, fmt.Errorf("load product: %w", err)
	}

	updates := map[string]any{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperr.Field("name", "must not be empty")
		}
		updates["name"] = name
	}
	if patch.Price != nil {
		if !patch.Price.IsPositive() {
			return nil, apperr.Field("price", "must be greater than 0")
		}
		updates["price"] = patch.Price.Round(2)
	}
	if len(updates) == 0 {
		return &p, nil
	}
	if err := db.Model(&p).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	if err := db.First(&p, "id = ?", p.ID).Error; err != nil {
		return nil, fmt.Errorf("reload product: %w", err)
	}
	s.InvalidateNearby(ctx)
	return &p, nil
}
