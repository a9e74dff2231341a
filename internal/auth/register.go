package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"campus_market/internal/apperr"
	"campus_market/internal/model"

	"gorm.io/gorm"
)

// ShopApplication 开店资料；提交后店铺处于待审核状态，审核通过前学生不可见。
type ShopApplication struct {
	Name         string   `json:"shopName" binding:"required,max=128"`
	Address      string   `json:"shopAddress" binding:"required,max=255"`
	Latitude     *float64 `json:"shopLat" binding:"required"`
	Longitude    *float64 `json:"shopLng" binding:"required"`
	Phone        string   `json:"shopPhone" binding:"max=32"`
	PhotoURL     string   `json:"shopPhotoUrl" binding:"max=512"`
	UpiID        string   `json:"upiId" binding:"max=128"`
	PaymentQRURL string   `json:"paymentQrUrl" binding:"max=512"`
	CollegeIDs   []string `json:"collegeIds" binding:"required,min=1"`
}

func (a ShopApplication) validate(fields map[string]string) {
	if strings.TrimSpace(a.Name) == "" {
		fields["shopName"] = "required"
	}
	if strings.TrimSpace(a.Address) == "" {
		fields["shopAddress"] = "required"
	}
	if a.Latitude == nil || *a.Latitude < -90 || *a.Latitude > 90 {
		fields["shopLat"] = "must be between -90 and 90"
	}
	if a.Longitude == nil || *a.Longitude < -180 || *a.Longitude > 180 {
		fields["shopLng"] = "must be between -180 and 180"
	}
	if len(CleanIDs(a.CollegeIDs)) == 0 {
		fields["collegeIds"] = "select at least one college"
	}
}

// RegisterRequest 学生注册需选校区；店主可同时提交开店资料，也可稍后补交。
type RegisterRequest struct {
	Role     model.Role `json:"role" binding:"required,oneof=student shop_owner"`
	Email    string     `json:"email" binding:"required,email,max=255"`
	Phone    string     `json:"phone" binding:"required,len=10,numeric"`
	Password string     `json:"password" binding:"required,min=6,max=72"`
	Name     string     `json:"name" binding:"required,max=128"`

	CollegeID    string `json:"collegeId" binding:"max=36"`
	Section      string `json:"section" binding:"max=64"`
	HostelBranch string `json:"hostelBranch" binding:"max=128"`
	RollNo       string `json:"rollNo" binding:"max=64"`

	Shop *ShopApplication `json:"shop"`
}

func (r RegisterRequest) validate() error {
	fields := map[string]string{}
	if !strings.Contains(r.Email, "@") {
		fields["email"] = "must be a valid email"
	}
	if !isPhone(r.Phone) {
		fields["phone"] = "must be 10 digits"
	}
	if len(r.Password) < 6 {
		fields["password"] = "must be at least 6 characters"
	}
	if strings.TrimSpace(r.Name) == "" {
		fields["name"] = "required"
	}
	switch r.Role {
	case model.RoleStudent:
		if strings.TrimSpace(r.CollegeID) == "" {
			fields["collegeId"] = "required"
		}
		if r.Shop != nil {
			fields["shop"] = "only shop owners can open a shop"
		}
	case model.RoleShopOwner:
		if r.Shop != nil {
			r.Shop.validate(fields)
		}
	default:
		fields["role"] = "must be student or shop_owner"
	}
	if len(fields) > 0 {
		return apperr.Validation(fields)
	}
	return nil
}

func isPhone(s string) bool {
	if len(s) != 10 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Registrar 账号注册与店主补交开店资料。
type Registrar struct {
	db *gorm.DB
}

func NewRegistrar(db *gorm.DB) *Registrar {
	return &Registrar{db: db}
}

// Register 创建账号；店主附带的店铺为待审核状态。邮箱或手机号已占用时返回字段错误。
func (r *Registrar) Register(ctx context.Context, req RegisterRequest) (model.User, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	req.CollegeID = strings.TrimSpace(req.CollegeID)
	if err := req.validate(); err != nil {
		return model.User{}, err
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}

	email, phone := req.Email, req.Phone
	u := model.User{
		Email:    &email,
		Phone:    &phone,
		Password: hash,
		Name:     strings.TrimSpace(req.Name),
		Role:     req.Role,
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUnused(tx, "email", email); err != nil {
			return err
		}
		if err := ensureUnused(tx, "phone", phone); err != nil {
			return err
		}

		if req.Role == model.RoleStudent {
			missing, err := model.MissingColleges(tx, []string{req.CollegeID})
			if err != nil {
				return fmt.Errorf("check college: %w", err)
			}
			if len(missing) > 0 {
				return apperr.Field("collegeId", "college not found")
			}
		}

		if err := tx.Create(&u).Error; err != nil {
			return fmt.Errorf("create user: %w", err)
		}

		if req.Role == model.RoleStudent {
			st := model.Student{
				UserID:       u.ID,
				CollegeID:    req.CollegeID,
				Section:      strings.TrimSpace(req.Section),
				HostelBranch: strings.TrimSpace(req.HostelBranch),
				RollNo:       strings.TrimSpace(req.RollNo),
			}
			if err := tx.Create(&st).Error; err != nil {
				return fmt.Errorf("create student: %w", err)
			}
			return nil
		}

		owner := model.ShopOwner{UserID: u.ID}
		if req.Shop != nil {
			shop, err := createShop(tx, *req.Shop)
			if err != nil {
				return err
			}
			owner.ShopID = &shop.ID
		}
		if err := tx.Create(&owner).Error; err != nil {
			return fmt.Errorf("create shop owner: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.User{}, err
	}
	return u, nil
}

// CompleteShop 尚未开店的店主补交开店资料。
func (r *Registrar) CompleteShop(ctx context.Context, sess Session, app ShopApplication) (*model.Shop, error) {
	if err := RequireActive(sess); err != nil {
		return nil, err
	}
	if sess.Role != model.RoleShopOwner {
		return nil, apperr.Forbidden("shop owner account required")
	}
	if sess.ShopID != "" {
		return nil, apperr.Conflict("shop is already registered")
	}
	fields := map[string]string{}
	app.validate(fields)
	if len(fields) > 0 {
		return nil, apperr.Validation(fields)
	}

	var shop model.Shop
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if shop, err = createShop(tx, app); err != nil {
			return err
		}
		if sess.ShopOwnerID == "" {
			if err := tx.Create(&model.ShopOwner{UserID: sess.UserID, ShopID: &shop.ID}).Error; err != nil {
				return fmt.Errorf("create shop owner: %w", err)
			}
			return nil
		}
		// 并发提交只有一个能绑定成功
		res := tx.Model(&model.ShopOwner{}).
			Where("id = ? AND shop_id IS NULL", sess.ShopOwnerID).
			Update("shop_id", shop.ID)
		if res.Error != nil {
			return fmt.Errorf("link shop owner: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("shop is already registered")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &shop, nil
}

func createShop(tx *gorm.DB, app ShopApplication) (model.Shop, error) {
	ids := CleanIDs(app.CollegeIDs)
	missing, err := model.MissingColleges(tx, ids)
	if err != nil {
		return model.Shop{}, fmt.Errorf("check colleges: %w", err)
	}
	if len(missing) > 0 {
		return model.Shop{}, apperr.Field("collegeIds", "college not found: "+missing[0])
	}

	shop := model.Shop{
		Name:         strings.TrimSpace(app.Name),
		Address:      strings.TrimSpace(app.Address),
		Phone:        strings.TrimSpace(app.Phone),
		Latitude:     *app.Latitude,
		Longitude:    *app.Longitude,
		PhotoURL:     strings.TrimSpace(app.PhotoURL),
		UpiID:        strings.TrimSpace(app.UpiID),
		PaymentQRURL: strings.TrimSpace(app.PaymentQRURL),
	}
	if err := tx.Create(&shop).Error; err != nil {
		return model.Shop{}, fmt.Errorf("create shop: %w", err)
	}
	links := make([]model.ShopCollege, 0, len(ids))
	for _, id := range ids {
		links = append(links, model.ShopCollege{ShopID: shop.ID, CollegeID: id})
	}
	if err := tx.Create(&links).Error; err != nil {
		return model.Shop{}, fmt.Errorf("create shop colleges: %w", err)
	}
	return shop, nil
}

func ensureUnused(tx *gorm.DB, column, value string) error {
	var u model.User
	err := tx.Select("id").Where(column+" = ?", value).Take(&u).Error
	if err == nil {
		return apperr.Field(column, "already registered")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("check %s: %w", column, err)
	}
	return nil
}

// CleanIDs 去空白、去重，保持首次出现的顺序。
func CleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
