// seed 写入一套本地演示数据：学院、管理员、学生、店主与店铺商品，另有一家待审核店铺。
// 重复执行不会产生重复数据。
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"campus_market/internal/auth"
	"campus_market/internal/config"
	"campus_market/internal/database"
	"campus_market/internal/model"
	"campus_market/pkg/logger"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func main() {
	password := flag.String("password", "Campus@123", "password for every seeded user")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Options{Service: "campus-market-seed", Env: cfg.AppEnv, Level: cfg.LogLevel})

	db, err := database.Open(cfg.DBDriver, cfg.DBDSN, log)
	if err != nil {
		log.Error("open db", slog.Any("err", err))
		os.Exit(1)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Error("migrate", slog.Any("err", err))
		os.Exit(1)
	}

	hash, err := auth.HashPassword(*password)
	if err != nil {
		log.Error("hash password", slog.Any("err", err))
		os.Exit(1)
	}

	if err := db.Transaction(func(tx *gorm.DB) error { return seed(tx, hash) }); err != nil {
		log.Error("seed", slog.Any("err", err))
		os.Exit(1)
	}
	log.Info("seed done")
}

func seed(tx *gorm.DB, hash string) error {
	lnct := model.College{Name: "LNCT", Latitude: 23.2599, Longitude: 77.4126}
	tit := model.College{Name: "TIT", Latitude: 23.2156, Longitude: 77.4304}
	for _, c := range []*model.College{&lnct, &tit} {
		if err := tx.Where(model.College{Name: c.Name}).FirstOrCreate(c).Error; err != nil {
			return fmt.Errorf("college %s: %w", c.Name, err)
		}
	}

	admin, _, err := ensureUser(tx, "admin@campus.local", "Admin", model.RoleAdmin, hash)
	if err != nil {
		return err
	}
	if !admin.IsAdmin {
		if err := tx.Model(&admin).Update("is_admin", true).Error; err != nil {
			return err
		}
	}

	student, created, err := ensureUser(tx, "student@campus.local", "Demo Student", model.RoleStudent, hash)
	if err != nil {
		return err
	}
	if created {
		if err := tx.Create(&model.Student{UserID: student.ID, CollegeID: lnct.ID}).Error; err != nil {
			return fmt.Errorf("student profile: %w", err)
		}
	}

	// 待审核店铺，用于演示管理员审核流程
	pending, created, err := ensureUser(tx, "pending@campus.local", "Pending Owner", model.RoleShopOwner, hash)
	if err != nil {
		return err
	}
	if created {
		shop := model.Shop{
			Name:      "Chai Point",
			Address:   "Near TIT main gate",
			Phone:     "9000000002",
			Latitude:  23.2161,
			Longitude: 77.4311,
		}
		if err := tx.Create(&shop).Error; err != nil {
			return fmt.Errorf("pending shop: %w", err)
		}
		if err := tx.Create(&model.ShopCollege{ShopID: shop.ID, CollegeID: tit.ID}).Error; err != nil {
			return fmt.Errorf("pending shop college: %w", err)
		}
		if err := tx.Create(&model.ShopOwner{UserID: pending.ID, ShopID: &shop.ID}).Error; err != nil {
			return fmt.Errorf("pending shop owner: %w", err)
		}
	}

	owner, created, err := ensureUser(tx, "owner@campus.local", "Demo Owner", model.RoleShopOwner, hash)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	shop := model.Shop{
		Name:         "Night Canteen",
		Description:  "Snacks till 2am",
		Address:      "LNCT campus, Block C",
		Phone:        "9000000001",
		Latitude:     23.2603,
		Longitude:    77.4131,
		UpiID:        "canteen@upi",
		PaymentQRURL: "/uploads/canteen-qr.png",
		IsApproved:   true,
	}
	if err := tx.Create(&shop).Error; err != nil {
		return fmt.Errorf("shop: %w", err)
	}
	for _, c := range []model.College{lnct, tit} {
		if err := tx.Create(&model.ShopCollege{ShopID: shop.ID, CollegeID: c.ID}).Error; err != nil {
			return fmt.Errorf("shop college: %w", err)
		}
	}
	if err := tx.Create(&model.ShopOwner{UserID: owner.ID, ShopID: &shop.ID}).Error; err != nil {
		return fmt.Errorf("shop owner: %w", err)
	}

	products := []model.Product{
		{ShopID: shop.ID, Name: "Veg Sandwich", Price: decimal.RequireFromString("60")},
		{ShopID: shop.ID, Name: "Cold Coffee", Price: decimal.RequireFromString("45.50")},
		{ShopID: shop.ID, Name: "Maggi", Price: decimal.RequireFromString("35")},
		{ShopID: shop.ID, Name: "Paneer Roll", Price: decimal.RequireFromString("80")},
	}
	if err := tx.Create(&products).Error; err != nil {
		return fmt.Errorf("products: %w", err)
	}
	return nil
}

// ensureUser 按邮箱查找用户，不存在则创建；第二个返回值表示是否新建。
func ensureUser(tx *gorm.DB, email, name string, role model.Role, hash string) (model.User, bool, error) {
	var u model.User
	err := tx.Where("email = ?", email).Take(&u).Error
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return u, false, err
	}
	e := email
	u = model.User{Email: &e, Name: name, Role: role, Password: hash, IsAdmin: role == model.RoleAdmin}
	if err := tx.Create(&u).Error; err != nil {
		return u, false, fmt.Errorf("user %s: %w", email, err)
	}
	return u, true, nil
}
