// Package testutil holds shared fixtures for package tests.
package testutil

import (
	"fmt"
	"testing"

	"campus_market/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Password is the plaintext password of every fixture user.
const Password = "Campus@123"

// OpenDB returns a migrated, private in-memory sqlite database.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := model.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Fixture is a small campus: two colleges, one student, one approved shop with
// its owner and products, a second shop with its own owner, and an admin.
type Fixture struct {
	College      model.College
	OtherCollege model.College

	StudentUser model.User
	Student     model.Student

	OwnerUser model.User
	Owner     model.ShopOwner
	Shop      model.Shop
	Products  []model.Product

	OtherOwnerUser model.User
	OtherOwner     model.ShopOwner
	OtherShop      model.Shop
	OtherProduct   model.Product

	AdminUser model.User
}

func Seed(t testing.TB, db *gorm.DB) Fixture {
	t.Helper()
	var f Fixture

	f.College = model.College{Name: "LNCT", Latitude: 23.2599, Longitude: 77.4126}
	f.OtherCollege = model.College{Name: "TIT", Latitude: 23.26, Longitude: 77.42}
	mustCreate(t, db, &f.College)
	mustCreate(t, db, &f.OtherCollege)

	f.StudentUser = NewUser(t, "student@campus.local", model.RoleStudent)
	mustCreate(t, db, &f.StudentUser)
	f.Student = model.Student{UserID: f.StudentUser.ID, CollegeID: f.College.ID}
	mustCreate(t, db, &f.Student)

	f.Shop = model.Shop{Name: "Night Canteen", IsApproved: true}
	mustCreate(t, db, &f.Shop)
	mustCreate(t, db, &model.ShopCollege{ShopID: f.Shop.ID, CollegeID: f.College.ID})
	f.OwnerUser = NewUser(t, "owner@campus.local", model.RoleShopOwner)
	mustCreate(t, db, &f.OwnerUser)
	f.Owner = model.ShopOwner{UserID: f.OwnerUser.ID, ShopID: &f.Shop.ID}
	mustCreate(t, db, &f.Owner)

	f.Products = []model.Product{
		{ShopID: f.Shop.ID, Name: "Sandwich", Price: decimal.RequireFromString("60")},
		{ShopID: f.Shop.ID, Name: "Cold Coffee", Price: decimal.RequireFromString("45.50")},
		{ShopID: f.Shop.ID, Name: "Maggi", Price: decimal.RequireFromString("35.25")},
	}
	for i := range f.Products {
		mustCreate(t, db, &f.Products[i])
	}

	f.OtherShop = model.Shop{Name: "Juice Corner", IsApproved: true}
	mustCreate(t, db, &f.OtherShop)
	mustCreate(t, db, &model.ShopCollege{ShopID: f.OtherShop.ID, CollegeID: f.College.ID})
	f.OtherOwnerUser = NewUser(t, "juice@campus.local", model.RoleShopOwner)
	mustCreate(t, db, &f.OtherOwnerUser)
	f.OtherOwner = model.ShopOwner{UserID: f.OtherOwnerUser.ID, ShopID: &f.OtherShop.ID}
	mustCreate(t, db, &f.OtherOwner)
	f.OtherProduct = model.Product{ShopID: f.OtherShop.ID, Name: "Mango Shake", Price: decimal.RequireFromString("50")}
	mustCreate(t, db, &f.OtherProduct)

	f.AdminUser = NewUser(t, "admin@campus.local", model.RoleAdmin)
	f.AdminUser.IsAdmin = true
	mustCreate(t, db, &f.AdminUser)

	return f
}

// NewUser builds (without saving) a user whose password is Password.
func NewUser(t testing.TB, email string, role model.Role) model.User {
	t.Helper()
	// MinCost 让测试保持快速
	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	e := email
	return model.User{Email: &e, Password: string(hash), Name: email, Role: role}
}

func mustCreate(t testing.TB, db *gorm.DB, v any) {
	t.Helper()
	if err := db.Create(v).Error; err != nil {
		t.Fatalf("create %T: %v", v, err)
	}
}
