package auth

import (
	"context"
	"errors"
	"testing"

	"campus_market/internal/apperr"
	"campus_market/internal/model"
	"campus_market/internal/testutil"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func float(v float64) *float64 { return &v }

func application(collegeIDs ...string) *ShopApplication {
	return &ShopApplication{
		Name:         "Tea Stall",
		Address:      "Gate 2",
		Latitude:     float(23.25),
		Longitude:    float(77.41),
		Phone:        "9000000009",
		PaymentQRURL: "/uploads/qr.png",
		CollegeIDs:   collegeIDs,
	}
}

func count(t *testing.T, db *gorm.DB, m any) int64 {
	t.Helper()
	var n int64
	if err := db.Model(m).Count(&n).Error; err != nil {
		t.Fatalf("count %T: %v", m, err)
	}
	return n
}

func TestHashPasswordUsesDefaultCost(t *testing.T) {
	hash, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil || cost != bcrypt.DefaultCost {
		t.Fatalf("cost = %d (%v), want %d", cost, err, bcrypt.DefaultCost)
	}
}

func TestRegisterStudent(t *testing.T) {
	db := testutil.OpenDB(t)
	f := testutil.Seed(t, db)
	r := NewRegistrar(db)
	ctx := context.Background()

	u, err := r.Register(ctx, RegisterRequest{
		Role:      model.RoleStudent,
		Email:     "new@campus.local",
		Phone:     "9876543210",
		Password:  "secret1",
		Name:      "New Student",
		CollegeID: f.College.ID,
		Section:   "B",
		RollNo:    "0101CS231",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	var st model.Student
	if err := db.First(&st, "user_id = ?", u.ID).Error; err != nil {
		t.Fatalf("student row: %v", err)
	}
	if st.CollegeID != f.College.ID || st.Section != "B" || st.RollNo != "0101CS231" {
		t.Fatalf("student = %+v", st)
	}
	// 注册后可直接用手机号登录
	if _, err := NewAuthenticator(db).Login(ctx, "9876543210", "secret1"); err != nil {
		t.Fatalf("login after register: %v", err)
	}
	sess, err := NewResolver(db).Resolve(ctx, u.ID)
	if err != nil || RequireStudent(sess) != nil {
		t.Fatalf("session %+v: %v", sess, err)
	}
}

func TestRegisterRejected(t *testing.T) {
	db := testutil.OpenDB(t)
	f := testutil.Seed(t, db)
	r := NewRegistrar(db)

	valid := func() RegisterRequest {
		return RegisterRequest{
			Role:      model.RoleStudent,
			Email:     "fresh@campus.local",
			Phone:     "9123456780",
			Password:  "secret1",
			Name:      "Fresh",
			CollegeID: f.College.ID,
		}
	}
	cases := []struct {
		name   string
		mutate func(r *RegisterRequest)
		field  string
	}{
		{"duplicate email", func(r *RegisterRequest) { r.Email = *f.StudentUser.Email }, "email"},
		{"short phone", func(r *RegisterRequest) { r.Phone = "12345" }, "phone"},
		{"short password", func(r *RegisterRequest) { r.Password = "abc" }, "password"},
		{"unknown college", func(r *RegisterRequest) { r.CollegeID = "missing" }, "collegeId"},
		{"student without college", func(r *RegisterRequest) { r.CollegeID = "" }, "collegeId"},
		{"student with shop", func(r *RegisterRequest) { r.Shop = application(f.College.ID) }, "shop"},
		{"admin role", func(r *RegisterRequest) { r.Role = model.RoleAdmin }, "role"},
		{"owner shop without colleges", func(r *RegisterRequest) {
			r.Role, r.CollegeID, r.Shop = model.RoleShopOwner, "", application()
		}, "collegeIds"},
		{"owner shop with unknown college", func(r *RegisterRequest) {
			r.Role, r.CollegeID, r.Shop = model.RoleShopOwner, "", application("missing")
		}, "collegeIds"},
	}

	users := count(t, db, &model.User{})
	shops := count(t, db, &model.Shop{})
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid()
			tc.mutate(&req)
			_, err := r.Register(context.Background(), req)
			var e *apperr.Error
			if !errors.As(err, &e) || e.Kind != apperr.KindValidation {
				t.Fatalf("got %v, want validation error", err)
			}
			if _, hit := e.Fields[tc.field]; !hit {
				t.Fatalf("fields = %v, want %s", e.Fields, tc.field)
			}
			if count(t, db, &model.User{}) != users || count(t, db, &model.Shop{}) != shops {
				t.Fatal("rejected registration left rows behind")
			}
		})
	}

	t.Run("duplicate phone", func(t *testing.T) {
		first := valid()
		if _, err := r.Register(context.Background(), first); err != nil {
			t.Fatalf("first: %v", err)
		}
		second := valid()
		second.Email = "other@campus.local"
		_, err := r.Register(context.Background(), second)
		var e *apperr.Error
		if !errors.As(err, &e) || e.Fields["phone"] == "" {
			t.Fatalf("got %v, want phone field error", err)
		}
	})
}

func TestRegisterShopOwner(t *testing.T) {
	db := testutil.OpenDB(t)
	f := testutil.Seed(t, db)
	r := NewRegistrar(db)
	ctx := context.Background()

	u, err := r.Register(ctx, RegisterRequest{
		Role:     model.RoleShopOwner,
		Email:    "stall@campus.local",
		Phone:    "9000011111",
		Password: "secret1",
		Name:     "Stall Owner",
		Shop:     application(f.College.ID, f.OtherCollege.ID, f.College.ID),
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	sess, err := NewResolver(db).Resolve(ctx, u.ID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if sess.ShopID == "" {
		t.Fatal("owner not linked to shop")
	}

	var shop model.Shop
	if err := db.First(&shop, "id = ?", sess.ShopID).Error; err != nil {
		t.Fatalf("shop: %v", err)
	}
	if shop.IsApproved || shop.Address != "Gate 2" || shop.PaymentQRURL != "/uploads/qr.png" || shop.Latitude != 23.25 {
		t.Fatalf("shop = %+v", shop)
	}
	var links int64
	db.Model(&model.ShopCollege{}).Where("shop_id = ?", shop.ID).Count(&links)
	if links != 2 {
		t.Fatalf("shop colleges = %d, want 2", links)
	}
}

func TestCompleteShop(t *testing.T) {
	db := testutil.OpenDB(t)
	f := testutil.Seed(t, db)
	r := NewRegistrar(db)
	ctx := context.Background()

	u, err := r.Register(ctx, RegisterRequest{
		Role:     model.RoleShopOwner,
		Email:    "later@campus.local",
		Phone:    "9000022222",
		Password: "secret1",
		Name:     "Later Owner",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	sess, err := NewResolver(db).Resolve(ctx, u.ID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if sess.ShopOwnerID == "" || sess.ShopID != "" {
		t.Fatalf("session before completing = %+v", sess)
	}
	if err := RequireShopOwner(sess); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("owner without shop passed guard: %v", err)
	}

	student, _ := NewResolver(db).Resolve(ctx, f.StudentUser.ID)
	if _, err := r.CompleteShop(ctx, student, *application(f.College.ID)); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("student completing shop: %v", err)
	}
	if _, err := r.CompleteShop(ctx, sess, ShopApplication{CollegeIDs: []string{f.College.ID}}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("empty application: %v", err)
	}

	shop, err := r.CompleteShop(ctx, sess, *application(f.OtherCollege.ID))
	if err != nil {
		t.Fatalf("CompleteShop: %v", err)
	}
	if shop.IsApproved {
		t.Fatal("completed shop must wait for approval")
	}
	after, _ := NewResolver(db).Resolve(ctx, u.ID)
	if after.ShopID != shop.ID {
		t.Fatalf("owner linked to %q, want %q", after.ShopID, shop.ID)
	}

	// 旧会话重复提交：绑定 CAS 失败，事务回滚不留孤儿店铺
	shops := count(t, db, &model.Shop{})
	if _, err := r.CompleteShop(ctx, sess, *application(f.College.ID)); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("second completion: %v", err)
	}
	if count(t, db, &model.Shop{}) != shops {
		t.Fatal("conflicting completion left a shop behind")
	}
	if _, err := r.CompleteShop(ctx, after, *application(f.College.ID)); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("owner with shop: %v", err)
	}
}
