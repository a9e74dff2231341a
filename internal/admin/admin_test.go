package admin

import (
	"context"
	"testing"

	"campus_market/internal/apperr"
	"campus_market/internal/auth"
	"campus_market/internal/model"
	"campus_market/internal/testutil"
	"campus_market/pkg/logger"

	"github.com/shopspring/decimal"
)

type countingCache struct{ n int }

func (c *countingCache) InvalidateNearby(context.Context) { c.n++ }

type fakeFiles struct{ deleted []string }

func (f *fakeFiles) Delete(url string) error {
	f.deleted = append(f.deleted, url)
	return nil
}

func TestAdminModeration(t *testing.T) {
	db := testutil.OpenDB(t)
	f := testutil.Seed(t, db)
	ctx := context.Background()
	cache := &countingCache{}
	files := &fakeFiles{}
	svc := NewService(db, files, cache, logger.Discard())

	resolve := func(id string) auth.Session {
		s, err := auth.NewResolver(db).Resolve(ctx, id)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		return s
	}
	admin := resolve(f.AdminUser.ID)
	owner := resolve(f.OwnerUser.ID)

	t.Run("only admins", func(t *testing.T) {
		if _, err := svc.ApproveShop(ctx, owner, f.Shop.ID); !apperr.Is(err, apperr.KindForbidden) {
			t.Fatalf("got %v", err)
		}
		if _, err := svc.SetUserBanned(ctx, auth.Session{}, f.StudentUser.ID, true); !apperr.Is(err, apperr.KindUnauthorized) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("approve", func(t *testing.T) {
		db.Model(&f.OtherShop).Update("is_approved", false)
		pending, err := svc.ListShops(ctx, admin, "pending")
		if err != nil || len(pending) != 1 || pending[0].ID != f.OtherShop.ID {
			t.Fatalf("pending = %+v, %v", pending, err)
		}
		shop, err := svc.ApproveShop(ctx, admin, f.OtherShop.ID)
		if err != nil || !shop.IsApproved {
			t.Fatalf("ApproveShop = %+v, %v", shop, err)
		}
		if cache.n != 1 {
			t.Fatalf("cache invalidations = %d", cache.n)
		}
		if _, err := svc.ApproveShop(ctx, admin, "missing"); !apperr.Is(err, apperr.KindNotFound) {
			t.Fatalf("missing: %v", err)
		}
	})

	t.Run("ban user", func(t *testing.T) {
		u, err := svc.SetUserBanned(ctx, admin, f.StudentUser.ID, true)
		if err != nil || !u.IsBanned {
			t.Fatalf("ban = %+v, %v", u, err)
		}
		if s := resolve(f.StudentUser.ID); !s.IsBanned {
			t.Fatal("ban not visible to the next session resolve")
		}
		if _, err := svc.SetUserBanned(ctx, admin, f.StudentUser.ID, false); err != nil {
			t.Fatalf("unban: %v", err)
		}
		if _, err := svc.SetUserBanned(ctx, admin, f.AdminUser.ID, true); !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("self ban: %v", err)
		}
	})

	t.Run("ban product", func(t *testing.T) {
		p, err := svc.SetProductBanned(ctx, admin, f.Products[0].ID, true)
		if err != nil || !p.IsBanned {
			t.Fatalf("ban product = %+v, %v", p, err)
		}
	})

	t.Run("reject shop", func(t *testing.T) {
		o := model.Order{
			StudentID: f.Student.ID, ShopID: f.Shop.ID, CollegeID: f.College.ID,
			Status: model.StatusPendingAccept, TotalAmount: decimal.NewFromInt(60), DeliveryOTP: "0042",
			PaymentProofURL: "/uploads/proof.png",
			Items:           []model.OrderItem{{ProductID: f.Products[1].ID, Quantity: 1, Price: decimal.NewFromInt(60)}},
		}
		if err := db.Create(&o).Error; err != nil {
			t.Fatalf("create order: %v", err)
		}

		if err := svc.RejectShop(ctx, admin, f.Shop.ID); err != nil {
			t.Fatalf("RejectShop: %v", err)
		}
		var n int64
		db.Model(&model.Shop{}).Where("id = ?", f.Shop.ID).Count(&n)
		if n != 0 {
			t.Fatal("shop still exists")
		}
		db.Model(&model.Order{}).Where("shop_id = ?", f.Shop.ID).Count(&n)
		if n != 0 {
			t.Fatal("orders still exist")
		}
		db.Model(&model.Product{}).Where("shop_id = ?", f.Shop.ID).Count(&n)
		if n != 0 {
			t.Fatal("products still exist")
		}
		if len(files.deleted) != 1 || files.deleted[0] != "/uploads/proof.png" {
			t.Fatalf("deleted files %v", files.deleted)
		}
		if s := resolve(f.OwnerUser.ID); s.ShopID != "" {
			t.Fatalf("owner still linked to %s", s.ShopID)
		}
	})
}

func TestCollegeManagement(t *testing.T) {
	db := testutil.OpenDB(t)
	f := testutil.Seed(t, db)
	ctx := context.Background()
	svc := NewService(db, &fakeFiles{}, &countingCache{}, logger.Discard())

	admin, err := auth.NewResolver(db).Resolve(ctx, f.AdminUser.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	student, _ := auth.NewResolver(db).Resolve(ctx, f.StudentUser.ID)
	lat, lng := 23.18, 77.46

	if _, err := svc.CreateCollege(ctx, student, CollegeInput{Name: "SIRT", Latitude: &lat, Longitude: &lng}); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("student creating college: %v", err)
	}

	c, err := svc.CreateCollege(ctx, admin, CollegeInput{Name: " SIRT ", Latitude: &lat, Longitude: &lng})
	if err != nil {
		t.Fatalf("CreateCollege: %v", err)
	}
	if c.Name != "SIRT" || c.Latitude != lat {
		t.Fatalf("college = %+v", c)
	}
	if _, err := svc.CreateCollege(ctx, admin, CollegeInput{Name: "SIRT", Latitude: &lat, Longitude: &lng}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("duplicate name: %v", err)
	}
	badLat := 91.0
	if _, err := svc.CreateCollege(ctx, admin, CollegeInput{Name: "Far", Latitude: &badLat, Longitude: &lng}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("bad latitude: %v", err)
	}

	list, err := svc.ListColleges(ctx, admin)
	if err != nil {
		t.Fatalf("ListColleges: %v", err)
	}
	if len(list) != 3 || list[0].Name != "LNCT" || list[1].Name != "SIRT" || list[2].Name != "TIT" {
		t.Fatalf("colleges not sorted by name: %+v", list)
	}

	// 被学生与店铺引用的校区不能删除
	if err := svc.DeleteCollege(ctx, admin, f.College.ID); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("delete referenced college: %v", err)
	}
	if err := svc.DeleteCollege(ctx, admin, c.ID); err != nil {
		t.Fatalf("DeleteCollege: %v", err)
	}
	if err := svc.DeleteCollege(ctx, admin, c.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("delete twice: %v", err)
	}
	var n int64
	db.Model(&model.College{}).Count(&n)
	if n != 2 {
		t.Fatalf("colleges left = %d", n)
	}
}
