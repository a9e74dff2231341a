package shop

import (
	"context"
	"errors"
	"testing"

	"campus_market/internal/apperr"
	"campus_market/internal/model"
)

func TestProfile(t *testing.T) {
	svc, f, resolve := setup(t)
	ctx := context.Background()
	owner := resolve(f.OwnerUser.ID)

	if _, err := svc.Profile(ctx, resolve(f.StudentUser.ID)); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("student profile: %v", err)
	}

	p, err := svc.Profile(ctx, owner)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if p.ID != f.Shop.ID || len(p.Colleges) != 1 || p.Colleges[0].ID != f.College.ID {
		t.Fatalf("profile = %+v", p)
	}

	// 先缓存附近店铺，改资料后缓存应失效
	if _, err := svc.Nearby(ctx, resolve(f.StudentUser.ID), f.College.ID); err != nil {
		t.Fatalf("Nearby: %v", err)
	}

	name, qr, lat := "  Night Canteen 2 ", "/uploads/new-qr.png", 23.3
	p, err = svc.UpdateProfile(ctx, owner, ProfilePatch{Name: &name, PaymentQRURL: &qr, Latitude: &lat})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if p.Name != "Night Canteen 2" || p.PaymentQRURL != qr || p.Latitude != lat || !p.IsApproved {
		t.Fatalf("updated profile = %+v", p)
	}

	shops, err := svc.Nearby(ctx, resolve(f.StudentUser.ID), f.College.ID)
	if err != nil {
		t.Fatalf("Nearby: %v", err)
	}
	found := false
	for _, s := range shops {
		if s.ID == f.Shop.ID {
			found = s.Name == "Night Canteen 2"
		}
	}
	if !found {
		t.Fatal("nearby cache still serves the old shop name")
	}

	blank, badLng := " ", 200.0
	_, err = svc.UpdateProfile(ctx, owner, ProfilePatch{Name: &blank, Longitude: &badLng})
	var e *apperr.Error
	if !errors.As(err, &e) || e.Fields["name"] == "" || e.Fields["longitude"] == "" {
		t.Fatalf("invalid patch: %v", err)
	}
}

func TestSetColleges(t *testing.T) {
	svc, f, resolve := setup(t)
	ctx := context.Background()
	owner := resolve(f.OwnerUser.ID)
	student := resolve(f.StudentUser.ID)

	got, err := svc.SetColleges(ctx, owner, []string{f.OtherCollege.ID, " ", f.OtherCollege.ID})
	if err != nil {
		t.Fatalf("SetColleges: %v", err)
	}
	if len(got) != 1 || got[0].ID != f.OtherCollege.ID {
		t.Fatalf("colleges = %+v", got)
	}

	// 不再服务原校区：学生列表里消失，下单校验随之生效
	shops, err := svc.Nearby(ctx, student, f.College.ID)
	if err != nil {
		t.Fatalf("Nearby: %v", err)
	}
	for _, s := range shops {
		if s.ID == f.Shop.ID {
			t.Fatal("shop still listed for a college it no longer serves")
		}
	}

	if _, err := svc.SetColleges(ctx, owner, []string{"missing"}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("unknown college: %v", err)
	}
	if list, _ := svc.Colleges(ctx, owner); len(list) != 1 {
		t.Fatalf("failed update changed colleges: %+v", list)
	}

	got, err = svc.SetColleges(ctx, owner, []string{})
	if err != nil || len(got) != 0 {
		t.Fatalf("clear colleges: %+v %v", got, err)
	}
	var n int64
	svc.db.Model(&model.ShopCollege{}).Where("shop_id = ?", f.Shop.ID).Count(&n)
	if n != 0 {
		t.Fatalf("links left = %d", n)
	}
}

func TestDetail(t *testing.T) {
	svc, f, _ := setup(t)
	ctx := context.Background()

	svc.db.Model(&f.Products[0]).Update("is_banned", true)
	d, err := svc.Detail(ctx, f.Shop.ID)
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	if len(d.Products) != 2 || len(d.Colleges) != 1 {
		t.Fatalf("detail = %+v", d)
	}

	svc.db.Model(&f.OtherShop).Update("is_approved", false)
	if _, err := svc.Detail(ctx, f.OtherShop.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("unapproved shop: %v", err)
	}
	svc.db.Model(&f.Shop).Update("is_banned", true)
	if _, err := svc.Detail(ctx, f.Shop.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("banned shop: %v", err)
	}
	if _, err := svc.Detail(ctx, "missing"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("unknown shop: %v", err)
	}
}
