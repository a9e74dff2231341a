package shop

import (
	"context"
	"testing"
	"time"

	"campus_market/internal/apperr"
	"campus_market/internal/auth"
	"campus_market/internal/model"
	"campus_market/internal/testutil"
	"campus_market/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	rd "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

func setup(t *testing.T) (*Service, testutil.Fixture, func(string) auth.Session) {
	t.Helper()
	db := testutil.OpenDB(t)
	f := testutil.Seed(t, db)
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	resolve := func(userID string) auth.Session {
		s, err := auth.NewResolver(db).Resolve(context.Background(), userID)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		return s
	}
	return NewService(db, rdb, time.Minute, logger.Discard()), f, resolve
}

func TestNearby(t *testing.T) {
	svc, f, resolve := setup(t)
	ctx := context.Background()
	student := resolve(f.StudentUser.ID)

	svc.db.Model(&f.Products[2]).Update("is_banned", true)

	shops, err := svc.Nearby(ctx, student, f.College.ID)
	if err != nil {
		t.Fatalf("Nearby: %v", err)
	}
	if len(shops) != 2 {
		t.Fatalf("expected 2 shops, got %d", len(shops))
	}
	var canteen NearbyShop
	for _, s := range shops {
		if s.ID == f.Shop.ID {
			canteen = s
		}
	}
	if len(canteen.Products) != 2 {
		t.Fatalf("banned product listed: %+v", canteen.Products)
	}
	if len(canteen.Colleges) != 1 || canteen.Colleges[0].ID != f.College.ID {
		t.Fatalf("colleges %+v", canteen.Colleges)
	}

	t.Run("served from cache until invalidated", func(t *testing.T) {
		svc.db.Model(&f.OtherShop).Update("is_approved", false)
		cached, err := svc.Nearby(ctx, student, f.College.ID)
		if err != nil || len(cached) != 2 {
			t.Fatalf("cached = %d, %v", len(cached), err)
		}
		if !cached[0].Products[0].Price.IsPositive() {
			t.Fatalf("cached price lost: %+v", cached[0].Products[0])
		}

		svc.InvalidateNearby(ctx)
		fresh, err := svc.Nearby(ctx, student, f.College.ID)
		if err != nil || len(fresh) != 1 || fresh[0].ID != f.Shop.ID {
			t.Fatalf("fresh = %+v, %v", fresh, err)
		}
	})

	t.Run("other college has none", func(t *testing.T) {
		got, err := svc.Nearby(ctx, student, f.OtherCollege.ID)
		if err != nil || len(got) != 0 {
			t.Fatalf("got %+v, %v", got, err)
		}
	})

	t.Run("errors", func(t *testing.T) {
		if _, err := svc.Nearby(ctx, student, ""); !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("empty college: %v", err)
		}
		if _, err := svc.Nearby(ctx, student, "missing"); !apperr.Is(err, apperr.KindNotFound) {
			t.Fatalf("missing college: %v", err)
		}
		if _, err := svc.Nearby(ctx, resolve(f.OwnerUser.ID), f.College.ID); !apperr.Is(err, apperr.KindForbidden) {
			t.Fatalf("owner: %v", err)
		}
	})
}

func TestProductManagement(t *testing.T) {
	svc, f, resolve := setup(t)
	ctx := context.Background()
	owner := resolve(f.OwnerUser.ID)

	p, err := svc.CreateProduct(ctx, owner, ProductInput{Name: " Paneer Roll ", Price: decimal.RequireFromString("70")})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if p.ShopID != f.Shop.ID || p.Name != "Paneer Roll" {
		t.Fatalf("got %+v", p)
	}

	list, err := svc.ListProducts(ctx, owner)
	if err != nil || len(list) != 4 {
		t.Fatalf("list = %d, %v", len(list), err)
	}

	if _, err := svc.CreateProduct(ctx, owner, ProductInput{Name: "Free", Price: decimal.Zero}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("zero price: %v", err)
	}
	if _, err := svc.CreateProduct(ctx, resolve(f.StudentUser.ID), ProductInput{Name: "x", Price: decimal.NewFromInt(1)}); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("student: %v", err)
	}

	t.Run("price change keeps order snapshot", func(t *testing.T) {
		item := model.OrderItem{OrderID: "order-1", ProductID: f.Products[0].ID, Quantity: 1, Price: f.Products[0].Price}
		if err := svc.db.Create(&item).Error; err != nil {
			t.Fatalf("create item: %v", err)
		}

		price := decimal.RequireFromString("65")
		updated, err := svc.UpdateProduct(ctx, owner, f.Products[0].ID, ProductPatch{Price: &price})
		if err != nil {
			t.Fatalf("UpdateProduct: %v", err)
		}
		if !updated.Price.Equal(price) || updated.Name != f.Products[0].Name {
			t.Fatalf("got %+v", updated)
		}

		var stored model.OrderItem
		svc.db.First(&stored, "id = ?", item.ID)
		if !stored.Price.Equal(decimal.RequireFromString("60")) {
			t.Fatalf("snapshot price changed to %s", stored.Price)
		}
	})

	t.Run("foreign product", func(t *testing.T) {
		name := "hijack"
		_, err := svc.UpdateProduct(ctx, owner, f.OtherProduct.ID, ProductPatch{Name: &name})
		if !apperr.Is(err, apperr.KindNotFound) {
			t.Fatalf("got %v", err)
		}
	})
}
