package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"campus_market/internal/model"
	"campus_market/internal/testutil"
	"campus_market/pkg/logger"
	rediskey "campus_market/pkg/redis"

	"github.com/alicebob/miniredis/v2"
	rd "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type fakeFiles struct {
	deleted []string
	err     error
}

func (f *fakeFiles) Delete(url string) error {
	f.deleted = append(f.deleted, url)
	return f.err
}

func makeOrder(t *testing.T, db *gorm.DB, fx testutil.Fixture, createdAt time.Time, proof string) model.Order {
	t.Helper()
	o := model.Order{
		CreatedAt:       createdAt,
		StudentID:       fx.Student.ID,
		ShopID:          fx.Shop.ID,
		CollegeID:       fx.College.ID,
		Status:          model.StatusDelivered,
		TotalAmount:     decimal.NewFromInt(60),
		DeliveryOTP:     "1234",
		PaymentProofURL: proof,
		Items:           []model.OrderItem{{ProductID: fx.Products[0].ID, Quantity: 1, Price: decimal.NewFromInt(60)}},
	}
	if err := db.Create(&o).Error; err != nil {
		t.Fatalf("create order: %v", err)
	}
	oid := o.ID
	db.Create(&model.Notification{UserID: fx.StudentUser.ID, OrderID: &oid, Title: "Order delivered", Body: "b"})
	db.Create(&model.OrderStatusEvent{EventID: "ev-" + oid, OrderID: oid, Type: "order.created", ToStatus: model.StatusPendingAccept, OccurredAt: createdAt})
	return o
}

func count(db *gorm.DB, m any) int64 {
	var n int64
	db.Model(m).Count(&n)
	return n
}

func TestSweep(t *testing.T) {
	db := testutil.OpenDB(t)
	fx := testutil.Seed(t, db)
	now := time.Now()

	old := makeOrder(t, db, fx, now.Add(-8*24*time.Hour), "/uploads/old.png")
	fresh := makeOrder(t, db, fx, now.Add(-time.Hour), "/uploads/fresh.png")

	files := &fakeFiles{err: errors.New("disk busy")}
	s := NewSweeper(db, files, 7*24*time.Hour, logger.Discard())
	s.now = func() time.Time { return now }

	n, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("removed %d orders", n)
	}
	if len(files.deleted) != 1 || files.deleted[0] != old.PaymentProofURL {
		t.Fatalf("deleted files %v", files.deleted)
	}

	var left []model.Order
	db.Find(&left)
	if len(left) != 1 || left[0].ID != fresh.ID {
		t.Fatalf("orders left %+v", left)
	}
	if c := count(db.Where("order_id = ?", old.ID), &model.OrderItem{}); c != 0 {
		t.Fatalf("items left: %d", c)
	}
	if c := count(db.Where("order_id = ?", old.ID), &model.Notification{}); c != 0 {
		t.Fatalf("notifications left: %d", c)
	}
	if c := count(db.Where("order_id = ?", old.ID), &model.OrderStatusEvent{}); c != 0 {
		t.Fatalf("events left: %d", c)
	}
	if c := count(db.Where("order_id = ?", fresh.ID), &model.OrderItem{}); c != 1 {
		t.Fatalf("fresh order items touched: %d", c)
	}
}

func TestSweepSkipsWhenLocked(t *testing.T) {
	db := testutil.OpenDB(t)
	fx := testutil.Seed(t, db)
	makeOrder(t, db, fx, time.Now().Add(-30*24*time.Hour), "")

	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	if ok, _ := rediskey.TryLock(ctx, rdb, rediskey.SweepLockKey(), "other-instance", time.Minute); !ok {
		t.Fatal("could not take lock")
	}

	s := NewSweeper(db, nil, 7*24*time.Hour, logger.Discard()).WithLock(rdb)
	if n, err := s.Sweep(ctx); err != nil || n != 0 {
		t.Fatalf("locked sweep = %d, %v", n, err)
	}

	mr.Del(rediskey.SweepLockKey())
	if n, err := s.Sweep(ctx); err != nil || n != 1 {
		t.Fatalf("unlocked sweep = %d, %v", n, err)
	}
	if mr.Exists(rediskey.SweepLockKey()) {
		t.Fatal("lock not released after sweep")
	}
}
