// Package cleanup 按保留期删除过期订单及其关联数据与支付凭证文件。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"campus_market/internal/model"
	rediskey "campus_market/pkg/redis"

	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// batchSize 每批删除的订单数
const batchSize = 200

// FileRemover 删除上传文件（upload.Store）。
type FileRemover interface {
	Delete(url string) error
}

// PurgeOrders 删除订单及其明细、通知、时间线。需在调用方的事务内执行。
func PurgeOrders(tx *gorm.DB, orderIDs []string) error {
	if len(orderIDs) == 0 {
		return nil
	}
	if err := tx.Where("order_id IN ?", orderIDs).Delete(&model.OrderItem{}).Error; err != nil {
		return fmt.Errorf("delete order items: %w", err)
	}
	if err := tx.Where("order_id IN ?", orderIDs).Delete(&model.Notification{}).Error; err != nil {
		return fmt.Errorf("delete notifications: %w", err)
	}
	if err := tx.Where("order_id IN ?", orderIDs).Delete(&model.OrderStatusEvent{}).Error; err != nil {
		return fmt.Errorf("delete status events: %w", err)
	}
	if err := tx.Where("id IN ?", orderIDs).Delete(&model.Order{}).Error; err != nil {
		return fmt.Errorf("delete orders: %w", err)
	}
	return nil
}

// RemoveFiles 尽力删除凭证文件，失败只记日志。
func RemoveFiles(ctx context.Context, files FileRemover, log *slog.Logger, urls []string) {
	if files == nil {
		return
	}
	for _, u := range urls {
		if u == "" {
			continue
		}
		if err := files.Delete(u); err != nil {
			log.WarnContext(ctx, "delete payment proof failed", slog.String("url", u), slog.Any("err", err))
		}
	}
}

type Sweeper struct {
	db        *gorm.DB
	files     FileRemover
	retention time.Duration
	log       *slog.Logger

	rdb     *rd.Client
	lockTTL time.Duration

	now func() time.Time
}

func NewSweeper(db *gorm.DB, files FileRemover, retention time.Duration, log *slog.Logger) *Sweeper {
	return &Sweeper{
		db:        db,
		files:     files,
		retention: retention,
		log:       log,
		lockTTL:   10 * time.Minute,
		now:       time.Now,
	}
}

// WithLock 多实例部署时用 Redis 锁保证同一时刻只有一个实例在清理。
func (s *Sweeper) WithLock(rdb *rd.Client) *Sweeper {
	s.rdb = rdb
	return s
}

// Sweep 删除创建时间早于保留期的订单，返回删除条数。
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	if s.rdb != nil {
		token := uuid.NewString()
		ok, err := rediskey.TryLock(ctx, s.rdb, rediskey.SweepLockKey(), token, s.lockTTL)
		if err != nil {
			return 0, fmt.Errorf("acquire sweep lock: %w", err)
		}
		if !ok {
			s.log.Info("cleanup skipped, another instance holds the lock")
			return 0, nil
		}
		defer func() {
			if err := rediskey.ReleaseLockIfMatch(context.WithoutCancel(ctx), s.rdb, rediskey.SweepLockKey(), token); err != nil {
				s.log.Warn("release sweep lock failed", slog.Any("err", err))
			}
		}()
	}

	cutoff := s.now().Add(-s.retention)
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		var batch []model.Order
		err := s.db.WithContext(ctx).
			Select("id", "payment_proof_url").
			Where("created_at < ?", cutoff).
			Order("created_at").
			Limit(batchSize).
			Find(&batch).Error
		if err != nil {
			return total, fmt.Errorf("find expired orders: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		ids := make([]string, 0, len(batch))
		urls := make([]string, 0, len(batch))
		for _, o := range batch {
			ids = append(ids, o.ID)
			urls = append(urls, o.PaymentProofURL)
		}
		if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return PurgeOrders(tx, ids)
		}); err != nil {
			return total, err
		}
		// 先删库再删文件：文件删除失败只会留下孤儿文件，不会出现引用不存在文件的订单
		RemoveFiles(ctx, s.files, s.log, urls)
		total += len(batch)

		if len(batch) < batchSize {
			break
		}
	}

	if total > 0 {
		s.log.Info("expired orders removed", slog.Int("count", total), slog.Time("cutoff", cutoff))
	}
	return total, nil
}

// Run 按固定间隔清理，ctx 取消后退出。
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.log.Error("cleanup sweep", slog.Any("err", err))
			}
		}
	}
}
