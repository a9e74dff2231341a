package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"campus_market/internal/model"

	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// messageReader 是 kafka.Reader 中消费者用到的部分。
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer 消费 Kafka 订单事件，写入 order_status_events 时间线。
// offset 只在落库成功后提交，进程重启后未提交的消息会被重新投递。
type Consumer struct {
	r     messageReader
	db    *gorm.DB
	log   *slog.Logger
	apply func(ctx context.Context, db *gorm.DB, ev OrderEvent) error

	retryMin time.Duration
	retryMax time.Duration
}

func NewConsumer(brokers []string, topic, groupID string, db *gorm.DB, log *slog.Logger) *Consumer {
	return newConsumer(kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1e3,
		MaxBytes:    1e6,
		StartOffset: kafka.FirstOffset,
	}), db, log)
}

func newConsumer(r messageReader, db *gorm.DB, log *slog.Logger) *Consumer {
	return &Consumer{
		r:        r,
		db:       db,
		log:      log,
		apply:    Apply,
		retryMin: 200 * time.Millisecond,
		retryMax: 10 * time.Second,
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

func (c *Consumer) Run(ctx context.Context) {
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.log.Error("consumer fetch", slog.Any("err", err))
			}
			return
		}
		if err := c.handle(ctx, m); err != nil {
			return
		}
	}
}

// handle 落库成功或消息无法解析时提交 offset；落库失败原地退避重试，
// 不跳过这条消息，否则时间线会永久缺一条。
func (c *Consumer) handle(ctx context.Context, m kafka.Message) error {
	var ev OrderEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		c.log.Warn("consumer drop malformed message", slog.Int64("offset", m.Offset), slog.Any("err", err))
		return c.commit(ctx, m)
	}
	if err := ev.Validate(); err != nil {
		c.log.Warn("consumer drop invalid event", slog.Int64("offset", m.Offset), slog.Any("err", err))
		return c.commit(ctx, m)
	}

	backoff := c.retryMin
	for {
		err := c.apply(ctx, c.db, ev)
		if err == nil {
			return c.commit(ctx, m)
		}
		c.log.Warn("consumer apply failed, retrying",
			slog.String("event_id", ev.EventID), slog.Duration("backoff", backoff), slog.Any("err", err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.retryMax {
			backoff = c.retryMax
		}
	}
}

// commit 失败只记日志：消息稍后重投，Apply 按 event_id 去重。
func (c *Consumer) commit(ctx context.Context, m kafka.Message) error {
	if err := c.r.CommitMessages(ctx, m); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("consumer commit failed", slog.Int64("offset", m.Offset), slog.Any("err", err))
	}
	return nil
}

// Apply 把一条事件写入时间线。重复投递靠 event_id 唯一约束去重。
func Apply(ctx context.Context, db *gorm.DB, ev OrderEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	row := model.OrderStatusEvent{
		EventID:     ev.EventID,
		OrderID:     ev.OrderID,
		Type:        ev.Type,
		FromStatus:  ev.FromStatus,
		ToStatus:    ev.ToStatus,
		ActorUserID: ev.ActorUserID,
		OccurredAt:  ev.OccurredAt,
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("insert status event: %w", err)
	}
	return nil
}
