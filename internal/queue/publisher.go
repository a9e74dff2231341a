package queue

import (
	"context"
	"fmt"

	rd "github.com/redis/go-redis/v9"
)

// StreamPublisher 把订单事件追加到 Redis Stream（outbox），由 Relay 异步转 Kafka。
type StreamPublisher struct {
	rdb    *rd.Client
	stream string
	maxLen int64
}

func NewStreamPublisher(rdb *rd.Client, stream string) *StreamPublisher {
	return &StreamPublisher{rdb: rdb, stream: stream, maxLen: 100000}
}

func (p *StreamPublisher) Publish(ctx context.Context, ev OrderEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	err := p.rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: ev.streamValues(),
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}
