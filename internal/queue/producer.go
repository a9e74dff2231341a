package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// HeaderEventType 消费端可按事件类型过滤而不必解 JSON
const HeaderEventType = "event_type"

// Producer 把订单事件写入 Kafka，Relay 是唯一调用方。
type Producer struct {
	w *kafka.Writer
}

// NewProducer 按订单 id 分区（Hash），同一订单的事件在分区内有序；
// 等全部 ISR 确认后才算写入成功，Relay 才会 ack Stream 消息。
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			MaxAttempts:            5,
			WriteTimeout:           5 * time.Second,
			ReadTimeout:            5 * time.Second,
			BatchTimeout:           20 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *Producer) Close() error { return p.w.Close() }

// Publish 同步写入一条订单事件。
func (p *Producer) Publish(ctx context.Context, ev OrderEvent) error {
	msg, err := eventMessage(ev)
	if err != nil {
		return err
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", ev.EventID, err)
	}
	return nil
}

func eventMessage(ev OrderEvent) (kafka.Message, error) {
	if err := ev.Validate(); err != nil {
		return kafka.Message{}, err
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode order event: %w", err)
	}
	return kafka.Message{
		Key:     []byte(ev.OrderID),
		Value:   b,
		Time:    ev.OccurredAt,
		Headers: []kafka.Header{{Key: HeaderEventType, Value: []byte(ev.Type)}},
	}, nil
}
