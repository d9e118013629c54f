package mq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wallet-signer/pkg/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaConsumer 实现 Consumer 接口
type KafkaConsumer struct {
	brokers []string
	groupID string

	mu      sync.Mutex
	readers []*kafka.Reader
}

// NewKafkaConsumer 创建 Kafka 消费者
func NewKafkaConsumer(brokers []string, groupID string) *KafkaConsumer {
	return &KafkaConsumer{
		brokers: brokers,
		groupID: groupID,
	}
}

// Subscribe 订阅 Kafka 主题
func (c *KafkaConsumer) Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error {
	// GroupID: 同组内同一分区只有一个消费者；新组从最新位置开始
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.brokers,
		GroupID:     c.groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
		StartOffset: kafka.LastOffset,
	})

	c.mu.Lock()
	c.readers = append(c.readers, reader)
	c.mu.Unlock()

	logger.Info("[Kafka MQ] subscribed", zap.String("topic", topic), zap.String("group", c.groupID))

	go c.consumeLoop(ctx, reader, topic, handler)
	return nil
}

func (c *KafkaConsumer) consumeLoop(ctx context.Context, reader *kafka.Reader, topic string, handler func(msg *Message) error) {
	for {
		// 1. 读取消息 (阻塞直到有消息)
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("[Kafka MQ] fetch failed", zap.String("topic", topic), zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		// 2. 构造通用消息
		msg := &Message{
			ID:       fmt.Sprintf("%d/%d", m.Partition, m.Offset),
			Topic:    topic,
			Key:      string(m.Key),
			Payload:  m.Value,
			Metadata: headers(m.Headers),
		}

		// 3. 调用业务处理函数
		if err := handler(msg); err != nil {
			// Kafka 不支持单条 Nack，失败消息不提交 Offset，由下一次 rebalance 重新投递
			logger.Warn("[Kafka MQ] handler failed", zap.String("topic", topic), zap.String("key", msg.Key), zap.Error(err))
			continue
		}

		// 4. 手动提交 Offset
		if err := reader.CommitMessages(ctx, m); err != nil {
			logger.Warn("[Kafka MQ] commit failed", zap.Error(err))
		}
	}
}

func headers(hs []kafka.Header) map[string]string {
	if len(hs) == 0 {
		return nil
	}
	out := make(map[string]string, len(hs))
	for _, h := range hs {
		out[h.Key] = string(h.Value)
	}
	return out
}

// Close 关闭消费者
func (c *KafkaConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for _, r := range c.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.readers = nil
	return firstErr
}
