package event

import (
	"context"
	"encoding/json"
	"fmt"

	"wallet-signer/internal/service/mq"
)

// Publisher 把事件序列化为 JSON 发送到固定主题
type Publisher struct {
	producer mq.Producer
	topic    string
}

func NewPublisher(producer mq.Producer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic}
}

// Publish key 用于分区有序 (请求 ID / 交易 ID)
func (p *Publisher) Publish(ctx context.Context, key string, v interface{}) error {
	if p == nil || p.producer == nil {
		return nil
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.producer.Publish(ctx, p.topic, key, payload)
}
