package joint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"wallet-signer/internal/event"
	"wallet-signer/internal/service/mq"
	"wallet-signer/pkg/errno"
)

// ResponseBridge 消费远端参与者的答复并写入 Registry
type ResponseBridge struct {
	consumer mq.Consumer
	registry *Registry
	topic    string
}

func NewResponseBridge(consumer mq.Consumer, registry *Registry, topic string) *ResponseBridge {
	return &ResponseBridge{consumer: consumer, registry: registry, topic: topic}
}

// Start 订阅主题，后台消费直到 ctx 结束
func (b *ResponseBridge) Start(ctx context.Context) error {
	return b.consumer.Subscribe(ctx, b.topic, b.handle)
}

// handle 只有暂时性错误返回 error (消息保留待重投)；其余答复错误记录后确认
func (b *ResponseBridge) handle(msg *mq.Message) error {
	var resp event.JointResponseMessage
	if err := json.Unmarshal(msg.Payload, &resp); err != nil {
		b.registry.log.Warn("malformed joint response dropped")
		return nil
	}

	_, err := b.registry.SubmitResponse(resp.RequestID, resp.Participant, resp.Signed, resp.Signature)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errno.ErrNotFound),
		errors.Is(err, ErrRequestFinalized),
		errors.Is(err, ErrUnknownParticipant),
		errors.Is(err, ErrInvalidSignature):
		// 不可恢复，丢弃
		return nil
	default:
		return fmt.Errorf("joint response %s: %w", resp.RequestID, err)
	}
}
