package mq

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
)

// MemoryBus 进程内实现，同时满足 Producer 与 Consumer (CLI 与测试使用)
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]func(msg *Message) error
	seq      atomic.Uint64
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{handlers: make(map[string][]func(msg *Message) error)}
}

// Publish 同步投递给当前订阅者，返回第一个处理错误
func (b *MemoryBus) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	b.mu.RLock()
	hs := append([]func(msg *Message) error(nil), b.handlers[topic]...)
	b.mu.RUnlock()

	msg := &Message{
		ID:      strconv.FormatUint(b.seq.Add(1), 10),
		Topic:   topic,
		Key:     key,
		Payload: append([]byte(nil), payload...),
	}
	var firstErr error
	for _, h := range hs {
		if err := h(msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (b *MemoryBus) Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error {
	b.mu.Lock()
	b.handlers[topic] = append(b.handlers[topic], handler)
	b.mu.Unlock()
	return nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	b.handlers = make(map[string][]func(msg *Message) error)
	b.mu.Unlock()
	return nil
}
