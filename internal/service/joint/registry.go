package joint

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wallet-signer/internal/event"
	"wallet-signer/internal/model"
	"wallet-signer/pkg/errno"
	"wallet-signer/pkg/logger"
	"wallet-signer/pkg/monitor"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateRequest 发起联合签名请求
type CreateRequest struct {
	Proposer     string                    `json:"proposer"`
	Participants []string                  `json:"participants"`
	Threshold    int                       `json:"threshold"`
	Deadline     time.Time                 `json:"deadline"` // 零值使用默认期限
	Transaction  model.SignableTransaction `json:"transaction"`
}

// Registry 按请求 ID 持有协调器
type Registry struct {
	mu              sync.RWMutex
	coordinators    map[string]*Coordinator
	publisher       *event.Publisher
	defaultDeadline time.Duration
	now             func() time.Time
	log             *zap.Logger
}

// NewRegistry publisher 可为 nil
func NewRegistry(publisher *event.Publisher, defaultDeadline time.Duration) *Registry {
	return &Registry{
		coordinators:    make(map[string]*Coordinator),
		publisher:       publisher,
		defaultDeadline: defaultDeadline,
		now:             time.Now,
		log:             logger.Named("joint"),
	}
}

// Create 创建请求，返回登记的元数据
func (r *Registry) Create(ctx context.Context, req CreateRequest) (*Coordinator, error) {
	deadline := req.Deadline
	if deadline.IsZero() {
		deadline = r.now().Add(r.defaultDeadline)
	}
	if !deadline.After(r.now()) {
		return nil, errno.ErrSignRequestExpired.WithMessage("deadline is in the past")
	}

	participants := make([]model.ParticipantResponse, 0, len(req.Participants))
	for _, p := range req.Participants {
		participants = append(participants, model.ParticipantResponse{Address: p, Status: model.ResponsePending})
	}

	meta := model.SignRequestMetadata{
		ID:           uuid.NewString(),
		Proposer:     req.Proposer,
		Participants: participants,
		Threshold:    req.Threshold,
		Deadline:     deadline,
		Transaction:  req.Transaction,
		CreatedAt:    r.now(),
	}

	c, err := NewCoordinator(meta, r.now)
	if err != nil {
		return nil, err
	}
	if sender := req.Transaction.Mirror.Sender; sender != "" && sender != c.MultisigAddress() {
		c.Stop()
		return nil, errno.ErrKeyMismatch.WithMessage(
			fmt.Sprintf("transaction sender %s is not the joint account %s", sender, c.MultisigAddress()))
	}

	c.OnStatusChanged(r.onStatusChanged)

	r.mu.Lock()
	r.coordinators[meta.ID] = c
	r.mu.Unlock()

	r.log.Info("sign request created",
		zap.String("request_id", meta.ID),
		zap.String("tx_id", meta.Transaction.TxID()),
		zap.Int("threshold", meta.Threshold),
		zap.Int("participants", len(participants)),
		zap.Time("deadline", deadline),
	)
	return c, nil
}

// Get 查询协调器
func (r *Registry) Get(id string) (*Coordinator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.coordinators[id]
	if !ok {
		return nil, errno.ErrNotFound.WithMessage("sign request not found: " + id)
	}
	return c, nil
}

// SubmitResponse 转发到对应协调器
func (r *Registry) SubmitResponse(id, participant string, signed bool, signature []byte) (model.JointStatus, error) {
	c, err := r.Get(id)
	if err != nil {
		return "", err
	}
	status, err := c.SubmitResponse(participant, signed, signature)
	if err != nil {
		r.log.Warn("response rejected",
			zap.String("request_id", id),
			zap.String("participant", participant),
			zap.Error(err),
		)
		return status, err
	}
	r.log.Info("response recorded",
		zap.String("request_id", id),
		zap.String("participant", participant),
		zap.Bool("signed", signed),
		zap.String("status", string(status)),
	)
	return status, nil
}

// Aggregate 聚合完成的请求并移除
func (r *Registry) Aggregate(id string) (model.SignedBytes, error) {
	c, err := r.Get(id)
	if err != nil {
		return model.SignedBytes{}, err
	}
	signed, err := c.Aggregate()
	if err != nil {
		return model.SignedBytes{}, err
	}
	r.discard(id)
	return signed, nil
}

// Sweep 移除已过期、已拒绝，以及过了截止时间仍未聚合的已完成请求，返回移除数量
func (r *Registry) Sweep() int {
	now := r.now()
	r.mu.RLock()
	var stale []string
	for id, c := range r.coordinators {
		switch c.Status() {
		case model.JointExpired, model.JointDeclined:
			stale = append(stale, id)
		case model.JointComplete:
			if !now.Before(c.Deadline()) {
				stale = append(stale, id)
			}
		}
	}
	r.mu.RUnlock()

	for _, id := range stale {
		r.discard(id)
	}
	return len(stale)
}

// Run 周期性清理，直到 ctx 结束
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.log.Info("swept sign requests", zap.Int("count", n))
			}
		}
	}
}

func (r *Registry) discard(id string) {
	r.mu.Lock()
	c, ok := r.coordinators[id]
	delete(r.coordinators, id)
	r.mu.Unlock()
	if ok {
		c.Stop()
	}
}

func (r *Registry) onStatusChanged(meta model.SignRequestMetadata, status model.JointStatus) {
	signed, declined := meta.Counts()
	r.log.Info("sign request status changed",
		zap.String("request_id", meta.ID),
		zap.String("status", string(status)),
		zap.Int("signed", signed),
		zap.Int("declined", declined),
	)
	if status.IsTerminal() {
		monitor.ObserveJointRequest(string(status))
	}

	evt := event.JointStatusChangedEvent{
		Type:      event.TypeJointStatusChanged,
		RequestID: meta.ID,
		Status:    string(status),
		Signed:    signed,
		Declined:  declined,
		Threshold: meta.Threshold,
		At:        r.now(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.publisher.Publish(ctx, meta.ID, evt); err != nil {
		r.log.Warn("publish status event failed", zap.String("request_id", meta.ID), zap.Error(err))
	}
}
