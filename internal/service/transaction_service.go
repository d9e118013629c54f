// Package service 组合编码、签名、提交与链上观察。
package service

import (
	"context"
	"errors"

	"wallet-signer/internal/model"
	"wallet-signer/internal/service/encoder"
	"wallet-signer/internal/service/observer"
	"wallet-signer/internal/service/signer"
	"wallet-signer/internal/service/submission"
	"wallet-signer/pkg/logger"

	"go.uber.org/zap"
)

// ParamsInvalidator 可丢弃缓存的网络参数 (network.CachedParams)
type ParamsInvalidator interface {
	Invalidate(ctx context.Context)
}

// ExecuteResult Execute 的结果
type ExecuteResult struct {
	TxID  string
	Plan  model.Plan
	Watch *observer.Watch // 无需观察时为 nil
}

// TransactionService 默认实现
type TransactionService struct {
	builder  *encoder.Builder
	params   ParamsInvalidator
	signer   signer.Signer
	pipeline *submission.Pipeline
	monitor  observer.AccountMonitor
	log      *zap.Logger
}

// NewTransactionService params 与 mon 可为 nil
func NewTransactionService(b *encoder.Builder, params ParamsInvalidator, s signer.Signer, p *submission.Pipeline, mon observer.AccountMonitor) *TransactionService {
	return &TransactionService{
		builder:  b,
		params:   params,
		signer:   s,
		pipeline: p,
		monitor:  mon,
		log:      logger.Named("transaction"),
	}
}

var _ TransactionAPI = (*TransactionService)(nil)

func (s *TransactionService) BuildAndEncode(ctx context.Context, d model.Draft) (model.Plan, error) {
	plan, err := s.builder.Build(ctx, d)
	if err != nil {
		return model.Plan{}, err
	}
	s.log.Info("transaction built",
		zap.String("kind", string(d.Kind())),
		zap.String("tx_id", plan.Transactions[0].TxID()),
		zap.Int("group_size", len(plan.Transactions)),
		zap.Uint64("total_fee", plan.TotalFee),
		zap.Uint64("top_up", plan.TopUp),
	)
	return plan, nil
}

func (s *TransactionService) Sign(ctx context.Context, plan *model.Plan, handle model.SigningKeyHandle) ([]model.SignedBytes, error) {
	plan.Sealed = true
	signed := make([]model.SignedBytes, 0, len(plan.Transactions))
	for _, tx := range plan.Transactions {
		out, err := s.signer.Sign(ctx, tx, handle)
		if err != nil {
			s.log.Warn("signing failed",
				zap.String("tx_id", tx.TxID()),
				zap.String("key", handle.String()),
				zap.Error(err),
			)
			return nil, err
		}
		signed = append(signed, out)
	}
	return signed, nil
}

func (s *TransactionService) Submit(ctx context.Context, signed ...model.SignedBytes) (string, error) {
	return s.pipeline.Submit(ctx, signed...)
}

// Execute 验证窗口过期时刷新参数并重新编码、签名、提交一次
func (s *TransactionService) Execute(ctx context.Context, d model.Draft, handle model.SigningKeyHandle) (ExecuteResult, error) {
	res, err := s.attempt(ctx, d, handle)
	var se *submission.SubmissionError
	if err == nil || !errors.As(err, &se) || !se.Stale() {
		return res, err
	}

	s.log.Info("validity window stale, re-encoding", zap.String("tx_id", se.TxID))
	if s.params != nil {
		s.params.Invalidate(ctx)
	}
	return s.attempt(ctx, d, handle)
}

func (s *TransactionService) attempt(ctx context.Context, d model.Draft, handle model.SigningKeyHandle) (ExecuteResult, error) {
	plan, err := s.BuildAndEncode(ctx, d)
	if err != nil {
		return ExecuteResult{}, err
	}
	res := ExecuteResult{Plan: plan}

	// 1. 提交前登记观察，任何中断都会取消
	key := plan.Transactions[0].TxID()
	if entry, ok := monitorEntry(d, key); ok && s.monitor != nil {
		res.Watch = s.monitor.Register(entry)
	}
	abort := func(err error) (ExecuteResult, error) {
		if res.Watch != nil {
			s.monitor.CancelTransaction(key)
		}
		res.Plan = plan
		return res, err
	}

	// 2. 签名
	signed, err := s.Sign(ctx, &plan, handle)
	if err != nil {
		return abort(err)
	}
	res.Plan = plan

	// 3. 提交
	txID, err := s.Submit(ctx, signed...)
	if err != nil {
		return abort(err)
	}
	res.TxID = txID
	return res, nil
}

// monitorEntry opt-in / opt-out / 移除资产需要等待链上账户状态
func monitorEntry(d model.Draft, txID string) (model.MonitorEntry, bool) {
	base := d.Base()
	entry := model.MonitorEntry{Account: base.Sender, AssetID: base.AssetID, TxID: txID}
	switch d.(type) {
	case model.AssetOptIn:
		entry.Transition = model.TransitionOptIn
	case model.AssetOptOut, model.AssetRemoval:
		entry.Transition = model.TransitionOptOut
	default:
		return model.MonitorEntry{}, false
	}
	return entry, true
}
