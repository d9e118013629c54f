// Package submission 把已签名交易 (或原子组) 提交到网络并归类失败原因。
package submission

import (
	"bytes"
	"context"
	"time"

	"wallet-signer/internal/event"
	"wallet-signer/internal/model"
	"wallet-signer/internal/network"
	"wallet-signer/pkg/errno"
	"wallet-signer/pkg/logger"
	"wallet-signer/pkg/monitor"
	"wallet-signer/pkg/utils/lock"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"go.uber.org/zap"
)

const defaultLockTTL = 30 * time.Second

// Pipeline 无自动重试；重试由调用方以相同字节发起
type Pipeline struct {
	node      network.RawSubmitter
	lock      lock.DistributedLock
	lockTTL   time.Duration
	publisher *event.Publisher
	log       *zap.Logger
}

// NewPipeline lk 与 publisher 均可为 nil
func NewPipeline(node network.RawSubmitter, lk lock.DistributedLock, publisher *event.Publisher) *Pipeline {
	if lk == nil {
		lk = lock.NewMemoryLock()
	}
	return &Pipeline{
		node:      node,
		lock:      lk,
		lockTTL:   defaultLockTTL,
		publisher: publisher,
		log:       logger.Named("submission"),
	}
}

// Submit 提交一笔交易或一个原子组，返回第一笔交易的 ID
func (p *Pipeline) Submit(ctx context.Context, signed ...model.SignedBytes) (string, error) {
	// 1. 校验输入并从字节推导交易 ID
	if len(signed) == 0 {
		return "", errno.ErrInvalidDraft.WithMessage("nothing to submit")
	}
	var raw bytes.Buffer
	txID := ""
	for i, s := range signed {
		if s.Partial {
			return "", errno.ErrInsufficientThreshold.WithMessage("joint signature is incomplete")
		}
		id, err := TxIDOf(s.Bytes)
		if err != nil {
			return "", err
		}
		if i == 0 {
			txID = id
		}
		raw.Write(s.Bytes)
	}

	// 2. 同一交易不并发提交
	lockKey := "submit:" + txID
	ok, err := p.lock.Acquire(ctx, lockKey, p.lockTTL)
	if err != nil {
		return "", classify(err, txID)
	}
	if !ok {
		return "", &SubmissionError{Kind: KindNetwork, TxID: txID, Message: "submission already in progress"}
	}
	defer func() {
		if err := p.lock.Release(context.Background(), lockKey); err != nil {
			p.log.Warn("release submit lock failed", zap.String("tx_id", txID), zap.Error(err))
		}
	}()

	// 3. 提交
	start := time.Now()
	_, err = p.node.SubmitRaw(ctx, raw.Bytes())
	elapsed := time.Since(start).Seconds()

	if err != nil && !alreadyAccepted(err) {
		se := classify(err, txID)
		monitor.ObserveSubmission(string(se.Kind), elapsed)
		p.log.Warn("submission failed",
			zap.String("tx_id", txID),
			zap.String("kind", string(se.Kind)),
			zap.String("reason", string(se.Reason)),
			zap.Error(err),
		)
		return "", se
	}
	if err != nil {
		p.log.Info("transaction already accepted", zap.String("tx_id", txID))
	}
	monitor.ObserveSubmission("ok", elapsed)
	p.log.Info("transaction submitted", zap.String("tx_id", txID), zap.Int("group_size", len(signed)))

	// 4. 通知
	evt := event.TransactionSubmittedEvent{
		Type:  event.TypeTransactionSubmitted,
		TxID:  txID,
		Group: len(signed),
		At:    time.Now(),
	}
	if err := p.publisher.Publish(ctx, txID, evt); err != nil {
		p.log.Warn("publish submitted event failed", zap.String("tx_id", txID), zap.Error(err))
	}
	return txID, nil
}

// TxIDOf 从已签名字节推导交易 ID
func TxIDOf(signed []byte) (string, error) {
	var stx types.SignedTxn
	if err := msgpack.Decode(signed, &stx); err != nil {
		return "", errno.ErrEncoding.Wrap(err)
	}
	if stx.Txn.Type == "" {
		return "", errno.ErrEncoding.WithMessage("signed transaction is empty")
	}
	return crypto.GetTxID(stx.Txn), nil
}
