// Package joint 协调联合账户 (多签) 的签名收集与聚合。
package joint

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"
	"time"

	"wallet-signer/internal/model"
	"wallet-signer/internal/service/encoder"
	"wallet-signer/pkg/address"
	"wallet-signer/pkg/errno"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

const multisigVersion = 1

var (
	ErrUnknownParticipant = errors.New("participant is not part of this sign request")
	ErrInvalidSignature   = errors.New("signature does not cover this request")
	ErrRequestFinalized   = errors.New("sign request already finalized")
	ErrInvalidThreshold   = errors.New("threshold must be between 1 and the number of participants")
)

// StatusListener 状态变化回调，在协调器锁之外调用
type StatusListener func(meta model.SignRequestMetadata, status model.JointStatus)

// Coordinator 单个签名请求的状态机
type Coordinator struct {
	mu        sync.Mutex
	meta      model.SignRequestMetadata
	txn       types.Transaction
	multisig  crypto.MultisigAccount
	status    model.JointStatus
	listeners []StatusListener
	timer     *time.Timer
	now       func() time.Time
}

// NewCoordinator 校验参与者与阈值，并为截止时间设置定时器
func NewCoordinator(meta model.SignRequestMetadata, now func() time.Time) (*Coordinator, error) {
	if meta.Threshold < 1 || meta.Threshold > len(meta.Participants) || meta.Threshold > 255 {
		return nil, ErrInvalidThreshold
	}

	// 复制参与者，不修改调用方的切片
	meta.Participants = append([]model.ParticipantResponse(nil), meta.Participants...)
	addrs := make([]types.Address, 0, len(meta.Participants))
	seen := make(map[string]bool, len(meta.Participants))
	for i, p := range meta.Participants {
		addr, err := address.Decode(p.Address)
		if err != nil {
			return nil, err
		}
		if seen[p.Address] {
			return nil, fmt.Errorf("duplicate participant %s", p.Address)
		}
		seen[p.Address] = true
		addrs = append(addrs, addr)
		meta.Participants[i].Status = model.ResponsePending
		meta.Participants[i].Signature = nil
	}

	ma, err := crypto.MultisigAccountWithParams(multisigVersion, uint8(meta.Threshold), addrs)
	if err != nil {
		return nil, errno.ErrInvalidDraft.Wrap(err)
	}

	txn, err := encoder.DecodeTransaction(meta.Transaction.Bytes)
	if err != nil {
		return nil, err
	}

	if now == nil {
		now = time.Now
	}
	c := &Coordinator{
		meta:     meta,
		txn:      txn,
		multisig: ma,
		status:   model.JointPending,
		now:      now,
	}
	if wait := meta.Deadline.Sub(now()); wait > 0 {
		c.timer = time.AfterFunc(wait+time.Millisecond, c.expire)
	} else {
		c.status = model.JointExpired
	}
	return c, nil
}

// MultisigAddress 联合账户地址 (参与者顺序、阈值决定)
func (c *Coordinator) MultisigAddress() string {
	addr, _ := c.multisig.Address()
	return addr.String()
}

// Multisig SDK 多签账户描述
func (c *Coordinator) Multisig() crypto.MultisigAccount {
	return c.multisig
}

// Transaction 待签名交易
func (c *Coordinator) Transaction() (types.Transaction, model.SignableTransaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txn, c.meta.Transaction
}

// OnStatusChanged 注册状态变化订阅
func (c *Coordinator) OnStatusChanged(fn StatusListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Status 当前状态 (按当前时间重新评估)
func (c *Coordinator) Status() model.JointStatus {
	c.mu.Lock()
	changed := c.evaluateLocked()
	status := c.status
	meta, listeners := c.snapshotLocked()
	c.mu.Unlock()

	if changed {
		notify(listeners, meta, status)
	}
	return status
}

// Deadline 创建后不再变化
func (c *Coordinator) Deadline() time.Time {
	return c.meta.Deadline
}

// Metadata 返回请求快照
func (c *Coordinator) Metadata() model.SignRequestMetadata {
	c.mu.Lock()
	defer c.mu.Unlock()
	meta, _ := c.snapshotLocked()
	return meta
}

// SubmitResponse 记录参与者答复，同一参与者以最后一次为准
func (c *Coordinator) SubmitResponse(participant string, signed bool, signature []byte) (model.JointStatus, error) {
	c.mu.Lock()

	// 1. 终态 (包括刚好过期) 拒绝写入
	changed := c.evaluateLocked()
	if c.status.IsTerminal() {
		status := c.status
		meta, listeners := c.snapshotLocked()
		c.mu.Unlock()
		if changed {
			notify(listeners, meta, status)
		}
		return status, fmt.Errorf("%w: %s", ErrRequestFinalized, status)
	}

	// 2. 定位参与者
	idx := -1
	for i, p := range c.meta.Participants {
		if p.Address == participant {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return model.JointPending, ErrUnknownParticipant
	}

	// 3. 校验签名
	resp := model.ParticipantResponse{Address: participant, Status: model.ResponseDeclined, UpdatedAt: c.now()}
	if signed {
		if err := c.verifyLocked(idx, signature); err != nil {
			c.mu.Unlock()
			return model.JointPending, err
		}
		resp.Status = model.ResponseSigned
		resp.Signature = append([]byte(nil), signature...)
	}
	c.meta.Participants[idx] = resp

	// 4. 重新评估
	changed = c.evaluateLocked()
	status := c.status
	meta, listeners := c.snapshotLocked()
	c.mu.Unlock()

	if changed {
		notify(listeners, meta, status)
	}
	return status, nil
}

// Aggregate 合并参与者顺序中前 threshold 个签名
func (c *Coordinator) Aggregate() (model.SignedBytes, error) {
	status := c.Status()

	c.mu.Lock()
	defer c.mu.Unlock()

	switch status {
	case model.JointComplete:
	case model.JointExpired:
		return model.SignedBytes{}, errno.ErrSignRequestExpired
	case model.JointDeclined:
		return model.SignedBytes{}, errno.ErrSignRequestDeclined
	default:
		signed, _ := c.meta.Counts()
		return model.SignedBytes{}, errno.ErrInsufficientThreshold.WithMessage(
			fmt.Sprintf("Joint account threshold not reached: %d of %d", signed, c.meta.Threshold))
	}

	blobs := make([][]byte, 0, c.meta.Threshold)
	for _, p := range c.meta.Participants {
		if p.Status == model.ResponseSigned {
			blobs = append(blobs, p.Signature)
			if len(blobs) == c.meta.Threshold {
				break
			}
		}
	}

	if len(blobs) == 1 {
		return model.SignedBytes{Bytes: blobs[0], TxID: c.meta.Transaction.TxID()}, nil
	}
	txID, merged, err := crypto.MergeMultisigTransactions(blobs...)
	if err != nil {
		return model.SignedBytes{}, errno.ErrEncoding.Wrap(err)
	}
	return model.SignedBytes{Bytes: merged, TxID: txID}, nil
}

// Stop 停止截止时间定时器
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
}

func (c *Coordinator) expire() {
	c.Status()
}

// evaluateLocked 返回状态是否变化；complete 一旦达成不再改变
func (c *Coordinator) evaluateLocked() bool {
	if c.status.IsTerminal() {
		return false
	}

	signed, declined := c.meta.Counts()
	next := model.JointPending
	switch {
	case signed >= c.meta.Threshold:
		next = model.JointComplete
	case len(c.meta.Participants)-declined < c.meta.Threshold:
		next = model.JointDeclined
	case c.now().After(c.meta.Deadline):
		next = model.JointExpired
	}
	if next == c.status {
		return false
	}
	c.status = next
	if next.IsTerminal() && c.timer != nil {
		c.timer.Stop()
	}
	return true
}

// verifyLocked 签名必须是本请求交易上、该参与者密钥的多签子签名
func (c *Coordinator) verifyLocked(idx int, blob []byte) error {
	var stx types.SignedTxn
	if err := msgpack.Decode(blob, &stx); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	txnBytes := msgpack.Encode(stx.Txn)
	if !bytes.Equal(txnBytes, c.meta.Transaction.Bytes) {
		return fmt.Errorf("%w: transaction mismatch", ErrInvalidSignature)
	}
	if stx.Msig.Threshold != uint8(c.meta.Threshold) || len(stx.Msig.Subsigs) != len(c.meta.Participants) {
		return fmt.Errorf("%w: multisig layout mismatch", ErrInvalidSignature)
	}

	sub := stx.Msig.Subsigs[idx]
	pub := c.multisig.Pks[idx]
	if !bytes.Equal(sub.Key, pub) {
		return fmt.Errorf("%w: subsig key mismatch", ErrInvalidSignature)
	}
	if sub.Sig == (types.Signature{}) {
		return fmt.Errorf("%w: participant did not sign", ErrInvalidSignature)
	}
	if !ed25519.Verify(pub, append([]byte("TX"), txnBytes...), sub.Sig[:]) {
		return fmt.Errorf("%w: bad signature", ErrInvalidSignature)
	}
	return nil
}

func (c *Coordinator) snapshotLocked() (model.SignRequestMetadata, []StatusListener) {
	meta := c.meta
	meta.Participants = append([]model.ParticipantResponse(nil), c.meta.Participants...)
	return meta, append([]StatusListener(nil), c.listeners...)
}

func notify(listeners []StatusListener, meta model.SignRequestMetadata, status model.JointStatus) {
	for _, fn := range listeners {
		fn(meta, status)
	}
}
