package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"wallet-signer/internal/network"
	"wallet-signer/pkg/errno"
)

// Kind 提交失败的大类
type Kind string

const (
	KindNetwork           Kind = "network"
	KindRejectedByNetwork Kind = "rejected_by_network"
)

// Reason 被网络拒绝的原因
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonStaleValidityWindow Reason = "stale_validity_window"
	ReasonInsufficientBalance Reason = "insufficient_balance"
	ReasonRejected            Reason = "rejected"
)

// SubmissionError 对外暴露的提交错误；errors.Is 可与 errno 分类比较
type SubmissionError struct {
	Kind    Kind
	Reason  Reason
	TxID    string
	Message string
	cause   error
}

func (e *SubmissionError) Error() string {
	if e.Reason != ReasonNone {
		return fmt.Sprintf("submit %s: %s (%s): %s", e.TxID, e.Kind, e.Reason, e.Message)
	}
	return fmt.Sprintf("submit %s: %s: %s", e.TxID, e.Kind, e.Message)
}

// Unwrap 返回对应的 errno，原始错误作为其 cause
func (e *SubmissionError) Unwrap() error {
	return e.errno().Wrap(e.cause)
}

func (e *SubmissionError) errno() *errno.Errno {
	if e.Kind == KindNetwork {
		return errno.ErrNetwork
	}
	switch e.Reason {
	case ReasonStaleValidityWindow:
		return errno.ErrStaleWindow
	case ReasonInsufficientBalance:
		return errno.ErrInsufficientFunds
	}
	return errno.ErrRejectedByNetwork
}

// Stale reports whether re-encoding with fresh params may succeed
func (e *SubmissionError) Stale() bool {
	return e.Kind == KindRejectedByNetwork && e.Reason == ReasonStaleValidityWindow
}

// 节点返回消息中的关键片段 (algod TransactionPool / ledger 错误文本)
var (
	alreadyInLedger = []string{"already in ledger", "transaction already in ledger", "txn already in pool", "already in pool"}
	staleWindow     = []string{"txn dead", "round outside of", "is not valid before", "txn expired", "lastvalid", "firstvalid"}
	lowBalance      = []string{"overspend", "below min", "balance", "insufficient"}
)

func containsAny(msg string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(msg, n) {
			return true
		}
	}
	return false
}

// alreadyAccepted 重复提交同一字节视为成功
func alreadyAccepted(err error) bool {
	var ne *network.NodeError
	if !errors.As(err, &ne) || ne.Transport() {
		return false
	}
	return containsAny(strings.ToLower(ne.Message), alreadyInLedger)
}

// classify 网络故障 (传输、5xx、超时) 与逻辑拒绝分开
func classify(err error, txID string) *SubmissionError {
	var se *SubmissionError
	if errors.As(err, &se) {
		return se
	}

	out := &SubmissionError{Kind: KindNetwork, TxID: txID, Message: err.Error(), cause: err}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return out
	}

	var ne *network.NodeError
	if !errors.As(err, &ne) || ne.Transport() {
		return out
	}

	out.Kind = KindRejectedByNetwork
	out.Message = ne.Message
	msg := strings.ToLower(ne.Message)
	switch {
	case containsAny(msg, staleWindow):
		out.Reason = ReasonStaleValidityWindow
	case containsAny(msg, lowBalance):
		out.Reason = ReasonInsufficientBalance
	default:
		out.Reason = ReasonRejected
	}
	return out
}
