// Package network 定义与链上节点交互的窄接口，以及基于 algod 的实现。
package network

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"wallet-signer/internal/model"
)

// ParamsFetcher 获取当前网络参数快照
type ParamsFetcher interface {
	Params(ctx context.Context) (model.NetworkParams, error)
}

// AccountFetcher 查询账户余额及资产持有
type AccountFetcher interface {
	Account(ctx context.Context, address string) (model.AccountInfo, error)
}

// RawSubmitter 提交已签名的原始字节 (可以是拼接的原子组)
type RawSubmitter interface {
	SubmitRaw(ctx context.Context, raw []byte) (string, error)
}

// Node 同时提供三种能力，algod 客户端即为一例
type Node interface {
	ParamsFetcher
	AccountFetcher
	RawSubmitter
}

// NodeError 节点返回的 HTTP 错误
type NodeError struct {
	Status  int // 0 表示传输层错误 (连接失败、超时)
	Message string
	cause   error
}

func (e *NodeError) Error() string {
	if e.Status == 0 {
		return "node unreachable: " + e.Message
	}
	return fmt.Sprintf("node http %d: %s", e.Status, e.Message)
}

func (e *NodeError) Unwrap() error { return e.cause }

// Transport reports whether the request never got a logical answer from the node
func (e *NodeError) Transport() bool {
	return e.Status == 0 || e.Status >= 500 || e.Status == 429
}

var httpStatusPattern = regexp.MustCompile(`^HTTP (\d{3}):\s*(.*)$`)

// classify 将 SDK 错误 ("HTTP 400: {...}") 转为 *NodeError
func classify(err error) *NodeError {
	if err == nil {
		return nil
	}
	var ne *NodeError
	if errors.As(err, &ne) {
		return ne
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &NodeError{Message: err.Error(), cause: err}
	}
	if m := httpStatusPattern.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return &NodeError{Status: code, Message: m[2], cause: err}
	}
	return &NodeError{Message: err.Error(), cause: err}
}
