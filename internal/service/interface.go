package service

import (
	"context"

	"wallet-signer/internal/model"
)

// TransactionAPI 构建、签名、提交的对外入口
type TransactionAPI interface {
	// BuildAndEncode 获取网络参数并编码 Draft (可能扩展为原子组)
	BuildAndEncode(ctx context.Context, d model.Draft) (model.Plan, error)

	// Sign 依次签名计划内全部交易，签名后计划被封存
	Sign(ctx context.Context, plan *model.Plan, handle model.SigningKeyHandle) ([]model.SignedBytes, error)

	// Submit 提交已签名交易 (或原子组)，返回交易 ID
	Submit(ctx context.Context, signed ...model.SignedBytes) (string, error)

	// Execute 构建 + 签名 + 提交，并在需要时登记链上观察
	Execute(ctx context.Context, d model.Draft, handle model.SigningKeyHandle) (ExecuteResult, error)
}
