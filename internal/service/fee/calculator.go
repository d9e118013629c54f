// Package fee 计算手续费、最低余额补足额以及最大可发送金额。
package fee

import (
	"errors"

	"wallet-signer/internal/model"
)

// SignatureOverhead 签名后 SignedTxn 相对裸交易增加的字节数 (sig 64 + key/包装)
const SignatureOverhead = 75

var ErrPlanSealed = errors.New("plan already signed, fees cannot be recomputed")

// FeeMode 手续费计算方式
type FeeMode string

const (
	// FeeModeFlat 与交易大小无关: max(MinFee, FeePerByte)
	FeeModeFlat FeeMode = "flat"
	// FeeModePerByte 按签名后估算大小: max(MinFee, FeePerByte * size)
	FeeModePerByte FeeMode = "per_byte"
)

// Policy 账户最低余额与手续费策略，由配置注入
type Policy struct {
	AccountMinBalance   uint64
	AssetSlotMinBalance uint64
	FeeMode             FeeMode // 为空时按 flat
}

// Calculator 无状态，可并发使用
type Calculator struct {
	policy Policy
}

func NewCalculator(policy Policy) *Calculator {
	return &Calculator{policy: policy}
}

func (c *Calculator) Policy() Policy {
	return c.policy
}

// ExtraForOptIn 接收方开启一个资产槽位所需补足的原生币
//   - 余额为 0: 账户最低余额 + 槽位最低余额
//   - 否则: 槽位最低余额 - 可用余额 (B - M)，不足 0 取 0
func (c *Calculator) ExtraForOptIn(balance, minBalance uint64) uint64 {
	if balance == 0 {
		return c.policy.AccountMinBalance + c.policy.AssetSlotMinBalance
	}
	var spare uint64
	if balance > minBalance {
		spare = balance - minBalance
	}
	if spare >= c.policy.AssetSlotMinBalance {
		return 0
	}
	return c.policy.AssetSlotMinBalance - spare
}

// Fee 按策略计算单笔交易手续费，size 仅在 per_byte 模式下参与计算
func (c *Calculator) Fee(size int, params model.NetworkParams) uint64 {
	if c.policy.FeeMode == FeeModePerByte {
		return c.TransactionFee(size, params)
	}
	return FlatFee(params)
}

// FlatFee max(MinFee, FeePerByte)
func FlatFee(params model.NetworkParams) uint64 {
	if params.FeePerByte < params.MinFee {
		return params.MinFee
	}
	return params.FeePerByte
}

// TransactionFee max(MinFee, FeePerByte * size)，size 为包含签名的估算字节数
func (c *Calculator) TransactionFee(size int, params model.NetworkParams) uint64 {
	fee := params.FeePerByte * uint64(size)
	if fee < params.MinFee {
		return params.MinFee
	}
	return fee
}

// EstimatedSize 未签名编码长度加上签名开销
func EstimatedSize(encodedLen int) int {
	return encodedLen + SignatureOverhead
}

// Accumulate 汇总链式交易的手续费
func Accumulate(fees ...uint64) uint64 {
	var total uint64
	for _, f := range fees {
		total += f
	}
	return total
}

// MaxSendable balance - minBalance - fee，不足 0 取 0
func MaxSendable(balance, minBalance, fee uint64) uint64 {
	reserved := minBalance + fee
	if balance <= reserved {
		return 0
	}
	return balance - reserved
}

// EnsureUnsealed 对已签名的计划拒绝重新计算
func EnsureUnsealed(plan model.Plan) error {
	if plan.Sealed {
		return ErrPlanSealed
	}
	return nil
}
