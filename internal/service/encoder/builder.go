package encoder

import (
	"context"
	"fmt"

	"wallet-signer/internal/model"
	"wallet-signer/internal/network"
	"wallet-signer/internal/service/fee"
	"wallet-signer/pkg/errno"
	"wallet-signer/pkg/logger"
	"wallet-signer/pkg/monitor"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"go.uber.org/zap"
)

// Builder buildAndEncode: 取参数、查账户、计算补足额与手续费、编码 (必要时成组)
type Builder struct {
	encoder  *Encoder
	calc     *fee.Calculator
	params   network.ParamsFetcher
	accounts network.AccountFetcher
}

func NewBuilder(calc *fee.Calculator, params network.ParamsFetcher, accounts network.AccountFetcher) *Builder {
	return &Builder{
		encoder:  New(calc),
		calc:     calc,
		params:   params,
		accounts: accounts,
	}
}

func (b *Builder) Encoder() *Encoder {
	return b.encoder
}

// Build 使用最新网络参数构建计划
func (b *Builder) Build(ctx context.Context, d model.Draft) (model.Plan, error) {
	// 1. 结构与地址校验，失败时不发起任何网络请求
	if err := model.Validate(d); err != nil {
		return model.Plan{}, errno.ErrInvalidDraft.Wrap(err)
	}
	if err := ValidateAddresses(d); err != nil {
		return model.Plan{}, err
	}

	// 2. 网络参数
	params, err := b.params.Params(ctx)
	if err != nil {
		return model.Plan{}, err
	}
	return b.BuildWithParams(ctx, d, params)
}

// Rebuild 对尚未签名的计划重新计算 (例如用户修改金额后)
func (b *Builder) Rebuild(ctx context.Context, plan model.Plan) (model.Plan, error) {
	if err := fee.EnsureUnsealed(plan); err != nil {
		return model.Plan{}, err
	}
	return b.Build(ctx, plan.Draft)
}

// BuildWithParams 使用给定参数快照构建计划
func (b *Builder) BuildWithParams(ctx context.Context, d model.Draft, params model.NetworkParams) (model.Plan, error) {
	drafts, topUp, err := b.expand(ctx, d, params)
	if err != nil {
		return model.Plan{}, err
	}

	txns := make([]types.Transaction, 0, len(drafts))
	for _, item := range drafts {
		txn, err := b.encoder.Transaction(item, params)
		if err != nil {
			return model.Plan{}, err
		}
		txns = append(txns, txn)
	}

	if len(txns) > 1 {
		if err := b.groupWithFees(txns, params); err != nil {
			return model.Plan{}, err
		}
	} else {
		b.encoder.applyFee(&txns[0], params)
	}

	plan := model.Plan{TopUp: topUp, Params: params}
	fees := make([]uint64, 0, len(txns))
	for _, txn := range txns {
		signable, err := Seal(txn)
		if err != nil {
			return model.Plan{}, err
		}
		plan.Transactions = append(plan.Transactions, signable)
		fees = append(fees, signable.Mirror.Fee)
	}
	plan.TotalFee = fee.Accumulate(fees...)

	// 展示用 Draft: 主交易金额 + 汇总手续费
	primary := drafts[len(drafts)-1]
	plan.Draft = model.WithFee(primary, plan.TotalFee)

	monitor.ObserveBuilt(string(d.Kind()))
	logger.Debug("transaction plan built",
		zap.String("kind", string(d.Kind())),
		zap.Int("transactions", len(plan.Transactions)),
		zap.Uint64("total_fee", plan.TotalFee),
		zap.Uint64("top_up", topUp),
	)
	return plan, nil
}

// expand 根据账户状态把一个意图展开为一笔或多笔交易
func (b *Builder) expand(ctx context.Context, d model.Draft, params model.NetworkParams) ([]model.Draft, uint64, error) {
	base := d.Base()

	switch v := d.(type) {
	case model.AssetTransfer:
		if !v.OptInTopUp {
			return []model.Draft{d}, 0, nil
		}
		info, err := b.accounts.Account(ctx, v.Receiver)
		if err != nil {
			return nil, 0, err
		}
		if info.HasAsset(v.AssetID) {
			return []model.Draft{d}, 0, nil
		}
		extra := b.calc.ExtraForOptIn(info.Amount, info.MinBalance)
		if extra == 0 {
			return []model.Draft{d}, 0, nil
		}
		topUp := model.ValueTransfer{DraftBase: model.DraftBase{
			Sender:   base.Sender,
			Receiver: v.Receiver,
			Amount:   extra,
		}}
		return []model.Draft{topUp, d}, extra, nil

	case model.ValueTransfer:
		if !v.MaxAmount || v.CloseTo != "" {
			// 带 close-to 时剩余余额由链上结算
			return []model.Draft{d}, 0, nil
		}
		info, err := b.accounts.Account(ctx, v.Sender)
		if err != nil {
			return nil, 0, err
		}
		// 以全部余额编码得到手续费上界，真实金额更小，编码不会更长
		upper, err := b.encoder.Transaction(model.WithAmount(d, info.Amount), params)
		if err != nil {
			return nil, 0, err
		}
		b.encoder.applyFee(&upper, params)
		amount := fee.MaxSendable(info.Amount, info.MinBalance, uint64(upper.Fee))
		if amount == 0 {
			return nil, 0, errno.ErrInsufficientFunds.WithMessage(
				fmt.Sprintf("balance %d does not cover min balance %d plus fee %d", info.Amount, info.MinBalance, upper.Fee))
		}
		return []model.Draft{model.WithAmount(d, amount)}, 0, nil

	case model.AssetRemoval:
		info, err := b.accounts.Account(ctx, v.Sender)
		if err != nil {
			return nil, 0, err
		}
		if held, ok := info.Assets[v.AssetID]; ok && held != 0 {
			return nil, 0, errno.ErrInvalidDraft.WithMessage(
				fmt.Sprintf("asset %d still holds %d units, use opt-out", v.AssetID, held))
		}
		return []model.Draft{d}, 0, nil
	}
	return []model.Draft{d}, 0, nil
}

// groupWithFees 在包含组 ID 的长度上计算手续费，再计算真实组 ID
func (b *Builder) groupWithFees(txns []types.Transaction, params model.NetworkParams) error {
	var placeholder types.Digest
	for i := range placeholder {
		placeholder[i] = 0xFF
	}
	for i := range txns {
		txns[i].Group = placeholder
		b.encoder.applyFee(&txns[i], params)
		txns[i].Group = types.Digest{}
	}

	gid, err := crypto.ComputeGroupID(txns)
	if err != nil {
		return errno.ErrEncoding.Wrap(err)
	}
	for i := range txns {
		txns[i].Group = gid
	}
	return nil
}
