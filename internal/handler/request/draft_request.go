package request

import (
	"fmt"

	"wallet-signer/internal/model"
)

// DraftRequest 交易意图的 JSON 形式 (HTTP 与 CLI 共用)
type DraftRequest struct {
	Kind       string `json:"kind" binding:"required,oneof=value_transfer asset_transfer asset_opt_in asset_opt_out asset_removal key_registration" validate:"required,oneof=value_transfer asset_transfer asset_opt_in asset_opt_out asset_removal key_registration"`
	Sender     string `json:"sender" binding:"required,algo_address" validate:"required,algo_address"`
	Receiver   string `json:"receiver,omitempty"`
	Amount     string `json:"amount,omitempty"` // 十进制金额，如 "1.5"；按精度换算为最小单位
	AssetID    uint64 `json:"asset_id,omitempty"`
	Note       string `json:"note,omitempty"`
	LockedNote string `json:"locked_note,omitempty"`
	CloseTo    string `json:"close_to,omitempty"`
	OptInTopUp bool   `json:"opt_in_top_up,omitempty"`
	MaxAmount  bool   `json:"max_amount,omitempty"`

	// 资产精度，仅资产类意图使用；原生币固定为 6 位
	AssetDecimals int32 `json:"asset_decimals,omitempty" binding:"min=0,max=19" validate:"min=0,max=19"`

	// key_registration
	VoteKey       string `json:"vote_key,omitempty"`
	SelectionKey  string `json:"selection_key,omitempty"`
	StateProofKey string `json:"state_proof_key,omitempty"`
	VoteFirst     uint64 `json:"vote_first,omitempty"`
	VoteLast      uint64 `json:"vote_last,omitempty"`
	KeyDilution   uint64 `json:"key_dilution,omitempty"`
	Offline       bool   `json:"offline,omitempty"`
}

// Decimals 金额精度: 资产类意图取 asset_decimals，其余为原生币精度
func (r DraftRequest) Decimals() int32 {
	switch model.DraftKind(r.Kind) {
	case model.KindAssetTransfer, model.KindAssetOptIn, model.KindAssetOptOut, model.KindAssetRemoval:
		return r.AssetDecimals
	}
	return model.NativeDecimals
}

// ToDraft 转换为领域 Draft；手续费总是由网络参数计算
func (r DraftRequest) ToDraft() (model.Draft, error) {
	var amount uint64
	if r.Amount != "" {
		units, err := model.ParseAmount(r.Amount, r.Decimals())
		if err != nil {
			return nil, err
		}
		amount = units
	}

	base := model.DraftBase{
		Sender:    r.Sender,
		Receiver:  r.Receiver,
		Amount:    amount,
		AssetID:   r.AssetID,
		MaxAmount: r.MaxAmount,
	}
	if r.Note != "" {
		base.Note = []byte(r.Note)
	}
	if r.LockedNote != "" {
		base.LockedNote = []byte(r.LockedNote)
	}

	switch model.DraftKind(r.Kind) {
	case model.KindValueTransfer:
		return model.ValueTransfer{DraftBase: base, CloseTo: r.CloseTo}, nil
	case model.KindAssetTransfer:
		return model.AssetTransfer{DraftBase: base, OptInTopUp: r.OptInTopUp}, nil
	case model.KindAssetOptIn:
		return model.AssetOptIn{DraftBase: base}, nil
	case model.KindAssetOptOut:
		return model.AssetOptOut{DraftBase: base, CloseTo: r.CloseTo}, nil
	case model.KindAssetRemoval:
		return model.AssetRemoval{DraftBase: base, CloseTo: r.CloseTo}, nil
	case model.KindKeyRegistration:
		return model.KeyRegistration{
			DraftBase:     base,
			VoteKey:       r.VoteKey,
			SelectionKey:  r.SelectionKey,
			StateProofKey: r.StateProofKey,
			VoteFirst:     r.VoteFirst,
			VoteLast:      r.VoteLast,
			KeyDilution:   r.KeyDilution,
			Offline:       r.Offline,
		}, nil
	}
	return nil, fmt.Errorf("unknown draft kind %q", r.Kind)
}
