package model

import (
	"bytes"
	"errors"
	"fmt"
)

// DraftKind 交易意图类型
type DraftKind string

const (
	KindValueTransfer   DraftKind = "value_transfer"
	KindAssetTransfer   DraftKind = "asset_transfer"
	KindAssetOptIn      DraftKind = "asset_opt_in"
	KindAssetOptOut     DraftKind = "asset_opt_out"
	KindAssetRemoval    DraftKind = "asset_removal"
	KindKeyRegistration DraftKind = "key_registration"
)

// IsAsset reports whether drafts of this kind must carry an asset id
func (k DraftKind) IsAsset() bool {
	switch k {
	case KindAssetTransfer, KindAssetOptIn, KindAssetOptOut, KindAssetRemoval:
		return true
	}
	return false
}

var (
	ErrNoteLocked      = errors.New("note is locked by the counterparty request")
	ErrMissingSender   = errors.New("draft sender is required")
	ErrMissingAsset    = errors.New("asset id is required for asset drafts")
	ErrUnexpectedAsset = errors.New("asset id is only allowed on asset drafts")
	ErrMissingReceiver = errors.New("draft receiver is required")
	ErrMissingCloseTo  = errors.New("close-to address is required")
)

// DraftBase 所有交易意图的公共字段
type DraftBase struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver,omitempty"`
	Amount   uint64 `json:"amount"`
	AssetID  uint64 `json:"asset_id,omitempty"` // 0 表示没有资产 (原生币)

	// Fee nil 表示尚未计算
	Fee *uint64 `json:"fee,omitempty"`

	Note       []byte `json:"note,omitempty"`
	LockedNote []byte `json:"locked_note,omitempty"` // 由对方请求设定，不可修改
	MaxAmount  bool   `json:"max_amount,omitempty"`
}

// EncodedNote 返回真正写入交易的 note
func (b DraftBase) EncodedNote() []byte {
	if len(b.LockedNote) > 0 {
		return b.LockedNote
	}
	return b.Note
}

// Draft is the closed set of transaction intents. Only the variants in this
// package implement it.
type Draft interface {
	Kind() DraftKind
	Base() DraftBase
	withBase(DraftBase) Draft
}

// ValueTransfer 原生币转账
type ValueTransfer struct {
	DraftBase
	CloseTo string `json:"close_to,omitempty"` // 清空账户时把剩余余额转给该地址
}

// AssetTransfer 资产转账
type AssetTransfer struct {
	DraftBase
	// OptInTopUp 接收方尚未 opt-in 时，同组附带一笔原生币补足最低余额
	OptInTopUp bool `json:"opt_in_top_up,omitempty"`
}

// AssetOptIn 向自己发送 0 数量资产以开启持有
type AssetOptIn struct {
	DraftBase
}

// AssetOptOut 关闭资产持有，剩余资产转给 CloseTo
type AssetOptOut struct {
	DraftBase
	CloseTo string `json:"close_to"`
}

// AssetRemoval 移除余额为 0 的资产持有
type AssetRemoval struct {
	DraftBase
	CloseTo string `json:"close_to"`
}

// KeyRegistration 注册 (或注销) 共识参与密钥
type KeyRegistration struct {
	DraftBase
	VoteKey       string `json:"vote_key,omitempty"`      // base64
	SelectionKey  string `json:"selection_key,omitempty"` // base64
	StateProofKey string `json:"state_proof_key,omitempty"`
	VoteFirst     uint64 `json:"vote_first,omitempty"`
	VoteLast      uint64 `json:"vote_last,omitempty"`
	KeyDilution   uint64 `json:"key_dilution,omitempty"`
	Offline       bool   `json:"offline,omitempty"` // 非参与 (下线) 注册
}

func (d ValueTransfer) Kind() DraftKind   { return KindValueTransfer }
func (d AssetTransfer) Kind() DraftKind   { return KindAssetTransfer }
func (d AssetOptIn) Kind() DraftKind      { return KindAssetOptIn }
func (d AssetOptOut) Kind() DraftKind     { return KindAssetOptOut }
func (d AssetRemoval) Kind() DraftKind    { return KindAssetRemoval }
func (d KeyRegistration) Kind() DraftKind { return KindKeyRegistration }

func (d ValueTransfer) Base() DraftBase   { return d.DraftBase }
func (d AssetTransfer) Base() DraftBase   { return d.DraftBase }
func (d AssetOptIn) Base() DraftBase      { return d.DraftBase }
func (d AssetOptOut) Base() DraftBase     { return d.DraftBase }
func (d AssetRemoval) Base() DraftBase    { return d.DraftBase }
func (d KeyRegistration) Base() DraftBase { return d.DraftBase }

func (d ValueTransfer) withBase(b DraftBase) Draft   { d.DraftBase = b; return d }
func (d AssetTransfer) withBase(b DraftBase) Draft   { d.DraftBase = b; return d }
func (d AssetOptIn) withBase(b DraftBase) Draft      { d.DraftBase = b; return d }
func (d AssetOptOut) withBase(b DraftBase) Draft     { d.DraftBase = b; return d }
func (d AssetRemoval) withBase(b DraftBase) Draft    { d.DraftBase = b; return d }
func (d KeyRegistration) withBase(b DraftBase) Draft { d.DraftBase = b; return d }

// WithFee 返回带有已计算手续费的新 Draft
func WithFee(d Draft, fee uint64) Draft {
	b := d.Base()
	b.Fee = &fee
	return d.withBase(b)
}

// WithAmount 返回修改了金额的新 Draft
func WithAmount(d Draft, amount uint64) Draft {
	b := d.Base()
	b.Amount = amount
	return d.withBase(b)
}

// WithNote 返回修改了 note 的新 Draft；locked note 存在时拒绝修改
func WithNote(d Draft, note []byte) (Draft, error) {
	b := d.Base()
	if len(b.LockedNote) > 0 && !bytes.Equal(b.LockedNote, note) {
		return nil, ErrNoteLocked
	}
	b.Note = append([]byte(nil), note...)
	return d.withBase(b), nil
}

// Validate 检查 Draft 的结构性约束 (地址编码由 encoder 校验)
func Validate(d Draft) error {
	if d == nil {
		return errors.New("draft is nil")
	}
	b := d.Base()
	if b.Sender == "" {
		return ErrMissingSender
	}

	kind := d.Kind()
	if kind.IsAsset() && b.AssetID == 0 {
		return ErrMissingAsset
	}
	if !kind.IsAsset() && b.AssetID != 0 {
		return ErrUnexpectedAsset
	}

	switch v := d.(type) {
	case ValueTransfer:
		if v.Receiver == "" && v.CloseTo == "" {
			return ErrMissingReceiver
		}
	case AssetTransfer:
		if v.Receiver == "" {
			return ErrMissingReceiver
		}
	case AssetOptIn:
		if v.Amount != 0 {
			return fmt.Errorf("opt-in amount must be zero, got %d", v.Amount)
		}
	case AssetOptOut:
		if v.CloseTo == "" {
			return ErrMissingCloseTo
		}
	case AssetRemoval:
		if v.CloseTo == "" {
			return ErrMissingCloseTo
		}
		if v.Amount != 0 {
			return fmt.Errorf("asset removal amount must be zero, got %d", v.Amount)
		}
	case KeyRegistration:
		if !v.Offline && (v.VoteKey == "" || v.SelectionKey == "" || v.VoteLast <= v.VoteFirst) {
			return errors.New("online key registration requires vote/selection keys and a vote range")
		}
	}
	return nil
}
