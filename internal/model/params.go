package model

import "time"

// NetworkParams 是一次提交使用的网络参数快照，获取后视为不可变
type NetworkParams struct {
	FeePerByte  uint64    `json:"fee_per_byte" msgpack:"fee_per_byte"`
	MinFee      uint64    `json:"min_fee" msgpack:"min_fee"`
	FirstValid  uint64    `json:"first_valid" msgpack:"first_valid"`
	LastValid   uint64    `json:"last_valid" msgpack:"last_valid"`
	GenesisID   string    `json:"genesis_id" msgpack:"genesis_id"`
	GenesisHash []byte    `json:"genesis_hash" msgpack:"genesis_hash"`
	FetchedAt   time.Time `json:"fetched_at" msgpack:"fetched_at"`
}

// AccountInfo 账户余额与已 opt-in 资产集合
type AccountInfo struct {
	Address    string            `json:"address"`
	Amount     uint64            `json:"amount"`
	MinBalance uint64            `json:"min_balance"`
	Assets     map[uint64]uint64 `json:"assets"` // asset id -> holding amount
}

// HasAsset reports whether the account holds (is opted into) the asset
func (a AccountInfo) HasAsset(assetID uint64) bool {
	_, ok := a.Assets[assetID]
	return ok
}
